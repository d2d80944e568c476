package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/kozaktomas/site-photos/internal/photos"
	"github.com/kozaktomas/site-photos/internal/siteapi"
	"github.com/spf13/cobra"
)

var photosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the photos of a site",
	Long: `List one page of the site's photos, split into before and after.

Only the filters that are given constrain the result.

Example:
  site-photos photos list --site s-42
  site-photos photos list --classification after --from 2026-03-01 --to 2026-03-31
  site-photos photos list --report r-7 -q "north wall" --page 2`,
	Args: cobra.NoArgs,
	RunE: runPhotosList,
}

var photosCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the number of before and after photos",
	Long:  `Displays how many photos of the site match the filter, per classification.`,
	Args:  cobra.NoArgs,
	RunE:  runPhotosCount,
}

func init() {
	photosCmd.AddCommand(photosListCmd)
	photosCmd.AddCommand(photosCountCmd)

	for _, c := range []*cobra.Command{photosListCmd, photosCountCmd} {
		addFilterFlags(c)
	}
	photosListCmd.Flags().Int("page", 1, "Page to show")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("classification", "all", "Classification: all, before or after")
	cmd.Flags().String("from", "", "First work date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last work date (YYYY-MM-DD)")
	cmd.Flags().String("report", "", "Report ID")
	cmd.Flags().String("uploader", "", "Uploader ID")
	cmd.Flags().StringP("search", "q", "", "Search text")
}

func filterFromFlags(cmd *cobra.Command) photos.Filter {
	return photos.Filter{
		Classification: photos.ClassificationFilter(mustGetString(cmd, "classification")),
		From:           mustGetString(cmd, "from"),
		To:             mustGetString(cmd, "to"),
		ReportID:       mustGetString(cmd, "report"),
		UploaderID:     mustGetString(cmd, "uploader"),
		Search:         mustGetString(cmd, "search"),
	}
}

// loadFiltered opens a session and fetches the requested page with the
// filter from the flags.
func loadFiltered(cmd *cobra.Command, env *cliEnv, page int) (*photos.Session, error) {
	session, err := env.newSession(cmd, photos.Options{})
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if err := session.SetFilter(ctx, filterFromFlags(cmd)); err != nil {
		return nil, err
	}
	if page > 1 {
		if err := session.Fetch(ctx, page); err != nil {
			return nil, err
		}
	}
	return session, nil
}

func runPhotosList(cmd *cobra.Command, args []string) error {
	env, err := newCLIEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	session, err := loadFiltered(cmd, env, mustGetInt(cmd, "page"))
	if err != nil {
		return err
	}
	defer session.Close()

	snap := session.Snapshot()
	if len(snap.Photos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No photos found.")
		return nil
	}

	printPhotoGroup(cmd.OutOrStdout(), env, "Before", snap.BeforePhotos)
	printPhotoGroup(cmd.OutOrStdout(), env, "After", snap.AfterPhotos)

	fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d of %d (%d photo(s) in total)\n",
		snap.Pagination.Page, max(snap.Pagination.TotalPages, 1), snap.Pagination.Total)
	return nil
}

func printPhotoGroup(w io.Writer, env *cliEnv, title string, items []siteapi.Photo) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", title, len(items))
	for _, p := range items {
		details := []string{p.FileName}
		if p.WorkDate != "" {
			details = append(details, p.WorkDate)
		}
		if p.UploaderName != "" {
			details = append(details, "by "+p.UploaderName)
		}
		if p.Metadata.Component != "" {
			details = append(details, p.Metadata.Component)
		}
		fmt.Fprintf(w, "  %s  %s\n", env.photoLink(p.ID), strings.Join(details, "  "))
	}
}

func runPhotosCount(cmd *cobra.Command, args []string) error {
	env, err := newCLIEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	session, err := loadFiltered(cmd, env, 1)
	if err != nil {
		return err
	}
	defer session.Close()

	snap := session.Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "Site: %s\n", env.siteID)
	fmt.Fprintf(cmd.OutOrStdout(), "Before: %d\n", snap.Counts.Before)
	fmt.Fprintf(cmd.OutOrStdout(), "After:  %d\n", snap.Counts.After)
	return nil
}

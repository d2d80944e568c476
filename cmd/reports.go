package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List the reports and photo sheets of a site",
	Long: `List the reports photos can be attached to and the photo sheets
generated for the site.

Lists are cached in Redis when REDIS_URL is set.`,
	Args: cobra.NoArgs,
	RunE: runReports,
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.Flags().String("site", "", "Site ID (defaults to SITE_ID)")
	reportsCmd.Flags().Bool("sheets", false, "Also list photo sheets")
}

func runReports(cmd *cobra.Command, args []string) error {
	env, err := newCLIEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	source := env.referenceSource(ctx)

	reports, err := source.ListReports(ctx, env.siteID)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if len(reports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No reports found.")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Reports (%d):\n", len(reports))
		for _, r := range reports {
			line := fmt.Sprintf("  %s  %s", r.ID, r.Title)
			if r.WorkDate != "" {
				line += "  " + r.WorkDate
			}
			if r.Status != "" {
				line += "  [" + r.Status + "]"
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}

	if !mustGetBool(cmd, "sheets") {
		return nil
	}
	sheets, err := source.ListPhotoSheets(ctx, env.siteID)
	if err != nil {
		return fmt.Errorf("failed to list photo sheets: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nPhoto sheets (%d):\n", len(sheets))
	for _, s := range sheets {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s  %d photo(s)  %s\n", s.ID, s.Title, s.PhotoCount, s.GeneratedAt.Format("2006-01-02"))
	}
	return nil
}

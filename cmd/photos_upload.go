package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kozaktomas/site-photos/internal/photos"
	"github.com/kozaktomas/site-photos/internal/preview"
	"github.com/kozaktomas/site-photos/internal/siteapi"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var photosUploadCmd = &cobra.Command{
	Use:   "upload --report <report-id> [--before path...] [--after path...]",
	Short: "Upload photos to a site",
	Long: `Upload before and after photos attached to a daily report.

Paths may be files or folders. Folders contribute the image files they
contain (non-recursive unless -r is given). Before photos are uploaded
first, then after photos, one at a time in the given order. The first
failure stops the upload; photos already uploaded are not sent again on
a retry.

Supported formats: jpg, jpeg, png, webp, gif, heic, heif, avif, tiff, bmp

Example:
  site-photos photos upload --report r-7 --before ./morning --after ./evening
  site-photos photos upload --report r-7 --after img_001.jpg --after img_002.jpg -d "Facade"`,
	Args: cobra.NoArgs,
	RunE: runPhotosUpload,
}

func init() {
	photosCmd.AddCommand(photosUploadCmd)
	photosUploadCmd.Flags().String("report", "", "Report ID the photos belong to (required)")
	photosUploadCmd.Flags().StringP("description", "d", "", "Description stored with every photo")
	photosUploadCmd.Flags().StringSlice("before", nil, "Before photos (files or folders)")
	photosUploadCmd.Flags().StringSlice("after", nil, "After photos (files or folders)")
	photosUploadCmd.Flags().BoolP("recursive", "r", false, "Search folders recursively")
}

// collectImages expands folders into the image files they contain and
// keeps files as given.
func collectImages(paths []string, recursive bool) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		if recursive {
			err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && photos.IsAllowedImage(d.Name(), "") {
					files = append(files, p)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("cannot walk folder %s: %w", path, err)
			}
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read folder %s: %w", path, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && photos.IsAllowedImage(entry.Name(), "") {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
	}
	return files, nil
}

func openDiskFiles(paths []string) ([]photos.File, error) {
	files := make([]photos.File, 0, len(paths))
	for _, path := range paths {
		f, err := preview.OpenDiskFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func runPhotosUpload(cmd *cobra.Command, args []string) error {
	reportID := mustGetString(cmd, "report")
	recursive := mustGetBool(cmd, "recursive")

	lists := map[siteapi.Classification][]string{}
	total := 0
	for _, c := range siteapi.Classifications {
		paths, err := collectImages(mustGetStringSlice(cmd, string(c)), recursive)
		if err != nil {
			return err
		}
		lists[c] = paths
		total += len(paths)
	}
	if total == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No image files found.")
		return nil
	}

	env, err := newCLIEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	// Previews only serve the capture time here; they live in a temp dir.
	previewDir, err := os.MkdirTemp("", "site-photos-upload-")
	if err != nil {
		return fmt.Errorf("failed to create preview directory: %w", err)
	}
	defer os.RemoveAll(previewDir)
	previews, err := preview.NewGenerator(previewDir, env.logger.Named("preview"))
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(cmd.OutOrStdout()),
		progressbar.OptionSetDescription("Uploading"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	session, err := env.newSession(cmd, photos.Options{
		Previewer:        previews,
		OnUploadProgress: func(photos.UploadProgress) { _ = bar.Add(1) },
	})
	if err != nil {
		return err
	}
	defer session.Close()

	ctx := cmd.Context()
	if err := session.OpenUploader(ctx, nil, nil); err != nil {
		return err
	}
	for _, c := range siteapi.Classifications {
		if len(lists[c]) == 0 {
			continue
		}
		files, err := openDiskFiles(lists[c])
		if err != nil {
			return err
		}
		if err := session.Stage(ctx, c, files); err != nil {
			return err
		}
	}
	if err := session.SetUploadForm(photos.UploadForm{
		ReportID:    reportID,
		Description: mustGetString(cmd, "description"),
	}); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Uploading %d photo(s) to report %s\n\n", total, reportID)
	n, err := session.Submit(ctx)
	fmt.Fprintln(out)
	if errors.Is(err, photos.ErrNoReport) {
		return errors.New("--report is required")
	}
	if err != nil {
		return fmt.Errorf("uploaded %d of %d photo(s): %w", n, total, err)
	}
	return nil
}

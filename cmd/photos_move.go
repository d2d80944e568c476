package cmd

import (
	"fmt"
	"strings"

	"github.com/kozaktomas/site-photos/internal/photos"
	"github.com/kozaktomas/site-photos/internal/siteapi"
	"github.com/spf13/cobra"
)

var photosMoveCmd = &cobra.Command{
	Use:   "move <before|after> <photo-id> [photo-id...]",
	Short: "Move photos to before or after",
	Long: `Change the classification of one or more photos.

Each photo is updated on its own; a failed photo does not stop the others.
Every failure is reported, followed by one summary line.

Example:
  site-photos photos move after p-101 p-102 p-103`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPhotosMove,
}

func init() {
	photosCmd.AddCommand(photosMoveCmd)
}

func runPhotosMove(cmd *cobra.Command, args []string) error {
	target, err := siteapi.ParseClassification(args[0])
	if err != nil {
		return err
	}

	env, err := newCLIEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	session, err := env.newSession(cmd, photos.Options{})
	if err != nil {
		return err
	}
	defer session.Close()

	result, err := session.Move(cmd.Context(), args[1:], target)
	if err != nil {
		return err
	}
	return batchError("move", result)
}

// batchError turns failed items into the command's exit status. The
// individual failures were already printed.
func batchError(operation string, result *photos.BatchResult) error {
	if len(result.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("could not %s %d photo(s): %s", operation, len(result.Failed), strings.Join(result.FailedIDs(), ", "))
}

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kozaktomas/site-photos/internal/photos"
	"github.com/spf13/cobra"
)

var photosDeleteCmd = &cobra.Command{
	Use:   "delete <photo-id> [photo-id...]",
	Short: "Delete photos",
	Long: `Delete one or more photos after confirmation.

Each photo is deleted on its own; a failed photo does not stop the others.

Example:
  site-photos photos delete p-101 p-102
  site-photos photos delete --yes p-101`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPhotosDelete,
}

func init() {
	photosCmd.AddCommand(photosDeleteCmd)
	photosDeleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking for confirmation")
}

// promptConfirmer asks on the terminal and accepts only y or yes.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptConfirmer(in io.Reader, out io.Writer) *promptConfirmer {
	return &promptConfirmer{in: bufio.NewReader(in), out: out}
}

func (p *promptConfirmer) Confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", message)
	answer, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func runPhotosDelete(cmd *cobra.Command, args []string) error {
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

	var confirm photos.Confirmer = newPromptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
	if mustGetBool(cmd, "yes") {
		confirm = photos.Answer(true)
	}

	result, err := session.Delete(cmd.Context(), args, confirm)
	if errors.Is(err, photos.ErrDeclined) {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}
	if err != nil {
		return err
	}
	return batchError("delete", result)
}

package photos

import (
	"errors"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

var (
	ErrNoReport        = errors.New("no report selected for upload")
	ErrNoFiles         = errors.New("no files staged for upload")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrDeclined        = errors.New("operation declined")
	ErrNothingToMove   = errors.New("nothing to move")
	ErrNoSelection     = errors.New("no photos selected")
	ErrSubmitting      = errors.New("upload in progress")
	ErrStaleResponse   = errors.New("stale response discarded")
	ErrNotInCollection = errors.New("photo is not in the current collection")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrClosed          = errors.New("session closed")
)

// rawMessage returns the backend's own text for API errors and the full
// error string otherwise, so message rules match what the backend said.
func rawMessage(err error) string {
	var apiErr *siteapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

package unsign

import (
	"fmt"

	"github.com/meigma/unsign/internal/safefile"
)

// Errors re-exported from internal/safefile.
var (
	// ErrInvalidArgument is returned when a required path is missing, is a
	// directory, or input and output resolve to the same file.
	ErrInvalidArgument = safefile.ErrInvalidArgument

	// ErrIO is returned when an underlying filesystem operation fails.
	ErrIO = safefile.ErrIO

	// ErrTransferVerification is returned when a copied file's size does not
	// match its source.
	ErrTransferVerification = safefile.ErrTransferVerification
)

// RelocationError is returned when the archive could neither be renamed nor
// copied out of the way. The archive is left untouched.
type RelocationError = safefile.RelocationError

// RewriteError is returned when streaming entries into the new archive fails.
//
// The original archive bytes remain at TempPath. The file at Archive may be
// partially written.
type RewriteError struct {
	Archive     string
	Replacement string
	TempPath    string
	Err         error
}

func (e *RewriteError) Error() string {
	if e.Replacement != "" {
		return fmt.Sprintf("unsign: unable to move manifest %s into archive %s (original preserved at %s): %v",
			e.Replacement, e.Archive, e.TempPath, e.Err)
	}
	return fmt.Sprintf("unsign: unable to rewrite archive %s (original preserved at %s): %v",
		e.Archive, e.TempPath, e.Err)
}

func (e *RewriteError) Unwrap() error {
	return e.Err
}

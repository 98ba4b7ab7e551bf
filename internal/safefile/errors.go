package safefile

import (
	"errors"
	"fmt"
)

// Sentinel errors for file relocation.
var (
	// ErrInvalidArgument is returned when a path is missing, is a directory
	// where a file is required, or input and output resolve to the same file.
	ErrInvalidArgument = errors.New("unsign: invalid argument")

	// ErrIO is returned when an underlying filesystem operation fails.
	ErrIO = errors.New("unsign: i/o error")

	// ErrTransferVerification is returned when a copied file's size does not
	// match its source.
	ErrTransferVerification = errors.New("unsign: transfer verification failed")
)

// RelocationError is returned when a file could neither be renamed nor
// copied to its temporary path. The original file is left untouched.
type RelocationError struct {
	Path string
	Err  error
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("unsign: unable to relocate %s: %v", e.Path, e.Err)
}

func (e *RelocationError) Unwrap() error {
	return e.Err
}

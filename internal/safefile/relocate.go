package safefile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// maxReserveAttempts bounds the search for a free temporary name.
const maxReserveAttempts = 1000

// State is the completion state of a [Transfer].
type State int

const (
	StatePending State = iota
	StateRenamed
	StateCopied
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRenamed:
		return "renamed"
	case StateCopied:
		return "copied"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transfer records the relocation of Original to Temp.
//
// When State is StateRenamed or StateCopied, Temp holds the bytes Original
// held before the call and Original may be reopened for writing.
type Transfer struct {
	Original string
	Temp     string
	State    State
}

// Relocate moves original to a sibling temporary file named
// "{unixMillis}.tmp" in the same directory.
//
// The temporary name is reserved by creating it exclusively; if that name is
// taken the millisecond value is incremented. Relocation prefers a rename and
// falls back to [Manager.VerifiedCopy]. If neither succeeds a
// *RelocationError is returned, the reserved name is removed, and original
// is left untouched.
func (m *Manager) Relocate(original string) (*Transfer, error) {
	t := &Transfer{Original: original}
	if original == "" {
		t.State = StateFailed
		return t, &RelocationError{Path: original, Err: fmt.Errorf("%w: empty path", ErrInvalidArgument)}
	}

	temp, err := m.reserveTemp(filepath.Dir(original))
	if err != nil {
		t.State = StateFailed
		return t, &RelocationError{Path: original, Err: err}
	}
	t.Temp = temp

	renameErr := m.fs.Rename(original, temp)
	if renameErr == nil {
		t.State = StateRenamed
		m.log().Debug("relocated by rename", "path", original, "temp", temp)
		return t, nil
	}
	m.log().Debug("rename failed, falling back to copy", "path", original, "temp", temp, "error", renameErr)

	if err := m.verifiedCopy(original, temp, true); err != nil {
		t.State = StateFailed
		if rmErr := m.fs.Remove(temp); rmErr != nil && !isNotExist(rmErr) {
			m.log().Debug("remove reserved temp file", "temp", temp, "error", rmErr)
		}
		return t, &RelocationError{Path: original, Err: errors.Join(renameErr, err)}
	}

	t.State = StateCopied
	m.log().Debug("relocated by copy", "path", original, "temp", temp)
	return t, nil
}

// reserveTemp creates an empty "{unixMillis}.tmp" file in dir and returns its path.
func (m *Manager) reserveTemp(dir string) (string, error) {
	stamp := m.now().UnixMilli()
	for i := range int64(maxReserveAttempts) {
		name := filepath.Join(dir, strconv.FormatInt(stamp+i, 10)+".tmp")
		f, err := m.fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			CloseQuietly(f)
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: reserve temp file: %w", ErrIO, err)
		}
	}
	return "", fmt.Errorf("%w: no free temp file name in %s", ErrIO, dir)
}

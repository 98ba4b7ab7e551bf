package safefile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// VerifiedCopy copies input to output, checks that the sizes match, and
// then deletes input.
//
// An existing output is deleted first and missing parent directories are
// created. Deleting input is best effort: if it fails the deletion is
// deferred to process exit rather than reported. All file handles are
// released on every return path.
func (m *Manager) VerifiedCopy(input, output string) error {
	return m.verifiedCopy(input, output, false)
}

// verifiedCopy implements [Manager.VerifiedCopy]. When reserved is set,
// output is a placeholder this Manager created exclusively: it is truncated
// in place and never removed, so no other caller can claim the name while
// the copy runs.
func (m *Manager) verifiedCopy(input, output string, reserved bool) error {
	if input == "" {
		return fmt.Errorf("%w: input must not be empty", ErrInvalidArgument)
	}
	if output == "" {
		return fmt.Errorf("%w: output must not be empty", ErrInvalidArgument)
	}

	inInfo, err := m.fs.Stat(input)
	if err != nil {
		return fmt.Errorf("%w: stat input: %w", ErrIO, err)
	}
	if inInfo.IsDir() {
		return fmt.Errorf("%w: input must not be a directory: %s", ErrInvalidArgument, input)
	}

	outInfo, err := m.fs.Stat(output)
	outExists := err == nil
	if outExists && outInfo.IsDir() {
		return fmt.Errorf("%w: output must not be a directory: %s", ErrInvalidArgument, output)
	}
	if m.canonicalPath(input) == m.canonicalPath(output) || (outExists && os.SameFile(inInfo, outInfo)) {
		return fmt.Errorf("%w: input must be different from output: %s", ErrInvalidArgument, input)
	}

	if reserved && !outExists {
		return fmt.Errorf("%w: reserved output is missing: %s", ErrIO, output)
	}
	if outExists && !reserved {
		if err := m.fs.Remove(output); err != nil {
			return fmt.Errorf("%w: delete output file %s: %w", ErrIO, output, err)
		}
	}

	if err := m.ensureWritableDir(filepath.Dir(output)); err != nil {
		return err
	}

	if err := m.transfer(input, output, reserved); err != nil {
		return err
	}

	inInfo, err = m.fs.Stat(input)
	if err != nil {
		return fmt.Errorf("%w: stat input: %w", ErrIO, err)
	}
	outInfo, err = m.fs.Stat(output)
	if err != nil {
		return fmt.Errorf("%w: stat output: %w", ErrIO, err)
	}
	if outInfo.Size() != inInfo.Size() {
		return fmt.Errorf("%w: %w: input %s (%d bytes), output %s (%d bytes)",
			ErrIO, ErrTransferVerification, input, inInfo.Size(), output, outInfo.Size())
	}

	m.BestEffortDelete(input)
	return nil
}

// ensureWritableDir creates dir if needed and checks that it is a directory.
// Write access is checked by creating the output itself.
func (m *Manager) ensureWritableDir(dir string) error {
	if err := m.fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: create output parent %s: %w", ErrIO, dir, err)
	}
	info, err := m.fs.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: output parent is not an existing directory: %s", ErrIO, dir)
	}
	return nil
}

// transfer performs the bulk byte copy. On the host filesystem io.Copy hands
// off to the kernel's file-to-file copy. A reserved output is opened without
// O_CREATE so a vanished placeholder is an error rather than a new file.
func (m *Manager) transfer(input, output string, reserved bool) error {
	in, err := m.fs.Open(input)
	if err != nil {
		return fmt.Errorf("%w: open input: %w", ErrIO, err)
	}
	defer CloseQuietly(in)

	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if reserved {
		flag = os.O_WRONLY | os.O_TRUNC
	}
	out, err := m.fs.OpenFile(output, flag, 0o600)
	if err != nil {
		return fmt.Errorf("%w: cannot write output %s: %w", ErrIO, output, err)
	}
	defer CloseQuietly(out)

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: copy %s to %s: %w", ErrIO, input, output, err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("%w: sync output: %w", ErrIO, err)
	}
	return nil
}

// canonicalPath resolves p to an absolute path. Symlinks are evaluated only
// when the Manager works on the host filesystem; other filesystems compare
// cleaned paths.
func (m *Manager) canonicalPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	if _, ok := m.fs.(*afero.OsFs); !ok {
		return abs
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs))
	}
	return abs
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

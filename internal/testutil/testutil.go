// Package testutil builds ZIP fixtures and fault-injecting filesystems for tests.
package testutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// FixtureTime is the modification time stamped on fixture entries.
var FixtureTime = time.Date(2012, time.June, 1, 12, 0, 0, 0, time.UTC)

// Entry is one archive entry. Names ending in "/" are directories.
// Files are deflated unless Stored is set.
type Entry struct {
	Name   string
	Data   []byte
	Stored bool
}

// ZipBytes encodes entries, in order, as a ZIP archive.
func ZipBytes(t testing.TB, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		method := zip.Deflate
		if e.Stored {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   method,
			Modified: FixtureTime,
		})
		require.NoError(t, err)
		if len(e.Data) > 0 {
			_, err = w.Write(e.Data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// WriteZip writes entries as a ZIP archive at path on fsys.
func WriteZip(t testing.TB, fsys afero.Fs, path string, entries []Entry) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fsys, path, ZipBytes(t, entries), 0o644))
}

// ReadZip returns the entries of the archive at path on fsys, in order.
// Directory entries have nil Data.
func ReadZip(t testing.TB, fsys afero.Fs, path string) []Entry {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		e := Entry{Name: f.Name, Stored: f.Method == zip.Store}
		if !f.FileInfo().IsDir() {
			rc, err := f.Open()
			require.NoError(t, err)
			e.Data, err = io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
		}
		entries = append(entries, e)
	}
	return entries
}

// Names returns the entry names in order.
func Names(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// FaultFs wraps an afero.Fs and fails selected operations.
// Nil hooks pass through to the wrapped filesystem.
type FaultFs struct {
	afero.Fs

	// RenameErr, if set, is returned by every Rename.
	RenameErr error

	// OpenFileErr, if set and returning non-nil, fails OpenFile.
	OpenFileErr func(name string, flag int) error

	// RemoveErr, if set and returning non-nil, fails Remove.
	RemoveErr func(name string) error

	// LossyWrites drops the last byte of every write to files opened
	// with O_TRUNC, while reporting the full length as written.
	LossyWrites bool
}

func (f *FaultFs) Rename(oldname, newname string) error {
	if f.RenameErr != nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: f.RenameErr}
	}
	return f.Fs.Rename(oldname, newname)
}

func (f *FaultFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if f.OpenFileErr != nil {
		if err := f.OpenFileErr(name, flag); err != nil {
			return nil, &os.PathError{Op: "open", Path: name, Err: err}
		}
	}
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	if f.LossyWrites && flag&os.O_TRUNC != 0 {
		return lossyFile{File: file}, nil
	}
	return file, nil
}

func (f *FaultFs) Create(name string) (afero.File, error) {
	return f.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

func (f *FaultFs) Remove(name string) error {
	if f.RemoveErr != nil {
		if err := f.RemoveErr(name); err != nil {
			return &os.PathError{Op: "remove", Path: name, Err: err}
		}
	}
	return f.Fs.Remove(name)
}

// lossyFile silently drops the final byte of each write.
type lossyFile struct {
	afero.File
}

func (f lossyFile) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := f.File.Write(p[:len(p)-1]); err != nil {
		return 0, err
	}
	return len(p), nil
}

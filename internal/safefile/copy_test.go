package safefile

import (
	"bytes"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/unsign/internal/testutil"
)

func TestVerifiedCopy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.bin")
	output := filepath.Join(dir, "out.bin")
	content := bytes.Repeat([]byte{0xCA, 0xFE}, 64<<10)
	writeFile(t, input, content)
	writeFile(t, output, []byte("stale output"))

	m, exits := newTestManager(afero.NewOsFs())
	require.NoError(t, m.VerifiedCopy(input, output))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.NoFileExists(t, input)
	assert.Empty(t, exits.Pending())
}

func TestVerifiedCopyCreatesParents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.bin")
	output := filepath.Join(dir, "a", "b", "out.bin")
	writeFile(t, input, []byte("nested"))

	m, _ := newTestManager(afero.NewOsFs())
	require.NoError(t, m.VerifiedCopy(input, output))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "nested", string(got))
}

func TestVerifiedCopyEmptyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "empty")
	output := filepath.Join(dir, "copy")
	writeFile(t, input, nil)

	m, _ := newTestManager(afero.NewOsFs())
	require.NoError(t, m.VerifiedCopy(input, output))

	info, err := os.Stat(output)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestVerifiedCopyInvalidArguments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "file.bin")
	subdir := filepath.Join(dir, "sub")
	writeFile(t, file, []byte("data"))
	require.NoError(t, os.Mkdir(subdir, 0o755))
	link := filepath.Join(dir, "link.bin")
	require.NoError(t, os.Symlink(file, link))

	tests := []struct {
		name   string
		input  string
		output string
	}{
		{name: "empty input", input: "", output: filepath.Join(dir, "out")},
		{name: "empty output", input: file, output: ""},
		{name: "input directory", input: subdir, output: filepath.Join(dir, "out")},
		{name: "output directory", input: file, output: subdir},
		{name: "same path", input: file, output: file},
		{name: "same path unclean", input: file, output: dir + "/./sub/../file.bin"},
		{name: "same file via symlink", input: file, output: link},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, _ := newTestManager(afero.NewOsFs())
			err := m.VerifiedCopy(tt.input, tt.output)
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.FileExists(t, file)
		})
	}
}

func TestVerifiedCopyMissingInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, _ := newTestManager(afero.NewOsFs())
	err := m.VerifiedCopy(filepath.Join(dir, "missing"), filepath.Join(dir, "out"))
	require.ErrorIs(t, err, ErrIO)
	assert.NoFileExists(t, filepath.Join(dir, "out"))
}

func TestVerifiedCopyVerificationFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.bin")
	output := filepath.Join(dir, "out.bin")
	writeFile(t, input, []byte("every byte matters"))

	m, _ := newTestManager(&testutil.FaultFs{Fs: afero.NewOsFs(), LossyWrites: true})
	err := m.VerifiedCopy(input, output)
	require.ErrorIs(t, err, ErrTransferVerification)
	require.ErrorIs(t, err, ErrIO)

	got, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, "every byte matters", string(got), "input must survive a failed verification")
}

func TestVerifiedCopyCannotDeleteOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.bin")
	output := filepath.Join(dir, "out.bin")
	writeFile(t, input, []byte("new"))
	writeFile(t, output, []byte("old"))

	fsys := &testutil.FaultFs{
		Fs: afero.NewOsFs(),
		RemoveErr: func(name string) error {
			if name == output {
				return syscall.EPERM
			}
			return nil
		},
	}
	m, _ := newTestManager(fsys)
	err := m.VerifiedCopy(input, output)
	require.ErrorIs(t, err, ErrIO)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
	assert.FileExists(t, input)
}

func TestVerifiedCopyUnwritableOutput(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/src/in.bin", []byte("data"), 0o644))
	require.NoError(t, base.MkdirAll("/locked", 0o755))

	fsys := &testutil.FaultFs{
		Fs: base,
		OpenFileErr: func(name string, flag int) error {
			if name == "/locked/out.bin" && flag&os.O_CREATE != 0 {
				return syscall.EACCES
			}
			return nil
		},
	}
	m, _ := newTestManager(fsys)
	err := m.VerifiedCopy("/src/in.bin", "/locked/out.bin")
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, syscall.EACCES)
	assert.Contains(t, err.Error(), "cannot write output")

	exists, err := afero.Exists(base, "/src/in.bin")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestVerifiedCopyIgnoresParentModeBits(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/src/in.bin", []byte("data"), 0o644))
	require.NoError(t, fsys.MkdirAll("/shared", 0o755))
	require.NoError(t, fsys.Chmod("/shared", os.ModeDir|0o575))

	m, _ := newTestManager(fsys)
	require.NoError(t, m.VerifiedCopy("/src/in.bin", "/shared/out.bin"))

	got, err := afero.ReadFile(fsys, "/shared/out.bin")
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestVerifiedCopyHostSymlinksIgnoredOnOtherFs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "real"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "link")))

	input := filepath.Join(dir, "link", "a.bin")
	output := filepath.Join(dir, "real", "a.bin")
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, input, []byte("in memory"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, output, []byte("other file"), 0o644))

	m, _ := newTestManager(fsys)
	require.NoError(t, m.VerifiedCopy(input, output))

	got, err := afero.ReadFile(fsys, output)
	require.NoError(t, err)
	assert.Equal(t, "in memory", string(got))
}

func TestVerifiedCopyDefersInputDeletion(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.bin")
	output := filepath.Join(dir, "out.bin")
	writeFile(t, input, []byte("locked input"))

	fsys := &testutil.FaultFs{
		Fs: afero.NewOsFs(),
		RemoveErr: func(name string) error {
			if name == input {
				return syscall.EBUSY
			}
			return nil
		},
	}
	m, exits := newTestManager(fsys)
	require.NoError(t, m.VerifiedCopy(input, output))

	assert.FileExists(t, input)
	assert.Equal(t, []string{input}, exits.Pending())
}

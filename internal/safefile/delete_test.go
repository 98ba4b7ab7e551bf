package safefile

import (
	"errors"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/unsign/internal/testutil"
)

func TestBestEffortDelete(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/dir/file", []byte("x"), 0o644))

	m, exits := newTestManager(fsys)
	m.BestEffortDelete("/dir/file")

	exists, err := afero.Exists(fsys, "/dir/file")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, exits.Pending())
}

func TestBestEffortDeleteMissingOrEmpty(t *testing.T) {
	t.Parallel()

	m, exits := newTestManager(afero.NewMemMapFs())
	m.BestEffortDelete("/nope")
	m.BestEffortDelete("")
	assert.Empty(t, exits.Pending())
}

func TestBestEffortDeleteDefersOnFailure(t *testing.T) {
	t.Parallel()

	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/a", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(mem, "/b", []byte("b"), 0o644))

	busy := true
	fsys := &testutil.FaultFs{
		Fs: mem,
		RemoveErr: func(string) error {
			if busy {
				return syscall.EBUSY
			}
			return nil
		},
	}
	m, exits := newTestManager(fsys)
	m.BestEffortDelete("/a")
	m.BestEffortDelete("/b")
	m.BestEffortDelete("/a")
	assert.Equal(t, []string{"/a", "/b"}, exits.Pending())

	busy = false
	require.NoError(t, exits.Run())
	assert.Empty(t, exits.Pending())

	for _, p := range []string{"/a", "/b"} {
		exists, err := afero.Exists(mem, p)
		require.NoError(t, err)
		assert.False(t, exists, p)
	}
}

func TestExitRegistryForget(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/keep", []byte("new archive"), 0o644))

	exits := NewExitRegistry()
	exits.Add(fsys, "/keep")
	exits.Add(fsys, "/gone")
	assert.True(t, exits.Forget(filepath.Join("/", ".", "keep")))
	assert.False(t, exits.Forget("/keep"))
	assert.Equal(t, []string{"/gone"}, exits.Pending())

	require.NoError(t, exits.Run())
	exists, err := afero.Exists(fsys, "/keep")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExitRegistryRunReportsFailures(t *testing.T) {
	t.Parallel()

	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/stuck", []byte("x"), 0o644))
	fsys := &testutil.FaultFs{Fs: mem, RemoveErr: func(string) error { return syscall.EPERM }}

	exits := NewExitRegistry()
	exits.Add(fsys, "/stuck")
	err := exits.Run()
	require.ErrorIs(t, err, syscall.EPERM)
	assert.Empty(t, exits.Pending())
}

type closer struct {
	closed bool
	err    error
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

func TestCloseQuietly(t *testing.T) {
	t.Parallel()

	CloseQuietly(nil)

	c := &closer{err: errors.New("close failed")}
	CloseQuietly(c)
	assert.True(t, c.closed)
}

package devfs

import (
	"io"
	"os"
	"testing"

	"github.com/chardev/chardev/internal/device/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFs(t *testing.T) (afero.Fs, *store.Store) {
	t.Helper()
	s, err := store.New(store.DefaultCapacity)
	require.NoError(t, err)
	return New(s, ""), s
}

func TestStat(t *testing.T) {
	fsys, _ := newTestFs(t)

	fi, err := fsys.Stat(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, "char_dev", fi.Name())
	assert.Equal(t, int64(store.DefaultCapacity), fi.Size())
	assert.Equal(t, os.ModeDevice|os.ModeCharDevice, fi.Mode().Type())
	assert.Equal(t, os.FileMode(0666), fi.Mode().Perm())
	assert.False(t, fi.IsDir())

	_, err = fsys.Stat("/dev/other")
	assert.ErrorIs(t, err, os.ErrNotExist)

	exists, err := afero.Exists(fsys, "/dev/../dev/char_dev")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReadWriteThroughAfero(t *testing.T) {
	fsys, s := newTestFs(t)

	require.NoError(t, afero.WriteFile(fsys, DefaultName, []byte("Hello from user space"), 0666))
	assert.Equal(t, 0, s.OpenSessions())

	data, err := afero.ReadFile(fsys, DefaultName)
	require.NoError(t, err)
	assert.Len(t, data, store.DefaultCapacity)
	assert.Equal(t, "Hello from user space", string(data[:21]))
}

func TestOpenModes(t *testing.T) {
	fsys, _ := newTestFs(t)

	ro, err := fsys.Open(DefaultName)
	require.NoError(t, err)
	defer ro.Close()
	_, err = ro.Write([]byte("x"))
	assert.Error(t, err)
	_, err = ro.WriteString("x")
	assert.Error(t, err)

	wo, err := fsys.OpenFile(DefaultName, os.O_WRONLY, 0)
	require.NoError(t, err)
	defer wo.Close()
	_, err = wo.Read(make([]byte, 1))
	assert.Error(t, err)
	n, err := wo.WriteString("abc")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	buf := make([]byte, 3)
	_, err = io.ReadFull(ro, buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf))

	_, err = fsys.OpenFile(DefaultName, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0)
	assert.ErrorIs(t, err, os.ErrExist)
	_, err = fsys.OpenFile("/tmp/x", os.O_RDWR, 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestImmutableNamespace(t *testing.T) {
	fsys, _ := newTestFs(t)

	_, err := fsys.Create(DefaultName)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.ErrorIs(t, fsys.Remove(DefaultName), os.ErrPermission)
	assert.ErrorIs(t, fsys.Rename(DefaultName, "/dev/x"), os.ErrPermission)
	assert.ErrorIs(t, fsys.Mkdir("/dev/x", 0755), os.ErrPermission)
	assert.ErrorIs(t, fsys.Chmod(DefaultName, 0600), os.ErrPermission)

	f, err := fsys.OpenFile(DefaultName, os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()
	assert.ErrorIs(t, f.Truncate(0), store.ErrInvalidArgument)
	_, err = f.Readdir(-1)
	assert.Error(t, err)
	assert.NoError(t, f.Sync())
	assert.Equal(t, DefaultName, f.Name())
}

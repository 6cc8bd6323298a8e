package store

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	s := newTestStore(t)
	f := s.OpenFile()
	defer f.Close()

	n, err := io.WriteString(f, greeting)
	require.NoError(t, err)
	assert.Equal(t, len(greeting), n)

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Len(t, data, DefaultCapacity)
	assert.Equal(t, greeting, string(data[:len(greeting)]))

	n, err = f.Read(make([]byte, 1))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFileShortWrite(t *testing.T) {
	s := newTestStore(t)
	f := s.OpenFile()

	_, err := f.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	n, err := f.Write([]byte("abcd"))
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.ErrShortWrite)

	n, err = f.Write([]byte("e"))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrOutOfSpace)

	n, err = f.Write(nil)
	assert.Equal(t, 0, n)
	assert.NoError(t, err)
}

func TestFileAt(t *testing.T) {
	s := newTestStore(t)
	f := s.OpenFile()

	_, err := f.WriteAt([]byte("tail"), DefaultCapacity-4)
	require.NoError(t, err)

	dst := make([]byte, 8)
	n, err := f.ReadAt(dst, DefaultCapacity-4)
	assert.Equal(t, 4, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "tail", string(dst[:n]))

	pos, err := f.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	n, err = f.WriteAt([]byte("abcdef"), DefaultCapacity-3)
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, err, io.ErrShortWrite)

	require.NoError(t, f.Close())
	assert.True(t, f.Session().Closed())
}

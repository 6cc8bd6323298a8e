package store

import (
	"bytes"
	"errors"
	"math"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/chardev/chardev/internal/common/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greeting = "Hello from user space"

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(DefaultCapacity, opts...)
	require.NoError(t, err)
	return s
}

type failingCopier struct {
	failOut bool
	failIn  bool
}

func (c failingCopier) CopyOut(dst, src []byte) error {
	if c.failOut {
		return errors.New("copy out refused")
	}
	return boundedCopy(dst, src)
}

func (c failingCopier) CopyIn(dst, src []byte) error {
	if c.failIn {
		return errors.New("copy in refused")
	}
	return boundedCopy(dst, src)
}

func TestNew(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, DefaultCapacity, s.Capacity())
	assert.Equal(t, make([]byte, DefaultCapacity), s.Snapshot())
	assert.Equal(t, 0, s.OpenSessions())

	for _, capacity := range []int{0, -1} {
		_, err := New(capacity)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
}

func TestWriteSeekRead(t *testing.T) {
	s := newTestStore(t)
	sess := s.Open()
	defer s.Close(sess)

	n, err := s.Write(sess, []byte(greeting))
	require.NoError(t, err)
	assert.Equal(t, len(greeting), n)
	assert.Equal(t, int64(len(greeting)), sess.Position())

	pos, err := s.Seek(sess, 0, SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	buf := make([]byte, DefaultCapacity)
	n, err = s.Read(sess, buf, DefaultCapacity)
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, n)
	assert.Equal(t, greeting, string(buf[:len(greeting)]))
	assert.Equal(t, make([]byte, DefaultCapacity-len(greeting)), buf[len(greeting):])
	assert.Equal(t, int64(DefaultCapacity), sess.Position())

	// at end of storage a read transfers nothing and is not an error
	n, err = s.Read(sess, buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSeek(t *testing.T) {
	s := newTestStore(t)
	sess := s.Open()

	tests := []struct {
		name    string
		start   int64
		offset  int64
		whence  Whence
		want    int64
		wantErr bool
	}{
		{"start", 0, 10, SeekStart, 10, false},
		{"start at capacity", 0, DefaultCapacity, SeekStart, DefaultCapacity, false},
		{"start past capacity", 5, DefaultCapacity + 1, SeekStart, 5, true},
		{"start negative", 5, -1, SeekStart, 5, true},
		{"current forward", 10, 5, SeekCurrent, 15, false},
		{"current back", 10, -10, SeekCurrent, 0, false},
		{"current before start", 10, -11, SeekCurrent, 10, true},
		{"end", 0, 0, SeekEnd, DefaultCapacity, false},
		{"end back", 0, -6, SeekEnd, DefaultCapacity - 6, false},
		{"end past", 0, 1, SeekEnd, 0, true},
		{"current overflow", 10, math.MaxInt64, SeekCurrent, 10, true},
		{"end underflow", 0, math.MinInt64, SeekEnd, 0, true},
		{"unknown whence", 7, 0, Whence(3), 7, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Seek(sess, tt.start, SeekStart)
			require.NoError(t, err)

			pos, err := s.Seek(sess, tt.offset, tt.whence)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidArgument)
				assert.Equal(t, syscall.EINVAL, apperrors.ErrnoOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, pos)
			}
			assert.Equal(t, tt.want, sess.Position())
		})
	}

	t.Run("idempotent", func(t *testing.T) {
		first, err := s.Seek(sess, 42, SeekStart)
		require.NoError(t, err)
		second, err := s.Seek(sess, 42, SeekStart)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, make([]byte, DefaultCapacity), s.Snapshot())
	})
}

func TestReadClamps(t *testing.T) {
	s := newTestStore(t)
	sess := s.Open()

	buf := make([]byte, DefaultCapacity+10)
	n, err := s.Read(sess, buf, DefaultCapacity+10)
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, n)

	_, err = s.Seek(sess, -4, SeekEnd)
	require.NoError(t, err)
	n, err = s.Read(sess, buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = s.Read(sess, buf, -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReadN(t *testing.T) {
	s := newTestStore(t)
	sess := s.Open()
	_, err := s.Write(sess, []byte("abc"))
	require.NoError(t, err)
	_, err = s.Seek(sess, 0, SeekStart)
	require.NoError(t, err)

	data, err := s.ReadN(sess, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	data, err = s.ReadN(sess, 1000)
	require.NoError(t, err)
	assert.Len(t, data, DefaultCapacity-3)

	data, err = s.ReadN(sess, 1)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWriteClampsAndFillsUp(t *testing.T) {
	s := newTestStore(t)
	sess := s.Open()

	_, err := s.Seek(sess, -5, SeekEnd)
	require.NoError(t, err)
	n, err := s.Write(sess, []byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("01234"), s.Snapshot()[DefaultCapacity-5:])

	n, err = s.Write(sess, []byte("x"))
	require.ErrorIs(t, err, ErrOutOfSpace)
	assert.Equal(t, syscall.ENOMEM, apperrors.ErrnoOf(err))
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(DefaultCapacity), sess.Position())
}

func TestWriteFromStartClampsToCapacity(t *testing.T) {
	s := newTestStore(t)
	sess := s.Open()

	src := bytes.Repeat([]byte{'a'}, DefaultCapacity+10)
	n, err := s.Write(sess, src)
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, n)
	assert.Equal(t, int64(DefaultCapacity), sess.Position())
	assert.Equal(t, src[:DefaultCapacity], s.Snapshot())

	n, err = s.Write(sess, src)
	assert.ErrorIs(t, err, ErrOutOfSpace)
	assert.Equal(t, 0, n)
}

func TestWriteEmpty(t *testing.T) {
	s := newTestStore(t)
	sess := s.Open()

	_, err := s.Write(sess, nil)
	assert.ErrorIs(t, err, ErrOutOfSpace)
	assert.Equal(t, int64(0), sess.Position())
}

func TestTransferFault(t *testing.T) {
	t.Run("short destination", func(t *testing.T) {
		s := newTestStore(t)
		sess := s.Open()
		dst := make([]byte, 4)
		n, err := s.Read(sess, dst, 8)
		require.ErrorIs(t, err, ErrTransferFault)
		assert.Equal(t, syscall.EFAULT, apperrors.ErrnoOf(err))
		assert.Equal(t, 0, n)
		assert.Equal(t, int64(0), sess.Position())
	})

	t.Run("copy out", func(t *testing.T) {
		s := newTestStore(t, WithCopier(failingCopier{failOut: true}))
		sess := s.Open()
		_, err := s.Seek(sess, 3, SeekStart)
		require.NoError(t, err)
		_, err = s.Read(sess, make([]byte, 8), 8)
		require.ErrorIs(t, err, ErrTransferFault)
		assert.Equal(t, int64(3), sess.Position())
	})

	t.Run("copy in", func(t *testing.T) {
		s := newTestStore(t, WithCopier(failingCopier{failIn: true}))
		sess := s.Open()
		_, err := s.Write(sess, []byte(greeting))
		require.ErrorIs(t, err, ErrTransferFault)
		var appErr apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "bad address; copy in refused", appErr.ErrorAll())
		assert.Equal(t, int64(0), sess.Position())
		assert.Equal(t, make([]byte, DefaultCapacity), s.Snapshot())
	})
}

func TestSessionsShareStorage(t *testing.T) {
	s := newTestStore(t)
	a := s.Open()
	b := s.Open()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.WithinDuration(t, time.Now(), a.OpenedAt(), time.Second)
	assert.False(t, b.OpenedAt().Before(a.OpenedAt()))
	assert.Equal(t, 2, s.OpenSessions())

	_, err := s.Write(a, []byte(greeting))
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Position())

	data, err := s.ReadN(b, len(greeting))
	require.NoError(t, err)
	assert.Equal(t, greeting, string(data))

	require.NoError(t, s.Close(a))
	assert.Equal(t, 1, s.OpenSessions())
}

func TestClose(t *testing.T) {
	s := newTestStore(t)
	sess := s.Open()
	require.NoError(t, s.Close(sess))
	require.NoError(t, s.Close(sess))
	assert.True(t, sess.Closed())

	_, err := s.Seek(sess, 0, SeekStart)
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.Read(sess, make([]byte, 1), 1)
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.Write(sess, []byte("x"))
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, syscall.EBADF, apperrors.ErrnoOf(err))
}

func TestForeignSession(t *testing.T) {
	s1 := newTestStore(t)
	s2 := newTestStore(t)
	sess := s1.Open()

	_, err := s2.Write(sess, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, s2.Close(sess), ErrInvalidArgument)
	assert.ErrorIs(t, s2.Close(nil), ErrInvalidArgument)
}

func TestPositional(t *testing.T) {
	s := newTestStore(t)
	sess := s.Open()
	_, err := s.Seek(sess, 7, SeekStart)
	require.NoError(t, err)

	n, err := s.WriteAt(sess, []byte("xyz"), 100)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	dst := make([]byte, 3)
	n, err = s.ReadAt(sess, dst, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("xyz"), dst)
	assert.Equal(t, int64(7), sess.Position())

	_, err = s.ReadAt(sess, dst, -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.WriteAt(sess, dst, DefaultCapacity)
	assert.ErrorIs(t, err, ErrOutOfSpace)
}

func TestObserver(t *testing.T) {
	var events []Event
	s := newTestStore(t, WithObserver(ObserverFunc(func(e Event) {
		events = append(events, e)
	})))
	sess := s.Open()
	_, err := s.Write(sess, []byte("abc"))
	require.NoError(t, err)
	_, err = s.Seek(sess, 1, SeekStart)
	require.NoError(t, err)
	_, err = s.Seek(sess, -1, SeekStart)
	require.Error(t, err)
	_, err = s.ReadN(sess, 2)
	require.NoError(t, err)
	require.NoError(t, s.Close(sess))

	require.Len(t, events, 6)
	ops := make([]Op, len(events))
	for i, e := range events {
		ops[i] = e.Op
		assert.Equal(t, sess.ID(), e.SessionID)
		assert.False(t, e.Time.IsZero())
	}
	assert.Equal(t, []Op{OpOpen, OpWrite, OpSeek, OpSeek, OpRead, OpClose}, ops)

	assert.Equal(t, 3, events[1].Count)
	assert.Equal(t, int64(3), events[1].Position)
	assert.Empty(t, events[2].Error)
	assert.NotEmpty(t, events[3].Error)
	assert.Equal(t, int64(1), events[4].Offset)
	assert.Equal(t, int64(3), events[4].Position)
}

func TestConcurrentWriters(t *testing.T) {
	s := newTestStore(t)
	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(b byte) {
			defer wg.Done()
			sess := s.Open()
			defer s.Close(sess)
			chunk := bytes.Repeat([]byte{b}, 32)
			for j := 0; j < 50; j++ {
				_, err := s.Seek(sess, 0, SeekStart)
				assert.NoError(t, err)
				_, err = s.Write(sess, chunk)
				assert.NoError(t, err)
			}
		}(byte('a' + i))
	}
	wg.Wait()

	// each write is atomic, so the first 32 bytes come from one writer
	snap := s.Snapshot()
	assert.Equal(t, bytes.Repeat(snap[:1], 32), snap[:32])
	assert.Equal(t, 0, s.OpenSessions())
}

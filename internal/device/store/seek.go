package store

import (
	"fmt"
	"io"
	"math"
)

// Whence selects what a seek offset is relative to. The values match
// io.SeekStart, io.SeekCurrent and io.SeekEnd.
type Whence int

const (
	SeekStart   Whence = io.SeekStart
	SeekCurrent Whence = io.SeekCurrent
	SeekEnd     Whence = io.SeekEnd
)

func (w Whence) String() string {
	switch w {
	case SeekStart:
		return "start"
	case SeekCurrent:
		return "current"
	case SeekEnd:
		return "end"
	}
	return fmt.Sprintf("whence(%d)", int(w))
}

// Seek moves the session cursor and returns the new position. The target must
// lie in [0, capacity]; capacity itself is allowed. On error the cursor is
// left where it was.
func (s *Store) Seek(sess *Session, offset int64, whence Whence) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(sess); err != nil {
		return 0, err
	}

	s.logger.Debug().Str("session_id", sess.id.String()).Int64("position", sess.cursor).Msg("current file position")

	var (
		target int64
		ok     = true
	)
	switch whence {
	case SeekStart:
		target = offset
	case SeekCurrent:
		target, ok = addOffset(sess.cursor, offset)
	case SeekEnd:
		target, ok = addOffset(int64(len(s.buf)), offset)
	default:
		err := ErrInvalidArgument.Msg("unknown whence " + whence.String())
		s.notify(Event{Op: OpSeek, SessionID: sess.id, Offset: sess.cursor, Position: sess.cursor, Error: err.Error()})
		return 0, err
	}
	if !ok || target < 0 || target > int64(len(s.buf)) {
		err := ErrInvalidArgument.Msg(fmt.Sprintf("seek to %d from %s is outside [0, %d]", offset, whence, len(s.buf)))
		s.notify(Event{Op: OpSeek, SessionID: sess.id, Offset: sess.cursor, Position: sess.cursor, Error: err.Error()})
		return 0, err
	}

	from := sess.cursor
	sess.cursor = target
	s.logger.Debug().Str("session_id", sess.id.String()).Int64("position", target).Msg("updated position")
	s.notify(Event{Op: OpSeek, SessionID: sess.id, Offset: from, Position: target})
	return target, nil
}

// addOffset returns base+off and false if the sum overflows int64.
func addOffset(base, off int64) (int64, bool) {
	if off > 0 && base > math.MaxInt64-off {
		return 0, false
	}
	if off < 0 && base < math.MinInt64-off {
		return 0, false
	}
	return base + off, true
}

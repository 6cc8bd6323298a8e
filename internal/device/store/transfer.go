package store

import (
	"fmt"
)

// Read copies up to maxCount bytes from the cursor into dst and advances the
// cursor by the number copied. Requests past the end of storage are silently
// truncated, so callers must check the returned count; at end of storage the
// count is 0 and err is nil. If dst cannot hold the clamped count the read
// fails with ErrTransferFault and nothing moves.
func (s *Store) Read(sess *Session, dst []byte, maxCount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(sess); err != nil {
		return 0, err
	}

	from := sess.cursor
	n, err := s.copyOut(dst, from, maxCount)
	if err != nil {
		s.notify(Event{Op: OpRead, SessionID: sess.id, Offset: from, Position: from, Error: err.Error()})
		return 0, err
	}
	sess.cursor += int64(n)
	s.logger.Debug().Str("session_id", sess.id.String()).Int("count", n).Msg("read bytes")
	s.notify(Event{Op: OpRead, SessionID: sess.id, Offset: from, Position: sess.cursor, Count: n})
	return n, nil
}

// ReadN is Read with a destination allocated to fit. The returned slice holds
// exactly the bytes read.
func (s *Store) ReadN(sess *Session, maxCount int) ([]byte, error) {
	if maxCount < 0 {
		return nil, ErrInvalidArgument.Msg(fmt.Sprintf("negative count %d", maxCount))
	}
	size := maxCount
	if size > s.Capacity() {
		size = s.Capacity()
	}
	dst := make([]byte, size)
	n, err := s.Read(sess, dst, maxCount)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// Write copies as much of src as fits between the cursor and the end of
// storage and advances the cursor by that amount. When nothing fits, including
// when src is empty, it fails with ErrOutOfSpace.
func (s *Store) Write(sess *Session, src []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(sess); err != nil {
		return 0, err
	}

	from := sess.cursor
	n, err := s.copyIn(src, from)
	if err != nil {
		s.notify(Event{Op: OpWrite, SessionID: sess.id, Offset: from, Position: from, Error: err.Error()})
		return 0, err
	}
	sess.cursor += int64(n)
	s.logger.Debug().Str("session_id", sess.id.String()).Int("count", n).Msg("written bytes")
	s.notify(Event{Op: OpWrite, SessionID: sess.id, Offset: from, Position: sess.cursor, Count: n})
	return n, nil
}

// ReadAt reads up to len(dst) bytes starting at off without moving the cursor.
func (s *Store) ReadAt(sess *Session, dst []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(sess); err != nil {
		return 0, err
	}
	if off < 0 || off > int64(len(s.buf)) {
		return 0, ErrInvalidArgument.Msg(fmt.Sprintf("offset %d is outside [0, %d]", off, len(s.buf)))
	}

	n, err := s.copyOut(dst, off, len(dst))
	ev := Event{Op: OpRead, SessionID: sess.id, Offset: off, Position: sess.cursor, Count: n}
	if err != nil {
		ev.Error = err.Error()
	}
	s.notify(ev)
	return n, err
}

// WriteAt writes as much of src as fits starting at off without moving the
// cursor. It fails with ErrOutOfSpace when nothing fits.
func (s *Store) WriteAt(sess *Session, src []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(sess); err != nil {
		return 0, err
	}
	if off < 0 || off > int64(len(s.buf)) {
		return 0, ErrInvalidArgument.Msg(fmt.Sprintf("offset %d is outside [0, %d]", off, len(s.buf)))
	}

	n, err := s.copyIn(src, off)
	ev := Event{Op: OpWrite, SessionID: sess.id, Offset: off, Position: sess.cursor, Count: n}
	if err != nil {
		ev.Error = err.Error()
	}
	s.notify(ev)
	return n, err
}

// clamp returns how many of want bytes fit between pos and the end of storage.
func (s *Store) clamp(pos int64, want int) int {
	available := int64(len(s.buf)) - pos
	if int64(want) > available {
		return int(available)
	}
	return want
}

// copyOut must be called with s.mu held.
func (s *Store) copyOut(dst []byte, pos int64, maxCount int) (int, error) {
	if maxCount < 0 {
		return 0, ErrInvalidArgument.Msg(fmt.Sprintf("negative count %d", maxCount))
	}
	count := s.clamp(pos, maxCount)
	if count == 0 {
		return 0, nil
	}
	if err := s.copier.CopyOut(dst, s.buf[pos:pos+int64(count)]); err != nil {
		return 0, ErrTransferFault.Err(err)
	}
	return count, nil
}

// copyIn must be called with s.mu held. The source is staged in scratch
// space so a failing copier cannot leave storage half written.
func (s *Store) copyIn(src []byte, pos int64) (int, error) {
	count := s.clamp(pos, len(src))
	if count == 0 {
		return 0, ErrOutOfSpace.Msg(fmt.Sprintf("no space at offset %d of %d", pos, len(s.buf)))
	}
	scratch := make([]byte, count)
	if err := s.copier.CopyIn(scratch, src[:count]); err != nil {
		return 0, ErrTransferFault.Err(err)
	}
	copy(s.buf[pos:], scratch)
	return count, nil
}

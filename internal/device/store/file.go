package store

import (
	"io"
)

// File adapts a session to the standard io interfaces.
type File struct {
	store *Store
	sess  *Session
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.ReaderAt        = (*File)(nil)
	_ io.WriterAt        = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// OpenFile opens a new session and wraps it in a File.
func (s *Store) OpenFile() *File {
	return &File{store: s, sess: s.Open()}
}

// Session returns the underlying session.
func (f *File) Session() *Session {
	return f.sess
}

// Read reads up to len(p) bytes. It returns io.EOF once the cursor has reached
// the end of storage.
func (f *File) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := f.store.Read(f.sess, p, len(p))
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes as much of p as fits. A partial write returns io.ErrShortWrite;
// a write with no room left returns ErrOutOfSpace.
func (f *File) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := f.store.Write(f.sess, p)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.store.Seek(f.sess, offset, Whence(whence))
}

// ReadAt reads len(p) bytes at off without moving the cursor. Fewer bytes
// than requested are reported with io.EOF.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.store.ReadAt(f.sess, p, off)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes p at off without moving the cursor.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := f.store.WriteAt(f.sess, p, off)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (f *File) Close() error {
	return f.store.Close(f.sess)
}

package api

import (
	"context"
	"io"
)

// File is an open session used through the io interfaces. Every call is a
// request to chardevd made with the context given to OpenFile.
type File struct {
	c    *Client
	ctx  context.Context
	info SessionInfo
}

var _ io.ReadWriteSeeker = (*File)(nil)
var _ io.Closer = (*File)(nil)

// OpenFile opens a session and wraps it in a File.
func (c *Client) OpenFile(ctx context.Context) (*File, error) {
	info, err := c.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	return &File{c: c, ctx: ctx, info: *info}, nil
}

// ID returns the session handle.
func (f *File) ID() string {
	return f.info.ID
}

// Read reads up to len(p) bytes. At the end of storage it returns io.EOF.
func (f *File) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data, _, err := f.c.Read(f.ctx, f.info.ID, len(p))
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes p. Bytes that do not fit before the end of storage are
// dropped and io.ErrShortWrite is returned.
func (f *File) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, _, err := f.c.Write(f.ctx, f.info.ID, p)
	if err != nil {
		return 0, err
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Seek sets the position for the next Read or Write.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.c.Seek(f.ctx, f.info.ID, offset, whence)
}

// Close closes the session.
func (f *File) Close() error {
	return f.c.CloseSession(f.ctx, f.info.ID)
}

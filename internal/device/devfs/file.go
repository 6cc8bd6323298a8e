package devfs

import (
	"os"
	"syscall"

	"github.com/chardev/chardev/internal/device/store"
	"github.com/spf13/afero"
)

// file is one open handle on the device entry.
type file struct {
	*store.File
	fs   *fs
	mode int
}

var _ afero.File = (*file)(nil)

func (f *file) Name() string {
	return f.fs.name
}

func (f *file) Read(p []byte) (int, error) {
	if f.mode == os.O_WRONLY {
		return 0, f.pathErr("read", syscall.EBADF)
	}
	return f.File.Read(p)
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if f.mode == os.O_WRONLY {
		return 0, f.pathErr("read", syscall.EBADF)
	}
	return f.File.ReadAt(p, off)
}

func (f *file) Write(p []byte) (int, error) {
	if f.mode == os.O_RDONLY {
		return 0, f.pathErr("write", syscall.EBADF)
	}
	return f.File.Write(p)
}

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	if f.mode == os.O_RDONLY {
		return 0, f.pathErr("write", syscall.EBADF)
	}
	return f.File.WriteAt(p, off)
}

func (f *file) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *file) Readdir(int) ([]os.FileInfo, error) {
	return nil, f.pathErr("readdir", syscall.ENOTDIR)
}

func (f *file) Readdirnames(int) ([]string, error) {
	return nil, f.pathErr("readdir", syscall.ENOTDIR)
}

func (f *file) Stat() (os.FileInfo, error) {
	return f.fs.info(), nil
}

// Sync is a no-op; writes land in storage immediately.
func (f *file) Sync() error {
	return nil
}

func (f *file) Truncate(int64) error {
	return f.pathErr("truncate", store.ErrInvalidArgument.Msg("device cannot be resized"))
}

func (f *file) pathErr(op string, err error) error {
	return &os.PathError{Op: op, Path: f.fs.name, Err: err}
}

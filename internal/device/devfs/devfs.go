// Package devfs mounts a store as a one-file afero filesystem. The single
// entry behaves like a character device node: opening it starts a session,
// and it cannot be created, removed, renamed or resized.
package devfs

import (
	"os"
	"path"
	"time"

	"github.com/chardev/chardev/internal/device/store"
	"github.com/spf13/afero"
)

// DefaultName is the path of the device entry.
const DefaultName = "/dev/char_dev"

const deviceMode = os.ModeDevice | os.ModeCharDevice | 0666

type fs struct {
	name    string
	store   *store.Store
	modTime time.Time
}

var _ afero.Fs = (*fs)(nil)

// New returns a filesystem whose only entry is name. An empty name means
// DefaultName.
func New(s *store.Store, name string) afero.Fs {
	if name == "" {
		name = DefaultName
	}
	return &fs{
		name:    path.Clean(name),
		store:   s,
		modTime: time.Now(),
	}
}

func (f *fs) Name() string { return "devfs" }

func (f *fs) Open(name string) (afero.File, error) {
	return f.OpenFile(name, os.O_RDONLY, 0)
}

// OpenFile opens a new session on the device. O_CREATE and O_TRUNC are
// ignored the way they are for a device node; O_EXCL always fails.
func (f *fs) OpenFile(name string, flag int, _ os.FileMode) (afero.File, error) {
	if path.Clean(name) != f.name {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	if flag&os.O_EXCL != 0 {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrExist}
	}
	return &file{
		fs:   f,
		File: f.store.OpenFile(),
		mode: flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR),
	}, nil
}

func (f *fs) Create(name string) (afero.File, error) {
	return nil, f.denied("create", name)
}

func (f *fs) Mkdir(name string, _ os.FileMode) error {
	return f.denied("mkdir", name)
}

func (f *fs) MkdirAll(p string, _ os.FileMode) error {
	return f.denied("mkdir", p)
}

func (f *fs) Remove(name string) error {
	return f.denied("remove", name)
}

func (f *fs) RemoveAll(p string) error {
	return f.denied("remove", p)
}

func (f *fs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: os.ErrPermission}
}

func (f *fs) Stat(name string) (os.FileInfo, error) {
	if path.Clean(name) != f.name {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	return f.info(), nil
}

func (f *fs) Chmod(name string, _ os.FileMode) error {
	return f.denied("chmod", name)
}

func (f *fs) Chown(name string, _, _ int) error {
	return f.denied("chown", name)
}

func (f *fs) Chtimes(name string, _, _ time.Time) error {
	return f.denied("chtimes", name)
}

func (f *fs) denied(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: os.ErrPermission}
}

func (f *fs) info() os.FileInfo {
	return &fileInfo{
		name:    path.Base(f.name),
		size:    int64(f.store.Capacity()),
		modTime: f.modTime,
	}
}

type fileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() os.FileMode  { return deviceMode }
func (fi *fileInfo) ModTime() time.Time { return fi.modTime }
func (fi *fileInfo) IsDir() bool        { return false }
func (fi *fileInfo) Sys() any           { return nil }

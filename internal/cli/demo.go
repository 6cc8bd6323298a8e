package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/chardev/chardev/internal/device/devfs"
	"github.com/chardev/chardev/internal/device/store"
	"github.com/spf13/cobra"
)

const (
	demoMessage  = "Hello from user space"
	demoReadSize = 256
)

// Exit statuses of the demo, the low byte of -1 to -4.
const (
	exitOpenFailed  = 255
	exitWriteFailed = 254
	exitSeekFailed  = 253
	exitReadFailed  = 252
)

type deviceFile interface {
	io.ReadWriteSeeker
	io.Closer
}

type openFunc func(ctx context.Context) (deviceFile, error)

func newDemoCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Write a greeting to the device, seek back and read it",
		Long: `Open the device, write "Hello from user space", seek to the start and
read up to 256 bytes back. The exit status tells which step failed:
255 open, 254 write, 253 seek, 252 read.

With --local the device is created in this process instead of reaching
chardevd.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			open := openRemote
			if local {
				open = openLocal
			}
			return runDemo(cmd.Context(), cmd.OutOrStdout(), open)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Use an in-process device")
	return cmd
}

func openRemote(ctx context.Context) (deviceFile, error) {
	c, err := getClient()
	if err != nil {
		return nil, err
	}
	return c.OpenFile(ctx)
}

func openLocal(ctx context.Context) (deviceFile, error) {
	s, err := store.New(store.DefaultCapacity)
	if err != nil {
		return nil, err
	}
	return devfs.New(s, devfs.DefaultName).OpenFile(devfs.DefaultName, os.O_RDWR, 0)
}

func runDemo(ctx context.Context, w io.Writer, open openFunc) error {
	fmt.Fprintln(w, "Opening a device")
	f, err := open(ctx)
	if err != nil {
		fmt.Fprintln(w, "Cannot open a device")
		return &ExitError{Code: exitOpenFailed, Err: err}
	}
	defer f.Close()

	if _, err := f.Write([]byte(demoMessage)); err != nil {
		fmt.Fprintln(w, "Write operation failed")
		return &ExitError{Code: exitWriteFailed, Err: err}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		fmt.Fprintln(w, "Seek operation failed")
		return &ExitError{Code: exitSeekFailed, Err: err}
	}
	buf := make([]byte, demoReadSize)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		fmt.Fprintln(w, "Read operation failed")
		return &ExitError{Code: exitReadFailed, Err: err}
	}

	received := buf[:n]
	if i := bytes.IndexByte(received, 0); i >= 0 {
		received = received[:i]
	}
	fmt.Fprintf(w, "Received string: %s\n", received)
	return nil
}

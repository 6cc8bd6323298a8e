package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chardev/chardev/pkg/api"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// parseWhence accepts set, cur and end as lseek does, or the numbers 0-2.
func parseWhence(s string) (int, error) {
	switch strings.ToLower(s) {
	case "set", "start", "0":
		return api.SeekStart, nil
	case "cur", "current", "1":
		return api.SeekCurrent, nil
	case "end", "2":
		return api.SeekEnd, nil
	}
	return 0, fmt.Errorf("unknown whence %q, use set, cur or end", s)
}

// positionFlags are shared by read and write.
type positionFlags struct {
	offset int64
	whence string
}

func (p *positionFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64VarP(&p.offset, "offset", "o", 0, "Offset to seek to before the transfer")
	cmd.Flags().StringVarP(&p.whence, "whence", "w", "set", "Seek origin: set, cur or end")
}

// openAt opens a session and seeks it to the requested position.
func (p *positionFlags) openAt(cmd *cobra.Command) (*api.File, int64, error) {
	whence, err := parseWhence(p.whence)
	if err != nil {
		return nil, 0, err
	}
	c, err := getClient()
	if err != nil {
		return nil, 0, err
	}
	f, err := c.OpenFile(cmd.Context())
	if err != nil {
		return nil, 0, fmt.Errorf("cannot open device: %w", err)
	}
	pos, err := f.Seek(p.offset, whence)
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("seek failed: %w", err)
	}
	return f, pos, nil
}

func newWriteCmd() *cobra.Command {
	var pos positionFlags
	var inputFile string

	cmd := &cobra.Command{
		Use:   "write [DATA]",
		Short: "Write data to the device",
		Long: `Write DATA, or the contents of --file, to the device at the given position.
Bytes past the end of storage are not written.

Examples:
  chardevctl write "Hello from user space"
  chardevctl write --offset -4 --whence end abcd
  cat blob | chardevctl write --file -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			switch {
			case len(args) == 1 && inputFile != "":
				return fmt.Errorf("give either DATA or --file")
			case len(args) == 1:
				data = []byte(args[0])
			case inputFile == "-":
				var err error
				if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("unable to read input: %w", err)
				}
			case inputFile != "":
				var err error
				if data, err = os.ReadFile(inputFile); err != nil {
					return fmt.Errorf("unable to read input: %w", err)
				}
			default:
				return fmt.Errorf("nothing to write")
			}

			f, start, err := pos.openAt(cmd)
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := f.Write(data)
			if err != nil && err != io.ErrShortWrite {
				return fmt.Errorf("write failed: %w", err)
			}
			if jsonOutput {
				printJSON(cmd, map[string]any{
					"result":   1,
					"offset":   start,
					"count":    n,
					"position": start + int64(n),
				})
				return nil
			}
			okLabel.Fprintf(cmd.OutOrStdout(), "Wrote %d of %d bytes at offset %d\n", n, len(data), start)
			return nil
		},
	}
	pos.register(cmd)
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read the data from a file, - for stdin")
	return cmd
}

func newReadCmd() *cobra.Command {
	var pos positionFlags
	var count int
	var hexDump bool

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read data from the device",
		Long: `Read up to --count bytes from the device at the given position and write them
to stdout.

Examples:
  chardevctl read --count 21
  chardevctl read --offset 16 --count 32 --hex`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 {
				return fmt.Errorf("--count must not be negative")
			}
			f, start, err := pos.openAt(cmd)
			if err != nil {
				return err
			}
			defer f.Close()

			buf := make([]byte, count)
			n, err := f.Read(buf)
			if err != nil && err != io.EOF {
				return fmt.Errorf("read failed: %w", err)
			}
			data := buf[:n]

			switch {
			case jsonOutput:
				printJSON(cmd, map[string]any{
					"result": 1,
					"offset": start,
					"count":  n,
					"data":   data,
				})
			case hexDump:
				fmt.Fprint(cmd.OutOrStdout(), hex.Dump(data))
			default:
				cmd.OutOrStdout().Write(data)
			}
			return nil
		},
	}
	pos.register(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", demoReadSize, "Maximum number of bytes to read")
	cmd.Flags().BoolVarP(&hexDump, "hex", "x", false, "Print a hex dump")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient()
			if err != nil {
				return err
			}
			info, err := c.Device(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(cmd, info)
				return nil
			}
			out, err := yaml.Marshal(info)
			if err != nil {
				return fmt.Errorf("unable to format device info: %w", err)
			}
			cmd.OutOrStdout().Write(out)
			return nil
		},
	}
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List the open sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient()
			if err != nil {
				return err
			}
			list, err := c.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(cmd, map[string]any{"sessions": list})
				return nil
			}
			w := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(w, "No open sessions")
				return nil
			}
			fmt.Fprintf(w, "%-36s  %8s  %s\n", "ID", "POSITION", "OPENED")
			for _, s := range list {
				fmt.Fprintf(w, "%-36s  %8d  %s\n", s.ID, s.Position, s.OpenedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}
}

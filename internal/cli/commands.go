package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chardev/chardev/internal/common/apperrors"
	"github.com/fatih/color"
	jsonitor "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

var (
	// Global flags
	jsonOutput bool
	configFile string
	deviceNode string
	serverURL  string
)

var ErrAlreadyHandled = errors.New("already handled")

// ExitError ends the process with Code. The command has already reported
// the failure.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)

var rootCmd = newRootCmd()

// newRootCmd builds the command tree with its global flags.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chardevctl [command] [flags]",
		Short: "chardevctl - talk to the chardev device served by chardevd",
		Long: `chardevctl opens sessions on the chardev device and reads, writes and
seeks through them. It reaches chardevd through the device node socket or
over HTTP.

Examples:
  # Run the demo: write a greeting, seek back and read it
  chardevctl demo

  # Write at an offset and read it back
  chardevctl write --offset 16 "some bytes"
  chardevctl read --offset 16 --count 10

  # Show the device
  chardevctl info`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	cmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	cmd.PersistentFlags().StringVarP(&deviceNode, "device", "d", "", "Device node socket of chardevd")
	cmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "chardevd URL, e.g. http://127.0.0.1:8790")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDemoCmd())
	cmd.AddCommand(newWriteCmd())
	cmd.AddCommand(newReadCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newEventsCmd())
	cmd.AddCommand(newAuditCmd())
	return cmd
}

// Execute runs the command line and exits on failure.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exitErr *ExitError
	switch {
	case errors.As(err, &exitErr):
		os.Exit(exitErr.Code)
	case errors.Is(err, ErrAlreadyHandled):
		os.Exit(1)
	case jsonOutput:
		printJSON(rootCmd, errorResult(err))
	default:
		errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

// errorResult is the JSON form of a failed command. errno is included when
// the daemon or the local device reported one.
func errorResult(err error) map[string]any {
	result := map[string]any{
		"result": 0,
		"error":  err.Error(),
	}
	if errno := apperrors.ErrnoOf(err); errno != 0 {
		result["errno"] = int(errno)
	}
	return result
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of chardevctl",
		Run: func(cmd *cobra.Command, args []string) {
			configPath := configFile
			if configPath == "" {
				var err error
				if configPath, err = GetDefaultConfigPath(); err != nil {
					configPath = "unknown"
				}
			}

			if jsonOutput {
				printJSON(cmd, map[string]string{
					"version":     getCLIVersion(),
					"config_file": configPath,
				})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "chardevctl %s\n", getCLIVersion())
				fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", configPath)
			}
		},
	}
}

// printJSON prints data as indented JSON to the command output.
func printJSON(cmd *cobra.Command, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		errorLabel.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0"
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that chardevd is reachable and compatible",
		Long: `Get the chardevd version and readiness and check that its API version is
compatible with this CLI.

Examples:
  chardevctl status
  chardevctl status -j`,
		Args: cobra.NoArgs,
		RunE: getStatus,
	}
}

// getStatus handles retrieving server status information
func getStatus(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	report := func(msg string) error {
		if jsonOutput {
			printJSON(cmd, map[string]string{
				"version_cli": getCLIVersion(),
				"error":       msg,
			})
		} else {
			fmt.Fprintf(w, "chardevctl %s\n", getCLIVersion())
			errorLabel.Fprintf(w, "Error: %s\n", msg)
		}
		return ErrAlreadyHandled
	}

	c, err := getClient()
	if err != nil {
		return report(err.Error())
	}
	ctx := cmd.Context()
	v, err := c.Version(ctx)
	if err != nil {
		return report("Unable to connect to server: " + err.Error())
	}
	compatErr := c.CheckVersion(ctx)
	readyErr := c.Ready(ctx)

	if jsonOutput {
		value := map[string]any{
			"serverVersion": v.ServerVersion,
			"apiVersion":    v.ApiVersion,
			"ready":         readyErr == nil,
			"compatible":    compatErr == nil,
		}
		printJSON(cmd, map[string]any{
			"result":      1,
			"version_cli": getCLIVersion(),
			"value":       value,
		})
		return nil
	}

	fmt.Fprintf(w, "chardevctl %s\n", getCLIVersion())
	fmt.Fprintf(w, "Server Version: %s\n", v.ServerVersion)
	fmt.Fprintf(w, "API Version: %s\n", v.ApiVersion)
	if readyErr == nil {
		okLabel.Fprintln(w, "Ready")
	} else {
		errorLabel.Fprintf(w, "Not ready: %v\n", readyErr)
	}
	if compatErr != nil {
		errorLabel.Fprintf(w, "%v\n", compatErr)
	}
	return nil
}

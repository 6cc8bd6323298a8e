package cli

import (
	"github.com/chardev/chardev/pkg/api"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Follow operations on the device",
		Long: `Print every operation on the device as it happens until interrupted.

Examples:
  chardevctl events
  chardevctl events -j`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient()
			if err != nil {
				return err
			}
			printer := newOpPrinter(cmd.OutOrStdout())
			return c.WatchEvents(cmd.Context(), func(ev api.Event) error {
				if jsonOutput {
					data, err := json.Marshal(ev)
					if err != nil {
						return err
					}
					cmd.OutOrStdout().Write(append(data, '\n'))
					return nil
				}
				printer.print(opLine{
					Time:      ev.Time,
					Op:        ev.Op,
					SessionID: ev.SessionID,
					Offset:    ev.Offset,
					Position:  ev.Position,
					Count:     ev.Count,
					Error:     ev.Error,
				})
				return nil
			})
		},
	}
}

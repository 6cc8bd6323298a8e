package cli

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/chardev/chardev/internal/chardevd/auditlog"
	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit [command]",
		Short: "Audit log commands",
		Long: `Commands for the audit log written by chardevd when [audit] is enabled.

Available Commands:
  verify    Verify the integrity of a log file
  show      Print the operations recorded in a log file`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	auditCmd.AddCommand(newAuditVerifyCmd(), newAuditShowCmd())
	return auditCmd
}

func newAuditVerifyCmd() *cobra.Command {
	var keyFile string

	cmd := &cobra.Command{
		Use:   "verify LOG_FILE [flags]",
		Short: "Verify the integrity of a log file",
		Long: `Verify the hash chain and signatures of an audit log. The public key is read
from LOG_FILE.pub unless --key is given.

Examples:
  chardevctl audit verify /var/lib/chardev/audit/chardevd-<id>.tlog`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile := args[0]
			if keyFile == "" {
				keyFile = logFile + auditlog.PublicKeySuffix
			}
			n, err := verifyAuditLog(logFile, keyFile)
			if err != nil {
				if jsonOutput {
					printJSON(cmd, map[string]any{
						"result": 0,
						"error":  err.Error(),
					})
					return ErrAlreadyHandled
				}
				return fmt.Errorf("log verification failed: %v", err)
			}

			if jsonOutput {
				printJSON(cmd, map[string]any{
					"result": 1,
					"value": map[string]any{
						"status":  "success",
						"file":    logFile,
						"entries": n,
					},
				})
			} else {
				okLabel.Fprintf(cmd.OutOrStdout(), "Log verification successful: %d entries\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyFile, "key", "k", "", "Public key file (default LOG_FILE.pub)")
	return cmd
}

func verifyAuditLog(logFile, keyFile string) (int, error) {
	pubKey, err := auditlog.ReadPublicKey(keyFile)
	if err != nil {
		return 0, err
	}
	file, err := os.Open(logFile)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %v", err)
	}
	defer file.Close()
	return auditlog.Verify(file, pubKey)
}

func newAuditShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show LOG_FILE",
		Short: "Print the operations recorded in a log file",
		Long: `Print the recorded operations without verifying them. Use verify to check
that the log is intact.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open log file: %v", err)
			}
			defer file.Close()

			printer := newOpPrinter(cmd.OutOrStdout())
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				var entry auditlog.Entry
				if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
					return fmt.Errorf("invalid log entry: %v", err)
				}
				rec := entry.Record
				if jsonOutput {
					printJSON(cmd, rec)
					continue
				}
				printer.print(opLine{
					Time:      time.UnixMilli(rec.TimeMs),
					Op:        rec.Op,
					SessionID: rec.SessionID,
					Offset:    rec.Offset,
					Position:  rec.Position,
					Count:     rec.Count,
					Error:     rec.Error,
				})
			}
			return scanner.Err()
		},
	}
}

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kcube/kcube/internal/kcube"
	"github.com/kcube/kcube/internal/utils"
)

var logCmd = &cobra.Command{
	Use:   "log [path]",
	Short: "Show version history, optionally filtered to a single path",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	cwd, err := getBaseDir()
	if err != nil {
		return err
	}
	repo, err := findVaultOrErr(cwd)
	if err != nil {
		return err
	}
	defer repo.Close()

	var path string
	if len(args) == 1 {
		path = args[0]
	}

	history, err := repo.GetHistory(context.Background(), path)
	if err != nil {
		return err
	}

	table := utils.NewTablePrinter()
	table.Header("VERSION", "DATE", "TYPE", "SUMMARY")
	for _, v := range history {
		table.Row(v.Hash[:8], kcube.FormatTimestamp(v.Timestamp), v.Message.Type, v.Message.Summary)
	}
	table.Flush()
	return nil
}

// LogCommand returns the log command for registration.
func LogCommand() *cobra.Command {
	return logCmd
}

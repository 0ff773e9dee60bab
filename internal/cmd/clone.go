package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kcube/kcube/internal/daemon"
)

var cloneCmd = &cobra.Command{
	Use:   "clone <vault-id> [dir]",
	Short: "Initialize a local vault linked to an existing server-side vault and pull its history",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runClone,
}

func runClone(cmd *cobra.Command, args []string) error {
	configPath, err := globalConfigPath()
	if err != nil {
		return err
	}

	target := args[0]
	if len(args) == 2 {
		target = args[1]
	}

	sup, err := daemon.New(configPath)
	if err != nil {
		return err
	}
	defer sup.Shutdown()

	if err := sup.CloneVault(context.Background(), target, args[0]); err != nil {
		return err
	}

	fmt.Println("Cloned", args[0], "into", target)
	return nil
}

// CloneCommand returns the clone command for registration.
func CloneCommand() *cobra.Command {
	return cloneCmd
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <paths>...",
	Short: "Stage file changes for the next commit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	cwd, err := getBaseDir()
	if err != nil {
		return err
	}
	repo, err := findVaultOrErr(cwd)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Add(context.Background(), args); err != nil {
		return err
	}
	fmt.Printf("Staged %d path(s)\n", len(args))
	return nil
}

// AddCommand returns the add command for registration.
func AddCommand() *cobra.Command {
	return addCmd
}

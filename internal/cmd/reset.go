package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset [paths]...",
	Short: "Unstage paths, or the whole staging area if none are given",
	RunE:  runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	cwd, err := getBaseDir()
	if err != nil {
		return err
	}
	repo, err := findVaultOrErr(cwd)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Reset(context.Background(), args); err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Println("Cleared the staging area")
	} else {
		fmt.Printf("Unstaged %d path(s)\n", len(args))
	}
	return nil
}

// ResetCommand returns the reset command for registration.
func ResetCommand() *cobra.Command {
	return resetCmd
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var revertCmd = &cobra.Command{
	Use:   "revert <version>",
	Short: "Commit a new version that undoes a single past version",
	Args:  cobra.ExactArgs(1),
	RunE:  runRevert,
}

func runRevert(cmd *cobra.Command, args []string) error {
	cwd, err := getBaseDir()
	if err != nil {
		return err
	}
	repo, err := findVaultOrErr(cwd)
	if err != nil {
		return err
	}
	defer repo.Close()

	hash, err := repo.Revert(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Reverted %s, new version %s\n", args[0], hash[:8])
	return nil
}

// RevertCommand returns the revert command for registration.
func RevertCommand() *cobra.Command {
	return revertCmd
}

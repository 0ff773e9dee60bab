package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var restoreHard bool

var restoreCmd = &cobra.Command{
	Use:   "restore <version> [path]",
	Short: "Write a past version's content into the working tree",
	Long: `Restore the working tree to a past version.

With a path, restores only that file (or removes it if the version
didn't contain it). Without one, restores the whole vault; --hard also
deletes untracked files the target version doesn't contain.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreHard, "hard", false, "Also delete untracked files not in the target version")
}

func runRestore(cmd *cobra.Command, args []string) error {
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
	if len(args) == 2 {
		path = args[1]
	}

	if err := repo.Restore(context.Background(), args[0], path, restoreHard); err != nil {
		return err
	}
	fmt.Println("Restored", args[0])
	return nil
}

// RestoreCommand returns the restore command for registration.
func RestoreCommand() *cobra.Command {
	return restoreCmd
}

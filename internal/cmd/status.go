package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kcube/kcube/internal/kcube"
	"github.com/kcube/kcube/internal/vault"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show staged, unstaged, and untracked changes",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := getBaseDir()
	if err != nil {
		return err
	}
	repo, err := findVaultOrErr(cwd)
	if err != nil {
		return err
	}
	defer repo.Close()

	status, err := repo.GetStatus(context.Background())
	if err != nil {
		return err
	}

	if status.IsClean() {
		fmt.Println("Nothing to commit, working tree clean.")
		return nil
	}

	printGroup("Staged for commit", status.StagedNew, status.StagedModified, status.StagedDeleted)
	printGroup("Changes not staged", status.UnstagedModified, status.UnstagedDeleted, nil)
	if len(status.Untracked) > 0 {
		fmt.Println("Untracked files:")
		for _, p := range status.Untracked {
			fmt.Printf("  %s\n", p)
		}
	}

	return nil
}

func printGroup(label string, added, modified, deleted []string) {
	if len(added) == 0 && len(modified) == 0 && len(deleted) == 0 {
		return
	}
	fmt.Println(label + ":")
	for _, p := range added {
		fmt.Printf("  new:      %s\n", p)
	}
	for _, p := range modified {
		fmt.Printf("  modified: %s\n", p)
	}
	for _, p := range deleted {
		fmt.Printf("  deleted:  %s\n", p)
	}
}

// findVaultOrErr finds the vault containing dir or returns a typed
// not_a_vault error.
func findVaultOrErr(dir string) (*vault.Repository, error) {
	repo, err := vault.Find(dir)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, kcube.NewError(kcube.ErrNotAVault, dir, nil)
	}
	return repo, nil
}

// StatusCommand returns the status command for registration.
func StatusCommand() *cobra.Command {
	return statusCmd
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kcube/kcube/internal/vault"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new vault in the current directory",
	Long: `Initialize a K-Cube vault in the current directory.

Creates:
  .kcube/              - vault control directory
  .kcube/versions/      - content-addressed blob store
  .kcube/index.db       - version/blob index
  .kcube/config.json    - vault configuration`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := getBaseDir()
		if err != nil {
			return err
		}
		return runInit(cwd)
	},
}

func runInit(baseDir string) error {
	repo, err := vault.Initialize(baseDir)
	if err != nil {
		return err
	}
	defer repo.Close()

	fmt.Println("Initialized empty vault in", repo.VaultPath)
	return nil
}

// InitCommand returns the init command for registration.
func InitCommand() *cobra.Command {
	return initCmd
}

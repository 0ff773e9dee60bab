package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:   "remote <url>",
	Short: "Set the vault's sync remote",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemote,
}

func runRemote(cmd *cobra.Command, args []string) error {
	cwd, err := getBaseDir()
	if err != nil {
		return err
	}
	repo, err := findVaultOrErr(cwd)
	if err != nil {
		return err
	}
	defer repo.Close()

	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	cfg.RemoteURL = args[0]
	if err := repo.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Println("Remote set to", args[0])
	return nil
}

// RemoteCommand returns the remote command for registration.
func RemoteCommand() *cobra.Command {
	return remoteCmd
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kcube/kcube/internal/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "kcube",
	Short: "K-Cube - a personal knowledge base version-control system",
	Long:  `kcube tracks, versions, and syncs a directory of notes independently of git.`,
}

func init() {
	rootCmd.AddCommand(cmd.InitCommand())
	rootCmd.AddCommand(cmd.StatusCommand())
	rootCmd.AddCommand(cmd.AddCommand())
	rootCmd.AddCommand(cmd.CommitCommand())
	rootCmd.AddCommand(cmd.ResetCommand())
	rootCmd.AddCommand(cmd.RevertCommand())
	rootCmd.AddCommand(cmd.RestoreCommand())
	rootCmd.AddCommand(cmd.LogCommand())
	rootCmd.AddCommand(cmd.RemoteCommand())
	rootCmd.AddCommand(cmd.LoginCommand())
	rootCmd.AddCommand(cmd.SyncCommand())
	rootCmd.AddCommand(cmd.CloneCommand())
	rootCmd.AddCommand(cmd.VaultCommand())
	rootCmd.AddCommand(cmd.ConfigCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kcube/kcube/internal/index"
)

var commitMessage string

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Record the current staging area as a new version",
	RunE:  runCommit,
}

func init() {
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "Commit summary (required)")
	commitCmd.MarkFlagRequired("message")
}

func runCommit(cmd *cobra.Command, args []string) error {
	cwd, err := getBaseDir()
	if err != nil {
		return err
	}
	repo, err := findVaultOrErr(cwd)
	if err != nil {
		return err
	}
	defer repo.Close()

	hash, err := repo.Commit(context.Background(), index.Message{Summary: commitMessage})
	if err != nil {
		return err
	}
	fmt.Printf("Committed %s\n", hash[:8])
	return nil
}

// CommitCommand returns the commit command for registration.
func CommitCommand() *cobra.Command {
	return commitCmd
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kcube/kcube/internal/daemon"
)

var (
	loginEmail    string
	loginPassword string
	loginRegister bool
)

var loginCmd = &cobra.Command{
	Use:   "login <remote-url>",
	Short: "Authenticate against a K-Cube sync server",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (required)")
	loginCmd.Flags().BoolVar(&loginRegister, "register", false, "Create the account before logging in")
	loginCmd.MarkFlagRequired("email")
	loginCmd.MarkFlagRequired("password")
}

func runLogin(cmd *cobra.Command, args []string) error {
	configPath, err := globalConfigPath()
	if err != nil {
		return err
	}

	sup, err := daemon.New(configPath)
	if err != nil {
		return err
	}
	defer sup.Shutdown()

	if err := sup.Login(context.Background(), args[0], loginEmail, loginPassword, loginRegister); err != nil {
		return err
	}

	fmt.Println("Logged in to", args[0])
	return nil
}

// LoginCommand returns the login command for registration.
func LoginCommand() *cobra.Command {
	return loginCmd
}

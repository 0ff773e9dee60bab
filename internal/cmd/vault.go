package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kcube/kcube/internal/api"
	"github.com/kcube/kcube/internal/config"
	"github.com/kcube/kcube/internal/kcube"
	"github.com/kcube/kcube/internal/utils"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage server-side vaults",
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every vault the current account can see",
	RunE:  runVaultList,
}

func init() {
	vaultCmd.AddCommand(vaultListCmd)
}

func runVaultList(cmd *cobra.Command, args []string) error {
	configPath, err := globalConfigPath()
	if err != nil {
		return err
	}
	globalCfg, err := config.LoadGlobalConfig(configPath)
	if err != nil {
		return err
	}
	if globalCfg.RemoteURL == "" || globalCfg.APIToken == "" {
		return kcube.NewError(kcube.ErrAuth, "not logged in; run kcube login <remote-url>", nil)
	}

	client, err := api.New(globalCfg.RemoteURL, globalCfg.APIToken)
	if err != nil {
		return err
	}

	vaults, err := client.ListVaults(context.Background())
	if err != nil {
		return err
	}

	table := utils.NewTablePrinter()
	table.Header("ID", "NAME")
	for _, v := range vaults {
		table.Row(v.ID, v.Name)
	}
	table.Flush()
	return nil
}

// VaultCommand returns the vault command group for registration.
func VaultCommand() *cobra.Command {
	return vaultCmd
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kcube/kcube/internal/api"
	"github.com/kcube/kcube/internal/config"
	"github.com/kcube/kcube/internal/kcube"
	ksync "github.com/kcube/kcube/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile this vault's versions with its remote",
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cwd, err := getBaseDir()
	if err != nil {
		return err
	}
	repo, err := findVaultOrErr(cwd)
	if err != nil {
		return err
	}
	defer repo.Close()

	vaultCfg, err := repo.Config()
	if err != nil {
		return err
	}
	if vaultCfg.VaultID == "" {
		return kcube.NewError(kcube.ErrValidationFailed, "vault has no vault_id; create a linked vault with kcube clone <vault-id>", nil)
	}

	remoteURL := vaultCfg.RemoteURL
	apiToken := ""
	if globalPath, err := globalConfigPath(); err == nil {
		if globalCfg, err := config.LoadGlobalConfig(globalPath); err == nil {
			apiToken = globalCfg.APIToken
			if remoteURL == "" {
				remoteURL = globalCfg.RemoteURL
			}
		}
	}
	if remoteURL == "" {
		return kcube.NewError(kcube.ErrValidationFailed, "no remote configured; run kcube remote <url>", nil)
	}

	client, err := api.New(remoteURL, apiToken)
	if err != nil {
		return err
	}

	synchronizer := ksync.New(repo, client, vaultCfg.VaultID)
	result, err := synchronizer.Sync(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Synced: %d uploaded, %d downloaded\n", result.VersionsUploaded, result.VersionsDownloaded)
	return nil
}

// SyncCommand returns the sync command for registration.
func SyncCommand() *cobra.Command {
	return syncCmd
}

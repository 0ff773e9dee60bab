package cmd

import (
	"fmt"
	"os"
	"path/filepath"
)

// getBaseDir returns the current working directory or an error.
func getBaseDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return cwd, nil
}

// globalConfigPath returns the path to the daemon/CLI-shared global
// config, ~/.kcube/daemon_config.json.
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".kcube", "daemon_config.json"), nil
}

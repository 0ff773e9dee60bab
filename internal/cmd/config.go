package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kcube/kcube/internal/utils"
)

// Preferences is the CLI's human-edited preferences document, distinct
// from the machine-written vault/daemon config.json files: display
// defaults a user might hand-tune in a text editor.
type Preferences struct {
	Editor     string `yaml:"editor,omitempty"`
	DateFormat string `yaml:"date_format,omitempty"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or edit CLI display preferences",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current CLI preferences",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a CLI preference (editor, date_format)",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func preferencesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".kcube", "preferences.yaml"), nil
}

func loadPreferences() (*Preferences, error) {
	path, err := preferencesPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Preferences{}, nil
	}
	return utils.LoadYAML[Preferences](path)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	prefs, err := loadPreferences()
	if err != nil {
		return err
	}
	fmt.Printf("editor: %s\n", prefs.Editor)
	fmt.Printf("date_format: %s\n", prefs.DateFormat)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	prefs, err := loadPreferences()
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	switch key {
	case "editor":
		prefs.Editor = value
	case "date_format":
		prefs.DateFormat = value
	default:
		return fmt.Errorf("unknown preference %q (want editor or date_format)", key)
	}

	path, err := preferencesPath()
	if err != nil {
		return err
	}
	if err := utils.SaveYAML(prefs, path); err != nil {
		return err
	}

	fmt.Printf("%s set to %q\n", key, value)
	return nil
}

// ConfigCommand returns the config command group for registration.
func ConfigCommand() *cobra.Command {
	return configCmd
}

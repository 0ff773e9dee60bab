// Package config holds the two JSON configuration documents K-Cube reads
// and writes: a per-vault config (vault_id, remote_url) and a global
// daemon config (remote_url, api_token, user_email, vault_paths). Both are
// plain structs passed around explicitly by callers — there is no
// package-level singleton, per the source's global ConfigManager being
// flagged for injection instead of replication.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SchemaVersion is written into every newly initialized vault's config.
const SchemaVersion = "1.0"

// VaultConfig is the per-vault JSON document at <vault>/.kcube/config.json.
type VaultConfig struct {
	Version   string `json:"version"`
	VaultID   string `json:"vault_id,omitempty"`
	RemoteURL string `json:"remote_url,omitempty"`
}

// LoadVaultConfig reads path, returning a zero-value VaultConfig with
// Version set if the file doesn't exist yet (mirrors the Python
// ConfigManager._load's tolerant-of-missing-file behavior).
func LoadVaultConfig(path string) (*VaultConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &VaultConfig{Version: SchemaVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading vault config: %w", err)
	}

	var c VaultConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing vault config: %w", err)
	}
	return &c, nil
}

// Save atomically rewrites the vault config file.
func (c *VaultConfig) Save(path string) error {
	return writeJSONAtomic(path, c)
}

// GlobalConfig is the daemon-wide JSON document, normally at
// ~/.kcube/daemon_config.json.
type GlobalConfig struct {
	RemoteURL  string   `json:"remote_url,omitempty"`
	APIToken   string   `json:"api_token,omitempty"`
	UserEmail  string   `json:"user_email,omitempty"`
	VaultPaths []string `json:"vault_paths"`
}

// LoadGlobalConfig reads path, returning an empty GlobalConfig if the file
// doesn't exist yet.
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &GlobalConfig{VaultPaths: []string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var c GlobalConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}
	if c.VaultPaths == nil {
		c.VaultPaths = []string{}
	}
	return &c, nil
}

// Save atomically rewrites the global config file.
func (c *GlobalConfig) Save(path string) error {
	return writeJSONAtomic(path, c)
}

// AddVaultPath appends path if not already present.
func (c *GlobalConfig) AddVaultPath(path string) {
	for _, p := range c.VaultPaths {
		if p == path {
			return
		}
	}
	c.VaultPaths = append(c.VaultPaths, path)
}

// RemoveVaultPath removes path if present.
func (c *GlobalConfig) RemoveVaultPath(path string) {
	out := c.VaultPaths[:0]
	for _, p := range c.VaultPaths {
		if p != path {
			out = append(out, p)
		}
	}
	c.VaultPaths = out
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp config file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp config file: %w", err)
	}
	return nil
}

package config

import (
	"path/filepath"
	"testing"
)

func TestLoadVaultConfigMissingFileDefaultsVersion(t *testing.T) {
	tmp := t.TempDir()
	c, err := LoadVaultConfig(filepath.Join(tmp, "config.json"))
	if err != nil {
		t.Fatalf("LoadVaultConfig: %v", err)
	}
	if c.Version != SchemaVersion {
		t.Fatalf("got version %q, want %q", c.Version, SchemaVersion)
	}
}

func TestVaultConfigSaveThenLoadRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")

	c := &VaultConfig{Version: SchemaVersion, VaultID: "abc-123", RemoteURL: "https://example.com"}
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadVaultConfig(path)
	if err != nil {
		t.Fatalf("LoadVaultConfig: %v", err)
	}
	if loaded.VaultID != "abc-123" || loaded.RemoteURL != "https://example.com" {
		t.Fatalf("got %+v", loaded)
	}
}

func TestGlobalConfigAddAndRemoveVaultPath(t *testing.T) {
	c := &GlobalConfig{VaultPaths: []string{}}
	c.AddVaultPath("/vaults/a")
	c.AddVaultPath("/vaults/b")
	c.AddVaultPath("/vaults/a")

	if len(c.VaultPaths) != 2 {
		t.Fatalf("expected 2 paths after duplicate add, got %v", c.VaultPaths)
	}

	c.RemoveVaultPath("/vaults/a")
	if len(c.VaultPaths) != 1 || c.VaultPaths[0] != "/vaults/b" {
		t.Fatalf("expected only /vaults/b left, got %v", c.VaultPaths)
	}
}

package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/kcube/kcube/internal/api"
)

// withHome points os.UserHomeDir at a scratch directory for the duration
// of the test, so login/config commands don't touch the real ~/.kcube.
func withHome(t *testing.T, dir string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv("HOME")
	os.Setenv("HOME", dir)
	t.Cleanup(func() {
		if hadPrev {
			os.Setenv("HOME", prev)
		} else {
			os.Unsetenv("HOME")
		}
	})
}

func TestLoginThenVaultListAndConfigRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.TokenResponse{AccessToken: "tok-xyz"})
	})
	mux.HandleFunc("/api/v1/vaults", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]api.Vault{{ID: "v1", Name: "notes"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	home := t.TempDir()
	withHome(t, home)

	loginEmail = "a@b.com"
	loginPassword = "pw"
	loginRegister = false
	if err := runLogin(nil, []string{srv.URL}); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := runVaultList(nil, nil); err != nil {
		t.Fatalf("vault list: %v", err)
	}

	if err := runConfigSet(nil, []string{"editor", "vim"}); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if err := runConfigShow(nil, nil); err != nil {
		t.Fatalf("config show: %v", err)
	}

	prefs, err := loadPreferences()
	if err != nil {
		t.Fatal(err)
	}
	if prefs.Editor != "vim" {
		t.Fatalf("expected editor=vim, got %q", prefs.Editor)
	}
}

// Package testutil provides common test utilities.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestHome points os.UserHomeDir at an isolated temp directory for the
// duration of a test, so config.ConfigPath resolution doesn't touch the
// caller's real $HOME. Cleaned up automatically when the test ends.
func SetupTestHome(t *testing.T) string {
	t.Helper()

	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	return tmpHome
}

// WriteTestConfig writes a profile store file under the isolated $HOME's
// default config location (~/.config/mcp-probe/profiles.yaml).
func WriteTestConfig(t *testing.T, contents string) string {
	t.Helper()

	home := os.Getenv("HOME")
	if home == "" {
		t.Fatal("HOME not set - call SetupTestHome first")
	}

	configDir := filepath.Join(home, ".config", "mcp-probe")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("create test config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "profiles.yaml")
	if err := os.WriteFile(configPath, []byte(contents), 0644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	return configPath
}

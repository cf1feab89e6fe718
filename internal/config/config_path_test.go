package config

import (
	"path/filepath"
	"testing"

	"github.com/conikeec/mcp-probe/internal/testutil"
)

func TestConfigPath_DefaultLocation(t *testing.T) {
	home := testutil.SetupTestHome(t)

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath failed: %v", err)
	}
	want := filepath.Join(home, ".config", "mcp-probe", "profiles.yaml")
	if path != want {
		t.Errorf("ConfigPath = %q, want %q", path, want)
	}
}

func TestConfigPath_ReadsWrittenProfile(t *testing.T) {
	testutil.SetupTestHome(t)
	testutil.WriteTestConfig(t, "schemaVersion: 1\nprofiles: {}\n")

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SchemaVersion != SchemaVersion {
		t.Errorf("expected schema version %d, got %d", SchemaVersion, cfg.SchemaVersion)
	}
}

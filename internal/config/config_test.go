package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NonExistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SchemaVersion != SchemaVersion {
		t.Errorf("expected schema version %d, got %d", SchemaVersion, cfg.SchemaVersion)
	}
	if len(cfg.Profiles) != 0 {
		t.Errorf("expected 0 profiles, got %d", len(cfg.Profiles))
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `
schemaVersion: 1
profiles:
  test:
    id: test
    name: Test Server
    kind: stdio
    stdio:
      command: echo
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	p, ok := cfg.Profiles["test"]
	if !ok {
		t.Fatal("expected profile 'test' to exist")
	}
	if p.Name != "Test Server" {
		t.Errorf("expected name %q, got %q", "Test Server", p.Name)
	}
	if p.Kind != KindStdio {
		t.Errorf("expected kind %q, got %q", KindStdio, p.Kind)
	}
	if p.Stdio == nil || p.Stdio.Command != "echo" {
		t.Errorf("expected stdio.command 'echo', got %+v", p.Stdio)
	}
}

func TestLoad_ValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	content := `{
		"schemaVersion": 1,
		"profiles": {
			"test": {
				"id": "test",
				"name": "Test Server",
				"kind": "streamable_http",
				"streamableHttp": {"baseUrl": "https://example.com/mcp"}
			}
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	p := cfg.GetProfile("test")
	if p == nil {
		t.Fatal("expected profile 'test' to exist")
	}
	if p.StreamableHTTP == nil || p.StreamableHTTP.BaseURL != "https://example.com/mcp" {
		t.Errorf("expected streamableHttp.baseUrl set, got %+v", p.StreamableHTTP)
	}
}

func TestLoad_InvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")

	cfg := NewConfig()
	id, err := cfg.AddProfile(Profile{
		Name: "local",
		Kind: KindStdio,
		Stdio: &StdioProfile{
			Command: "my-mcp-server",
			Args:    []string{"--verbose"},
		},
	})
	if err != nil {
		t.Fatalf("AddProfile failed: %v", err)
	}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	p := reloaded.GetProfile(id)
	if p == nil {
		t.Fatalf("expected profile %q after reload", id)
	}
	if p.Stdio == nil || p.Stdio.Command != "my-mcp-server" {
		t.Errorf("expected stdio.command preserved, got %+v", p.Stdio)
	}
}

func TestSave_AtomicRename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	cfg := NewConfig()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be gone after rename, stat err = %v", err)
	}
}

func TestAddProfile_GeneratesID(t *testing.T) {
	cfg := NewConfig()
	id, err := cfg.AddProfile(Profile{Name: "x", Kind: KindStdio})
	if err != nil {
		t.Fatalf("AddProfile failed: %v", err)
	}
	if err := ValidateID(id); err != nil {
		t.Errorf("generated id %q failed validation: %v", id, err)
	}
}

func TestAddProfile_RejectsDuplicateID(t *testing.T) {
	cfg := NewConfig()
	if _, err := cfg.AddProfile(Profile{ID: "abcd", Name: "x", Kind: KindStdio}); err != nil {
		t.Fatalf("first AddProfile failed: %v", err)
	}
	if _, err := cfg.AddProfile(Profile{ID: "abcd", Name: "y", Kind: KindStdio}); err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestDeleteProfile_ClearsDefault(t *testing.T) {
	cfg := NewConfig()
	id, _ := cfg.AddProfile(Profile{ID: "abcd", Name: "x", Kind: KindStdio})
	cfg.DefaultProfileID = id

	if err := cfg.DeleteProfile(id); err != nil {
		t.Fatalf("DeleteProfile failed: %v", err)
	}
	if cfg.DefaultProfileID != "" {
		t.Errorf("expected DefaultProfileID cleared, got %q", cfg.DefaultProfileID)
	}
}

func TestValidateID(t *testing.T) {
	cases := []struct {
		id    string
		valid bool
	}{
		{"abcd", true},
		{"ab1d", true},
		{"abc", false},
		{"abcde", false},
		{"AB1d", false},
		{"ab.d", false},
	}
	for _, c := range cases {
		err := ValidateID(c.id)
		if (err == nil) != c.valid {
			t.Errorf("ValidateID(%q): valid=%v, got err=%v", c.id, c.valid, err)
		}
	}
}

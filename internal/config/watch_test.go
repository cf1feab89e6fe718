package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")

	cfg := NewConfig()
	if _, err := cfg.AddProfile(Profile{ID: "abcd", Name: "first", Kind: KindStdio}); err != nil {
		t.Fatalf("AddProfile failed: %v", err)
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	changed := make(chan *Config, 1)
	w, err := NewWatcher(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	updated := NewConfig()
	if _, err := updated.AddProfile(Profile{ID: "abcd", Name: "second", Kind: KindStdio}); err != nil {
		t.Fatalf("AddProfile failed: %v", err)
	}
	if err := Save(path, updated); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	select {
	case c := <-changed:
		p := c.GetProfile("abcd")
		if p == nil || p.Name != "second" {
			t.Errorf("expected reloaded profile name 'second', got %+v", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher callback")
	}
}

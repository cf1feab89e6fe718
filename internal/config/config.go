package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configDir      = ".config/mcp-probe"
	defaultConfigFile = "profiles.yaml"
)

// ConfigPath returns the full path to the profile store.
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, configDir, defaultConfigFile), nil
}

// Load reads the configuration from path, inferring JSON or YAML from its
// extension (.json vs .yaml/.yml). Returns a new empty config if the file
// doesn't exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := unmarshal(path, data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	for id, p := range cfg.Profiles {
		if p.ID == "" {
			p.ID = id
			cfg.Profiles[id] = p
		}
	}
	return &cfg, nil
}

// Save writes the configuration to path atomically (temp file + rename),
// in the format implied by path's extension.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	cfg.LastModified = time.Now()

	data, err := marshal(path, cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func marshal(path string, cfg *Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// GenerateID creates a short unique profile ID: 4 characters, [a-z0-9].
func GenerateID() string {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%04x", time.Now().UnixNano()&0xFFFF)
	}
	return hex.EncodeToString(b)
}

// ValidateID checks that id is 4 characters of [a-z0-9].
func ValidateID(id string) error {
	if len(id) != 4 {
		return errors.New("id must be 4 characters")
	}
	for _, c := range id {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) {
			return errors.New("id must contain only [a-z0-9]")
		}
	}
	return nil
}

// AddProfile adds a new profile, generating an ID if one isn't set.
func (c *Config) AddProfile(p Profile) (string, error) {
	if p.ID == "" {
		for {
			p.ID = GenerateID()
			if _, exists := c.Profiles[p.ID]; !exists {
				break
			}
		}
	}
	if err := ValidateID(p.ID); err != nil {
		return "", fmt.Errorf("invalid id: %w", err)
	}
	if _, exists := c.Profiles[p.ID]; exists {
		return "", fmt.Errorf("profile id %q already exists", p.ID)
	}
	c.Profiles[p.ID] = p
	return p.ID, nil
}

// UpdateProfile replaces an existing profile.
func (c *Config) UpdateProfile(p Profile) error {
	if _, exists := c.Profiles[p.ID]; !exists {
		return fmt.Errorf("profile %q not found", p.ID)
	}
	c.Profiles[p.ID] = p
	return nil
}

// DeleteProfile removes a profile, clearing DefaultProfileID if it pointed
// to the one removed.
func (c *Config) DeleteProfile(id string) error {
	if _, exists := c.Profiles[id]; !exists {
		return fmt.Errorf("profile %q not found", id)
	}
	delete(c.Profiles, id)
	if c.DefaultProfileID == id {
		c.DefaultProfileID = ""
	}
	return nil
}

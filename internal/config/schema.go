// Package config persists named connection profiles — the transport
// options a user would otherwise retype on every invocation — and
// watches the profile file for external edits.
package config

import "time"

// SchemaVersion is the current config schema version.
const SchemaVersion = 1

// Kind names which transport binding a Profile configures.
type Kind string

const (
	KindStdio          Kind = "stdio"
	KindLegacyHTTPSSE  Kind = "http_sse_legacy"
	KindStreamableHTTP Kind = "streamable_http"
)

// StdioProfile configures the stdio transport binding.
type StdioProfile struct {
	Command    string            `json:"command" yaml:"command"`
	Args       []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	WorkingDir string            `json:"workingDir,omitempty" yaml:"workingDir,omitempty"`
	Timeout    time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// LegacyHTTPSSEProfile configures the pre-2025 HTTP+SSE binding.
type LegacyHTTPSSEProfile struct {
	BaseURL string            `json:"baseUrl" yaml:"baseUrl"`
	Timeout time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// StreamableHTTPProfile configures the Streamable HTTP binding.
type StreamableHTTPProfile struct {
	BaseURL       string            `json:"baseUrl" yaml:"baseUrl"`
	Timeout       time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	AllowInsecure bool              `json:"allowInsecure,omitempty" yaml:"allowInsecure,omitempty"`
}

// Profile is one named connection target. Exactly one of the transport
// blocks matching Kind is expected to be populated.
type Profile struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`

	Stdio          *StdioProfile          `json:"stdio,omitempty" yaml:"stdio,omitempty"`
	LegacyHTTPSSE  *LegacyHTTPSSEProfile  `json:"httpSseLegacy,omitempty" yaml:"httpSseLegacy,omitempty"`
	StreamableHTTP *StreamableHTTPProfile `json:"streamableHttp,omitempty" yaml:"streamableHttp,omitempty"`
}

// Config is the root configuration structure: a named set of profiles.
type Config struct {
	SchemaVersion    int                `json:"schemaVersion" yaml:"schemaVersion"`
	DefaultProfileID string             `json:"defaultProfileId,omitempty" yaml:"defaultProfileId,omitempty"`
	Profiles         map[string]Profile `json:"profiles" yaml:"profiles"`
	LastModified     time.Time          `json:"lastModified" yaml:"lastModified"`
}

// NewConfig creates an empty configuration.
func NewConfig() *Config {
	return &Config{
		SchemaVersion: SchemaVersion,
		Profiles:      make(map[string]Profile),
		LastModified:  time.Now(),
	}
}

// ProfileList returns the profiles as a slice, in no particular order
// (callers that need stable ordering should sort by Name or ID).
func (c *Config) ProfileList() []Profile {
	profiles := make([]Profile, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		profiles = append(profiles, p)
	}
	return profiles
}

// GetProfile returns a profile by ID, or nil if not found.
func (c *Config) GetProfile(id string) *Profile {
	if p, ok := c.Profiles[id]; ok {
		return &p
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/conikeec/mcp-probe/internal/config"
	"github.com/conikeec/mcp-probe/internal/transport"
)

// buildTransport constructs the transport.Transport a profile describes.
func buildTransport(p *config.Profile) (transport.Transport, error) {
	switch p.Kind {
	case config.KindStdio:
		if p.Stdio == nil {
			return nil, fmt.Errorf("profile %q: kind stdio requires a stdio block", p.ID)
		}
		env := make([]string, 0, len(p.Stdio.Env))
		for k, v := range p.Stdio.Env {
			env = append(env, k+"="+v)
		}
		return transport.NewStdio(transport.StdioConfig{
			Command:    p.Stdio.Command,
			Args:       p.Stdio.Args,
			Env:        env,
			WorkingDir: p.Stdio.WorkingDir,
			Timeout:    p.Stdio.Timeout,
		}), nil

	case config.KindLegacyHTTPSSE:
		if p.LegacyHTTPSSE == nil {
			return nil, fmt.Errorf("profile %q: kind %s requires an httpSseLegacy block", p.ID, p.Kind)
		}
		return transport.NewLegacyHTTPSSE(transport.LegacyHTTPSSEConfig{
			BaseURL: p.LegacyHTTPSSE.BaseURL,
			Timeout: p.LegacyHTTPSSE.Timeout,
			Headers: p.LegacyHTTPSSE.Headers,
		}), nil

	case config.KindStreamableHTTP:
		if p.StreamableHTTP == nil {
			return nil, fmt.Errorf("profile %q: kind %s requires a streamableHttp block", p.ID, p.Kind)
		}
		return transport.NewStreamableHTTP(transport.StreamableHTTPConfig{
			BaseURL:       p.StreamableHTTP.BaseURL,
			Timeout:       p.StreamableHTTP.Timeout,
			Headers:       p.StreamableHTTP.Headers,
			AllowInsecure: p.StreamableHTTP.AllowInsecure,
		})

	default:
		return nil, fmt.Errorf("profile %q: unknown kind %q", p.ID, p.Kind)
	}
}

// resolveProfile loads the profile store and returns the profile named by
// id, or the default profile if id is empty.
func resolveProfile(id string) (*config.Profile, error) {
	path, err := configPathOrDefault()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	if id == "" {
		id = cfg.DefaultProfileID
	}
	if id == "" {
		return nil, fmt.Errorf("no --profile given and no default profile set (see 'mcp-probe profile list')")
	}
	p := cfg.GetProfile(id)
	if p == nil {
		return nil, fmt.Errorf("profile %q not found", id)
	}
	return p, nil
}

func configPathOrDefault() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.ConfigPath()
}

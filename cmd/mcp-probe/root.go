// Command mcp-probe is an interactive client and conformance debugger for
// the Model Context Protocol: connect to a server over any of its three
// transport bindings, list and invoke its tools/resources/prompts, search
// across its capabilities, and run a conformance suite against it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

// configPath is the custom profile store path (empty for default)
var configPath string

// profileID names the connection profile a command operates against.
var profileID string

var rootCmd = &cobra.Command{
	Use:   "mcp-probe",
	Short: "Interactive MCP client and conformance debugger",
	Long: `mcp-probe connects to a Model Context Protocol server, negotiates
capabilities, and lets you list, call, search, and validate what it exposes.

Connections are described by named profiles, created with
'mcp-probe profile add' (--command for a stdio server, --url for an HTTP one)
and selected with --profile.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to the profile store (default: ~/.config/mcp-probe/profiles.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profileID, "profile", "p", "",
		"Connection profile to use (default: the store's default profile)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

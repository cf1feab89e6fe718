package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/conikeec/mcp-probe/internal/client"
	"github.com/conikeec/mcp-probe/internal/protocol"
)

var connectTimeout time.Duration

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a profile's server and print the negotiated session info",
	RunE:  runConnect,
}

func init() {
	connectCmd.Flags().DurationVar(&connectTimeout, "timeout", client.DefaultTimeout, "Handshake timeout")
	rootCmd.AddCommand(connectCmd)
}

// stdoutIsTTY gates color output: redirected/piped stdout (CI logs, `| less`,
// file capture) gets plain text instead of ANSI escapes.
var stdoutIsTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func newStyle(fg string, bold bool) lipgloss.Style {
	if !stdoutIsTTY {
		return lipgloss.NewStyle()
	}
	s := lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
	if bold {
		s = s.Bold(true)
	}
	return s
}

var (
	styleHeading = newStyle("39", true)
	styleOK      = newStyle("42", false)
	styleWarn    = newStyle("214", false)
	styleErr     = newStyle("196", false)
	styleDim     = newStyle("245", false)
)

// connectClient resolves --profile, builds its transport, and runs the
// client through the initialize handshake. Callers must Close() it.
func connectClient(ctx context.Context) (*client.Client, error) {
	p, err := resolveProfile(profileID)
	if err != nil {
		return nil, err
	}
	t, err := buildTransport(p)
	if err != nil {
		return nil, err
	}
	c := client.New(t)
	info := protocol.Implementation{Name: "mcp-probe", Version: version}
	if _, err := c.Connect(ctx, info, connectTimeout); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return c, nil
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), connectTimeout+5*time.Second)
	defer cancel()

	c, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	info := c.ServerInfo()
	fmt.Println(styleHeading.Render("Connected"))
	fmt.Printf("  server:   %s %s\n", info.ServerInfo.Name, info.ServerInfo.Version)
	fmt.Printf("  protocol: %s\n", info.ProtocolVersion)
	return nil
}

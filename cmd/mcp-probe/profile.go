package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conikeec/mcp-probe/internal/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved connection profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE:  runProfileList,
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileRemove,
}

var (
	addStdioCommand  string
	addStdioArgs     []string
	addURL           string
	addName          string
	addAllowInsecure bool
)

var profileAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a connection profile (stdio via --command, or HTTP via --url)",
	RunE:  runProfileAdd,
}

func init() {
	profileAddCmd.Flags().StringVar(&addStdioCommand, "command", "", "Stdio server command to spawn")
	profileAddCmd.Flags().StringSliceVar(&addStdioArgs, "arg", nil, "Argument to pass the spawned command (repeatable)")
	profileAddCmd.Flags().StringVar(&addURL, "url", "", "Streamable HTTP server base URL")
	profileAddCmd.Flags().StringVar(&addName, "name", "", "Display name (defaults to the command or URL)")
	profileAddCmd.Flags().BoolVar(&addAllowInsecure, "allow-insecure", false, "Allow plain HTTP to a non-localhost --url")

	profileCmd.AddCommand(profileListCmd, profileAddCmd, profileRemoveCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileList(cmd *cobra.Command, args []string) error {
	path, err := configPathOrDefault()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	profiles := cfg.ProfileList()
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })

	if len(profiles) == 0 {
		fmt.Println("no profiles configured")
		return nil
	}
	for _, p := range profiles {
		marker := " "
		if p.ID == cfg.DefaultProfileID {
			marker = "*"
		}
		fmt.Printf("%s %-4s  %-10s  %s\n", marker, p.ID, p.Kind, p.Name)
	}
	return nil
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	var p config.Profile
	switch {
	case addStdioCommand != "":
		p.Kind = config.KindStdio
		p.Stdio = &config.StdioProfile{Command: addStdioCommand, Args: addStdioArgs}
		p.Name = addName
		if p.Name == "" {
			p.Name = strings.Join(append([]string{addStdioCommand}, addStdioArgs...), " ")
		}
	case addURL != "":
		p.Kind = config.KindStreamableHTTP
		p.StreamableHTTP = &config.StreamableHTTPProfile{BaseURL: addURL, AllowInsecure: addAllowInsecure}
		p.Name = addName
		if p.Name == "" {
			p.Name = addURL
		}
	default:
		return fmt.Errorf("either --command or --url is required")
	}

	path, err := configPathOrDefault()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	id, err := cfg.AddProfile(p)
	if err != nil {
		return err
	}
	if cfg.DefaultProfileID == "" {
		cfg.DefaultProfileID = id
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("Added profile %q (id=%s)\n", p.Name, id)
	return nil
}

func runProfileRemove(cmd *cobra.Command, args []string) error {
	path, err := configPathOrDefault()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.DeleteProfile(args[0]); err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("Removed profile %q\n", args[0])
	return nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List or render the connected server's prompts",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompts",
	RunE:  runPromptsList,
}

var promptGetArgs []string

var promptsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Render a prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsGet,
}

func init() {
	promptsGetCmd.Flags().StringSliceVar(&promptGetArgs, "arg", nil, "Prompt argument as KEY=VALUE (repeatable)")
	promptsCmd.AddCommand(promptsListCmd, promptsGetCmd)
	rootCmd.AddCommand(promptsCmd)
}

func runPromptsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	prompts, err := c.ListPrompts(ctx)
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		fmt.Println("no prompts advertised")
		return nil
	}
	for _, p := range prompts {
		if p.Description != "" {
			fmt.Printf("%s\n  %s\n", p.Name, p.Description)
		} else {
			fmt.Println(p.Name)
		}
	}
	return nil
}

func runPromptsGet(cmd *cobra.Command, args []string) error {
	arguments, err := parseEnvFlags(promptGetArgs)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	result, err := c.GetPrompt(ctx, args[0], arguments)
	if err != nil {
		return err
	}
	for _, m := range result.Messages {
		fmt.Printf("[%s] %s\n", m.Role, m.Content.Text)
	}
	return nil
}

// parseEnvFlags parses "KEY=VALUE" flag repetitions into a map.
func parseEnvFlags(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("invalid KEY=VALUE entry: %q", e)
		}
		if k == "" {
			return nil, fmt.Errorf("empty key in entry: %q", e)
		}
		out[k] = v
	}
	return out, nil
}

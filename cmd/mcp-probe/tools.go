package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List or call the connected server's tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools",
	RunE:  runToolsList,
}

var toolCallArgsJSON string

var toolsCallCmd = &cobra.Command{
	Use:   "call <name>",
	Short: "Call a tool",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsCall,
}

func init() {
	toolsCallCmd.Flags().StringVar(&toolCallArgsJSON, "args", "{}", "Tool arguments as a JSON object")
	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd)
	rootCmd.AddCommand(toolsCmd)
}

func runToolsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	tools, err := c.ListTools(ctx)
	if err != nil {
		return err
	}
	if len(tools) == 0 {
		fmt.Println("no tools advertised")
		return nil
	}
	for _, t := range tools {
		if t.Description != "" {
			fmt.Printf("%s\n  %s\n", t.Name, t.Description)
		} else {
			fmt.Println(t.Name)
		}
	}
	return nil
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	if !json.Valid([]byte(toolCallArgsJSON)) {
		return fmt.Errorf("--args is not valid JSON: %s", toolCallArgsJSON)
	}
	result, err := c.CallTool(ctx, args[0], json.RawMessage(toolCallArgsJSON), 0)
	if err != nil {
		return err
	}
	for _, block := range result.Content {
		fmt.Println(block.Text)
	}
	if result.IsError {
		return fmt.Errorf("tool %q reported an error", args[0])
	}
	return nil
}

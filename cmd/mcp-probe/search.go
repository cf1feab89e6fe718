package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conikeec/mcp-probe/internal/search"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search the connected server's tools, resources, and prompts",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	var entries []search.Entry

	tools, err := c.ListTools(ctx)
	if err != nil {
		return err
	}
	for i, t := range tools {
		entries = append(entries, search.Entry{Category: search.CategoryTool, Name: t.Name, Description: t.Description, SourceIndex: i})
	}

	resources, err := c.ListResources(ctx)
	if err != nil {
		return err
	}
	for i, r := range resources {
		entries = append(entries, search.Entry{Category: search.CategoryResource, Name: r.Name, Description: r.Description, SourceIndex: i})
	}

	prompts, err := c.ListPrompts(ctx)
	if err != nil {
		return err
	}
	for i, p := range prompts {
		entries = append(entries, search.Entry{Category: search.CategoryPrompt, Name: p.Name, Description: p.Description, SourceIndex: i})
	}

	ix := search.Build(entries)
	results := ix.Query(args[0], searchLimit)
	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, r := range results {
		e := ix.Entries()[r.Index]
		fmt.Printf("%-8s %-30s score=%-3d (%s)\n", e.Category, e.Name, r.Score, r.MatchReason)
	}
	return nil
}

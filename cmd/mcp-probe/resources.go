package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "List or read the connected server's resources",
}

var resourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources",
	RunE:  runResourcesList,
}

var resourcesReadCmd = &cobra.Command{
	Use:   "read <uri>",
	Short: "Read a resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runResourcesRead,
}

func init() {
	resourcesCmd.AddCommand(resourcesListCmd, resourcesReadCmd)
	rootCmd.AddCommand(resourcesCmd)
}

func runResourcesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	resources, err := c.ListResources(ctx)
	if err != nil {
		return err
	}
	if len(resources) == 0 {
		fmt.Println("no resources advertised")
		return nil
	}
	for _, r := range resources {
		fmt.Printf("%s  %s\n", r.URI, r.Name)
	}
	return nil
}

func runResourcesRead(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	result, err := c.ReadResource(ctx, args[0])
	if err != nil {
		return err
	}
	for _, content := range result.Contents {
		if content.Text != "" {
			fmt.Println(content.Text)
		} else {
			fmt.Printf("<binary, %d base64 bytes, mime=%s>\n", len(content.Blob), content.MimeType)
		}
	}
	return nil
}

// Command creative-agent chats with an LLM agent that can call MCP tool servers
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "creative-agent",
	Short: "Multi-tool creative agent",
	Long: `Chat with an LLM agent that can search the web, write stories,
generate images and draw ASCII art through MCP tool servers.

Without a subcommand the agent starts in terminal chat mode.`,
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "browser_mcp.json", "Path to the configuration or tool registry file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(webCmd)
	rootCmd.AddCommand(toolsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Package commands implements the chatrelay CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root CLI command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "chatrelay - conversational relay bot",
		Long: `chatrelay is a conversational relay bot bridging chat platforms
(Telegram, Discord) to an OpenAI-compatible completion API.

Examples:
  chatrelay serve
  chatrelay serve --channel telegram
  chatrelay chat "hello there"
  chatrelay setup`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newSetupCmd(),
		newConfigCmd(),
	)

	// Global flags.
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

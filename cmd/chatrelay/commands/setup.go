package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/relay"
	"github.com/spf13/cobra"
)

// newSetupCmd creates the `chatrelay setup` command for interactive
// configuration.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard to create your initial config.yaml.
Asks for the bot name, channel tokens, model, and the access allow-list.
The API key goes to the OS keyring when available, never to plaintext.

Examples:
  chatrelay setup`,
		RunE: runSetup,
	}
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg := relay.DefaultConfig()

	var (
		apiKey       string
		allowedUsers string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bot name").
				Value(&cfg.Name),
			huh.NewInput().
				Title("Model").
				Description("OpenAI-compatible model name").
				Value(&cfg.Model),
			huh.NewInput().
				Title("API base URL").
				Value(&cfg.API.BaseURL),
			huh.NewInput().
				Title("API key").
				Description("Stored in the OS keyring when available").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("Leave empty to skip Telegram").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Channels.Telegram.Token),
			huh.NewInput().
				Title("Discord bot token").
				Description("Leave empty to skip Discord").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Channels.Discord.Token),
			huh.NewInput().
				Title("Allowed users").
				Description("Comma-separated usernames. Empty allows everyone").
				Value(&allowedUsers),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	for _, u := range strings.Split(allowedUsers, ",") {
		if u = strings.TrimSpace(u); u != "" {
			cfg.AllowedUsers = append(cfg.AllowedUsers, u)
		}
	}

	// Prefer the OS keyring for the API key; fall back to an env reference
	// in the config so the plaintext key never lands on disk.
	if apiKey != "" {
		if relay.KeyringAvailable() {
			if err := relay.StoreKeyring("api_key", apiKey); err != nil {
				return fmt.Errorf("storing API key in keyring: %w", err)
			}
			fmt.Println("API key stored in the OS keyring.")
		} else {
			fmt.Println("OS keyring unavailable. Set CHATRELAY_API_KEY in your environment or .env file.")
		}
	}
	cfg.API.APIKey = "${CHATRELAY_API_KEY}"

	path := "config.yaml"
	if err := relay.SaveConfigToFile(cfg, path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Config written to %s. Start the bot with: chatrelay serve\n", path)
	return nil
}

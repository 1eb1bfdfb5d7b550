package commands

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/huh"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/relay"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigCmd creates the `chatrelay config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration and credentials",
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetKeyCmd(),
		newConfigDeleteKeyCmd(),
		newConfigMigrateKeyCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			// Never print a resolved secret.
			redacted := *cfg
			if redacted.API.APIKey != "" && !relay.IsEnvReference(redacted.API.APIKey) {
				redacted.API.APIKey = "********"
			}
			if redacted.Channels.Telegram.Token != "" {
				redacted.Channels.Telegram.Token = "********"
			}
			if redacted.Channels.Discord.Token != "" {
				redacted.Channels.Discord.Token = "********"
			}

			data, err := yaml.Marshal(&redacted)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}

			fmt.Printf("# %s\n%s", path, data)
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key",
		Short: "Store the API key in the OS keyring",
		RunE: func(_ *cobra.Command, _ []string) error {
			var apiKey string
			prompt := huh.NewInput().
				Title("API key").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey)
			if err := prompt.Run(); err != nil {
				return err
			}
			if apiKey == "" {
				return fmt.Errorf("no key provided")
			}

			if err := relay.StoreKeyring("api_key", apiKey); err != nil {
				return fmt.Errorf("storing in keyring: %w", err)
			}
			fmt.Println("API key stored in the OS keyring.")
			return nil
		},
	}
}

func newConfigMigrateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-key",
		Short: "Move the API key from config/.env into the OS keyring",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.API.APIKey == "" || relay.IsEnvReference(cfg.API.APIKey) {
				return fmt.Errorf("no API key found in config or environment")
			}

			if err := relay.MigrateKeyToKeyring(cfg.API.APIKey, slog.Default()); err != nil {
				return err
			}
			fmt.Println("API key moved to the OS keyring. You can now remove it from .env and config.yaml.")
			return nil
		},
	}
}

func newConfigDeleteKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-key",
		Short: "Remove the API key from the OS keyring",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := relay.DeleteKeyring("api_key"); err != nil {
				return fmt.Errorf("deleting from keyring: %w", err)
			}
			fmt.Println("API key removed from the OS keyring.")
			return nil
		},
	}
}

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/channels/discord"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/channels/telegram"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/relay"
	"github.com/spf13/cobra"
)

// newServeCmd creates the `chatrelay serve` command that starts the bot.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bot with messaging channels",
		Long: `Start chatrelay as a daemon, connecting to the enabled channels
(Telegram, Discord) and relaying messages to the completion API.

Examples:
  chatrelay serve
  chatrelay serve --channel telegram
  chatrelay serve --config ./config.yaml`,
		RunE: runServe,
	}

	cmd.Flags().StringSlice("channel", nil, "channels to enable (telegram, discord)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	cfg, configPath, err := resolveConfig(cmd)
	if err != nil {
		return fmt.Errorf("%w\nRun 'chatrelay setup' to create a config file", err)
	}

	// ── Configure logger ──
	logger := newLogger(cmd, cfg)
	if configPath != "" {
		logger.Info("config loaded", "path", configPath)
	}

	// ── Resolve secrets ──
	relay.ResolveAPIKey(cfg, logger)

	// ── Create assistant ──
	assistant := relay.New(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Register channels ──
	channelFilter, _ := cmd.Flags().GetStringSlice("channel")

	var tg *telegram.Telegram
	if shouldEnable("telegram", channelFilter) && cfg.Channels.Telegram.Token != "" {
		tg = telegram.New(cfg.Channels.Telegram, logger)
		if err := assistant.ChannelManager().Register(tg); err != nil {
			logger.Error("failed to register Telegram", "error", err)
		} else {
			logger.Info("Telegram channel registered")
		}
	}

	var dc *discord.Discord
	if shouldEnable("discord", channelFilter) && cfg.Channels.Discord.Token != "" {
		dc = discord.New(cfg.Channels.Discord, logger)
		if err := assistant.ChannelManager().Register(dc); err != nil {
			logger.Error("failed to register Discord", "error", err)
		} else {
			logger.Info("Discord channel registered")
		}
	}

	if !assistant.ChannelManager().HasChannels() {
		return fmt.Errorf("no channels configured. Set a telegram or discord token in the config")
	}

	// ── Start assistant (connects channels, starts message loop) ──
	if err := assistant.Start(ctx); err != nil {
		return fmt.Errorf("starting assistant: %w", err)
	}

	// Bot handles are only known after the channels connect; register them
	// so the group-mention classifier can match against them.
	if tg != nil && tg.IsConnected() {
		assistant.Classifier().SetHandle(tg.Name(), tg.BotUsername())
		logger.Info("bot handle resolved", "channel", tg.Name(), "handle", tg.BotUsername())
	}
	if dc != nil && dc.IsConnected() {
		assistant.Classifier().SetHandle(dc.Name(), dc.BotUsername())
		logger.Info("bot handle resolved", "channel", dc.Name(), "handle", dc.BotUsername())
	}

	// ── Wait for shutdown ──
	logger.Info("chatrelay running. Press Ctrl+C to stop.",
		"name", cfg.Name,
		"model", cfg.Model,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		assistant.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}

// shouldEnable reports whether a channel passes the --channel filter.
// An empty filter enables every configured channel.
func shouldEnable(name string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	return slices.Contains(filter, name)
}

// newLogger builds the slog logger from config and the --verbose flag.
func newLogger(cmd *cobra.Command, cfg *relay.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	logLevel := slog.LevelInfo
	switch {
	case verbose, cfg.Logging.Level == "debug":
		logLevel = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		logLevel = slog.LevelWarn
	case cfg.Logging.Level == "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}

// resolveConfig loads config from an explicit path or standard locations.
func resolveConfig(cmd *cobra.Command) (*relay.Config, string, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	if configPath != "" {
		cfg, err := relay.LoadConfigFromFile(configPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		return cfg, configPath, nil
	}

	if found := relay.FindConfigFile(); found != "" {
		cfg, err := relay.LoadConfigFromFile(found)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", found, err)
		}
		return cfg, found, nil
	}

	return nil, "", fmt.Errorf("no configuration file found")
}

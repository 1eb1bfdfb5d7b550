// Package relay – config.go defines all configuration structures for the
// chatrelay bot.
package relay

import (
	"github.com/jholhewres/chatrelay/pkg/chatrelay/channels/discord"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/channels/telegram"
)

// Config holds all bot configuration.
type Config struct {
	// Name is the bot name shown in logs and status output.
	Name string `yaml:"name"`

	// Model is the LLM model to use (e.g. "gpt-4o-mini").
	Model string `yaml:"model"`

	// TranscriptionModel is the speech-to-text model for voice notes.
	TranscriptionModel string `yaml:"transcription_model"`

	// API configures the OpenAI-compatible endpoint.
	API APIConfig `yaml:"api"`

	// AllowedUsers is the access allow-list. Empty means everyone.
	AllowedUsers []string `yaml:"allowed_users"`

	// HistoryBudget is the per-conversation character cap.
	HistoryBudget int `yaml:"history_budget"`

	// Channels configures communication channels.
	Channels ChannelsConfig `yaml:"channels"`

	// Fallbacks overrides the built-in apology replies used when a
	// completion fails. Empty keeps the defaults.
	Fallbacks []string `yaml:"fallbacks"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the LLM API endpoint.
type APIConfig struct {
	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates requests. Prefer ${CHATRELAY_API_KEY} or the
	// OS keyring over a plaintext value here.
	APIKey string `yaml:"api_key"`
}

// ChannelsConfig holds configuration for all channels.
type ChannelsConfig struct {
	// Telegram is the Telegram channel config.
	Telegram telegram.Config `yaml:"telegram"`

	// Discord is the Discord channel config.
	Discord discord.Config `yaml:"discord"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("text" or "json").
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:               "chatrelay",
		Model:              "gpt-4o-mini",
		TranscriptionModel: defaultTranscriptionModel,
		API: APIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		HistoryBudget: DefaultHistoryBudget,
		Channels: ChannelsConfig{
			Telegram: telegram.Config{
				SendTyping:  true,
				PollTimeout: 50,
			},
			Discord: discord.Config{
				SendTyping: true,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

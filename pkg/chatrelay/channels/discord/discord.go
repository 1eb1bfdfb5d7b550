// Package discord implements the Discord transport for chatrelay using
// discordgo.
//
// Features:
//   - Send/receive text and voice-note attachments
//   - Delete sent messages
//   - Typing indicators
//   - Guild (group) and DM support
//   - Automatic reconnection via discordgo's gateway
package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/channels"
)

// Config holds Discord channel configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// SendTyping sends "typing..." indicators while processing.
	SendTyping bool `yaml:"send_typing"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SendTyping: true,
	}
}

// Discord implements channels.Channel, channels.VoiceChannel, and
// channels.PresenceChannel.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	// botUsername is the bot's own handle, resolved at Connect.
	botUsername string

	// messages is the channel for incoming messages forwarded to the relay.
	messages chan *channels.IncomingMessage

	// connected tracks connection state.
	connected atomic.Bool

	// lastMsg tracks the last message timestamp for health.
	lastMsg atomic.Value // time.Time

	// errorCount tracks consecutive errors.
	errorCount atomic.Int64

	// httpClient downloads voice attachments.
	httpClient *http.Client

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Discord channel instance.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:        cfg,
		logger:     logger.With("component", "discord"),
		messages:   make(chan *channels.IncomingMessage, 256),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ---------- Channel Interface ----------

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Connect opens the Discord gateway WebSocket connection.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(d.onMessageCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.session = session
	d.connected.Store(true)

	user := session.State.User
	d.botUsername = user.Username
	d.logger.Info("discord: connected", "bot", user.Username, "id", user.ID)

	return nil
}

// Disconnect closes the Discord gateway connection.
func (d *Discord) Disconnect() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.session != nil {
		d.session.Close()
	}
	d.connected.Store(false)
	d.logger.Info("discord: disconnected")
	return nil
}

// BotUsername returns the bot's own handle. Valid after Connect.
func (d *Discord) BotUsername() string { return d.botUsername }

// Send sends a text message and returns the sent message's ID.
func (d *Discord) Send(ctx context.Context, to string, message *channels.OutgoingMessage) (string, error) {
	if d.session == nil {
		return "", channels.ErrChannelDisconnected
	}

	msgSend := &discordgo.MessageSend{Content: message.Content}
	if message.ReplyTo != "" {
		msgSend.Reference = &discordgo.MessageReference{MessageID: message.ReplyTo}
	}
	sent, err := d.session.ChannelMessageSendComplex(to, msgSend)
	if err != nil {
		return "", err
	}
	return sent.ID, nil
}

// Delete removes a previously sent message.
func (d *Discord) Delete(ctx context.Context, chatID, messageID string) error {
	if d.session == nil {
		return channels.ErrChannelDisconnected
	}
	return d.session.ChannelMessageDelete(chatID, messageID)
}

// Receive returns the incoming messages channel.
func (d *Discord) Receive() <-chan *channels.IncomingMessage {
	return d.messages
}

// IsConnected returns true if the bot is connected.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// Health returns the channel health status.
func (d *Discord) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := d.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:     d.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(d.errorCount.Load()),
	}
}

// ---------- VoiceChannel Interface ----------

// DownloadVoice downloads the voice attachment of an incoming message.
// On Discord the FileRef is a direct CDN URL.
func (d *Discord) DownloadVoice(ctx context.Context, msg *channels.IncomingMessage) ([]byte, string, error) {
	if msg.Voice == nil || msg.Voice.FileRef == "" {
		return nil, "", channels.ErrVoiceDownloadFailed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, msg.Voice.FileRef, nil)
	if err != nil {
		return nil, "", fmt.Errorf("discord: creating download request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("discord: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("discord: download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("discord: reading attachment: %w", err)
	}

	return data, msg.Voice.MimeType, nil
}

// ---------- PresenceChannel Interface ----------

// SendTyping sends a typing indicator to the channel.
func (d *Discord) SendTyping(ctx context.Context, to string) error {
	if d.session == nil || !d.cfg.SendTyping {
		return nil
	}
	return d.session.ChannelTyping(to)
}

// ---------- Event Handlers ----------

// onMessageCreate handles incoming Discord messages.
func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore the bot's own messages and other bots.
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	incoming := &channels.IncomingMessage{
		ID:      m.ID,
		Channel: "discord",
		From:    m.Author.Username,
		ChatID:  m.ChannelID,
		IsGroup: m.GuildID != "",
		Type:    channels.MessageText,
		// Raw content carries mentions as <@id>; replace them with
		// @username so mention detection can match the bot's handle.
		Content:   m.ContentWithMentionsReplaced(),
		Timestamp: m.Timestamp,
	}

	// Handle replies.
	if m.ReferencedMessage != nil {
		incoming.ReplyTo = m.ReferencedMessage.ID
		incoming.QuotedContent = m.ReferencedMessage.ContentWithMentionsReplaced()
		if m.ReferencedMessage.Author != nil {
			incoming.ReplyToAuthor = m.ReferencedMessage.Author.Username
		}
	}

	// Voice-note attachments become voice messages.
	for _, att := range m.Attachments {
		if strings.HasPrefix(att.ContentType, "audio/") {
			incoming.Type = channels.MessageVoice
			incoming.Voice = &channels.VoiceInfo{
				FileRef:  att.URL,
				MimeType: att.ContentType,
				FileSize: uint64(att.Size),
			}
			break
		}
	}

	if incoming.Content == "" && incoming.Voice == nil {
		return
	}

	d.lastMsg.Store(time.Now())

	select {
	case d.messages <- incoming:
	default:
		d.logger.Warn("discord: message buffer full, dropping message", "msg_id", m.ID)
	}
}

// Compile-time interface verification.
var (
	_ channels.Channel         = (*Discord)(nil)
	_ channels.VoiceChannel    = (*Discord)(nil)
	_ channels.PresenceChannel = (*Discord)(nil)
)

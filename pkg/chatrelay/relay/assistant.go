// Package relay implements the conversational relay bot: it receives chat
// events from channels, gates them through the allow-list and the
// direct-or-mention classifier, maintains bounded per-identity histories,
// and relays completions from an OpenAI-compatible API back to the chat.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/channels"
)

// thinkingPlaceholder is posted while a completion is in flight and deleted
// before the reply is sent.
const thinkingPlaceholder = "🤔"

// transcriptionNotice is sent when a voice note cannot be transcribed.
// The conversation history is left untouched in that case.
const transcriptionNotice = "Sorry, I couldn't understand that voice message. Please try again."

// Assistant is the main orchestrator.
// Message flow: receive → command check → classifier → access check →
// (transcribe) → history append → completion → history append → send.
type Assistant struct {
	config *Config

	// channelMgr manages communication channels.
	channelMgr *channels.Manager

	// allowlist gates who can use the bot.
	allowlist *Allowlist

	// classifier decides which events deserve a reply.
	classifier *Classifier

	// store keeps bounded per-identity conversation histories.
	store *ConversationStore

	// orchestrator turns a history into a reply, falling back on failure.
	orchestrator *Orchestrator

	// transcriber converts voice notes to text. Nil disables voice.
	transcriber *Transcriber

	startedAt time.Time
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Assistant with all dependencies.
func New(cfg *Config, logger *slog.Logger) *Assistant {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	store := NewConversationStore(cfg.HistoryBudget)
	llm := NewLLMClient(cfg, logger)
	fallbacks := NewFallbackPool(cfg.Fallbacks)

	return &Assistant{
		config:       cfg,
		channelMgr:   channels.NewManager(logger.With("component", "channels")),
		allowlist:    NewAllowlist(cfg.AllowedUsers),
		classifier:   NewClassifier(),
		store:        store,
		orchestrator: NewOrchestrator(store, llm, fallbacks, logger),
		transcriber:  NewTranscriber(cfg, logger),
		logger:       logger,
	}
}

// ChannelManager returns the channel manager for channel registration.
func (a *Assistant) ChannelManager() *channels.Manager {
	return a.channelMgr
}

// Classifier returns the routing classifier so callers can register
// per-channel bot handles after connecting.
func (a *Assistant) Classifier() *Classifier {
	return a.classifier
}

// Store returns the conversation store.
func (a *Assistant) Store() *ConversationStore {
	return a.store
}

// Start connects all channels and starts the message loop.
func (a *Assistant) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.startedAt = time.Now()

	a.logger.Info("starting chatrelay",
		"name", a.config.Name,
		"model", a.config.Model,
		"allowed_users", a.allowlist.Len(),
	)

	if err := a.channelMgr.Start(a.ctx); err != nil {
		return err
	}

	go a.messageLoop()

	a.logger.Info("chatrelay started")
	return nil
}

// Stop gracefully shuts down all channels.
func (a *Assistant) Stop() {
	a.logger.Info("stopping chatrelay")
	if a.cancel != nil {
		a.cancel()
	}
	a.channelMgr.Stop()
	a.logger.Info("chatrelay stopped")
}

// messageLoop processes messages from all channels.
func (a *Assistant) messageLoop() {
	for {
		select {
		case msg, ok := <-a.channelMgr.Messages():
			if !ok {
				return
			}
			go a.handleMessage(msg)

		case <-a.ctx.Done():
			return
		}
	}
}

// handleMessage processes an individual message end to end.
func (a *Assistant) handleMessage(msg *channels.IncomingMessage) {
	start := time.Now()
	logger := a.logger.With(
		"channel", msg.Channel,
		"chat_id", msg.ChatID,
		"from", msg.From,
		"msg_id", msg.ID,
	)

	logger.Info("message received")

	// ── Step 1: Commands ──
	// Commands work everywhere, including groups without a mention, but
	// only for allowed senders.
	if msg.Type == channels.MessageText && IsCommand(msg.Content) {
		if !a.allowlist.IsAllowed(msg.From) {
			logger.Info("access denied")
			a.sendReply(msg, RejectionNotice)
			return
		}
		result := a.HandleCommand(msg)
		if result.Handled {
			if result.Response != "" {
				a.sendReply(msg, result.Response)
			}
			logger.Info("command processed",
				"duration_ms", time.Since(start).Milliseconds())
			return
		}
	}

	// ── Step 2: Classifier ──
	// Direct chats always route; groups require a mention or a reply to
	// one of the bot's own messages. Unaddressed group messages are
	// dropped before the access check so the bot never speaks unprompted.
	if !a.classifier.ShouldRoute(msg) {
		logger.Debug("message ignored by classifier")
		return
	}

	// ── Step 3: Access control ──
	// Denied senders get a fixed notice and never touch the history.
	if !a.allowlist.IsAllowed(msg.From) {
		logger.Info("access denied")
		a.sendReply(msg, RejectionNotice)
		return
	}

	switch msg.Type {
	case channels.MessageVoice:
		a.handleVoiceMessage(msg, logger)
	default:
		a.handleTextMessage(msg, logger)
	}

	logger.Info("message processed",
		"duration_ms", time.Since(start).Milliseconds())
}

// handleTextMessage relays a text message through the completion flow,
// with a thinking placeholder shown while the request is in flight.
func (a *Assistant) handleTextMessage(msg *channels.IncomingMessage, logger *slog.Logger) {
	a.channelMgr.SendTyping(a.ctx, msg.Channel, msg.ChatID)

	placeholderID, err := a.channelMgr.Send(a.ctx, msg.Channel, msg.ChatID,
		&channels.OutgoingMessage{Content: thinkingPlaceholder})
	if err != nil {
		logger.Warn("failed to send placeholder", "error", err)
	}

	// Quoted replies carry the quoted text into the prompt.
	input := msg.Content
	if msg.QuotedContent != "" {
		input = "> " + msg.QuotedContent + " \n\n" + input
	}

	a.store.Append(msg.From, RoleUser, input)
	response := a.orchestrator.Respond(a.ctx, msg.From)
	a.store.Append(msg.From, RoleAssistant, response)

	if placeholderID != "" {
		if err := a.channelMgr.Delete(a.ctx, msg.Channel, msg.ChatID, placeholderID); err != nil {
			logger.Warn("failed to delete placeholder", "error", err)
		}
	}

	a.sendReply(msg, response)
}

// handleVoiceMessage downloads and transcribes a voice note, then relays
// the transcript through the completion flow. A failed transcription sends
// a fixed notice and leaves the history untouched.
func (a *Assistant) handleVoiceMessage(msg *channels.IncomingMessage, logger *slog.Logger) {
	if a.transcriber == nil || msg.Voice == nil {
		a.sendReply(msg, transcriptionNotice)
		return
	}

	a.channelMgr.SendTyping(a.ctx, msg.Channel, msg.ChatID)

	transcript, err := a.transcribeVoice(msg)
	if err != nil {
		logger.Warn("voice transcription failed", "error", err)
		a.sendReply(msg, transcriptionNotice)
		return
	}

	logger.Debug("voice transcribed", "chars", len(transcript))

	a.store.Append(msg.From, RoleUser, transcript)
	response := a.orchestrator.Respond(a.ctx, msg.From)
	a.store.Append(msg.From, RoleAssistant, response)

	a.sendReply(msg, response)
}

// transcribeVoice downloads the voice payload from its channel and runs it
// through the transcriber.
func (a *Assistant) transcribeVoice(msg *channels.IncomingMessage) (string, error) {
	audio, mimeType, err := a.channelMgr.DownloadVoice(a.ctx, msg)
	if err != nil {
		return "", err
	}

	transcript, err := a.transcriber.Transcribe(a.ctx, audio, mimeType)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(transcript) == "" {
		return "", errors.New("empty transcript")
	}
	return transcript, nil
}

// sendReply sends a plain text response back to the originating chat.
func (a *Assistant) sendReply(msg *channels.IncomingMessage, content string) {
	if _, err := a.channelMgr.Send(a.ctx, msg.Channel, msg.ChatID,
		&channels.OutgoingMessage{Content: content}); err != nil {
		a.logger.Error("failed to send reply",
			"channel", msg.Channel,
			"chat_id", msg.ChatID,
			"error", err)
	}
}

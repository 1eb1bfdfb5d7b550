// Package channels defines the interfaces and types for chatrelay transports.
// Each transport (Telegram, Discord) implements the Channel interface to
// receive and send messages in a unified way.
package channels

import (
	"context"
	"fmt"
	"time"
)

// MessageType identifies the kind of message content.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageVoice MessageType = "voice"
)

// Channel defines the interface that every transport must implement.
type Channel interface {
	// Name returns the channel identifier (e.g. "telegram", "discord").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Send sends a text message to the specified chat and returns the
	// platform message ID of the sent message.
	Send(ctx context.Context, to string, message *OutgoingMessage) (string, error)

	// Delete removes a previously sent message.
	Delete(ctx context.Context, chatID, messageID string) error

	// Receive returns a Go channel that emits incoming messages.
	Receive() <-chan *IncomingMessage

	// IsConnected returns true if the channel is connected.
	IsConnected() bool

	// Health returns the channel health status.
	Health() HealthStatus
}

// VoiceChannel extends Channel with voice-note download capability.
type VoiceChannel interface {
	Channel

	// DownloadVoice downloads the voice payload of an incoming message.
	// Returns the raw audio bytes and MIME type.
	DownloadVoice(ctx context.Context, msg *IncomingMessage) ([]byte, string, error)
}

// PresenceChannel extends Channel with typing indicators.
type PresenceChannel interface {
	Channel

	// SendTyping sends a "typing..." indicator to the chat.
	SendTyping(ctx context.Context, to string) error
}

// IncomingMessage represents a message received from any channel.
type IncomingMessage struct {
	// ID is the unique message identifier in the source channel.
	ID string

	// Channel identifies the source channel (e.g. "telegram").
	Channel string

	// From is the sender's platform username, the identity the relay keys
	// conversation history on.
	From string

	// ChatID is the group or DM identifier.
	ChatID string

	// IsGroup indicates whether the message comes from a multi-party chat.
	IsGroup bool

	// Type is the message content type.
	Type MessageType

	// Content is the text content of the message (empty for voice notes).
	Content string

	// Timestamp is when the message was sent.
	Timestamp time.Time

	// ReplyTo contains the ID of the message being replied to.
	ReplyTo string

	// ReplyToAuthor is the username of the replied-to message's author.
	ReplyToAuthor string

	// QuotedContent is the text of the quoted message (if replying).
	QuotedContent string

	// Voice references the voice payload (platform file ID or URL).
	Voice *VoiceInfo
}

// OutgoingMessage represents a message to be sent through a channel.
type OutgoingMessage struct {
	// Content is the text content of the message.
	Content string

	// ReplyTo contains the ID of the message to reply to.
	ReplyTo string
}

// VoiceInfo describes a voice note attached to an incoming message.
type VoiceInfo struct {
	// FileRef is the platform-specific file reference (file_id or URL).
	FileRef string

	// MimeType is the MIME type of the audio.
	MimeType string

	// Duration is the duration in seconds.
	Duration uint32

	// FileSize is the size in bytes.
	FileSize uint64
}

// HealthStatus represents the health state of a channel.
type HealthStatus struct {
	Connected     bool
	LastMessageAt time.Time
	ErrorCount    int
}

// Errors.
var (
	ErrChannelDisconnected = fmt.Errorf("channel is not connected")
	ErrVoiceDownloadFailed = fmt.Errorf("failed to download voice note")
	ErrVoiceNotSupported   = fmt.Errorf("voice notes not supported by this channel")
)

// Package relay – classifier.go decides which incoming events reach the
// orchestrator. In one-to-one chats everything routes; in group chats the
// bot only engages when addressed directly.
package relay

import (
	"strings"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/channels"
)

// Classifier implements the direct-or-mention filter. The bot's own handle
// is resolved once at startup from the transport and passed in here, so
// there is no lazily initialized global to race on.
type Classifier struct {
	handles map[string]string // channel name → bot handle on that channel
}

// NewClassifier creates a classifier with no handles registered.
func NewClassifier() *Classifier {
	return &Classifier{handles: make(map[string]string)}
}

// SetHandle registers the bot's own handle for a channel. Called during
// startup, after the channel connects and before any event is served.
func (c *Classifier) SetHandle(channel, handle string) {
	c.handles[channel] = handle
}

// Handle returns the bot's handle on the given channel.
func (c *Classifier) Handle(channel string) string {
	return c.handles[channel]
}

// ShouldRoute reports whether an event should reach the orchestrator:
//   - events with neither text nor a voice payload never route;
//   - one-to-one chats always route;
//   - group chats route only when the text mentions @<handle> or the event
//     replies to one of the bot's own messages.
func (c *Classifier) ShouldRoute(msg *channels.IncomingMessage) bool {
	if msg.Content == "" && msg.Voice == nil {
		return false
	}

	if !msg.IsGroup {
		return true
	}

	handle := c.handles[msg.Channel]
	if handle == "" {
		return false
	}

	if strings.Contains(msg.Content, "@"+handle) {
		return true
	}

	return msg.ReplyTo != "" && msg.ReplyToAuthor == handle
}

// Package relay – commands.go implements bot commands that can be executed
// via chat messages:
//
//	/reset   - Clear the sender's conversation history
//	/status  - Show bot status
//	/help    - Show available commands
package relay

import (
	"fmt"
	"strings"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/channels"
)

// resetConfirmation is sent after a successful /reset.
const resetConfirmation = "Messages history cleaned"

// CommandResult contains the result of a command execution.
type CommandResult struct {
	// Response is the text to send back.
	Response string

	// Handled is true if the message was a valid command.
	Handled bool
}

// IsCommand returns true if the message starts with "/".
func IsCommand(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), "/")
}

// HandleCommand processes a bot command from a chat message.
// Returns handled=true if it was a valid command.
func (a *Assistant) HandleCommand(msg *channels.IncomingMessage) CommandResult {
	content := strings.TrimSpace(msg.Content)
	if !IsCommand(content) {
		return CommandResult{Handled: false}
	}

	parts := strings.Fields(content)
	cmd := strings.ToLower(parts[0])

	// Strip Telegram's "/cmd@botname" suffix.
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}

	switch cmd {
	case "/reset":
		a.store.Clear(msg.From)
		a.logger.Info("conversation history cleared", "user", msg.From)
		return CommandResult{Response: resetConfirmation, Handled: true}

	case "/status":
		return CommandResult{Response: a.statusCommand(), Handled: true}

	case "/help", "/start":
		return CommandResult{Response: a.helpCommand(), Handled: true}

	default:
		// Unknown commands are ignored so they don't pollute the history.
		return CommandResult{Handled: true}
	}
}

// statusCommand returns a bot status summary.
func (a *Assistant) statusCommand() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s status\n", a.config.Name)
	fmt.Fprintf(&b, "Model: %s\n", a.config.Model)
	fmt.Fprintf(&b, "Uptime: %s\n", time.Since(a.startedAt).Round(time.Second))
	fmt.Fprintf(&b, "Conversations: %d\n", a.store.Count())

	for name, health := range a.channelMgr.HealthAll() {
		state := "disconnected"
		if health.Connected {
			state = "connected"
		}
		fmt.Fprintf(&b, "Channel %s: %s\n", name, state)
	}
	return strings.TrimRight(b.String(), "\n")
}

// helpCommand returns the command reference.
func (a *Assistant) helpCommand() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - conversational relay bot\n\n", a.config.Name)
	b.WriteString("Send me a message and I will answer. In groups, mention me ")
	b.WriteString("or reply to one of my messages.\n\n")
	b.WriteString("Commands:\n")
	b.WriteString("/reset - Clear your conversation history\n")
	b.WriteString("/status - Show bot status\n")
	b.WriteString("/help - Show this help")
	return b.String()
}

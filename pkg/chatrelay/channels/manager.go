// manager.go aggregates multiple transports behind a single incoming stream
// and routes outgoing messages to the channel they belong to.
package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager orchestrates the registered channels, merging their incoming
// messages into one stream and dispatching replies back by channel name.
type Manager struct {
	// channels stores all registered channels, indexed by name.
	channels map[string]Channel

	// messages is the aggregated stream of incoming messages.
	messages chan *IncomingMessage

	logger *slog.Logger

	// listenWg tracks listener goroutines for safe shutdown.
	listenWg sync.WaitGroup

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a channel manager with the provided logger.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		channels: make(map[string]Channel),
		messages: make(chan *IncomingMessage, 256),
		logger:   logger,
	}
}

// Register adds a channel to the manager. Must be called before Start.
func (m *Manager) Register(ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := ch.Name()
	if _, exists := m.channels[name]; exists {
		return fmt.Errorf("channel %q already registered", name)
	}

	m.channels[name] = ch
	m.logger.Info("channel registered", "channel", name)
	return nil
}

// Start connects all registered channels and begins listening for messages.
// Channels that fail to connect are logged but do not block the rest.
// Returns an error only when channels were registered and none connected.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	// Snapshot under lock to avoid racing a late Register.
	m.mu.RLock()
	snapshot := make(map[string]Channel, len(m.channels))
	for k, v := range m.channels {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	if len(snapshot) == 0 {
		m.logger.Warn("no channels registered, running without transports")
		return nil
	}

	var connected int
	for name, ch := range snapshot {
		if err := ch.Connect(m.ctx); err != nil {
			m.logger.Error("failed to connect channel",
				"channel", name,
				"error", err,
			)
			continue
		}

		connected++
		m.logger.Info("channel connected", "channel", name)

		m.listenWg.Add(1)
		go func(c Channel) {
			defer m.listenWg.Done()
			m.listenChannel(c)
		}(ch)
	}

	if connected == 0 {
		return fmt.Errorf("no channel connected successfully")
	}

	return nil
}

// Stop disconnects all channels gracefully. Waits for listener goroutines
// to finish before closing the aggregated stream.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}

	m.listenWg.Wait()

	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if err := ch.Disconnect(); err != nil {
			m.logger.Error("error disconnecting channel",
				"channel", name,
				"error", err,
			)
		}
	}

	close(m.messages)
	m.logger.Info("channel manager stopped")
}

// Messages returns the aggregated stream of incoming messages.
func (m *Manager) Messages() <-chan *IncomingMessage {
	return m.messages
}

// Send sends a message through the named channel and returns the sent
// message's platform ID.
func (m *Manager) Send(ctx context.Context, channelName, to string, msg *OutgoingMessage) (string, error) {
	ch, exists := m.Channel(channelName)
	if !exists {
		return "", fmt.Errorf("channel %q not found", channelName)
	}

	if !ch.IsConnected() {
		return "", fmt.Errorf("channel %q disconnected", channelName)
	}

	return ch.Send(ctx, to, msg)
}

// Delete removes a previously sent message on the named channel.
func (m *Manager) Delete(ctx context.Context, channelName, chatID, messageID string) error {
	ch, exists := m.Channel(channelName)
	if !exists {
		return fmt.Errorf("channel %q not found", channelName)
	}
	return ch.Delete(ctx, chatID, messageID)
}

// SendTyping emits a typing indicator on channels that support presence.
// Channels without presence support are silently skipped.
func (m *Manager) SendTyping(ctx context.Context, channelName, chatID string) {
	ch, exists := m.Channel(channelName)
	if !exists {
		return
	}
	if pc, ok := ch.(PresenceChannel); ok {
		if err := pc.SendTyping(ctx, chatID); err != nil {
			m.logger.Debug("typing indicator failed",
				"channel", channelName, "error", err)
		}
	}
}

// DownloadVoice fetches a voice payload through the channel that produced
// the message. Returns the raw audio bytes and MIME type.
func (m *Manager) DownloadVoice(ctx context.Context, msg *IncomingMessage) ([]byte, string, error) {
	ch, exists := m.Channel(msg.Channel)
	if !exists {
		return nil, "", fmt.Errorf("channel %q not found", msg.Channel)
	}
	vc, ok := ch.(VoiceChannel)
	if !ok {
		return nil, "", ErrVoiceNotSupported
	}
	return vc.DownloadVoice(ctx, msg)
}

// Channel returns a registered channel by name.
func (m *Manager) Channel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// HealthAll returns the health status of every registered channel.
func (m *Manager) HealthAll() map[string]HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[string]HealthStatus, len(m.channels))
	for name, ch := range m.channels {
		statuses[name] = ch.Health()
	}
	return statuses
}

// HasChannels returns true if at least one channel is registered.
func (m *Manager) HasChannels() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels) > 0
}

// listenChannel forwards one channel's messages into the aggregated stream.
// Transports keep their streams open across reconnects, so shutdown comes
// from the manager context rather than stream closure.
func (m *Manager) listenChannel(ch Channel) {
	for {
		select {
		case msg, ok := <-ch.Receive():
			if !ok {
				return
			}
			select {
			case m.messages <- msg:
			case <-m.ctx.Done():
				return
			}
		case <-m.ctx.Done():
			return
		}
	}
}

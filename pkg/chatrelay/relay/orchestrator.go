// Package relay – orchestrator.go maps the remote completion call, success
// or failure, into a reply string. Failures are absorbed here: the user sees
// a filler apology, never an error.
package relay

import (
	"context"
	"log/slog"
	"time"
)

// overallTimeout bounds the whole completion operation, on top of the HTTP
// client's per-request timeout.
const overallTimeout = 80 * time.Second

// Completer is the completion seam the orchestrator talks to. *LLMClient
// implements it; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, history []Turn) (string, error)
}

// Orchestrator submits an identity's current history to the completion
// service and turns the outcome into a reply string.
type Orchestrator struct {
	store     *ConversationStore
	completer Completer
	fallbacks *FallbackPool
	logger    *slog.Logger
}

// NewOrchestrator wires the store, completion client, and fallback pool.
func NewOrchestrator(store *ConversationStore, completer Completer, fallbacks *FallbackPool, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     store,
		completer: completer,
		fallbacks: fallbacks,
		logger:    logger.With("component", "orchestrator"),
	}
}

// Respond submits the identity's full ordered history (possibly empty) and
// returns the single candidate's content. Any failure — timeout, transport
// error, malformed response, service rejection — yields a filler reply from
// the fallback pool instead. Never returns an error; the caller appends the
// result to history as an assistant turn either way.
func (o *Orchestrator) Respond(ctx context.Context, identity string) string {
	ctx, cancel := context.WithTimeout(ctx, overallTimeout)
	defer cancel()

	history := o.store.History(identity)

	reply, err := o.completer.Complete(ctx, history)
	if err != nil {
		o.logger.Warn("completion failed, using fallback",
			"identity", identity,
			"error", err,
		)
		return o.fallbacks.Pick()
	}
	return reply
}

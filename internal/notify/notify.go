// Package notify delivers structured events (contact-form completions,
// keyword alerts) to the automation sink. Delivery is always best-effort:
// failures are logged and never block or delay the visitor-facing reply.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event is one notification payload.
type Event struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier sends one event to the sink.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

// dispatchTimeout bounds background deliveries so an unreachable sink
// cannot pin goroutines forever.
const dispatchTimeout = 30 * time.Second

// Dispatch sends in a goroutine, detached from the caller's context, and
// logs the outcome. Callers must never wait on it.
func Dispatch(log *zap.SugaredLogger, n Notifier, title, message string) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := n.Send(ctx, title, message); err != nil {
			log.Warnw("notification delivery failed", "title", title, "error", err)
			return
		}
		log.Infow("notification delivered", "title", title)
	}()
}

// Noop drops every event. Used when no sink is configured.
type Noop struct{}

func (Noop) Send(ctx context.Context, title, message string) error { return nil }

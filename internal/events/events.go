// Package events carries domain notifications out of the service after a
// transaction commits. Delivery is best-effort: publishing never changes the
// outcome of the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	SaleCompleted       Type = "sale.completed"
	PaymentVoided       Type = "payment.voided"
	PaymentVoidFailed   Type = "payment.void_failed"
	RaffleStatusChanged Type = "raffle.status_changed"
	RaffleFinalized     Type = "raffle.finalized"
)

type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	RaffleID   string         `json:"raffle_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

func New(t Type, raffleID string, at time.Time, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		RaffleID:   raffleID,
		OccurredAt: at,
		Data:       data,
	}
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// LogPublisher writes events to a structured logger. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "event",
		"event_id", ev.ID,
		"type", string(ev.Type),
		"raffle_id", ev.RaffleID,
		"data", string(payload),
	)
	return nil
}

// DefaultPublishTimeout caps one publish made through Bounded when no timeout
// is configured.
const DefaultPublishTimeout = 3 * time.Second

// BoundedPublisher gives every publish its own deadline. Events are published
// after the operation committed, so the caller's cancellation is dropped and
// replaced by the timeout: a slow or unreachable broker delays the response by
// at most the timeout and never blocks it indefinitely.
type BoundedPublisher struct {
	next    Publisher
	timeout time.Duration
}

// Bounded wraps next with a per-publish timeout. A non-positive timeout means
// DefaultPublishTimeout. An already bounded publisher is returned unchanged.
func Bounded(next Publisher, timeout time.Duration) *BoundedPublisher {
	if b, ok := next.(*BoundedPublisher); ok {
		return b
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &BoundedPublisher{next: next, timeout: timeout}
}

func (b *BoundedPublisher) Publish(ctx context.Context, ev Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()
	return b.next.Publish(ctx, ev)
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rifas-mx/rifas/internal/domain"
)

const (
	availableKeyPrefix = "rifas:available:"
	DefaultTTL         = 30 * time.Second
)

// Connect parses url, opens a client and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// AvailabilityCache stores the available-ticket listing of each raffle in
// Redis with a TTL. Committed sales invalidate the entry.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

type Option func(*AvailabilityCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *AvailabilityCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func NewAvailabilityCache(client *redis.Client, opts ...Option) *AvailabilityCache {
	c := &AvailabilityCache{client: client, ttl: DefaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type cachedTicket struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
}

func (c *AvailabilityCache) GetAvailable(ctx context.Context, raffleID string) ([]domain.Ticket, bool, error) {
	raw, err := c.client.Get(ctx, availableKeyPrefix+raffleID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cached []cachedTicket
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false, fmt.Errorf("decode cached tickets: %w", err)
	}
	tickets := make([]domain.Ticket, len(cached))
	for i, ct := range cached {
		tickets[i] = domain.Ticket{
			ID:       ct.ID,
			RaffleID: raffleID,
			Number:   ct.Number,
			Status:   domain.TicketStatusAvailable,
		}
	}
	return tickets, true, nil
}

func (c *AvailabilityCache) SetAvailable(ctx context.Context, raffleID string, tickets []domain.Ticket) error {
	cached := make([]cachedTicket, 0, len(tickets))
	for _, t := range tickets {
		if t.Status != domain.TicketStatusAvailable {
			continue
		}
		cached = append(cached, cachedTicket{ID: t.ID, Number: t.Number})
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, availableKeyPrefix+raffleID, raw, c.ttl).Err()
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, raffleID string) error {
	return c.client.Del(ctx, availableKeyPrefix+raffleID).Err()
}

// Package payment holds the payment capability consumed by the sale coordinator.
package payment

//go:generate mockgen -source=gateway.go -destination=mocks/gateway_mock.go -package=mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rifas-mx/rifas/internal/domain"
)

// Gateway captures and voids payments. Capture either succeeds with a
// reference or fails; Void reverses a capture identified by its reference.
type Gateway interface {
	Capture(ctx context.Context, amount domain.Money, buyerID string) (string, error)
	Void(ctx context.Context, ref string) error
}

// Simulated is an in-process gateway. It never talks to a processor but keeps
// the contract a real gateway must honour: unknown references cannot be voided
// and voiding twice is a no-op.
type Simulated struct {
	latency      time.Duration
	declineAbove domain.Money

	mu       sync.Mutex
	captures map[string]*capture
}

type capture struct {
	amount  domain.Money
	buyerID string
	voided  bool
}

type SimulatedOption func(*Simulated)

// WithLatency delays every capture, mirroring the wait of a real processor.
func WithLatency(d time.Duration) SimulatedOption {
	return func(s *Simulated) {
		if d > 0 {
			s.latency = d
		}
	}
}

// WithDeclineAbove declines captures strictly greater than limit.
func WithDeclineAbove(limit domain.Money) SimulatedOption {
	return func(s *Simulated) {
		if limit > 0 {
			s.declineAbove = limit
		}
	}
}

func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{captures: make(map[string]*capture)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulated) Capture(ctx context.Context, amount domain.Money, buyerID string) (string, error) {
	if amount <= 0 {
		return "", domain.ErrInvalidAmount
	}
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if s.declineAbove > 0 && amount > s.declineAbove {
		return "", fmt.Errorf("simulated decline: amount %s above %s", amount, s.declineAbove)
	}

	ref := "sim_" + uuid.NewString()
	s.mu.Lock()
	s.captures[ref] = &capture{amount: amount, buyerID: buyerID}
	s.mu.Unlock()
	return ref, nil
}

func (s *Simulated) Void(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.captures[ref]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	c.voided = true
	return nil
}

// Captured returns the net amount captured and not voided for buyerID.
func (s *Simulated) Captured(buyerID string) domain.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total domain.Money
	for _, c := range s.captures {
		if c.buyerID == buyerID && !c.voided {
			total += c.amount
		}
	}
	return total
}

package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rifas-mx/rifas/internal/clock"
	"github.com/rifas-mx/rifas/internal/domain"
	"github.com/rifas-mx/rifas/internal/events"
	"github.com/rifas-mx/rifas/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	admin  = domain.Caller{UserID: "admin-1", Role: domain.RoleAdmin}
	buyer  = domain.Caller{UserID: "buyer-1", Role: domain.RoleParticipant}
	buyer2 = domain.Caller{UserID: "buyer-2", Role: domain.RoleParticipant}
	seller = domain.Caller{UserID: "seller-1", Role: domain.RoleSeller}
)

// seedRaffle stores a raffle with a principal prize and count tickets numbered
// from 1, all available, and returns the ticket ids indexed by number.
func seedRaffle(t *testing.T, store *memory.Store, status domain.RaffleStatus, price domain.Money, count int) (domain.Raffle, map[int]string) {
	t.Helper()

	ctx := context.Background()
	raffle := domain.Raffle{
		ID:          newID(),
		Name:        "Rifa de prueba",
		TicketPrice: price,
		TicketCount: count,
		DrawDate:    testNow.Add(30 * 24 * time.Hour),
		Status:      status,
		CreatedBy:   admin.UserID,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	if err := store.CreateRaffle(ctx, raffle); err != nil {
		t.Fatalf("create raffle: %v", err)
	}
	prize := domain.Prize{
		ID:       newID(),
		RaffleID: raffle.ID,
		Name:     "Auto",
		Value:    25000000,
		Kind:     domain.PrizeKindPrincipal,
		Place:    1,
	}
	if err := store.CreatePrize(ctx, prize); err != nil {
		t.Fatalf("create prize: %v", err)
	}

	tickets := make([]domain.Ticket, count)
	ids := make(map[int]string, count)
	for i := range tickets {
		tickets[i] = domain.Ticket{
			ID:       newID(),
			RaffleID: raffle.ID,
			Number:   i + 1,
			Status:   domain.TicketStatusAvailable,
		}
		ids[i+1] = tickets[i].ID
	}
	if err := store.InsertTickets(ctx, tickets); err != nil {
		t.Fatalf("insert tickets: %v", err)
	}
	return raffle, ids
}

func ticketIDs(ids map[int]string, numbers ...int) []string {
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		id, ok := ids[n]
		if !ok {
			panic(fmt.Sprintf("no ticket number %d", n))
		}
		out = append(out, id)
	}
	return out
}

func newTestInventory(store *memory.Store, opts ...InventoryServiceOption) *InventoryService {
	return NewInventoryService(store, clock.NewManual(testNow), opts...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/rifas-mx/rifas/internal/clock"
	"github.com/rifas-mx/rifas/internal/domain"
)

type TicketRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	InsertTickets(ctx context.Context, tickets []domain.Ticket) error
	ListTickets(ctx context.Context, raffleID string, status domain.TicketStatus) ([]domain.Ticket, error)
	GetRaffleForSale(ctx context.Context, raffleID string) (domain.Raffle, error)
	GetTicketsForUpdate(ctx context.Context, ticketIDs []string) ([]domain.Ticket, error)
	MarkTicketsSold(ctx context.Context, saleID, ownerID string, ticketIDs []string, at time.Time) (int, error)
}

// TicketCache caches the available-ticket projection of a raffle. It is a read
// optimisation only; sale correctness never depends on it.
type TicketCache interface {
	GetAvailable(ctx context.Context, raffleID string) ([]domain.Ticket, bool, error)
	SetAvailable(ctx context.Context, raffleID string, tickets []domain.Ticket) error
	Invalidate(ctx context.Context, raffleID string) error
}

// DefaultMaxTickets bounds the inventory (and therefore the draw) of a single raffle.
const DefaultMaxTickets = 10000

type InventoryService struct {
	repo       TicketRepository
	clock      clock.Clock
	cache      TicketCache
	logger     *slog.Logger
	maxTickets int
}

type InventoryServiceOption func(*InventoryService)

// WithMaxTickets overrides the per-raffle ticket ceiling.
func WithMaxTickets(n int) InventoryServiceOption {
	return func(s *InventoryService) {
		if n > 0 {
			s.maxTickets = n
		}
	}
}

func WithTicketCache(c TicketCache) InventoryServiceOption {
	return func(s *InventoryService) {
		s.cache = c
	}
}

func WithInventoryLogger(l *slog.Logger) InventoryServiceOption {
	return func(s *InventoryService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewInventoryService(repo TicketRepository, clk clock.Clock, opts ...InventoryServiceOption) *InventoryService {
	svc := &InventoryService{
		repo:       repo,
		clock:      clk,
		logger:     slog.Default(),
		maxTickets: DefaultMaxTickets,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *InventoryService) MaxTickets() int {
	return s.maxTickets
}

// CreateTickets stores tickets numbered 1..count, all available. It joins the
// transaction carried by ctx, if any.
func (s *InventoryService) CreateTickets(ctx context.Context, raffleID string, count int) ([]domain.Ticket, error) {
	if raffleID == "" {
		return nil, domain.ErrInvalidID
	}
	if count <= 0 || count > s.maxTickets {
		return nil, domain.ErrInvalidTicketCount
	}

	tickets := make([]domain.Ticket, count)
	for i := range tickets {
		tickets[i] = domain.Ticket{
			ID:       newID(),
			RaffleID: raffleID,
			Number:   i + 1,
			Status:   domain.TicketStatusAvailable,
		}
	}
	if err := s.repo.InsertTickets(ctx, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// ListByStatus returns the raffle's tickets ordered by number. An empty status
// returns every ticket.
func (s *InventoryService) ListByStatus(ctx context.Context, raffleID string, status domain.TicketStatus) ([]domain.Ticket, error) {
	if raffleID == "" {
		return nil, domain.ErrInvalidID
	}
	if status != "" && !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	cacheable := status == domain.TicketStatusAvailable && s.cache != nil
	if cacheable {
		cached, ok, err := s.cache.GetAvailable(ctx, raffleID)
		if err != nil {
			s.logger.WarnContext(ctx, "ticket cache read failed", "raffle_id", raffleID, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	tickets, err := s.repo.ListTickets(ctx, raffleID, status)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.cache.SetAvailable(ctx, raffleID, tickets); err != nil {
			s.logger.WarnContext(ctx, "ticket cache write failed", "raffle_id", raffleID, "error", err)
		}
	}
	return tickets, nil
}

type ReserveInput struct {
	RaffleID  string
	TicketIDs []string
	BuyerID   string
	// SaleID links the tickets to a sale created in the same transaction. Optional.
	SaleID string
}

// ReserveAndSell flips every selected ticket to sold for the buyer as one unit.
// The raffle must be active and every ticket must belong to it and be
// available; otherwise nothing changes. Duplicate ids collapse to one ticket.
func (s *InventoryService) ReserveAndSell(ctx context.Context, in ReserveInput) ([]domain.Ticket, error) {
	if in.RaffleID == "" || in.BuyerID == "" {
		return nil, domain.ErrInvalidID
	}
	ids, err := normalizeSelection(in.TicketIDs)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var sold []domain.Ticket

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		raffle, err := s.repo.GetRaffleForSale(txCtx, in.RaffleID)
		if err != nil {
			return err
		}
		if !raffle.AcceptsSales() {
			return domain.ErrRaffleNotActive
		}

		tickets, err := s.repo.GetTicketsForUpdate(txCtx, ids)
		if err != nil {
			return err
		}
		if len(tickets) != len(ids) {
			return domain.ErrTicketsUnavailable
		}
		for _, t := range tickets {
			if t.RaffleID != in.RaffleID || t.Status != domain.TicketStatusAvailable {
				return domain.ErrTicketsUnavailable
			}
		}

		n, err := s.repo.MarkTicketsSold(txCtx, in.SaleID, in.BuyerID, ids, now)
		if err != nil {
			return err
		}
		if n != len(ids) {
			return domain.ErrTicketsUnavailable
		}

		for i := range tickets {
			tickets[i].Status = domain.TicketStatusSold
			tickets[i].OwnerID = in.BuyerID
			tickets[i].SaleID = in.SaleID
			tickets[i].SoldAt = &now
		}
		sold = tickets
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sold, nil
}

// Invalidate drops the cached availability of a raffle after a committed change.
func (s *InventoryService) Invalidate(ctx context.Context, raffleID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, raffleID); err != nil {
		s.logger.WarnContext(ctx, "ticket cache invalidate failed", "raffle_id", raffleID, "error", err)
	}
}

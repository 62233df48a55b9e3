package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rifas-mx/rifas/internal/clock"
	"github.com/rifas-mx/rifas/internal/domain"
	"github.com/rifas-mx/rifas/internal/events"
	"github.com/rifas-mx/rifas/internal/metrics"
)

type DrawRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetRaffleForUpdate(ctx context.Context, raffleID string) (domain.Raffle, error)
	GetWinner(ctx context.Context, raffleID string) (domain.Winner, error)
	ListTickets(ctx context.Context, raffleID string, status domain.TicketStatus) ([]domain.Ticket, error)
	ListPrizes(ctx context.Context, raffleID string) ([]domain.Prize, error)
	CreateWinner(ctx context.Context, winner domain.Winner) error
	UpdateRaffleStatus(ctx context.Context, raffleID string, status domain.RaffleStatus, at time.Time) error
}

type DrawService struct {
	repo      DrawRepository
	picker    Picker
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher EventPublisher
}

type DrawServiceOption func(*DrawService)

func WithPicker(p Picker) DrawServiceOption {
	return func(s *DrawService) {
		if p != nil {
			s.picker = p
		}
	}
}

func WithDrawLogger(l *slog.Logger) DrawServiceOption {
	return func(s *DrawService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithDrawMetrics(m *metrics.Metrics) DrawServiceOption {
	return func(s *DrawService) {
		s.metrics = m
	}
}

func WithDrawPublisher(p EventPublisher) DrawServiceOption {
	return func(s *DrawService) {
		s.publisher = boundedPublisher(p)
	}
}

func NewDrawService(repo DrawRepository, clk clock.Clock, opts ...DrawServiceOption) *DrawService {
	svc := &DrawService{
		repo:   repo,
		clock:  clk,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.picker == nil {
		svc.picker = NewRandomPicker()
	}
	return svc
}

// Draw picks the winning ticket of a closed raffle, uniformly among its sold
// tickets, records the winner and finalizes the raffle. A raffle is drawn at
// most once.
func (s *DrawService) Draw(ctx context.Context, caller domain.Caller, raffleID string) (winner domain.Winner, err error) {
	ctx, span := tracer.Start(ctx, "DrawService.Draw")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, metrics.Outcome(err))
		}
		span.End()
		s.metrics.ObserveDraw(err)
	}()

	if err := caller.Require(domain.RoleAdmin); err != nil {
		return domain.Winner{}, err
	}
	if raffleID == "" {
		return domain.Winner{}, domain.ErrInvalidID
	}
	span.SetAttributes(attribute.String("raffle.id", raffleID))

	now := s.clock.Now()
	var pool int

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		raffle, err := s.repo.GetRaffleForUpdate(txCtx, raffleID)
		if err != nil {
			return err
		}

		_, err = s.repo.GetWinner(txCtx, raffleID)
		switch {
		case err == nil:
			return domain.ErrAlreadyDrawn
		case !errors.Is(err, domain.ErrWinnerNotFound):
			return err
		}
		if raffle.Status != domain.RaffleStatusClosed {
			return domain.ErrRaffleNotClosed
		}

		sold, err := s.repo.ListTickets(txCtx, raffleID, domain.TicketStatusSold)
		if err != nil {
			return err
		}
		if len(sold) == 0 {
			return domain.ErrNoSoldTickets
		}
		for _, t := range sold {
			if t.OwnerID == "" {
				s.logger.ErrorContext(txCtx, "sold ticket without owner",
					"raffle_id", raffleID,
					"ticket_id", t.ID,
					"number", t.Number,
				)
				return domain.ErrOwnerMissing
			}
		}

		prize, err := principalPrize(txCtx, s.repo, raffleID)
		if err != nil {
			return err
		}

		picked := selectWinner(sold, s.picker)
		winner = domain.Winner{
			ID:           newID(),
			RaffleID:     raffleID,
			TicketID:     picked.ID,
			TicketNumber: picked.Number,
			PrizeID:      prize.ID,
			UserID:       picked.OwnerID,
			DrawnAt:      now,
		}
		if err := s.repo.CreateWinner(txCtx, winner); err != nil {
			return err
		}
		pool = len(sold)
		return s.repo.UpdateRaffleStatus(txCtx, raffleID, domain.RaffleStatusFinalized, now)
	})
	if err != nil {
		return domain.Winner{}, err
	}

	s.logger.InfoContext(ctx, "raffle drawn",
		"raffle_id", raffleID,
		"winner_ticket", winner.TicketNumber,
		"winner_user", winner.UserID,
		"sold_tickets", pool,
	)
	publishEvent(ctx, s.publisher, s.logger, events.New(events.RaffleFinalized, raffleID, now, map[string]any{
		"winner_id":     winner.ID,
		"ticket_id":     winner.TicketID,
		"ticket_number": winner.TicketNumber,
		"user_id":       winner.UserID,
		"prize_id":      winner.PrizeID,
		"sold_tickets":  pool,
	}))
	return winner, nil
}

// selectWinner picks one ticket from sold. sold must be non-empty and ordered
// by ticket number so a seeded picker replays the same outcome.
func selectWinner(sold []domain.Ticket, p Picker) domain.Ticket {
	return sold[p.IntN(len(sold))]
}

func principalPrize(ctx context.Context, repo DrawRepository, raffleID string) (domain.Prize, error) {
	prizes, err := repo.ListPrizes(ctx, raffleID)
	if err != nil {
		return domain.Prize{}, err
	}
	for _, p := range prizes {
		if p.Kind == domain.PrizeKindPrincipal {
			return p, nil
		}
	}
	return domain.Prize{}, domain.ErrPrincipalPrizeMissing
}

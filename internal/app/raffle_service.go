package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/rifas-mx/rifas/internal/clock"
	"github.com/rifas-mx/rifas/internal/domain"
	"github.com/rifas-mx/rifas/internal/events"
)

type RaffleRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateRaffle(ctx context.Context, raffle domain.Raffle) error
	GetRaffle(ctx context.Context, raffleID string) (domain.Raffle, error)
	GetRaffleForUpdate(ctx context.Context, raffleID string) (domain.Raffle, error)
	ListRaffles(ctx context.Context, status domain.RaffleStatus) ([]domain.Raffle, error)
	UpdateRaffleStatus(ctx context.Context, raffleID string, status domain.RaffleStatus, at time.Time) error
	CreatePrize(ctx context.Context, prize domain.Prize) error
	ListPrizes(ctx context.Context, raffleID string) ([]domain.Prize, error)
	CountTickets(ctx context.Context, raffleID string) (int, error)
	GetWinner(ctx context.Context, raffleID string) (domain.Winner, error)
}

type RaffleService struct {
	repo      RaffleRepository
	inventory *InventoryService
	clock     clock.Clock
	logger    *slog.Logger
	publisher EventPublisher
}

type RaffleServiceOption func(*RaffleService)

func WithRaffleLogger(l *slog.Logger) RaffleServiceOption {
	return func(s *RaffleService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithRafflePublisher(p EventPublisher) RaffleServiceOption {
	return func(s *RaffleService) {
		s.publisher = boundedPublisher(p)
	}
}

func NewRaffleService(repo RaffleRepository, inventory *InventoryService, clk clock.Clock, opts ...RaffleServiceOption) *RaffleService {
	svc := &RaffleService{
		repo:      repo,
		inventory: inventory,
		clock:     clk,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type PrizeInput struct {
	Name  string
	Value domain.Money
}

type CreateRaffleInput struct {
	Caller         domain.Caller
	Name           string
	Description    string
	TicketPrice    domain.Money
	TicketCount    int
	DrawDate       time.Time
	PrincipalPrize PrizeInput
}

type RaffleDetails struct {
	Raffle domain.Raffle
	Prizes []domain.Prize
}

// CreateRaffle stores a draft raffle together with its principal prize and
// its full ticket inventory.
func (s *RaffleService) CreateRaffle(ctx context.Context, in CreateRaffleInput) (RaffleDetails, error) {
	if err := in.Caller.Require(domain.RoleAdmin); err != nil {
		return RaffleDetails{}, err
	}
	name := strings.TrimSpace(in.Name)
	prizeName := strings.TrimSpace(in.PrincipalPrize.Name)
	if name == "" || prizeName == "" {
		return RaffleDetails{}, domain.ErrNameRequired
	}
	if in.TicketPrice <= 0 {
		return RaffleDetails{}, domain.ErrInvalidPrice
	}
	if in.PrincipalPrize.Value < 0 {
		return RaffleDetails{}, domain.ErrInvalidPrizeValue
	}
	if in.TicketCount <= 0 || in.TicketCount > s.inventory.MaxTickets() {
		return RaffleDetails{}, domain.ErrInvalidTicketCount
	}
	// Selling out must be representable, so no purchase total can overflow.
	if _, err := in.TicketPrice.Times(in.TicketCount); err != nil {
		return RaffleDetails{}, domain.ErrPriceTooHigh
	}
	now := s.clock.Now()
	if !in.DrawDate.After(now) {
		return RaffleDetails{}, domain.ErrInvalidDrawDate
	}

	raffle := domain.Raffle{
		ID:          newID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		TicketPrice: in.TicketPrice,
		TicketCount: in.TicketCount,
		DrawDate:    in.DrawDate.UTC(),
		Status:      domain.RaffleStatusDraft,
		CreatedBy:   in.Caller.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	prize := domain.Prize{
		ID:        newID(),
		RaffleID:  raffle.ID,
		Name:      prizeName,
		Value:     in.PrincipalPrize.Value,
		Kind:      domain.PrizeKindPrincipal,
		Place:     1,
		CreatedAt: now,
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateRaffle(txCtx, raffle); err != nil {
			return err
		}
		if err := s.repo.CreatePrize(txCtx, prize); err != nil {
			return err
		}
		_, err := s.inventory.CreateTickets(txCtx, raffle.ID, raffle.TicketCount)
		return err
	})
	if err != nil {
		return RaffleDetails{}, err
	}

	s.logger.InfoContext(ctx, "raffle created",
		"raffle_id", raffle.ID,
		"tickets", raffle.TicketCount,
		"price", raffle.TicketPrice.String(),
		"created_by", raffle.CreatedBy,
	)
	return RaffleDetails{Raffle: raffle, Prizes: []domain.Prize{prize}}, nil
}

// AddPrize attaches a secondary prize. Places follow creation order.
func (s *RaffleService) AddPrize(ctx context.Context, caller domain.Caller, raffleID string, in PrizeInput) (domain.Prize, error) {
	if err := caller.Require(domain.RoleAdmin); err != nil {
		return domain.Prize{}, err
	}
	if raffleID == "" {
		return domain.Prize{}, domain.ErrInvalidID
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Prize{}, domain.ErrNameRequired
	}
	if in.Value < 0 {
		return domain.Prize{}, domain.ErrInvalidPrizeValue
	}

	var prize domain.Prize
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		raffle, err := s.repo.GetRaffleForUpdate(txCtx, raffleID)
		if err != nil {
			return err
		}
		if raffle.Status != domain.RaffleStatusDraft && raffle.Status != domain.RaffleStatusActive {
			return domain.ErrPrizesLocked
		}
		prizes, err := s.repo.ListPrizes(txCtx, raffleID)
		if err != nil {
			return err
		}
		prize = domain.Prize{
			ID:        newID(),
			RaffleID:  raffleID,
			Name:      name,
			Value:     in.Value,
			Kind:      domain.PrizeKindSecondary,
			Place:     len(prizes) + 1,
			CreatedAt: s.clock.Now(),
		}
		return s.repo.CreatePrize(txCtx, prize)
	})
	if err != nil {
		return domain.Prize{}, err
	}
	return prize, nil
}

// Activate opens a draft raffle for sales. The raffle needs tickets and a
// principal prize.
func (s *RaffleService) Activate(ctx context.Context, caller domain.Caller, raffleID string) (domain.Raffle, error) {
	return s.transition(ctx, caller, raffleID, domain.RaffleStatusDraft, domain.RaffleStatusActive, func(txCtx context.Context, r domain.Raffle) error {
		count, err := s.repo.CountTickets(txCtx, r.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrRaffleNotReady
		}
		prizes, err := s.repo.ListPrizes(txCtx, r.ID)
		if err != nil {
			return err
		}
		for _, p := range prizes {
			if p.Kind == domain.PrizeKindPrincipal {
				return nil
			}
		}
		return domain.ErrRaffleNotReady
	})
}

// Close stops sales on an active raffle.
func (s *RaffleService) Close(ctx context.Context, caller domain.Caller, raffleID string) (domain.Raffle, error) {
	return s.transition(ctx, caller, raffleID, domain.RaffleStatusActive, domain.RaffleStatusClosed, nil)
}

// Reopen resumes sales on a closed raffle that has not been drawn.
func (s *RaffleService) Reopen(ctx context.Context, caller domain.Caller, raffleID string) (domain.Raffle, error) {
	return s.transition(ctx, caller, raffleID, domain.RaffleStatusClosed, domain.RaffleStatusActive, func(txCtx context.Context, r domain.Raffle) error {
		_, err := s.repo.GetWinner(txCtx, r.ID)
		if err == nil {
			return domain.ErrAlreadyDrawn
		}
		if errors.Is(err, domain.ErrWinnerNotFound) {
			return nil
		}
		return err
	})
}

func (s *RaffleService) transition(
	ctx context.Context,
	caller domain.Caller,
	raffleID string,
	from, to domain.RaffleStatus,
	guard func(context.Context, domain.Raffle) error,
) (domain.Raffle, error) {
	if err := caller.Require(domain.RoleAdmin); err != nil {
		return domain.Raffle{}, err
	}
	if raffleID == "" {
		return domain.Raffle{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var updated domain.Raffle
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		raffle, err := s.repo.GetRaffleForUpdate(txCtx, raffleID)
		if err != nil {
			return err
		}
		if raffle.Status != from || !from.CanTransitionTo(to) {
			return domain.ErrIllegalTransition
		}
		if guard != nil {
			if err := guard(txCtx, raffle); err != nil {
				return err
			}
		}
		if err := s.repo.UpdateRaffleStatus(txCtx, raffleID, to, now); err != nil {
			return err
		}
		raffle.Status = to
		raffle.UpdatedAt = now
		updated = raffle
		return nil
	})
	if err != nil {
		return domain.Raffle{}, err
	}

	s.logger.InfoContext(ctx, "raffle status changed",
		"raffle_id", raffleID,
		"from", string(from),
		"to", string(to),
		"by", caller.UserID,
	)
	publishEvent(ctx, s.publisher, s.logger, events.New(events.RaffleStatusChanged, raffleID, now, map[string]any{
		"from": string(from),
		"to":   string(to),
		"by":   caller.UserID,
	}))
	return updated, nil
}

func (s *RaffleService) GetRaffle(ctx context.Context, caller domain.Caller, raffleID string) (RaffleDetails, error) {
	if err := requireAuthenticated(caller); err != nil {
		return RaffleDetails{}, err
	}
	if raffleID == "" {
		return RaffleDetails{}, domain.ErrInvalidID
	}
	raffle, err := s.repo.GetRaffle(ctx, raffleID)
	if err != nil {
		return RaffleDetails{}, err
	}
	prizes, err := s.repo.ListPrizes(ctx, raffleID)
	if err != nil {
		return RaffleDetails{}, err
	}
	return RaffleDetails{Raffle: raffle, Prizes: prizes}, nil
}

// ListRaffles returns raffles newest first. An empty status returns all of them.
func (s *RaffleService) ListRaffles(ctx context.Context, caller domain.Caller, status domain.RaffleStatus) ([]domain.Raffle, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	return s.repo.ListRaffles(ctx, status)
}

func (s *RaffleService) ListPrizes(ctx context.Context, caller domain.Caller, raffleID string) ([]domain.Prize, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	if raffleID == "" {
		return nil, domain.ErrInvalidID
	}
	if _, err := s.repo.GetRaffle(ctx, raffleID); err != nil {
		return nil, err
	}
	return s.repo.ListPrizes(ctx, raffleID)
}

func (s *RaffleService) GetWinner(ctx context.Context, caller domain.Caller, raffleID string) (domain.Winner, error) {
	if err := requireAuthenticated(caller); err != nil {
		return domain.Winner{}, err
	}
	if raffleID == "" {
		return domain.Winner{}, domain.ErrInvalidID
	}
	if _, err := s.repo.GetRaffle(ctx, raffleID); err != nil {
		return domain.Winner{}, err
	}
	return s.repo.GetWinner(ctx, raffleID)
}

func requireAuthenticated(caller domain.Caller) error {
	return caller.Require(domain.RoleParticipant, domain.RoleSeller, domain.RoleAdmin)
}

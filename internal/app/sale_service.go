package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rifas-mx/rifas/internal/clock"
	"github.com/rifas-mx/rifas/internal/domain"
	"github.com/rifas-mx/rifas/internal/events"
	"github.com/rifas-mx/rifas/internal/metrics"
)

var tracer = otel.Tracer("github.com/rifas-mx/rifas/internal/app")

type SaleRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetRaffle(ctx context.Context, raffleID string) (domain.Raffle, error)
	CreateSale(ctx context.Context, sale domain.Sale) error
	GetSale(ctx context.Context, saleID string) (domain.Sale, error)
}

type PaymentGateway interface {
	Capture(ctx context.Context, amount domain.Money, buyerID string) (string, error)
	Void(ctx context.Context, ref string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// SaleService coordinates a purchase: payment capture, sale record and ticket
// flip. No ticket row is locked while the payment call is in flight.
type SaleService struct {
	repo      SaleRepository
	inventory *InventoryService
	payments  PaymentGateway
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher EventPublisher
}

type SaleServiceOption func(*SaleService)

func WithSaleLogger(l *slog.Logger) SaleServiceOption {
	return func(s *SaleService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithSaleMetrics(m *metrics.Metrics) SaleServiceOption {
	return func(s *SaleService) {
		s.metrics = m
	}
}

func WithSalePublisher(p EventPublisher) SaleServiceOption {
	return func(s *SaleService) {
		s.publisher = boundedPublisher(p)
	}
}

func NewSaleService(repo SaleRepository, inventory *InventoryService, payments PaymentGateway, clk clock.Clock, opts ...SaleServiceOption) *SaleService {
	svc := &SaleService{
		repo:      repo,
		inventory: inventory,
		payments:  payments,
		clock:     clk,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type PurchaseInput struct {
	Caller    domain.Caller
	RaffleID  string
	TicketIDs []string
	// SellerID attributes the sale to a seller. Optional. It is taken as
	// given by the buyer (a promoter link or code) and is not checked against
	// the identity provider; it only has to be a well-formed user id other
	// than the buyer's own.
	SellerID string
	// PaymentMethod defaults to card.
	PaymentMethod domain.PaymentMethod
}

// Purchase charges the caller for the selected tickets and marks them sold.
// Either the sale, the sold tickets and the captured payment all exist
// afterwards, or none of them do.
func (s *SaleService) Purchase(ctx context.Context, in PurchaseInput) (sale domain.Sale, err error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "SaleService.Purchase")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, metrics.Outcome(err))
		}
		span.End()
		s.metrics.ObservePurchase(err, len(sale.TicketIDs), time.Since(started))
	}()

	if err := in.Caller.Require(domain.RoleParticipant); err != nil {
		return domain.Sale{}, err
	}
	if in.RaffleID == "" {
		return domain.Sale{}, domain.ErrInvalidID
	}
	ids, err := normalizeSelection(in.TicketIDs)
	if err != nil {
		return domain.Sale{}, err
	}
	if in.SellerID != "" && (!domain.ValidUserID(in.SellerID) || in.SellerID == in.Caller.UserID) {
		return domain.Sale{}, domain.ErrInvalidSellerID
	}
	method := in.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCard
	}
	if !method.Valid() {
		return domain.Sale{}, domain.ErrInvalidPayMethod
	}
	span.SetAttributes(
		attribute.String("raffle.id", in.RaffleID),
		attribute.Int("tickets.count", len(ids)),
	)

	raffle, err := s.repo.GetRaffle(ctx, in.RaffleID)
	if err != nil {
		return domain.Sale{}, err
	}
	if !raffle.AcceptsSales() {
		return domain.Sale{}, domain.ErrRaffleNotActive
	}
	if len(ids) > raffle.TicketCount || len(ids) > s.inventory.MaxTickets() {
		return domain.Sale{}, domain.ErrInvalidTicketCount
	}

	total, err := raffle.TicketPrice.Times(len(ids))
	if err != nil {
		return domain.Sale{}, err
	}
	ref, err := s.payments.Capture(ctx, total, in.Caller.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "payment capture failed",
			"raffle_id", in.RaffleID,
			"buyer_id", in.Caller.UserID,
			"amount", total.String(),
			"error", err,
		)
		return domain.Sale{}, fmt.Errorf("%w: %v", domain.ErrPaymentDeclined, err)
	}

	pending := domain.Sale{
		ID:            newID(),
		RaffleID:      in.RaffleID,
		BuyerID:       in.Caller.UserID,
		SellerID:      in.SellerID,
		PaymentMethod: method,
		PaymentRef:    ref,
		TotalAmount:   total,
		CreatedAt:     s.clock.Now(),
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateSale(txCtx, pending); err != nil {
			return err
		}
		tickets, err := s.inventory.ReserveAndSell(txCtx, ReserveInput{
			RaffleID:  in.RaffleID,
			TicketIDs: ids,
			BuyerID:   in.Caller.UserID,
			SaleID:    pending.ID,
		})
		if err != nil {
			return err
		}
		slices.SortFunc(tickets, func(a, b domain.Ticket) int { return cmp.Compare(a.Number, b.Number) })
		for _, t := range tickets {
			pending.TicketIDs = append(pending.TicketIDs, t.ID)
			pending.TicketNumbers = append(pending.TicketNumbers, t.Number)
		}
		return nil
	})
	if err != nil {
		return domain.Sale{}, s.voidAfterFailure(ctx, pending, err)
	}

	s.inventory.Invalidate(ctx, in.RaffleID)
	s.logger.InfoContext(ctx, "sale completed",
		"sale_id", pending.ID,
		"raffle_id", pending.RaffleID,
		"buyer_id", pending.BuyerID,
		"tickets", pending.TicketNumbers,
		"amount", pending.TotalAmount.String(),
	)
	s.publish(ctx, events.New(events.SaleCompleted, pending.RaffleID, pending.CreatedAt, map[string]any{
		"sale_id":        pending.ID,
		"buyer_id":       pending.BuyerID,
		"seller_id":      pending.SellerID,
		"payment_method": string(pending.PaymentMethod),
		"ticket_numbers": pending.TicketNumbers,
		"total_amount":   pending.TotalAmount.String(),
		"payment_ref":    pending.PaymentRef,
	}))
	return pending, nil
}

// voidAfterFailure reverses the capture of a sale that did not commit. A void
// that itself fails is joined to cause so the caller sees both.
func (s *SaleService) voidAfterFailure(ctx context.Context, pending domain.Sale, cause error) error {
	voidCtx := context.WithoutCancel(ctx)
	voidErr := s.payments.Void(voidCtx, pending.PaymentRef)
	s.metrics.ObserveVoid(voidErr)

	data := map[string]any{
		"payment_ref": pending.PaymentRef,
		"buyer_id":    pending.BuyerID,
		"amount":      pending.TotalAmount.String(),
		"cause":       cause.Error(),
	}
	if voidErr != nil {
		s.logger.ErrorContext(ctx, "payment void failed, manual reconciliation required",
			"payment_ref", pending.PaymentRef,
			"raffle_id", pending.RaffleID,
			"buyer_id", pending.BuyerID,
			"amount", pending.TotalAmount.String(),
			"cause", cause,
			"error", voidErr,
		)
		data["error"] = voidErr.Error()
		s.publish(voidCtx, events.New(events.PaymentVoidFailed, pending.RaffleID, s.clock.Now(), data))
		return errors.Join(cause, fmt.Errorf("void payment %s: %w", pending.PaymentRef, voidErr))
	}

	s.logger.InfoContext(ctx, "payment voided",
		"payment_ref", pending.PaymentRef,
		"raffle_id", pending.RaffleID,
		"cause", cause,
	)
	s.publish(voidCtx, events.New(events.PaymentVoided, pending.RaffleID, s.clock.Now(), data))
	return cause
}

// GetSale returns a sale to its buyer or to an admin.
func (s *SaleService) GetSale(ctx context.Context, caller domain.Caller, saleID string) (domain.Sale, error) {
	if err := caller.Require(domain.RoleParticipant, domain.RoleSeller, domain.RoleAdmin); err != nil {
		return domain.Sale{}, err
	}
	if saleID == "" {
		return domain.Sale{}, domain.ErrInvalidID
	}
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	if caller.Role != domain.RoleAdmin && sale.BuyerID != caller.UserID && sale.SellerID != caller.UserID {
		return domain.Sale{}, domain.ErrNotSaleOwner
	}
	return sale, nil
}

func (s *SaleService) publish(ctx context.Context, ev events.Event) {
	publishEvent(ctx, s.publisher, s.logger, ev)
}

// publishEvent delivers ev after the producing operation committed. Failures
// are logged and never reach the caller.
func publishEvent(ctx context.Context, p EventPublisher, logger *slog.Logger, ev events.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.WarnContext(ctx, "event publish failed", "type", string(ev.Type), "raffle_id", ev.RaffleID, "error", err)
	}
}

// boundedPublisher wraps p so no publish outlives events.DefaultPublishTimeout
// unless p already carries its own bound.
func boundedPublisher(p EventPublisher) EventPublisher {
	if p == nil {
		return nil
	}
	return events.Bounded(p, events.DefaultPublishTimeout)
}

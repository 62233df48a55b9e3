package app

import (
	"context"

	"github.com/rifas-mx/rifas/internal/domain"
)

type LedgerRepository interface {
	// ListLedger returns matching sales newest first.
	ListLedger(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error)
}

// ReportService serves read-only sales projections. It never takes locks.
type ReportService struct {
	repo LedgerRepository
}

func NewReportService(repo LedgerRepository) *ReportService {
	return &ReportService{repo: repo}
}

func (s *ReportService) SalesLedger(ctx context.Context, caller domain.Caller, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	if err := caller.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListLedger(ctx, filter)
}

// SellerSummary aggregates the sales attributed to the calling seller.
func (s *ReportService) SellerSummary(ctx context.Context, caller domain.Caller) (domain.SellerSummary, error) {
	if err := caller.Require(domain.RoleSeller); err != nil {
		return domain.SellerSummary{}, err
	}
	entries, err := s.repo.ListLedger(ctx, domain.LedgerFilter{SellerID: caller.UserID})
	if err != nil {
		return domain.SellerSummary{}, err
	}

	summary := domain.SellerSummary{
		SellerID: caller.UserID,
		Sales:    entries,
	}
	for _, e := range entries {
		summary.SalesCount++
		summary.TicketCount += len(e.TicketNumbers)
		summary.TotalAmount += e.TotalAmount
	}
	return summary, nil
}

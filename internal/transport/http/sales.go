package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rifas-mx/rifas/internal/app"
	"github.com/rifas-mx/rifas/internal/domain"
)

// SaleService is the minimal interface needed by the purchase endpoints.
type SaleService interface {
	Purchase(ctx context.Context, in app.PurchaseInput) (domain.Sale, error)
	GetSale(ctx context.Context, caller domain.Caller, saleID string) (domain.Sale, error)
}

// ReportService is the minimal interface needed by the reporting endpoints.
type ReportService interface {
	SalesLedger(ctx context.Context, caller domain.Caller, filter domain.LedgerFilter) ([]domain.LedgerEntry, error)
	SellerSummary(ctx context.Context, caller domain.Caller) (domain.SellerSummary, error)
}

func HandlePurchase(svc SaleService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req purchaseRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sale, err := svc.Purchase(r.Context(), app.PurchaseInput{
			Caller:        callerFrom(r.Context()),
			RaffleID:      chi.URLParam(r, "raffleID"),
			TicketIDs:     req.TicketIDs,
			SellerID:      req.SellerID,
			PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		})
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSaleResponse(sale))
	}
}

func HandleGetSale(svc SaleService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sale, err := svc.GetSale(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "saleID"))
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toSaleResponse(sale))
	}
}

func HandleSalesLedger(svc ReportService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		entries, err := svc.SalesLedger(r.Context(), callerFrom(r.Context()), domain.LedgerFilter{
			RaffleID: q.Get("raffle_id"),
			SellerID: q.Get("seller_id"),
		})
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toLedgerResponse(entries))
	}
}

func HandleSellerSummary(svc ReportService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.SellerSummary(r.Context(), callerFrom(r.Context()))
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sellerSummaryResponse{
			SellerID:    summary.SellerID,
			SalesCount:  summary.SalesCount,
			TicketCount: summary.TicketCount,
			TotalAmount: summary.TotalAmount,
			Sales:       toLedgerResponse(summary.Sales),
		})
	}
}

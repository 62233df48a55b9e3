package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rifas-mx/rifas/internal/app"
	"github.com/rifas-mx/rifas/internal/domain"
)

// RaffleService is the minimal interface needed by the raffle endpoints.
type RaffleService interface {
	CreateRaffle(ctx context.Context, in app.CreateRaffleInput) (app.RaffleDetails, error)
	AddPrize(ctx context.Context, caller domain.Caller, raffleID string, in app.PrizeInput) (domain.Prize, error)
	Activate(ctx context.Context, caller domain.Caller, raffleID string) (domain.Raffle, error)
	Close(ctx context.Context, caller domain.Caller, raffleID string) (domain.Raffle, error)
	Reopen(ctx context.Context, caller domain.Caller, raffleID string) (domain.Raffle, error)
	GetRaffle(ctx context.Context, caller domain.Caller, raffleID string) (app.RaffleDetails, error)
	ListRaffles(ctx context.Context, caller domain.Caller, status domain.RaffleStatus) ([]domain.Raffle, error)
	GetWinner(ctx context.Context, caller domain.Caller, raffleID string) (domain.Winner, error)
}

// TicketLister lists a raffle's inventory.
type TicketLister interface {
	ListByStatus(ctx context.Context, raffleID string, status domain.TicketStatus) ([]domain.Ticket, error)
}

// Drawer runs the draw of a closed raffle.
type Drawer interface {
	Draw(ctx context.Context, caller domain.Caller, raffleID string) (domain.Winner, error)
}

func HandleCreateRaffle(svc RaffleService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRaffleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		drawDate, err := time.Parse(time.RFC3339, req.DrawDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, errorCodes[domain.ErrInvalidDrawDate], "invalid draw_date format")
			return
		}

		details, err := svc.CreateRaffle(r.Context(), app.CreateRaffleInput{
			Caller:         callerFrom(r.Context()),
			Name:           req.Name,
			Description:    req.Description,
			TicketPrice:    req.TicketPrice,
			TicketCount:    req.TicketCount,
			DrawDate:       drawDate,
			PrincipalPrize: app.PrizeInput{Name: req.PrincipalPrize.Name, Value: req.PrincipalPrize.Value},
		})
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRaffleDetailsResponse(details))
	}
}

func HandleListRaffles(svc RaffleService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := domain.RaffleStatus(r.URL.Query().Get("status"))
		raffles, err := svc.ListRaffles(r.Context(), callerFrom(r.Context()), status)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		resp := make([]raffleResponse, 0, len(raffles))
		for _, raffle := range raffles {
			resp = append(resp, toRaffleResponse(raffle))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleGetRaffle(svc RaffleService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		details, err := svc.GetRaffle(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "raffleID"))
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toRaffleDetailsResponse(details))
	}
}

func HandleAddPrize(svc RaffleService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req prizeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		prize, err := svc.AddPrize(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "raffleID"),
			app.PrizeInput{Name: req.Name, Value: req.Value})
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPrizeResponse(prize))
	}
}

type transitionFunc func(ctx context.Context, caller domain.Caller, raffleID string) (domain.Raffle, error)

// HandleTransition serves the activate, close and reopen actions.
func HandleTransition(fn transitionFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raffle, err := fn(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "raffleID"))
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toRaffleResponse(raffle))
	}
}

func HandleGetWinner(svc RaffleService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		winner, err := svc.GetWinner(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "raffleID"))
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toWinnerResponse(winner))
	}
}

func HandleDraw(svc Drawer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		winner, err := svc.Draw(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "raffleID"))
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toWinnerResponse(winner))
	}
}

func HandleListTickets(svc TicketLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := callerFrom(r.Context())
		if err := caller.Require(domain.RoleParticipant, domain.RoleSeller, domain.RoleAdmin); err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		status := domain.TicketStatus(r.URL.Query().Get("status"))
		tickets, err := svc.ListByStatus(r.Context(), chi.URLParam(r, "raffleID"), status)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}

		resp := make([]ticketResponse, 0, len(tickets))
		for _, t := range tickets {
			tr := ticketResponse{ID: t.ID, Number: t.Number, Status: string(t.Status), SoldAt: t.SoldAt}
			// Owners are visible to admins and to the owner only.
			if caller.Role == domain.RoleAdmin || t.OwnerID == caller.UserID {
				tr.OwnerID = t.OwnerID
			}
			resp = append(resp, tr)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func toWinnerResponse(w domain.Winner) winnerResponse {
	return winnerResponse{
		RaffleID:     w.RaffleID,
		TicketID:     w.TicketID,
		TicketNumber: w.TicketNumber,
		PrizeID:      w.PrizeID,
		UserID:       w.UserID,
		DrawnAt:      w.DrawnAt,
	}
}

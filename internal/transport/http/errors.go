package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/rifas-mx/rifas/internal/domain"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeBodyTooLarge       = "body_too_large"
	codeInvalidArgument    = "invalid_argument"
	codeInvalidState       = "invalid_state"
	codeConflict           = "conflict"
	codePaymentFailed      = "payment_failed"
	codeUnauthenticated    = "unauthenticated"
	codeForbidden          = "forbidden"
	codeInternalError      = "internal_error"
)

// errorCodes names the specific errors clients are expected to branch on.
var errorCodes = map[error]string{
	domain.ErrInvalidID:          "invalid_id",
	domain.ErrNameRequired:       "name_required",
	domain.ErrInvalidPrice:       "invalid_price",
	domain.ErrInvalidPrizeValue:  "invalid_prize_value",
	domain.ErrInvalidTicketCount: "invalid_ticket_count",
	domain.ErrInvalidDrawDate:    "invalid_draw_date",
	domain.ErrInvalidStatus:      "invalid_status",
	domain.ErrEmptySelection:     "empty_selection",
	domain.ErrInvalidAmount:      "invalid_amount",
	domain.ErrAmountOverflow:     "amount_overflow",
	domain.ErrPriceTooHigh:       "price_too_high",
	domain.ErrInvalidSellerID:    "invalid_seller_id",
	domain.ErrInvalidPayMethod:   "invalid_payment_method",
	domain.ErrRaffleNotActive:    "raffle_not_active",
	domain.ErrIllegalTransition:  "illegal_transition",
	domain.ErrRaffleNotReady:     "raffle_not_ready",
	domain.ErrRaffleNotClosed:    "raffle_not_closed",
	domain.ErrNoSoldTickets:      "no_sold_tickets",
	domain.ErrPrizesLocked:       "prizes_locked",
	domain.ErrTicketsUnavailable: "tickets_unavailable",
	domain.ErrAlreadyDrawn:       "already_drawn",
	domain.ErrConcurrentUpdate:   "concurrent_update",
	domain.ErrPaymentDeclined:    "payment_declined",
	domain.ErrRaffleNotFound:     "raffle_not_found",
	domain.ErrSaleNotFound:       "sale_not_found",
	domain.ErrWinnerNotFound:     "winner_not_found",
	domain.ErrRoleNotAllowed:     "role_not_allowed",
	domain.ErrNotSaleOwner:       "not_sale_owner",
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps err to a status by its category. Data integrity and
// unknown errors are logged and never leak their message.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	msg := specificMessage(err)

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func statusFor(err error) (int, string) {
	code := ""
	for target, c := range errorCodes {
		if errors.Is(err, target) {
			code = c
			break
		}
	}

	var status int
	fallback := codeInternalError
	switch domain.Category(err) {
	case domain.ErrInvalidArgument:
		status, fallback = http.StatusBadRequest, codeInvalidArgument
	case domain.ErrUnauthenticated:
		status, fallback = http.StatusUnauthorized, codeUnauthenticated
	case domain.ErrForbidden:
		status, fallback = http.StatusForbidden, codeForbidden
	case domain.ErrNotFound:
		status, fallback = http.StatusNotFound, codeNotFound
	case domain.ErrConflict:
		status, fallback = http.StatusConflict, codeConflict
	case domain.ErrInvalidState:
		status, fallback = http.StatusConflict, codeInvalidState
	case domain.ErrPaymentFailed:
		status, fallback = http.StatusPaymentRequired, codePaymentFailed
	default:
		return http.StatusInternalServerError, codeInternalError
	}
	if code == "" {
		code = fallback
	}
	return status, code
}

// specificMessage returns the user-facing message of the outermost domain
// error in err's chain, dropping any wrapped driver detail.
func specificMessage(err error) string {
	for target := range errorCodes {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	if c := domain.Category(err); c != nil {
		return c.Error()
	}
	return err.Error()
}

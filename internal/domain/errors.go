package domain

import "errors"

// Error categories. Every error returned by the core wraps exactly one of these,
// so callers can branch with errors.Is without knowing the specific cause.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid state")
	ErrConflict        = errors.New("conflict")
	ErrPaymentFailed   = errors.New("payment failed")
	ErrDataIntegrity   = errors.New("data integrity violation")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

var (
	ErrInvalidID          = newError(ErrInvalidArgument, "invalid id")
	ErrNameRequired       = newError(ErrInvalidArgument, "name required")
	ErrInvalidPrice       = newError(ErrInvalidArgument, "ticket price must be positive")
	ErrInvalidPrizeValue  = newError(ErrInvalidArgument, "prize value must not be negative")
	ErrInvalidTicketCount = newError(ErrInvalidArgument, "ticket count out of range")
	ErrInvalidDrawDate    = newError(ErrInvalidArgument, "draw date must be in the future")
	ErrInvalidStatus      = newError(ErrInvalidArgument, "invalid status filter")
	ErrEmptySelection     = newError(ErrInvalidArgument, "at least one ticket must be selected")
	ErrInvalidAmount      = newError(ErrInvalidArgument, "invalid amount")
	ErrAmountOverflow     = newError(ErrInvalidArgument, "amount exceeds the supported range")
	ErrPriceTooHigh       = newError(ErrInvalidArgument, "ticket price times ticket count exceeds the supported range")
	ErrInvalidSellerID    = newError(ErrInvalidArgument, "invalid seller id")
	ErrInvalidPayMethod   = newError(ErrInvalidArgument, "unknown payment method")

	ErrRaffleNotActive   = newError(ErrInvalidState, "raffle is not accepting sales")
	ErrIllegalTransition = newError(ErrInvalidState, "illegal raffle status transition")
	ErrRaffleNotReady    = newError(ErrInvalidState, "raffle needs tickets and a prize before activation")
	ErrRaffleNotClosed   = newError(ErrInvalidState, "raffle must be closed before the draw")
	ErrNoSoldTickets     = newError(ErrInvalidState, "raffle has no sold tickets to draw from")
	ErrPrizesLocked      = newError(ErrInvalidState, "prizes can only change while the raffle is draft or active")

	ErrTicketsUnavailable = newError(ErrConflict, "tickets no longer available, choose others")
	ErrAlreadyDrawn       = newError(ErrConflict, "raffle already has a winner")
	ErrConcurrentUpdate   = newError(ErrConflict, "concurrent update, retry the operation")

	ErrPaymentDeclined = newError(ErrPaymentFailed, "payment could not be completed, no tickets were reserved")

	ErrOwnerMissing          = newError(ErrDataIntegrity, "sold ticket has no owner")
	ErrPrincipalPrizeMissing = newError(ErrDataIntegrity, "raffle has no principal prize")

	ErrRaffleNotFound  = newError(ErrNotFound, "raffle not found")
	ErrSaleNotFound    = newError(ErrNotFound, "sale not found")
	ErrWinnerNotFound  = newError(ErrNotFound, "winner not drawn yet")
	ErrPaymentNotFound = newError(ErrNotFound, "payment not found")

	ErrRoleNotAllowed = newError(ErrForbidden, "role not allowed for this operation")
	ErrNotSaleOwner   = newError(ErrForbidden, "sale belongs to another buyer")
)

type categorizedError struct {
	category error
	msg      string
}

func newError(category error, msg string) error {
	return &categorizedError{category: category, msg: msg}
}

func (e *categorizedError) Error() string { return e.msg }

func (e *categorizedError) Unwrap() error { return e.category }

// Category returns the category sentinel err belongs to, or nil when err is
// not a domain error.
func Category(err error) error {
	for _, c := range []error{
		ErrInvalidArgument,
		ErrInvalidState,
		ErrConflict,
		ErrPaymentFailed,
		ErrDataIntegrity,
		ErrNotFound,
		ErrForbidden,
		ErrUnauthenticated,
	} {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}

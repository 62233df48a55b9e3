package domain

import "time"

// PaymentMethod is how the buyer paid. Every method is captured through the
// payment gateway.
type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodCash, PaymentMethodTransfer:
		return true
	}
	return false
}

// Sale records one committed purchase covering one or more tickets of a single raffle.
type Sale struct {
	ID            string
	RaffleID      string
	BuyerID       string
	SellerID      string
	PaymentMethod PaymentMethod
	PaymentRef    string
	TotalAmount   Money
	TicketIDs     []string
	TicketNumbers []int
	CreatedAt     time.Time
}

// LedgerEntry is the reporting projection of a sale.
type LedgerEntry struct {
	SaleID        string
	RaffleID      string
	RaffleName    string
	BuyerID       string
	SellerID      string
	PaymentMethod PaymentMethod
	PaymentRef    string
	TotalAmount   Money
	TicketNumbers []int
	CreatedAt     time.Time
}

// LedgerFilter narrows a ledger query. Empty fields match everything.
type LedgerFilter struct {
	RaffleID string
	SellerID string
}

// SellerSummary aggregates the sales attributed to one seller.
type SellerSummary struct {
	SellerID    string
	SalesCount  int
	TicketCount int
	TotalAmount Money
	Sales       []LedgerEntry
}

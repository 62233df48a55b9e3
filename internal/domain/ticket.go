package domain

import "time"

type TicketStatus string

const (
	TicketStatusAvailable TicketStatus = "available"
	TicketStatusSold      TicketStatus = "sold"
)

func (s TicketStatus) Valid() bool {
	return s == TicketStatusAvailable || s == TicketStatusSold
}

// Ticket is one numbered unit of participation. OwnerID and SaleID are set
// together with Status when the ticket is sold.
type Ticket struct {
	ID       string
	RaffleID string
	Number   int
	Status   TicketStatus
	OwnerID  string
	SaleID   string
	SoldAt   *time.Time
}

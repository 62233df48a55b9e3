package domain

import "time"

type PrizeKind string

const (
	PrizeKindPrincipal PrizeKind = "principal"
	PrizeKindSecondary PrizeKind = "secondary"
)

// Prize is awarded by a raffle. The principal prize always holds place 1.
type Prize struct {
	ID        string
	RaffleID  string
	Name      string
	Value     Money
	Kind      PrizeKind
	Place     int
	CreatedAt time.Time
}

// Winner is the single, durable outcome of a raffle's draw.
type Winner struct {
	ID           string
	RaffleID     string
	TicketID     string
	TicketNumber int
	PrizeID      string
	UserID       string
	DrawnAt      time.Time
}

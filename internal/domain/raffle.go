package domain

import "time"

type RaffleStatus string

const (
	RaffleStatusDraft     RaffleStatus = "draft"
	RaffleStatusActive    RaffleStatus = "active"
	RaffleStatusClosed    RaffleStatus = "closed"
	RaffleStatusFinalized RaffleStatus = "finalized"
)

var raffleTransitions = map[RaffleStatus][]RaffleStatus{
	RaffleStatusDraft:  {RaffleStatusActive},
	RaffleStatusActive: {RaffleStatusClosed},
	RaffleStatusClosed: {RaffleStatusActive, RaffleStatusFinalized},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Finalized is terminal.
func (s RaffleStatus) CanTransitionTo(next RaffleStatus) bool {
	for _, allowed := range raffleTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s RaffleStatus) Valid() bool {
	switch s {
	case RaffleStatusDraft, RaffleStatusActive, RaffleStatusClosed, RaffleStatusFinalized:
		return true
	}
	return false
}

// Raffle is a priced, time-boxed draw over a fixed set of numbered tickets.
type Raffle struct {
	ID          string
	Name        string
	Description string
	TicketPrice Money
	TicketCount int
	DrawDate    time.Time
	Status      RaffleStatus
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AcceptsSales reports whether purchases may run against the raffle.
func (r Raffle) AcceptsSales() bool {
	return r.Status == RaffleStatusActive
}

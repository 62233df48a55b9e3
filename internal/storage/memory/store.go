// Package memory is an in-process store implementing every repository the
// services need. A single mutex serializes transactions, which gives the same
// observable isolation the Postgres row locks give for one raffle. Calls made
// inside WithTx must use the context passed to fn.
//
// WithTx copies the whole state (every raffle and ticket) under the global
// mutex and swaps the copy in on commit, so each transaction costs O(total
// tickets) and transactions never run in parallel. It is a development and
// test driver; production runs on the postgres driver.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rifas-mx/rifas/internal/domain"
)

type txKey struct{}

type state struct {
	raffles map[string]domain.Raffle
	prizes  map[string][]domain.Prize
	tickets map[string]domain.Ticket
	// numbers maps raffle id to ticket ids ordered by ticket number.
	numbers map[string][]string
	sales   map[string]domain.Sale
	winners map[string]domain.Winner
}

func newState() *state {
	return &state{
		raffles: make(map[string]domain.Raffle),
		prizes:  make(map[string][]domain.Prize),
		tickets: make(map[string]domain.Ticket),
		numbers: make(map[string][]string),
		sales:   make(map[string]domain.Sale),
		winners: make(map[string]domain.Winner),
	}
}

func (s *state) clone() *state {
	c := &state{
		raffles: maps.Clone(s.raffles),
		prizes:  make(map[string][]domain.Prize, len(s.prizes)),
		tickets: maps.Clone(s.tickets),
		numbers: make(map[string][]string, len(s.numbers)),
		sales:   maps.Clone(s.sales),
		winners: maps.Clone(s.winners),
	}
	for k, v := range s.prizes {
		c.prizes[k] = slices.Clone(v)
	}
	for k, v := range s.numbers {
		c.numbers[k] = slices.Clone(v)
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

// WithTx runs fn against a private copy of the state and publishes the copy
// only when fn succeeds. Nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txState(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, work)); err != nil {
		return err
	}
	s.st = work
	return nil
}

func txState(ctx context.Context) *state {
	st, _ := ctx.Value(txKey{}).(*state)
	return st
}

func (s *Store) read(ctx context.Context, fn func(*state) error) error {
	if st := txState(ctx); st != nil {
		return fn(st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) write(ctx context.Context, fn func(*state) error) error {
	return s.WithTx(ctx, func(txCtx context.Context) error {
		return fn(txState(txCtx))
	})
}

func (s *Store) CreateRaffle(ctx context.Context, raffle domain.Raffle) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.raffles[raffle.ID]; ok {
			return domain.ErrConcurrentUpdate
		}
		st.raffles[raffle.ID] = raffle
		return nil
	})
}

func (s *Store) GetRaffle(ctx context.Context, raffleID string) (domain.Raffle, error) {
	var r domain.Raffle
	err := s.read(ctx, func(st *state) error {
		var ok bool
		r, ok = st.raffles[raffleID]
		if !ok {
			return domain.ErrRaffleNotFound
		}
		return nil
	})
	return r, err
}

// GetRaffleForUpdate and GetRaffleForSale are plain reads: the store mutex
// already serializes every transaction.
func (s *Store) GetRaffleForUpdate(ctx context.Context, raffleID string) (domain.Raffle, error) {
	return s.GetRaffle(ctx, raffleID)
}

func (s *Store) GetRaffleForSale(ctx context.Context, raffleID string) (domain.Raffle, error) {
	return s.GetRaffle(ctx, raffleID)
}

func (s *Store) ListRaffles(ctx context.Context, status domain.RaffleStatus) ([]domain.Raffle, error) {
	var out []domain.Raffle
	err := s.read(ctx, func(st *state) error {
		for _, r := range st.raffles {
			if status == "" || r.Status == status {
				out = append(out, r)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Raffle) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, err
}

func (s *Store) UpdateRaffleStatus(ctx context.Context, raffleID string, status domain.RaffleStatus, at time.Time) error {
	return s.write(ctx, func(st *state) error {
		r, ok := st.raffles[raffleID]
		if !ok {
			return domain.ErrRaffleNotFound
		}
		r.Status = status
		r.UpdatedAt = at
		st.raffles[raffleID] = r
		return nil
	})
}

func (s *Store) CreatePrize(ctx context.Context, prize domain.Prize) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.raffles[prize.RaffleID]; !ok {
			return domain.ErrRaffleNotFound
		}
		if prize.Kind == domain.PrizeKindPrincipal {
			for _, p := range st.prizes[prize.RaffleID] {
				if p.Kind == domain.PrizeKindPrincipal {
					return domain.ErrConcurrentUpdate
				}
			}
		}
		st.prizes[prize.RaffleID] = append(st.prizes[prize.RaffleID], prize)
		return nil
	})
}

func (s *Store) ListPrizes(ctx context.Context, raffleID string) ([]domain.Prize, error) {
	var out []domain.Prize
	err := s.read(ctx, func(st *state) error {
		out = slices.Clone(st.prizes[raffleID])
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Prize) int { return cmp.Compare(a.Place, b.Place) })
	return out, err
}

func (s *Store) InsertTickets(ctx context.Context, tickets []domain.Ticket) error {
	return s.write(ctx, func(st *state) error {
		taken := make(map[string]map[int]bool)
		for _, t := range tickets {
			if _, ok := st.raffles[t.RaffleID]; !ok {
				return domain.ErrRaffleNotFound
			}
			if _, ok := st.tickets[t.ID]; ok {
				return domain.ErrConcurrentUpdate
			}
			numbers, ok := taken[t.RaffleID]
			if !ok {
				numbers = make(map[int]bool)
				for _, id := range st.numbers[t.RaffleID] {
					numbers[st.tickets[id].Number] = true
				}
				taken[t.RaffleID] = numbers
			}
			if numbers[t.Number] {
				return domain.ErrConcurrentUpdate
			}
			numbers[t.Number] = true
			st.tickets[t.ID] = t
			st.numbers[t.RaffleID] = append(st.numbers[t.RaffleID], t.ID)
		}
		for raffleID := range taken {
			slices.SortFunc(st.numbers[raffleID], func(a, b string) int {
				return cmp.Compare(st.tickets[a].Number, st.tickets[b].Number)
			})
		}
		return nil
	})
}

func (s *Store) CountTickets(ctx context.Context, raffleID string) (int, error) {
	var n int
	err := s.read(ctx, func(st *state) error {
		n = len(st.numbers[raffleID])
		return nil
	})
	return n, err
}

func (s *Store) ListTickets(ctx context.Context, raffleID string, status domain.TicketStatus) ([]domain.Ticket, error) {
	out := []domain.Ticket{}
	err := s.read(ctx, func(st *state) error {
		if _, ok := st.raffles[raffleID]; !ok {
			return domain.ErrRaffleNotFound
		}
		for _, id := range st.numbers[raffleID] {
			t := st.tickets[id]
			if status == "" || t.Status == status {
				out = append(out, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTicketsForUpdate returns the tickets that exist among ticketIDs, ordered
// by id. Unknown ids are skipped.
func (s *Store) GetTicketsForUpdate(ctx context.Context, ticketIDs []string) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := s.read(ctx, func(st *state) error {
		for _, id := range ticketIDs {
			if t, ok := st.tickets[id]; ok {
				out = append(out, t)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Ticket) int { return cmp.Compare(a.ID, b.ID) })
	return out, err
}

// MarkTicketsSold flips the available tickets among ticketIDs and reports how
// many changed.
func (s *Store) MarkTicketsSold(ctx context.Context, saleID, ownerID string, ticketIDs []string, at time.Time) (int, error) {
	var n int
	err := s.write(ctx, func(st *state) error {
		if saleID != "" {
			if _, ok := st.sales[saleID]; !ok {
				return domain.ErrSaleNotFound
			}
		}
		for _, id := range ticketIDs {
			t, ok := st.tickets[id]
			if !ok || t.Status != domain.TicketStatusAvailable {
				continue
			}
			soldAt := at
			t.Status = domain.TicketStatusSold
			t.OwnerID = ownerID
			t.SaleID = saleID
			t.SoldAt = &soldAt
			st.tickets[id] = t
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.raffles[sale.RaffleID]; !ok {
			return domain.ErrRaffleNotFound
		}
		if _, ok := st.sales[sale.ID]; ok {
			return domain.ErrConcurrentUpdate
		}
		if sale.PaymentMethod == "" {
			sale.PaymentMethod = domain.PaymentMethodCard
		}
		if !sale.PaymentMethod.Valid() {
			return domain.ErrInvalidPayMethod
		}
		sale.TicketIDs = nil
		sale.TicketNumbers = nil
		st.sales[sale.ID] = sale
		return nil
	})
}

func (s *Store) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	var sale domain.Sale
	err := s.read(ctx, func(st *state) error {
		var ok bool
		sale, ok = st.sales[saleID]
		if !ok {
			return domain.ErrSaleNotFound
		}
		sale.TicketIDs, sale.TicketNumbers = st.saleTickets(sale)
		return nil
	})
	return sale, err
}

func (st *state) saleTickets(sale domain.Sale) ([]string, []int) {
	var (
		ids     []string
		numbers []int
	)
	for _, id := range st.numbers[sale.RaffleID] {
		t := st.tickets[id]
		if t.SaleID == sale.ID {
			ids = append(ids, t.ID)
			numbers = append(numbers, t.Number)
		}
	}
	return ids, numbers
}

func (s *Store) ListLedger(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	out := []domain.LedgerEntry{}
	err := s.read(ctx, func(st *state) error {
		for _, sale := range st.sales {
			if filter.RaffleID != "" && sale.RaffleID != filter.RaffleID {
				continue
			}
			if filter.SellerID != "" && sale.SellerID != filter.SellerID {
				continue
			}
			_, numbers := st.saleTickets(sale)
			out = append(out, domain.LedgerEntry{
				SaleID:        sale.ID,
				RaffleID:      sale.RaffleID,
				RaffleName:    st.raffles[sale.RaffleID].Name,
				BuyerID:       sale.BuyerID,
				SellerID:      sale.SellerID,
				PaymentMethod: sale.PaymentMethod,
				PaymentRef:    sale.PaymentRef,
				TotalAmount:   sale.TotalAmount,
				TicketNumbers: numbers,
				CreatedAt:     sale.CreatedAt,
			})
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.LedgerEntry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.SaleID, b.SaleID)
	})
	return out, err
}

func (s *Store) GetWinner(ctx context.Context, raffleID string) (domain.Winner, error) {
	var w domain.Winner
	err := s.read(ctx, func(st *state) error {
		var ok bool
		w, ok = st.winners[raffleID]
		if !ok {
			return domain.ErrWinnerNotFound
		}
		return nil
	})
	return w, err
}

func (s *Store) CreateWinner(ctx context.Context, winner domain.Winner) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.winners[winner.RaffleID]; ok {
			return domain.ErrAlreadyDrawn
		}
		st.winners[winner.RaffleID] = winner
		return nil
	})
}

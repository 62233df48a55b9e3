package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rifas-mx/rifas/internal/domain"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) domain.Raffle {
	t.Helper()
	r := domain.Raffle{ID: "raffle-1", Name: "Rifa", TicketPrice: 5000, TicketCount: 3, Status: domain.RaffleStatusActive, CreatedAt: now}
	require.NoError(t, s.CreateRaffle(context.Background(), r))
	require.NoError(t, s.InsertTickets(context.Background(), []domain.Ticket{
		{ID: "t-3", RaffleID: r.ID, Number: 3, Status: domain.TicketStatusAvailable},
		{ID: "t-1", RaffleID: r.ID, Number: 1, Status: domain.TicketStatusAvailable},
		{ID: "t-2", RaffleID: r.ID, Number: 2, Status: domain.TicketStatusAvailable},
	}))
	return r
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	r := seed(t, s)
	boom := errors.New("boom")

	err := s.WithTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, s.CreateSale(ctx, domain.Sale{ID: "sale-1", RaffleID: r.ID, BuyerID: "b"}))
		n, err := s.MarkTicketsSold(ctx, "sale-1", "b", []string{"t-1"}, now)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	sold, err := s.ListTickets(context.Background(), r.ID, domain.TicketStatusSold)
	require.NoError(t, err)
	require.Empty(t, sold)
	_, err = s.GetSale(context.Background(), "sale-1")
	require.ErrorIs(t, err, domain.ErrSaleNotFound)
}

func TestStore_WithTxCommitsAndNests(t *testing.T) {
	s := NewStore()
	r := seed(t, s)

	err := s.WithTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, s.CreateSale(ctx, domain.Sale{ID: "sale-1", RaffleID: r.ID, BuyerID: "b", CreatedAt: now}))
		return s.WithTx(ctx, func(inner context.Context) error {
			_, err := s.MarkTicketsSold(inner, "sale-1", "b", []string{"t-2", "t-3"}, now)
			return err
		})
	})
	require.NoError(t, err)

	sale, err := s.GetSale(context.Background(), "sale-1")
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, sale.TicketNumbers)
	require.Equal(t, []string{"t-2", "t-3"}, sale.TicketIDs)
}

func TestStore_Tickets(t *testing.T) {
	s := NewStore()
	r := seed(t, s)
	ctx := context.Background()

	all, err := s.ListTickets(ctx, r.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []int{1, 2, 3}, []int{all[0].Number, all[1].Number, all[2].Number})

	_, err = s.ListTickets(ctx, "missing", "")
	require.ErrorIs(t, err, domain.ErrRaffleNotFound)

	err = s.InsertTickets(ctx, []domain.Ticket{{ID: "t-dup", RaffleID: r.ID, Number: 2}})
	require.ErrorIs(t, err, domain.ErrConcurrentUpdate)

	locked, err := s.GetTicketsForUpdate(ctx, []string{"t-3", "nope", "t-1"})
	require.NoError(t, err)
	require.Len(t, locked, 2)
	require.Equal(t, "t-1", locked[0].ID)

	n, err := s.MarkTicketsSold(ctx, "", "b", []string{"t-1", "t-1"}, now)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = s.MarkTicketsSold(ctx, "", "c", []string{"t-1"}, now)
	require.NoError(t, err)
	require.Zero(t, n, "sold tickets are never resold")

	count, err := s.CountTickets(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestStore_WinnerIsUnique(t *testing.T) {
	s := NewStore()
	r := seed(t, s)
	ctx := context.Background()

	_, err := s.GetWinner(ctx, r.ID)
	require.ErrorIs(t, err, domain.ErrWinnerNotFound)

	require.NoError(t, s.CreateWinner(ctx, domain.Winner{ID: "w-1", RaffleID: r.ID}))
	require.ErrorIs(t, s.CreateWinner(ctx, domain.Winner{ID: "w-2", RaffleID: r.ID}), domain.ErrAlreadyDrawn)

	w, err := s.GetWinner(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, "w-1", w.ID)
}

func TestStore_CancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithTx(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestStore_SalePaymentMethod(t *testing.T) {
	s := NewStore()
	r := seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.CreateSale(ctx, domain.Sale{ID: "sale-1", RaffleID: r.ID, BuyerID: "b", CreatedAt: now}))
	got, err := s.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentMethodCard, got.PaymentMethod)

	require.NoError(t, s.CreateSale(ctx, domain.Sale{ID: "sale-2", RaffleID: r.ID, BuyerID: "b", PaymentMethod: domain.PaymentMethodCash, CreatedAt: now}))
	ledger, err := s.ListLedger(ctx, domain.LedgerFilter{RaffleID: r.ID})
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	methods := []domain.PaymentMethod{ledger[0].PaymentMethod, ledger[1].PaymentMethod}
	require.ElementsMatch(t, []domain.PaymentMethod{domain.PaymentMethodCard, domain.PaymentMethodCash}, methods)

	err = s.CreateSale(ctx, domain.Sale{ID: "sale-3", RaffleID: r.ID, BuyerID: "b", PaymentMethod: "bitcoin"})
	require.ErrorIs(t, err, domain.ErrInvalidPayMethod)
}

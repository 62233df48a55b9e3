package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rifas-mx/rifas/internal/domain"
)

const raffleColumns = `id, name, description, ticket_price_cents, ticket_count, draw_date, status, created_by, created_at, updated_at`

type RaffleRepository struct {
	base
}

func NewRaffleRepository(pool *pgxpool.Pool) *RaffleRepository {
	return &RaffleRepository{base{pool: pool}}
}

func (r *RaffleRepository) CreateRaffle(ctx context.Context, raffle domain.Raffle) error {
	const stmt = `
INSERT INTO raffles (id, name, description, ticket_price_cents, ticket_count, draw_date, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.exec(ctx, stmt,
		raffle.ID,
		raffle.Name,
		raffle.Description,
		raffle.TicketPrice,
		raffle.TicketCount,
		raffle.DrawDate,
		raffle.Status,
		raffle.CreatedBy,
		raffle.CreatedAt,
		raffle.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConcurrentUpdate
		}
		return translate(err, "create raffle")
	}
	return nil
}

func (r *RaffleRepository) ListRaffles(ctx context.Context, status domain.RaffleStatus) ([]domain.Raffle, error) {
	query := `SELECT ` + raffleColumns + ` FROM raffles`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "list raffles")
	}
	raffles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Raffle, error) {
		return scanRaffle(row)
	})
	if err != nil {
		return nil, translate(err, "list raffles")
	}
	return raffles, nil
}

func (r *RaffleRepository) CreatePrize(ctx context.Context, prize domain.Prize) error {
	const stmt = `
INSERT INTO prizes (id, raffle_id, name, value_cents, kind, place, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt,
		prize.ID,
		prize.RaffleID,
		prize.Name,
		prize.Value,
		prize.Kind,
		prize.Place,
		prize.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrRaffleNotFound
		}
		if isUniqueViolation(err) {
			return domain.ErrConcurrentUpdate
		}
		return translate(err, "create prize")
	}
	return nil
}

func (r *RaffleRepository) CountTickets(ctx context.Context, raffleID string) (int, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE raffle_id = $1`, raffleID).Scan(&n); err != nil {
		return 0, translate(err, "count tickets")
	}
	return n, nil
}

// Reads and writes below are shared by every repository that embeds base.

func (b base) GetRaffle(ctx context.Context, raffleID string) (domain.Raffle, error) {
	return b.getRaffle(ctx, raffleID, "")
}

// GetRaffleForUpdate locks the raffle row exclusively until the transaction ends.
func (b base) GetRaffleForUpdate(ctx context.Context, raffleID string) (domain.Raffle, error) {
	return b.getRaffle(ctx, raffleID, " FOR UPDATE")
}

func (b base) getRaffle(ctx context.Context, raffleID, lock string) (domain.Raffle, error) {
	row := b.queryRow(ctx, `SELECT `+raffleColumns+` FROM raffles WHERE id = $1`+lock, raffleID)
	raffle, err := scanRaffle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Raffle{}, domain.ErrRaffleNotFound
		}
		return domain.Raffle{}, translate(err, "get raffle")
	}
	return raffle, nil
}

func (b base) UpdateRaffleStatus(ctx context.Context, raffleID string, status domain.RaffleStatus, at time.Time) error {
	tag, err := b.exec(ctx, `UPDATE raffles SET status = $2, updated_at = $3 WHERE id = $1`, raffleID, status, at)
	if err != nil {
		return translate(err, "update raffle status")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRaffleNotFound
	}
	return nil
}

func (b base) ListPrizes(ctx context.Context, raffleID string) ([]domain.Prize, error) {
	const query = `
SELECT id, raffle_id, name, value_cents, kind, place, created_at
FROM prizes
WHERE raffle_id = $1
ORDER BY place`

	rows, err := b.query(ctx, query, raffleID)
	if err != nil {
		return nil, translate(err, "list prizes")
	}
	prizes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Prize, error) {
		var p domain.Prize
		err := row.Scan(&p.ID, &p.RaffleID, &p.Name, &p.Value, &p.Kind, &p.Place, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, translate(err, "list prizes")
	}
	return prizes, nil
}

func (b base) GetWinner(ctx context.Context, raffleID string) (domain.Winner, error) {
	const query = `
SELECT w.id, w.raffle_id, w.ticket_id, t.number, w.prize_id, w.user_id, w.drawn_at
FROM winners w
JOIN tickets t ON t.id = w.ticket_id
WHERE w.raffle_id = $1`

	var w domain.Winner
	err := b.queryRow(ctx, query, raffleID).
		Scan(&w.ID, &w.RaffleID, &w.TicketID, &w.TicketNumber, &w.PrizeID, &w.UserID, &w.DrawnAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Winner{}, domain.ErrWinnerNotFound
		}
		return domain.Winner{}, translate(err, "get winner")
	}
	return w, nil
}

// ListTickets returns the raffle's tickets ordered by number. An empty status
// returns all of them.
func (b base) ListTickets(ctx context.Context, raffleID string, status domain.TicketStatus) ([]domain.Ticket, error) {
	var exists bool
	if err := b.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM raffles WHERE id = $1)`, raffleID).Scan(&exists); err != nil {
		return nil, translate(err, "list tickets")
	}
	if !exists {
		return nil, domain.ErrRaffleNotFound
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE raffle_id = $1`
	args := []any{raffleID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY number`

	rows, err := b.query(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "list tickets")
	}
	tickets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Ticket, error) {
		return scanTicket(row)
	})
	if err != nil {
		return nil, translate(err, "list tickets")
	}
	return tickets, nil
}

func scanRaffle(row pgx.Row) (domain.Raffle, error) {
	var r domain.Raffle
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Description,
		&r.TicketPrice,
		&r.TicketCount,
		&r.DrawDate,
		&r.Status,
		&r.CreatedBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return domain.Raffle{}, err
	}
	return r, nil
}

package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rifas-mx/rifas/internal/domain"
)

const ticketColumns = `id, raffle_id, number, status, COALESCE(owner_id, ''), COALESCE(sale_id::text, ''), sold_at`

type TicketRepository struct {
	base
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{base{pool: pool}}
}

// InsertTickets bulk-loads tickets with COPY.
func (r *TicketRepository) InsertTickets(ctx context.Context, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	rows := make([][]any, len(tickets))
	for i, t := range tickets {
		id, err := toUUID(t.ID)
		if err != nil {
			return err
		}
		raffleID, err := toUUID(t.RaffleID)
		if err != nil {
			return err
		}
		rows[i] = []any{id, raffleID, int32(t.Number), string(t.Status)}
	}

	_, err := r.copyFrom(ctx,
		pgx.Identifier{"tickets"},
		[]string{"id", "raffle_id", "number", "status"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return domain.ErrRaffleNotFound
		case isUniqueViolation(err):
			return domain.ErrConcurrentUpdate
		}
		return translate(err, "insert tickets")
	}
	return nil
}

// GetRaffleForSale share-locks the raffle row so its status cannot change
// while a sale is committing.
func (r *TicketRepository) GetRaffleForSale(ctx context.Context, raffleID string) (domain.Raffle, error) {
	return r.getRaffle(ctx, raffleID, " FOR SHARE")
}

// GetTicketsForUpdate locks the existing tickets among ticketIDs in id order.
// Unknown ids are skipped.
func (r *TicketRepository) GetTicketsForUpdate(ctx context.Context, ticketIDs []string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`

	ids, err := toUUIDs(ticketIDs)
	if err != nil {
		return nil, err
	}
	rows, err := r.query(ctx, query, ids)
	if err != nil {
		return nil, translate(err, "lock tickets")
	}
	tickets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Ticket, error) {
		return scanTicket(row)
	})
	if err != nil {
		return nil, translate(err, "lock tickets")
	}
	return tickets, nil
}

// MarkTicketsSold flips the available tickets among ticketIDs and reports how
// many changed. An empty saleID leaves the sale link unset.
func (r *TicketRepository) MarkTicketsSold(ctx context.Context, saleID, ownerID string, ticketIDs []string, at time.Time) (int, error) {
	const stmt = `
UPDATE tickets
SET status = 'sold', owner_id = NULLIF($2, ''), sale_id = NULLIF($1, '')::uuid, sold_at = $3
WHERE id = ANY($4::uuid[]) AND status = 'available'`

	ids, err := toUUIDs(ticketIDs)
	if err != nil {
		return 0, err
	}
	tag, err := r.exec(ctx, stmt, saleID, ownerID, at, ids)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return 0, domain.ErrSaleNotFound
		case isCheckViolation(err):
			return 0, domain.ErrOwnerMissing
		}
		return 0, translate(err, "mark tickets sold")
	}
	return int(tag.RowsAffected()), nil
}

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(&t.ID, &t.RaffleID, &t.Number, &t.Status, &t.OwnerID, &t.SaleID, &t.SoldAt)
	if err != nil {
		return domain.Ticket{}, err
	}
	return t, nil
}

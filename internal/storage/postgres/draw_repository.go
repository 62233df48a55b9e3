package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rifas-mx/rifas/internal/domain"
)

type DrawRepository struct {
	base
}

func NewDrawRepository(pool *pgxpool.Pool) *DrawRepository {
	return &DrawRepository{base{pool: pool}}
}

// CreateWinner records the outcome of a draw. The unique raffle_id column
// turns a concurrent second draw into ErrAlreadyDrawn.
func (r *DrawRepository) CreateWinner(ctx context.Context, winner domain.Winner) error {
	const stmt = `
INSERT INTO winners (id, raffle_id, ticket_id, prize_id, user_id, drawn_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt,
		winner.ID,
		winner.RaffleID,
		winner.TicketID,
		winner.PrizeID,
		winner.UserID,
		winner.DrawnAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.ErrAlreadyDrawn
		case isForeignKeyViolation(err):
			return domain.ErrRaffleNotFound
		}
		return translate(err, "create winner")
	}
	return nil
}

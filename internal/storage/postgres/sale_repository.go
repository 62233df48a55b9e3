package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rifas-mx/rifas/internal/domain"
)

// SaleRepository stores sales and serves the sales ledger.
type SaleRepository struct {
	base
}

func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{base{pool: pool}}
}

func (r *SaleRepository) CreateSale(ctx context.Context, sale domain.Sale) error {
	const stmt = `
INSERT INTO sales (id, raffle_id, buyer_id, seller_id, payment_method, payment_ref, total_cents, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), COALESCE(NULLIF($5, ''), 'card'), $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		sale.ID,
		sale.RaffleID,
		sale.BuyerID,
		sale.SellerID,
		string(sale.PaymentMethod),
		sale.PaymentRef,
		sale.TotalAmount,
		sale.CreatedAt,
	)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return domain.ErrRaffleNotFound
		case isUniqueViolation(err):
			return domain.ErrConcurrentUpdate
		case isCheckViolation(err):
			return domain.ErrInvalidPayMethod
		}
		return translate(err, "create sale")
	}
	return nil
}

func (r *SaleRepository) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	const query = `
SELECT s.id, s.raffle_id, s.buyer_id, COALESCE(s.seller_id, ''), s.payment_method, s.payment_ref, s.total_cents, s.created_at,
	COALESCE(array_agg(t.id::text ORDER BY t.number) FILTER (WHERE t.id IS NOT NULL), '{}'),
	COALESCE(array_agg(t.number ORDER BY t.number) FILTER (WHERE t.id IS NOT NULL), '{}')
FROM sales s
LEFT JOIN tickets t ON t.sale_id = s.id
WHERE s.id = $1
GROUP BY s.id`

	var s domain.Sale
	err := r.queryRow(ctx, query, saleID).Scan(
		&s.ID,
		&s.RaffleID,
		&s.BuyerID,
		&s.SellerID,
		&s.PaymentMethod,
		&s.PaymentRef,
		&s.TotalAmount,
		&s.CreatedAt,
		&s.TicketIDs,
		&s.TicketNumbers,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Sale{}, domain.ErrSaleNotFound
		}
		return domain.Sale{}, translate(err, "get sale")
	}
	return s, nil
}

// ListLedger returns sales joined with their raffle name and ticket numbers,
// newest first. It takes no locks.
func (r *SaleRepository) ListLedger(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	const query = `
SELECT s.id, s.raffle_id, r.name, s.buyer_id, COALESCE(s.seller_id, ''), s.payment_method, s.payment_ref, s.total_cents, s.created_at,
	COALESCE(array_agg(t.number ORDER BY t.number) FILTER (WHERE t.id IS NOT NULL), '{}')
FROM sales s
JOIN raffles r ON r.id = s.raffle_id
LEFT JOIN tickets t ON t.sale_id = s.id
WHERE ($1 = '' OR s.raffle_id::text = $1)
	AND ($2 = '' OR s.seller_id = $2)
GROUP BY s.id, r.name
ORDER BY s.created_at DESC, s.id`

	rows, err := r.query(ctx, query, filter.RaffleID, filter.SellerID)
	if err != nil {
		return nil, translate(err, "list ledger")
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LedgerEntry, error) {
		var e domain.LedgerEntry
		err := row.Scan(
			&e.SaleID,
			&e.RaffleID,
			&e.RaffleName,
			&e.BuyerID,
			&e.SellerID,
			&e.PaymentMethod,
			&e.PaymentRef,
			&e.TotalAmount,
			&e.CreatedAt,
			&e.TicketNumbers,
		)
		return e, err
	})
	if err != nil {
		return nil, translate(err, "list ledger")
	}
	return entries, nil
}

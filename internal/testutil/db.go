package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/rifas-mx/rifas/internal/domain"
	"github.com/rifas-mx/rifas/migrations"
)

const testDBLockID int64 = 472_019_002

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// NewTestPool connects to TEST_DATABASE_URL, or to a throwaway Postgres
// container when the variable is unset. The test is skipped when neither is
// reachable. Tests sharing the database are serialized with an advisory lock.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = containerURL(t)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	cfg.MaxConns = 8

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skipping Postgres integration tests: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
	})

	lockTestDB(t, pool)

	return pool
}

// containerURL starts one Postgres container per test binary. Ryuk removes it
// when the process exits.
func containerURL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration tests in short mode")
	}
	containerOnce.Do(func() {
		ctx := context.Background()
		ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("rifas"),
			tcpostgres.WithUsername("rifas"),
			tcpostgres.WithPassword("rifas"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			containerErr = err
			return
		}
		containerDSN, containerErr = ctr.ConnectionString(ctx, "sslmode=disable")
		if containerErr != nil {
			_ = testcontainers.TerminateContainer(ctr)
		}
	})
	if containerErr != nil {
		t.Skipf("skipping Postgres integration tests: %v", containerErr)
	}
	return containerDSN
}

func ApplyMigrations(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := migrations.Apply(ctx, pool, nil); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
}

func TruncateAll(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(ctx, `TRUNCATE winners, tickets, sales, prizes, raffles RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

// InsertRaffle stores a raffle in the given status with a principal prize and
// count available tickets. It returns the raffle id and the ticket ids indexed
// by number.
func InsertRaffle(t *testing.T, ctx context.Context, pool *pgxpool.Pool, status domain.RaffleStatus, priceCents int64, count int) (string, map[int]string) {
	t.Helper()

	var raffleID string
	if err := pool.QueryRow(ctx, `
INSERT INTO raffles (name, ticket_price_cents, ticket_count, draw_date, status)
VALUES ('Rifa de prueba', $1, $2, NOW() + INTERVAL '30 days', $3)
RETURNING id`,
		priceCents, max(count, 1), status,
	).Scan(&raffleID); err != nil {
		t.Fatalf("insert raffle: %v", err)
	}

	if _, err := pool.Exec(ctx, `
INSERT INTO prizes (raffle_id, name, value_cents, kind, place)
VALUES ($1, 'Auto', 25000000, 'principal', 1)`, raffleID); err != nil {
		t.Fatalf("insert prize: %v", err)
	}

	rows, err := pool.Query(ctx, `
INSERT INTO tickets (raffle_id, number)
SELECT $1, n FROM generate_series(1, $2::int) AS n
RETURNING number, id`, raffleID, count)
	if err != nil {
		t.Fatalf("insert tickets: %v", err)
	}
	defer rows.Close()

	ids := make(map[int]string, count)
	for rows.Next() {
		var (
			number int
			id     string
		)
		if err := rows.Scan(&number, &id); err != nil {
			t.Fatalf("scan ticket: %v", err)
		}
		ids[number] = id
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("insert tickets: %v", err)
	}
	return raffleID, ids
}

func lockTestDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, testDBLockID); err != nil {
		conn.Release()
		t.Fatalf("acquire test lock: %v", err)
	}

	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, testDBLockID)
		conn.Release()
	})
}

package replay

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists payment claims in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS consumed_payments (
    payment_tx_id TEXT PRIMARY KEY,
    user_account TEXT NOT NULL,
    mint_tx_id TEXT,
    consumed_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore connects using the DSN and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Consume relies on the primary key for atomicity: the insert either claims
// the payment or hits the conflict and reports it as already consumed.
func (p *PostgresStore) Consume(ctx context.Context, paymentTxID, userAccount string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
INSERT INTO consumed_payments (payment_tx_id, user_account, consumed_at)
VALUES ($1, $2, $3)
ON CONFLICT (payment_tx_id) DO NOTHING
`, paymentTxID, userAccount, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PostgresStore) Complete(ctx context.Context, paymentTxID, mintTxID string) error {
	tag, err := p.pool.Exec(ctx, `
UPDATE consumed_payments SET mint_tx_id = $2 WHERE payment_tx_id = $1
`, paymentTxID, mintTxID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("payment not claimed")
	}
	return nil
}

func (p *PostgresStore) Release(ctx context.Context, paymentTxID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM consumed_payments WHERE payment_tx_id = $1`, paymentTxID)
	return err
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

package txscope

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PgxClient runs transactions directly on a pgx pool.
type PgxClient struct {
	pool    TxBeginner
	options pgx.TxOptions
}

func NewPgxClient(pool TxBeginner) *PgxClient {
	return &PgxClient{pool: pool}
}

// WithIsolation returns a copy of the client that opens transactions at level.
func (c *PgxClient) WithIsolation(level pgx.TxIsoLevel) *PgxClient {
	cp := *c
	cp.options.IsoLevel = level
	return &cp
}

func (c *PgxClient) RunInTransaction(ctx context.Context, work func(ctx context.Context, tx pgx.Tx) error, opts TxOptions) error {
	txCtx, cancel := withTimeout(ctx, opts)
	defer cancel()

	return pgx.BeginTxFunc(txCtx, c.pool, c.options, func(tx pgx.Tx) error {
		return work(txCtx, tx)
	})
}

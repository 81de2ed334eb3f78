package txscope

import (
	"context"

	"gorm.io/gorm"
)

// GormClient runs transactions through gorm. The handle is a *gorm.DB bound to the
// open transaction and to the transaction context.
type GormClient struct {
	db *gorm.DB
}

func NewGormClient(db *gorm.DB) *GormClient {
	return &GormClient{db: db}
}

func (c *GormClient) RunInTransaction(ctx context.Context, work func(ctx context.Context, tx *gorm.DB) error, opts TxOptions) error {
	txCtx, cancel := withTimeout(ctx, opts)
	defer cancel()

	// database/sql rolls the transaction back on its own once txCtx is done, so a
	// timeout aborts the transaction even if work never returns in time.
	return c.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		return work(txCtx, tx)
	})
}

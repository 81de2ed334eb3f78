package repository

import (
	"context"

	"clubmedia/internal/txscope"

	"gorm.io/gorm"
)

// conn returns the transaction of the current request when one is open, otherwise
// the pool. Every repository call goes through it so all writes of a request share
// the request's transaction.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := txscope.HandleFromContext[*gorm.DB](ctx); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

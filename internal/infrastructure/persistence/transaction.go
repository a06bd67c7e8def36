package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/hausverwaltung/backend/internal/domain/shared"
)

// txKey carries the open transaction through the context so repositories
// join it transparently.
type txKey struct{}

// dbFromContext returns the transaction carried by ctx, or fallback when the
// call is not running inside one.
func dbFromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback
}

func withTxContext(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GormTransactionManager implements shared.TransactionManager on a GORM
// connection. A nested Do runs inside the ambient transaction as a
// savepoint, so an inner failure rolls back only the inner writes while the
// outer unit stays intact.
type GormTransactionManager struct {
	db *gorm.DB
}

// NewGormTransactionManager creates a GormTransactionManager
func NewGormTransactionManager(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{db: db}
}

// Do runs fn inside a database transaction carried by the context
func (m *GormTransactionManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return dbFromContext(ctx, m.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(withTxContext(ctx, tx))
	})
}

// Ensure GormTransactionManager implements TransactionManager
var _ shared.TransactionManager = (*GormTransactionManager)(nil)

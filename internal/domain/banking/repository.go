package banking

import (
	"context"

	"github.com/google/uuid"
)

// BankTransactionRepository persists bank transactions
type BankTransactionRepository interface {
	// FindByIDForTenant loads a transaction scoped to a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*BankTransaction, error)

	// FindUnmatchedCredits returns credit transactions without a match link,
	// oldest booking date first
	FindUnmatchedCredits(ctx context.Context, tenantID uuid.UUID) ([]*BankTransaction, error)

	// Save persists a transaction
	Save(ctx context.Context, tx *BankTransaction) error

	// SaveWithLock persists with optimistic locking; returns
	// shared.ErrConcurrencyConflict when the stored version moved on
	SaveWithLock(ctx context.Context, tx *BankTransaction) error
}

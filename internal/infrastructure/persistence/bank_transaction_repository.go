package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hausverwaltung/backend/internal/domain/banking"
	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/infrastructure/persistence/models"
	"github.com/hausverwaltung/backend/internal/infrastructure/persistence/tenant"
)

// GormBankTransactionRepository implements banking.BankTransactionRepository using GORM
type GormBankTransactionRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, transactional outbox
}

// NewGormBankTransactionRepository creates a new GormBankTransactionRepository
func NewGormBankTransactionRepository(db *gorm.DB) *GormBankTransactionRepository {
	return &GormBankTransactionRepository{db: db}
}

// SetOutboxEventSaver enables transactional event publishing for bank
// transaction changes.
func (r *GormBankTransactionRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// conn returns the ambient transaction when one is running, the pooled
// connection otherwise.
func (r *GormBankTransactionRepository) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db).WithContext(ctx)
}

// FindByIDForTenant loads a transaction scoped to a tenant
func (r *GormBankTransactionRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*banking.BankTransaction, error) {
	var model models.BankTransactionModel
	if err := r.conn(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindUnmatchedCredits returns unlinked credit transactions, oldest booking first
func (r *GormBankTransactionRepository) FindUnmatchedCredits(ctx context.Context, tenantID uuid.UUID) ([]*banking.BankTransaction, error) {
	var txModels []models.BankTransactionModel
	if err := r.conn(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("matched_invoice_id IS NULL AND amount > 0").
		Order("booked_on ASC, id ASC").
		Find(&txModels).Error; err != nil {
		return nil, err
	}
	transactions := make([]*banking.BankTransaction, len(txModels))
	for i := range txModels {
		transactions[i] = txModels[i].ToDomain()
	}
	return transactions, nil
}

// Save persists a transaction
func (r *GormBankTransactionRepository) Save(ctx context.Context, tx *banking.BankTransaction) error {
	model := models.BankTransactionModelFromDomain(tx)
	events := tx.GetDomainEvents()

	if r.outboxSaver == nil || len(events) == 0 {
		return r.conn(ctx).Save(model).Error
	}

	err := r.conn(ctx).Transaction(func(dbTx *gorm.DB) error {
		if err := dbTx.Save(model).Error; err != nil {
			return err
		}
		return r.outboxSaver.SaveEvents(ctx, dbTx, events...)
	})
	if err != nil {
		return err
	}
	tx.ClearDomainEvents()
	return nil
}

// SaveWithLock persists with optimistic locking.
// Only the match link mutates after import; the explicit column list lets a
// nil link (unlink) reach the database, which a struct update would skip.
func (r *GormBankTransactionRepository) SaveWithLock(ctx context.Context, tx *banking.BankTransaction) error {
	model := models.BankTransactionModelFromDomain(tx)
	events := tx.GetDomainEvents()

	if r.outboxSaver == nil || len(events) == 0 {
		return r.lockedUpdate(r.conn(ctx), tx, model)
	}

	err := r.conn(ctx).Transaction(func(dbTx *gorm.DB) error {
		if err := r.lockedUpdate(dbTx, tx, model); err != nil {
			return err
		}
		return r.outboxSaver.SaveEvents(ctx, dbTx, events...)
	})
	if err != nil {
		return err
	}
	tx.ClearDomainEvents()
	return nil
}

func (r *GormBankTransactionRepository) lockedUpdate(db *gorm.DB, tx *banking.BankTransaction, model *models.BankTransactionModel) error {
	result := db.
		Model(model).
		Where("id = ? AND version = ?", tx.ID, tx.Version-1).
		Select("matched_lessee_id", "matched_invoice_id", "matched_at", "version", "updated_at").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure GormBankTransactionRepository implements BankTransactionRepository
var _ banking.BankTransactionRepository = (*GormBankTransactionRepository)(nil)

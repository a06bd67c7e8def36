package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hausverwaltung/backend/internal/domain/ledger"
	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/infrastructure/persistence/models"
	"github.com/hausverwaltung/backend/internal/infrastructure/persistence/tenant"
)

// GormPostingRepository implements ledger.PostingRepository using GORM.
// The unique index on (tenant_id, source_type, source_id) created during
// migration is what makes Save safe against concurrent replays.
type GormPostingRepository struct {
	db *gorm.DB
}

// NewGormPostingRepository creates a new GormPostingRepository
func NewGormPostingRepository(db *gorm.DB) *GormPostingRepository {
	return &GormPostingRepository{db: db}
}

// conn returns the ambient transaction when one is running, the pooled
// connection otherwise.
func (r *GormPostingRepository) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db).WithContext(ctx)
}

// FindByIDForTenant finds a posting by ID for a specific tenant
func (r *GormPostingRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Posting, error) {
	var model models.PostingModel
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

// FindBySource returns the posting recorded for a source event
func (r *GormPostingRepository) FindBySource(ctx context.Context, tenantID uuid.UUID, sourceType ledger.SourceType, sourceID uuid.UUID) (*ledger.Posting, error) {
	var model models.PostingModel
	if err := r.conn(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		First(&model, "source_type = ? AND source_id = ?", sourceType, sourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsForSource reports whether a posting was already recorded for the source event
func (r *GormPostingRepository) ExistsForSource(ctx context.Context, tenantID uuid.UUID, sourceType ledger.SourceType, sourceID uuid.UUID) (bool, error) {
	var count int64
	if err := r.conn(ctx).
		Model(&models.PostingModel{}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save persists a posting. Postings are immutable, so this is always an
// insert; a unique violation on the source index surfaces as
// shared.ErrAlreadyExists so callers can fall back to the existing posting.
func (r *GormPostingRepository) Save(ctx context.Context, posting *ledger.Posting) error {
	model := models.PostingModelFromDomain(posting)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// isUniqueViolation detects a Postgres unique constraint violation. The
// driver translates it to gorm.ErrDuplicatedKey when error translation is
// enabled; the string check covers raw pgconn errors.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}

var _ ledger.PostingRepository = (*GormPostingRepository)(nil)

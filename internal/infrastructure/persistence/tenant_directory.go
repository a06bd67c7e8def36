package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hausverwaltung/backend/internal/infrastructure/persistence/models"
)

// TenantDirectory derives the set of active tenants from the data itself.
// There is no separate tenant registry; a tenant is active as soon as it
// has at least one invoice.
type TenantDirectory struct {
	db *gorm.DB
}

// NewTenantDirectory creates a TenantDirectory
func NewTenantDirectory(db *gorm.DB) *TenantDirectory {
	return &TenantDirectory{db: db}
}

// ActiveTenantIDs returns the distinct tenant IDs that own invoices.
func (d *TenantDirectory) ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := d.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Distinct("tenant_id").
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

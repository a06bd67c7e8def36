package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hausverwaltung/backend/internal/domain/billing"
	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/infrastructure/persistence/models"
	"github.com/hausverwaltung/backend/internal/infrastructure/persistence/tenant"
)

// payableStatuses are the invoice states that still carry an outstanding
// balance and accept payments.
var payableStatuses = []billing.InvoiceStatus{
	billing.InvoiceStatusOpen,
	billing.InvoiceStatusPartiallyPaid,
	billing.InvoiceStatusOverdue,
}

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, transactional outbox
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// SetOutboxEventSaver enables transactional event publishing. When set, the
// invoice's pending domain events are written to the outbox in the same
// transaction as the invoice itself.
func (r *GormInvoiceRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// conn returns the ambient transaction when one is running, the pooled
// connection otherwise.
func (r *GormInvoiceRepository) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db).WithContext(ctx)
}

// FindByIDForTenant finds an invoice by ID for a specific tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
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

// FindByNumber finds an invoice by its number for a tenant
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.conn(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("invoice_number = ?", invoiceNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds invoices for a tenant with filtering
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.conn(ctx).Model(&models.InvoiceModel{}).
		Scopes(tenant.TenantScope(tenantID))
	query = r.applyInvoiceFilter(query, filter)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// FindOutstandingByLessee finds all payable invoices for a lessee, oldest
// period first. The stable ordering matters: the allocator consumes the
// result front to back.
func (r *GormInvoiceRepository) FindOutstandingByLessee(ctx context.Context, tenantID, lesseeID uuid.UUID) ([]*billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.conn(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("lessee_id = ? AND status IN ?", lesseeID, payableStatuses).
		Order("period ASC, created_at ASC, id ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]*billing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = invoiceModels[i].ToDomain()
	}
	return invoices, nil
}

// FindOutstanding finds all payable invoices for a tenant across lessees
func (r *GormInvoiceRepository) FindOutstanding(ctx context.Context, tenantID uuid.UUID) ([]*billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.conn(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("status IN ?", payableStatuses).
		Order("period ASC, created_at ASC, id ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]*billing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = invoiceModels[i].ToDomain()
	}
	return invoices, nil
}

// FindOverdue finds invoices past the due-date cutoff with an outstanding balance
func (r *GormInvoiceRepository) FindOverdue(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]*billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.conn(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("due_date < ? AND status IN ?", cutoff, payableStatuses).
		Order("due_date ASC, id ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]*billing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = invoiceModels[i].ToDomain()
	}
	return invoices, nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	events := invoice.GetDomainEvents()

	if r.outboxSaver == nil || len(events) == 0 {
		return r.conn(ctx).Save(model).Error
	}

	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(model).Error; err != nil {
			return err
		}
		return r.outboxSaver.SaveEvents(ctx, tx, events...)
	})
	if err != nil {
		return err
	}
	invoice.ClearDomainEvents()
	return nil
}

// SaveWithLock saves with optimistic locking
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	events := invoice.GetDomainEvents()

	if r.outboxSaver == nil || len(events) == 0 {
		return r.lockedUpdate(r.conn(ctx), invoice, model)
	}

	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.lockedUpdate(tx, invoice, model); err != nil {
			return err
		}
		return r.outboxSaver.SaveEvents(ctx, tx, events...)
	})
	if err != nil {
		return err
	}
	invoice.ClearDomainEvents()
	return nil
}

func (r *GormInvoiceRepository) lockedUpdate(db *gorm.DB, invoice *billing.Invoice, model *models.InvoiceModel) error {
	result := db.
		Model(model).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// CountByStatus counts invoices by status for a tenant
func (r *GormInvoiceRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID, status billing.InvoiceStatus) (int64, error) {
	var count int64
	if err := r.conn(ctx).
		Model(&models.InvoiceModel{}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyInvoiceFilter applies filter options to the query
func (r *GormInvoiceRepository) applyInvoiceFilter(query *gorm.DB, filter billing.InvoiceFilter) *gorm.DB {
	if filter.LesseeID != nil {
		query = query.Where("lessee_id = ?", *filter.LesseeID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PeriodFrom != nil {
		query = query.Where("period >= ?", *filter.PeriodFrom)
	}
	if filter.PeriodTo != nil {
		query = query.Where("period <= ?", *filter.PeriodTo)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", *filter.DueBefore)
	}

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	// Apply ordering against the whitelist
	orderBy := ValidateSortField(filter.OrderBy, InvoiceSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	return query
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)

package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hausverwaltung/backend/internal/domain/shared"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	LesseeID   *uuid.UUID     // Filter by lessee
	Status     *InvoiceStatus // Filter by status
	PeriodFrom *string        // Filter by period range start (YYYY-MM)
	PeriodTo   *string        // Filter by period range end (YYYY-MM)
	DueBefore  *time.Time     // Filter by due date
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByIDForTenant finds an invoice by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByNumber finds an invoice by its number for a tenant
	FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*Invoice, error)

	// FindAllForTenant finds invoices for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// FindOutstandingByLessee finds all open, partially paid or overdue
	// invoices for a lessee, ordered ascending by period
	FindOutstandingByLessee(ctx context.Context, tenantID, lesseeID uuid.UUID) ([]*Invoice, error)

	// FindOutstanding finds all invoices of a tenant with an outstanding
	// balance, across lessees
	FindOutstanding(ctx context.Context, tenantID uuid.UUID) ([]*Invoice, error)

	// FindOverdue finds invoices past the given due-date cutoff with an
	// outstanding balance
	FindOverdue(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]*Invoice, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check).
	// Returns shared.ErrConcurrencyConflict when the version check fails.
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// CountByStatus counts invoices by status for a tenant
	CountByStatus(ctx context.Context, tenantID uuid.UUID, status InvoiceStatus) (int64, error)
}

// PaymentRepository defines the interface for payment persistence.
// Payments are immutable; the only update is the one-time recording of
// allocations.
type PaymentRepository interface {
	// FindByIDForTenant finds a payment by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindByLessee finds payments for a lessee
	FindByLessee(ctx context.Context, tenantID, lesseeID uuid.UUID) ([]Payment, error)

	// Save creates a payment or records its allocations
	Save(ctx context.Context, payment *Payment) error
}

package billing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
)

// Event type constants for the billing domain
const (
	EventTypeInvoiceCreated       = "billing.invoice.created"
	EventTypeInvoicePartiallyPaid = "billing.invoice.partially_paid"
	EventTypeInvoicePaid          = "billing.invoice.paid"
	EventTypeInvoiceCancelled     = "billing.invoice.cancelled"
	EventTypePaymentAllocated     = "billing.payment.allocated"
)

const invoiceAggregateType = "Invoice"

// InvoiceCreatedEvent is raised when an invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string             `json:"invoice_number"`
	LesseeID      uuid.UUID          `json:"lessee_id"`
	Period        valueobject.Period `json:"period"`
	GrossTotal    decimal.Decimal    `json:"gross_total"`
}

// NewInvoiceCreatedEvent creates an InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, invoiceAggregateType, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		LesseeID:        inv.LesseeID,
		Period:          inv.Period,
		GrossTotal:      inv.GrossTotal,
	}
}

// InvoicePartiallyPaidEvent is raised when a payment covers part of an invoice
type InvoicePartiallyPaidEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	AppliedAmount decimal.Decimal `json:"applied_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Outstanding   decimal.Decimal `json:"outstanding"`
}

// NewInvoicePartiallyPaidEvent creates an InvoicePartiallyPaidEvent
func NewInvoicePartiallyPaidEvent(inv *Invoice, paymentID uuid.UUID, applied valueobject.Money) *InvoicePartiallyPaidEvent {
	return &InvoicePartiallyPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePartiallyPaid, invoiceAggregateType, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		PaymentID:       paymentID,
		AppliedAmount:   applied.RoundCents().Amount(),
		PaidAmount:      inv.PaidAmount,
		Outstanding:     inv.Outstanding(),
	}
}

// InvoicePaidEvent is raised when an invoice becomes fully paid
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	GrossTotal    decimal.Decimal `json:"gross_total"`
}

// NewInvoicePaidEvent creates an InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice, paymentID uuid.UUID) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, invoiceAggregateType, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		PaymentID:       paymentID,
		GrossTotal:      inv.GrossTotal,
	}
}

// InvoiceCancelledEvent is raised when an invoice is cancelled
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string `json:"invoice_number"`
	CancelReason  string `json:"cancel_reason"`
}

// NewInvoiceCancelledEvent creates an InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, invoiceAggregateType, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		CancelReason:    inv.CancelReason,
	}
}

// PaymentAllocatedEvent is raised when a payment has been allocated to invoices
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	PaymentNumber string          `json:"payment_number"`
	LesseeID      uuid.UUID       `json:"lessee_id"`
	TotalApplied  decimal.Decimal `json:"total_applied"`
	Unapplied     decimal.Decimal `json:"unapplied"`
	InvoiceCount  int             `json:"invoice_count"`
}

// NewPaymentAllocatedEvent creates a PaymentAllocatedEvent
func NewPaymentAllocatedEvent(p *Payment, totalApplied, unapplied decimal.Decimal, invoiceCount int) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentAllocated, "Payment", p.ID, p.TenantID),
		PaymentNumber:   p.PaymentNumber,
		LesseeID:        p.LesseeID,
		TotalApplied:    totalApplied,
		Unapplied:       unapplied,
		InvoiceCount:    invoiceCount,
	}
}

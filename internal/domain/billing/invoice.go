package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
)

// InvoiceStatus represents the status of a lessee invoice
type InvoiceStatus string

const (
	InvoiceStatusOpen          InvoiceStatus = "OPEN"           // Unpaid, outstanding balance > 0
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID" // Partially paid, 0 < outstanding < gross
	InvoiceStatusPaid          InvoiceStatus = "PAID"           // Fully paid, outstanding = 0
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"        // Past due date with outstanding balance
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"      // Cancelled before any payment
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusOpen, InvoiceStatusPartiallyPaid, InvoiceStatusPaid,
		InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the invoice is in a terminal state
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// CanApplyPayment returns true if payments can be applied in this status
func (s InvoiceStatus) CanApplyPayment() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusPartiallyPaid || s == InvoiceStatusOverdue
}

// Invoice is the aggregate root for a periodic lessee invoice (rent plus
// operating cost prepayments for one year/month period).
//
// Lifecycle: created at period generation; paid amount and status are mutated
// only by the payment allocator or by explicit cancellation. Once fully paid
// the invoice is immutable except for reversal flows, which are handled by
// external collaborators.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber string                `json:"invoice_number"`
	LesseeID      uuid.UUID             `json:"lessee_id"`
	LesseeName    string                `json:"lessee_name"`
	Period        valueobject.Period    `json:"period"`
	GrossTotal    decimal.Decimal       `json:"gross_total"`
	PaidAmount    decimal.Decimal       `json:"paid_amount"`
	Status        InvoiceStatus         `json:"status"`
	DueDate       time.Time             `json:"due_date"`
	PaidAt        *time.Time            `json:"paid_at"`
	CancelledAt   *time.Time            `json:"cancelled_at"`
	CancelReason  string                `json:"cancel_reason"`
}

// NewInvoice creates a new invoice for a lessee and period
func NewInvoice(
	tenantID uuid.UUID,
	invoiceNumber string,
	lesseeID uuid.UUID,
	lesseeName string,
	period valueobject.Period,
	grossTotal valueobject.Money,
	dueDate time.Time,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if lesseeID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LESSEE", "Lessee ID cannot be empty")
	}
	if lesseeName == "" {
		return nil, shared.NewDomainError("INVALID_LESSEE_NAME", "Lessee name cannot be empty")
	}
	if period.IsZero() {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Invoice period is required")
	}
	if grossTotal.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Gross total must be positive")
	}
	if dueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Due date is required")
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		LesseeID:            lesseeID,
		LesseeName:          lesseeName,
		Period:              period,
		GrossTotal:          grossTotal.RoundCents().Amount(),
		PaidAmount:          decimal.Zero,
		Status:              InvoiceStatusOpen,
		DueDate:             dueDate,
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// Outstanding returns the unpaid remainder (gross minus paid).
// Terminal invoices have no outstanding balance.
func (inv *Invoice) Outstanding() decimal.Decimal {
	if inv.Status == InvoiceStatusCancelled {
		return decimal.Zero
	}
	return inv.GrossTotal.Sub(inv.PaidAmount)
}

// OutstandingMoney returns the outstanding balance as Money
func (inv *Invoice) OutstandingMoney() valueobject.Money {
	return valueobject.NewMoneyEUR(inv.Outstanding())
}

// ApplyPayment applies a payment amount to the invoice.
// Only the payment allocator calls this; the amount must not exceed the
// outstanding balance.
func (inv *Invoice) ApplyPayment(amount valueobject.Money, paymentID uuid.UUID) error {
	if !inv.Status.CanApplyPayment() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot apply payment to invoice in %s status", inv.Status))
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if amount.RoundCents().Amount().GreaterThan(inv.Outstanding()) {
		return shared.NewDomainError("EXCEEDS_OUTSTANDING",
			fmt.Sprintf("Payment amount %s exceeds outstanding amount %s",
				amount.StringFixed(2), inv.Outstanding().StringFixed(2)))
	}
	if paymentID == uuid.Nil {
		return shared.NewDomainError("INVALID_PAYMENT", "Payment ID cannot be empty")
	}

	inv.PaidAmount = inv.PaidAmount.Add(amount.RoundCents().Amount())

	if inv.PaidAmount.GreaterThanOrEqual(inv.GrossTotal) {
		now := time.Now()
		inv.Status = InvoiceStatusPaid
		inv.PaidAt = &now
		inv.AddDomainEvent(NewInvoicePaidEvent(inv, paymentID))
	} else {
		inv.Status = InvoiceStatusPartiallyPaid
		inv.AddDomainEvent(NewInvoicePartiallyPaidEvent(inv, paymentID, amount))
	}

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// Cancel cancels the invoice. Only invoices without payments can be
// cancelled; partially paid invoices require the external reversal flow.
func (inv *Invoice) Cancel(reason string) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel invoice in %s status", inv.Status))
	}
	if inv.PaidAmount.GreaterThan(decimal.Zero) {
		return shared.NewDomainError("HAS_PAYMENTS", "Cannot cancel invoice with existing payments")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}

	now := time.Now()
	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv))

	return nil
}

// MarkOverdue transitions an open invoice past its due date to OVERDUE.
// The dunning level itself is never stored; it is recomputed from days
// overdue on every read.
func (inv *Invoice) MarkOverdue(now time.Time) {
	if !inv.Status.CanApplyPayment() || inv.Status == InvoiceStatusOverdue {
		return
	}
	if now.After(inv.DueDate) && inv.Outstanding().GreaterThan(decimal.Zero) {
		inv.Status = InvoiceStatusOverdue
		inv.UpdatedAt = now
		inv.IncrementVersion()
	}
}

// IsOverdue returns true if the invoice is past due with an outstanding balance
func (inv *Invoice) IsOverdue(now time.Time) bool {
	if inv.Status.IsTerminal() {
		return false
	}
	return now.After(inv.DueDate) && inv.Outstanding().GreaterThan(decimal.Zero)
}

// DaysOverdue returns whole days past the due date (0 if not overdue)
func (inv *Invoice) DaysOverdue(now time.Time) int {
	if !inv.IsOverdue(now) {
		return 0
	}
	return int(now.Sub(inv.DueDate).Hours() / 24)
}

// GetGrossTotalMoney returns the gross total as Money
func (inv *Invoice) GetGrossTotalMoney() valueobject.Money {
	return valueobject.NewMoneyEUR(inv.GrossTotal)
}

// GetPaidAmountMoney returns the paid amount as Money
func (inv *Invoice) GetPaidAmountMoney() valueobject.Money {
	return valueobject.NewMoneyEUR(inv.PaidAmount)
}

// IsPaid returns true if the invoice is fully paid
func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

// IsCancelled returns true if the invoice is cancelled
func (inv *Invoice) IsCancelled() bool {
	return inv.Status == InvoiceStatusCancelled
}

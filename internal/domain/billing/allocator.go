package billing

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
)

// AllocationLine describes the amount applied to one invoice during an
// allocation run, together with the status the invoice ended up in.
type AllocationLine struct {
	InvoiceID     uuid.UUID          `json:"invoice_id"`
	InvoiceNumber string             `json:"invoice_number"`
	Period        valueobject.Period `json:"period"`
	Amount        decimal.Decimal    `json:"amount"`
	NewStatus     InvoiceStatus      `json:"new_status"`
}

// AllocationOutcome is the complete result of allocating one payment.
// For every run: TotalApplied + Unapplied == payment amount, exactly.
type AllocationOutcome struct {
	Lines        []AllocationLine `json:"lines"`
	TotalApplied decimal.Decimal  `json:"total_applied"`
	Unapplied    decimal.Decimal  `json:"unapplied"`
}

// PaymentAllocator applies a payment against a lessee's open invoices in
// strict FIFO-by-period order: oldest obligation first, regardless of invoice
// creation order or due date. It mutates invoice paid amounts and statuses
// and records the allocations on the payment; it never creates or deletes
// invoices.
type PaymentAllocator struct{}

// NewPaymentAllocator creates a new PaymentAllocator
func NewPaymentAllocator() *PaymentAllocator {
	return &PaymentAllocator{}
}

// Allocate applies the payment to the given invoices.
//
// Invoices that are already settled or cancelled (due <= 0) are silently
// skipped; they are expected to coexist with open ones. A zero-amount payment
// allocates nothing. Any remainder after exhausting all open invoices is
// reported as unapplied; the caller decides whether to carry it forward as
// credit or reject it.
func (a *PaymentAllocator) Allocate(payment *Payment, invoices []*Invoice) (*AllocationOutcome, error) {
	if payment == nil {
		return nil, shared.NewDomainError("INVALID_PAYMENT", "Payment cannot be nil")
	}
	if payment.IsAllocated() {
		return nil, shared.NewDomainError("ALREADY_ALLOCATED", "Payment has already been allocated")
	}
	if payment.Amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount cannot be negative")
	}

	// Oldest period first. Creation time and ID only break ties between
	// invoices of the same period, keeping the walk deterministic.
	sorted := make([]*Invoice, len(invoices))
	copy(sorted, invoices)
	sort.Slice(sorted, func(i, j int) bool {
		if c := sorted[i].Period.Compare(sorted[j].Period); c != 0 {
			return c < 0
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	remaining := payment.Amount
	lines := make([]AllocationLine, 0)
	allocations := make(PaymentAllocations, 0)
	now := time.Now()

	for _, inv := range sorted {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		if inv.LesseeID != payment.LesseeID {
			return nil, shared.NewDomainError("LESSEE_MISMATCH",
				fmt.Sprintf("Invoice %s does not belong to the paying lessee", inv.InvoiceNumber))
		}

		due := inv.Outstanding()
		if due.LessThanOrEqual(decimal.Zero) || !inv.Status.CanApplyPayment() {
			continue
		}

		applied := decimal.Min(remaining, due)
		if err := inv.ApplyPayment(valueobject.NewMoneyEUR(applied), payment.ID); err != nil {
			return nil, err
		}

		lines = append(lines, AllocationLine{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			Period:        inv.Period,
			Amount:        applied,
			NewStatus:     inv.Status,
		})
		allocations = append(allocations, PaymentAllocation{
			ID:            uuid.New(),
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			Period:        inv.Period,
			Amount:        applied,
			AppliedAt:     now,
		})

		remaining = remaining.Sub(applied)
	}

	totalApplied := payment.Amount.Sub(remaining)

	// Conservation is a structural guarantee; a violation here is a
	// programming error, not a recoverable condition.
	if !totalApplied.Add(remaining).Equal(payment.Amount) {
		panic(fmt.Sprintf("allocation conservation violated: applied %s + unapplied %s != amount %s",
			totalApplied, remaining, payment.Amount))
	}

	if err := payment.RecordAllocations(allocations, remaining); err != nil {
		return nil, err
	}

	return &AllocationOutcome{
		Lines:        lines,
		TotalApplied: totalApplied,
		Unapplied:    remaining,
	}, nil
}

// Preview computes the allocation a payment amount would produce without
// mutating invoices or the payment. Useful for showing the user what would
// happen before they confirm.
func (a *PaymentAllocator) Preview(amount valueobject.Money, invoices []*Invoice) (*AllocationOutcome, error) {
	if amount.Amount().IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount cannot be negative")
	}

	sorted := make([]*Invoice, len(invoices))
	copy(sorted, invoices)
	sort.Slice(sorted, func(i, j int) bool {
		if c := sorted[i].Period.Compare(sorted[j].Period); c != 0 {
			return c < 0
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	remaining := amount.RoundCents().Amount()
	lines := make([]AllocationLine, 0)

	for _, inv := range sorted {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		due := inv.Outstanding()
		if due.LessThanOrEqual(decimal.Zero) || !inv.Status.CanApplyPayment() {
			continue
		}

		applied := decimal.Min(remaining, due)
		newStatus := InvoiceStatusPartiallyPaid
		if applied.Equal(due) {
			newStatus = InvoiceStatusPaid
		}
		lines = append(lines, AllocationLine{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			Period:        inv.Period,
			Amount:        applied,
			NewStatus:     newStatus,
		})
		remaining = remaining.Sub(applied)
	}

	return &AllocationOutcome{
		Lines:        lines,
		TotalApplied: amount.RoundCents().Amount().Sub(remaining),
		Unapplied:    remaining,
	}, nil
}

package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
)

// PaymentAllocation records how much of a payment was applied to one invoice.
// It is a value object within the Payment aggregate, stored as JSONB.
type PaymentAllocation struct {
	ID            uuid.UUID          `json:"id"`
	InvoiceID     uuid.UUID          `json:"invoice_id"`
	InvoiceNumber string             `json:"invoice_number"`
	Period        valueobject.Period `json:"period"`
	Amount        decimal.Decimal    `json:"amount"`
	AppliedAt     time.Time          `json:"applied_at"`
}

// PaymentAllocations is a slice of PaymentAllocation that implements GORM
// Scanner/Valuer for JSONB storage
type PaymentAllocations []PaymentAllocation

// Value implements driver.Valuer for GORM to store as JSONB
func (a PaymentAllocations) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for GORM to read from JSONB
func (a *PaymentAllocations) Scan(value interface{}) error {
	if value == nil {
		*a = PaymentAllocations{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan PaymentAllocations: unsupported type")
	}

	if len(bytes) == 0 {
		*a = PaymentAllocations{}
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// Payment is an immutable incoming payment from a lessee.
//
// A payment is never mutated after creation except for the one-time recording
// of its allocations; re-allocation requires a reversal plus a new payment
// record, which is the responsibility of external collaborators.
type Payment struct {
	shared.TenantAggregateRoot
	PaymentNumber   string             `json:"payment_number"`
	LesseeID        uuid.UUID          `json:"lessee_id"`
	Amount          decimal.Decimal    `json:"amount"`
	ReceivedOn      time.Time          `json:"received_on"`
	Reference       string             `json:"reference"`
	Allocations     PaymentAllocations `json:"allocations"`
	UnappliedAmount decimal.Decimal    `json:"unapplied_amount"`
	AllocatedAt     *time.Time         `json:"allocated_at"`
}

// NewPayment creates a new incoming payment
func NewPayment(
	tenantID uuid.UUID,
	paymentNumber string,
	lesseeID uuid.UUID,
	amount valueobject.Money,
	receivedOn time.Time,
	reference string,
) (*Payment, error) {
	if paymentNumber == "" {
		return nil, shared.NewDomainError("INVALID_PAYMENT_NUMBER", "Payment number cannot be empty")
	}
	if lesseeID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LESSEE", "Lessee ID cannot be empty")
	}
	if amount.Amount().IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount cannot be negative")
	}
	if receivedOn.IsZero() {
		return nil, shared.NewDomainError("INVALID_RECEIVED_DATE", "Received date is required")
	}

	return &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PaymentNumber:       paymentNumber,
		LesseeID:            lesseeID,
		Amount:              amount.RoundCents().Amount(),
		ReceivedOn:          receivedOn,
		Reference:           reference,
		Allocations:         PaymentAllocations{},
		UnappliedAmount:     amount.RoundCents().Amount(),
	}, nil
}

// IsAllocated returns true once allocations have been recorded
func (p *Payment) IsAllocated() bool {
	return p.AllocatedAt != nil
}

// RecordAllocations records the outcome of the payment allocator exactly once.
// The allocations and unapplied remainder must sum to the payment amount.
func (p *Payment) RecordAllocations(allocations PaymentAllocations, unapplied decimal.Decimal) error {
	if p.IsAllocated() {
		return shared.NewDomainError("ALREADY_ALLOCATED", "Payment has already been allocated")
	}

	total := unapplied
	for _, alloc := range allocations {
		total = total.Add(alloc.Amount)
	}
	if !total.Equal(p.Amount) {
		return shared.NewDomainError("ALLOCATION_MISMATCH",
			"Allocated amounts plus unapplied remainder must equal the payment amount")
	}

	now := time.Now()
	p.Allocations = allocations
	p.UnappliedAmount = unapplied
	p.AllocatedAt = &now
	p.UpdatedAt = now
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentAllocatedEvent(p, p.Amount.Sub(unapplied), unapplied, len(allocations)))

	return nil
}

// GetAmountMoney returns the payment amount as Money
func (p *Payment) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyEUR(p.Amount)
}

// GetUnappliedMoney returns the unapplied remainder as Money
func (p *Payment) GetUnappliedMoney() valueobject.Money {
	return valueobject.NewMoneyEUR(p.UnappliedAmount)
}

package banking

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
)

// BankTransaction is a movement imported from a bank statement. Everything
// except the match link is immutable after import; corrections happen
// upstream at the statement source, not here.
type BankTransaction struct {
	shared.TenantAggregateRoot
	Amount          valueobject.Money `json:"amount"`
	BookedOn        time.Time         `json:"booked_on"`
	CounterpartName string            `json:"counterpart_name"`
	CounterpartIBAN string            `json:"counterpart_iban"`
	Purpose         string            `json:"purpose"`

	// Match link, nil until a suggestion is confirmed.
	MatchedLesseeID  *uuid.UUID `json:"matched_lessee_id,omitempty"`
	MatchedInvoiceID *uuid.UUID `json:"matched_invoice_id,omitempty"`
	MatchedAt        *time.Time `json:"matched_at,omitempty"`
}

// NewBankTransaction imports a statement line
func NewBankTransaction(tenantID uuid.UUID, amount valueobject.Money, bookedOn time.Time, counterpartName, counterpartIBAN, purpose string) (*BankTransaction, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID is required")
	}
	if bookedOn.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Booking date is required")
	}

	tx := &BankTransaction{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Amount:              amount.RoundCents(),
		BookedOn:            bookedOn,
		CounterpartName:     counterpartName,
		CounterpartIBAN:     counterpartIBAN,
		Purpose:             purpose,
	}
	tx.AddDomainEvent(NewTransactionImportedEvent(tx))
	return tx, nil
}

// IsMatched reports whether the transaction has been linked to an invoice
func (t *BankTransaction) IsMatched() bool {
	return t.MatchedInvoiceID != nil
}

// IsCredit reports whether the transaction is an incoming amount.
// Only credits are candidates for invoice matching.
func (t *BankTransaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// LinkToInvoice records a confirmed match. A transaction can be linked
// exactly once; re-linking requires an explicit unlink first.
func (t *BankTransaction) LinkToInvoice(lesseeID, invoiceID uuid.UUID, now time.Time) error {
	if t.IsMatched() {
		return shared.NewDomainError("ALREADY_MATCHED",
			fmt.Sprintf("Transaction %s is already linked to invoice %s", t.ID, *t.MatchedInvoiceID))
	}
	if !t.IsCredit() {
		return shared.NewDomainError("NOT_A_CREDIT", "Only credit transactions can be matched to invoices")
	}
	if lesseeID == uuid.Nil || invoiceID == uuid.Nil {
		return shared.NewDomainError("INVALID_LINK", "Lessee ID and invoice ID are required")
	}

	t.MatchedLesseeID = &lesseeID
	t.MatchedInvoiceID = &invoiceID
	t.MatchedAt = &now
	t.UpdatedAt = now
	t.IncrementVersion()
	t.AddDomainEvent(NewTransactionMatchedEvent(t))
	return nil
}

// Unlink removes the match link, returning the transaction to the
// unmatched pool. The caller is responsible for reversing any allocation
// that was driven by the original match.
func (t *BankTransaction) Unlink(now time.Time) error {
	if !t.IsMatched() {
		return shared.NewDomainError("NOT_MATCHED", "Transaction has no match link to remove")
	}
	t.MatchedLesseeID = nil
	t.MatchedInvoiceID = nil
	t.MatchedAt = nil
	t.UpdatedAt = now
	t.IncrementVersion()
	t.AddDomainEvent(NewTransactionUnlinkedEvent(t))
	return nil
}

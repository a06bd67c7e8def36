package banking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/shared"
)

// Event type constants for the banking domain
const (
	EventTypeTransactionImported = "banking.transaction.imported"
	EventTypeTransactionMatched  = "banking.transaction.matched"
	EventTypeTransactionUnlinked = "banking.transaction.unlinked"
)

const transactionAggregateType = "BankTransaction"

// TransactionImportedEvent is raised when a statement line is imported
type TransactionImportedEvent struct {
	shared.BaseDomainEvent
	Amount          decimal.Decimal `json:"amount"`
	BookedOn        time.Time       `json:"booked_on"`
	CounterpartName string          `json:"counterpart_name"`
}

// NewTransactionImportedEvent creates a TransactionImportedEvent
func NewTransactionImportedEvent(tx *BankTransaction) *TransactionImportedEvent {
	return &TransactionImportedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionImported, transactionAggregateType, tx.ID, tx.TenantID),
		Amount:          tx.Amount.Amount(),
		BookedOn:        tx.BookedOn,
		CounterpartName: tx.CounterpartName,
	}
}

// TransactionMatchedEvent is raised when a match is confirmed
type TransactionMatchedEvent struct {
	shared.BaseDomainEvent
	LesseeID  uuid.UUID       `json:"lessee_id"`
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// NewTransactionMatchedEvent creates a TransactionMatchedEvent
func NewTransactionMatchedEvent(tx *BankTransaction) *TransactionMatchedEvent {
	return &TransactionMatchedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionMatched, transactionAggregateType, tx.ID, tx.TenantID),
		LesseeID:        *tx.MatchedLesseeID,
		InvoiceID:       *tx.MatchedInvoiceID,
		Amount:          tx.Amount.Amount(),
	}
}

// TransactionUnlinkedEvent is raised when a match link is removed
type TransactionUnlinkedEvent struct {
	shared.BaseDomainEvent
}

// NewTransactionUnlinkedEvent creates a TransactionUnlinkedEvent
func NewTransactionUnlinkedEvent(tx *BankTransaction) *TransactionUnlinkedEvent {
	return &TransactionUnlinkedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionUnlinked, transactionAggregateType, tx.ID, tx.TenantID),
	}
}

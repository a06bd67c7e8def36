package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/banking"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
)

// BankTransactionModel is the persistence model for the BankTransaction aggregate root.
type BankTransactionModel struct {
	TenantAggregateModel
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BookedOn        time.Time       `gorm:"not null;index"`
	CounterpartName string          `gorm:"type:varchar(200)"`
	CounterpartIBAN string          `gorm:"type:varchar(34)"`
	Purpose         string          `gorm:"type:varchar(500)"`

	MatchedLesseeID  *uuid.UUID `gorm:"type:uuid;index"`
	MatchedInvoiceID *uuid.UUID `gorm:"type:uuid;index"`
	MatchedAt        *time.Time
}

// TableName returns the table name for GORM
func (BankTransactionModel) TableName() string {
	return "bank_transactions"
}

// ToDomain converts the persistence model to a domain BankTransaction.
func (m *BankTransactionModel) ToDomain() *banking.BankTransaction {
	tx := &banking.BankTransaction{
		Amount:           valueobject.NewMoneyEUR(m.Amount),
		BookedOn:         m.BookedOn,
		CounterpartName:  m.CounterpartName,
		CounterpartIBAN:  m.CounterpartIBAN,
		Purpose:          m.Purpose,
		MatchedLesseeID:  m.MatchedLesseeID,
		MatchedInvoiceID: m.MatchedInvoiceID,
		MatchedAt:        m.MatchedAt,
	}
	m.PopulateTenantAggregateRoot(&tx.TenantAggregateRoot)
	return tx
}

// BankTransactionModelFromDomain converts a domain BankTransaction to its persistence model.
func BankTransactionModelFromDomain(tx *banking.BankTransaction) *BankTransactionModel {
	m := &BankTransactionModel{
		Amount:           tx.Amount.Amount(),
		BookedOn:         tx.BookedOn,
		CounterpartName:  tx.CounterpartName,
		CounterpartIBAN:  tx.CounterpartIBAN,
		Purpose:          tx.Purpose,
		MatchedLesseeID:  tx.MatchedLesseeID,
		MatchedInvoiceID: tx.MatchedInvoiceID,
		MatchedAt:        tx.MatchedAt,
	}
	m.FromDomainTenantAggregateRoot(tx.TenantAggregateRoot)
	return m
}

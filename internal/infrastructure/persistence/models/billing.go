package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/billing"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber string                `gorm:"type:varchar(50);not null;index"`
	LesseeID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	LesseeName    string                `gorm:"type:varchar(200);not null"`
	Period        valueobject.Period    `gorm:"type:varchar(7);not null;index"`
	GrossTotal    decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	PaidAmount    decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Status        billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	DueDate       time.Time             `gorm:"not null;index"`
	PaidAt        *time.Time
	CancelledAt   *time.Time
	CancelReason  string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		InvoiceNumber: m.InvoiceNumber,
		LesseeID:      m.LesseeID,
		LesseeName:    m.LesseeName,
		Period:        m.Period,
		GrossTotal:    m.GrossTotal,
		PaidAmount:    m.PaidAmount,
		Status:        m.Status,
		DueDate:       m.DueDate,
		PaidAt:        m.PaidAt,
		CancelledAt:   m.CancelledAt,
		CancelReason:  m.CancelReason,
	}
	m.PopulateTenantAggregateRoot(&inv.TenantAggregateRoot)
	return inv
}

// InvoiceModelFromDomain converts a domain Invoice to its persistence model.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		InvoiceNumber: inv.InvoiceNumber,
		LesseeID:      inv.LesseeID,
		LesseeName:    inv.LesseeName,
		Period:        inv.Period,
		GrossTotal:    inv.GrossTotal,
		PaidAmount:    inv.PaidAmount,
		Status:        inv.Status,
		DueDate:       inv.DueDate,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		CancelReason:  inv.CancelReason,
	}
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	TenantAggregateModel
	PaymentNumber   string                     `gorm:"type:varchar(50);not null;index"`
	LesseeID        uuid.UUID                  `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	ReceivedOn      time.Time                  `gorm:"not null;index"`
	Reference       string                     `gorm:"type:varchar(500)"`
	Allocations     billing.PaymentAllocations `gorm:"type:jsonb;default:'[]'"`
	UnappliedAmount decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	AllocatedAt     *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *billing.Payment {
	p := &billing.Payment{
		PaymentNumber:   m.PaymentNumber,
		LesseeID:        m.LesseeID,
		Amount:          m.Amount,
		ReceivedOn:      m.ReceivedOn,
		Reference:       m.Reference,
		Allocations:     m.Allocations,
		UnappliedAmount: m.UnappliedAmount,
		AllocatedAt:     m.AllocatedAt,
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}

// PaymentModelFromDomain converts a domain Payment to its persistence model.
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{
		PaymentNumber:   p.PaymentNumber,
		LesseeID:        p.LesseeID,
		Amount:          p.Amount,
		ReceivedOn:      p.ReceivedOn,
		Reference:       p.Reference,
		Allocations:     p.Allocations,
		UnappliedAmount: p.UnappliedAmount,
		AllocatedAt:     p.AllocatedAt,
	}
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	return m
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hausverwaltung/backend/internal/domain/ledger"
)

// PostingModel is the persistence model for the Posting aggregate root.
//
// The unique index on (tenant_id, source_type, source_id) is the hard
// idempotency guarantee: a replayed booking for the same source event hits
// the constraint instead of creating a second posting.
type PostingModel struct {
	TenantAggregateModel
	SourceType  ledger.SourceType   `gorm:"type:varchar(30);not null;index"`
	SourceID    uuid.UUID           `gorm:"type:uuid;not null;index"`
	PostedOn    time.Time           `gorm:"not null;index"`
	Description string              `gorm:"type:varchar(500)"`
	Lines       ledger.PostingLines `gorm:"type:jsonb;not null"`
	ReversesID  *uuid.UUID          `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (PostingModel) TableName() string {
	return "postings"
}

// ToDomain converts the persistence model to a domain Posting.
func (m *PostingModel) ToDomain() *ledger.Posting {
	p := &ledger.Posting{
		SourceType:  m.SourceType,
		SourceID:    m.SourceID,
		PostedOn:    m.PostedOn,
		Description: m.Description,
		Lines:       m.Lines,
		ReversesID:  m.ReversesID,
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}

// PostingModelFromDomain converts a domain Posting to its persistence model.
func PostingModelFromDomain(p *ledger.Posting) *PostingModel {
	m := &PostingModel{
		SourceType:  p.SourceType,
		SourceID:    p.SourceID,
		PostedOn:    p.PostedOn,
		Description: p.Description,
		Lines:       p.Lines,
		ReversesID:  p.ReversesID,
	}
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	return m
}

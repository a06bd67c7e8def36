package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/shared"
)

// Event type constants for the ledger domain
const (
	EventTypePostingCreated = "ledger.posting.created"
)

// PostingCreatedEvent is raised when a posting is recorded
type PostingCreatedEvent struct {
	shared.BaseDomainEvent
	SourceType SourceType      `json:"source_type"`
	SourceID   uuid.UUID       `json:"source_id"`
	Total      decimal.Decimal `json:"total"`
	LineCount  int             `json:"line_count"`
}

// NewPostingCreatedEvent creates a PostingCreatedEvent
func NewPostingCreatedEvent(p *Posting) *PostingCreatedEvent {
	return &PostingCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePostingCreated, "Posting", p.ID, p.TenantID),
		SourceType:      p.SourceType,
		SourceID:        p.SourceID,
		Total:           p.Total(),
		LineCount:       len(p.Lines),
	}
}

package ledger

import (
	"context"

	"github.com/google/uuid"
)

// PostingRepository persists postings. Implementations must back
// ExistsForSource with a uniqueness constraint on
// (tenant_id, source_type, source_id) so concurrent replays cannot
// double-book.
type PostingRepository interface {
	// FindByIDForTenant loads a posting scoped to a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Posting, error)

	// FindBySource returns the posting recorded for a source event, or
	// shared.ErrNotFound
	FindBySource(ctx context.Context, tenantID uuid.UUID, sourceType SourceType, sourceID uuid.UUID) (*Posting, error)

	// ExistsForSource reports whether a posting was already recorded for the
	// source event
	ExistsForSource(ctx context.Context, tenantID uuid.UUID, sourceType SourceType, sourceID uuid.UUID) (bool, error)

	// Save persists a posting; a duplicate (source_type, source_id) must
	// surface as shared.ErrAlreadyExists
	Save(ctx context.Context, posting *Posting) error
}

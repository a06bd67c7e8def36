package distribution

import (
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/shared"
)

// Key selects how a cost total is apportioned across participants
type Key string

const (
	KeyArea           Key = "AREA"            // weight is the unit area in m²
	KeyOwnershipShare Key = "OWNERSHIP_SHARE" // weight is the ownership share in permille (MEA)
	KeyHeadCount      Key = "HEAD_COUNT"      // weight is the number of occupants
	KeyConsumption    Key = "CONSUMPTION"     // weight is metered consumption
	KeyEqual          Key = "EQUAL"           // every participant weighs the same
)

// IsValid checks if the key is a valid distribution key
func (k Key) IsValid() bool {
	switch k {
	case KeyArea, KeyOwnershipShare, KeyHeadCount, KeyConsumption, KeyEqual:
		return true
	}
	return false
}

// String returns the string representation of the key
func (k Key) String() string {
	return string(k)
}

// AllKeys returns all valid distribution keys
func AllKeys() []Key {
	return []Key{KeyArea, KeyOwnershipShare, KeyHeadCount, KeyConsumption, KeyEqual}
}

// Participant is a unit or owner taking part in one cost-distribution run.
// The weight's meaning depends on the selected key (area, permille,
// head-count, consumption). Weights are read-only inputs supplied externally.
type Participant struct {
	ID     uuid.UUID       `json:"id"`
	Name   string          `json:"name"`
	Weight decimal.Decimal `json:"weight"`
}

// NewParticipant creates a validated participant from a raw weight value.
// Validation happens here at the boundary: negative, NaN and infinite
// weights are rejected before any calculation starts.
func NewParticipant(id uuid.UUID, name string, weight float64) (Participant, error) {
	if id == uuid.Nil {
		return Participant{}, shared.NewDomainError("INVALID_PARTICIPANT", "Participant ID cannot be empty")
	}
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return Participant{}, shared.NewDomainError("INVALID_WEIGHT", "Participant weight must be a finite number")
	}
	if weight < 0 {
		return Participant{}, shared.NewDomainError("INVALID_WEIGHT", "Participant weight cannot be negative")
	}
	return Participant{
		ID:     id,
		Name:   name,
		Weight: decimal.NewFromFloat(weight),
	}, nil
}

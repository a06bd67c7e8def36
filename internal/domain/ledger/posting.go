package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/shared"
)

// Side of a posting line
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// SourceType identifies the economic event class a posting originates from.
// Together with the source ID it forms the idempotency key.
type SourceType string

const (
	SourceInvoiceIssuance   SourceType = "invoice_issuance"
	SourcePaymentAllocation SourceType = "payment_allocation"
	SourceCostDistribution  SourceType = "cost_distribution"
	SourceExpense           SourceType = "expense"
	SourceReversal          SourceType = "reversal"
)

// PostingLine is one debit or credit against an external account
type PostingLine struct {
	AccountID string          `json:"account_id"`
	Side      Side            `json:"side"`
	Amount    decimal.Decimal `json:"amount"`
	Label     string          `json:"label,omitempty"`
}

// PostingLines is stored as a JSONB column
type PostingLines []PostingLine

// Value implements driver.Valuer
func (l PostingLines) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *PostingLines) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into PostingLines", value)
	}
}

// Posting is a balanced set of debit/credit lines recorded once per source
// economic event. Postings are never edited; corrections are reversing
// postings that reference the original.
type Posting struct {
	shared.TenantAggregateRoot
	SourceType  SourceType   `json:"source_type"`
	SourceID    uuid.UUID    `json:"source_id"`
	PostedOn    time.Time    `json:"posted_on"`
	Description string       `json:"description"`
	Lines       PostingLines `json:"lines"`

	// ReversesID links a reversal to the posting it cancels
	ReversesID *uuid.UUID `json:"reverses_id,omitempty"`
}

// NewPosting creates a balanced posting for a source event.
// Every line amount must be positive (direction is carried by the side),
// and total debits must equal total credits to the cent.
func NewPosting(tenantID uuid.UUID, sourceType SourceType, sourceID uuid.UUID, postedOn time.Time, description string, lines []PostingLine) (*Posting, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID is required")
	}
	if sourceType == "" || sourceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SOURCE", "Source type and source ID are required")
	}
	if len(lines) < 2 {
		return nil, shared.NewDomainError("INVALID_LINES", "A posting needs at least one debit and one credit line")
	}

	debits, credits := decimal.Zero, decimal.Zero
	for _, line := range lines {
		if line.AccountID == "" {
			return nil, shared.NewDomainError("INVALID_LINES", "Every posting line needs an account")
		}
		if !line.Amount.IsPositive() {
			return nil, shared.NewDomainError("INVALID_LINES",
				fmt.Sprintf("Posting line amount must be positive, got %s", line.Amount))
		}
		switch line.Side {
		case SideDebit:
			debits = debits.Add(line.Amount)
		case SideCredit:
			credits = credits.Add(line.Amount)
		default:
			return nil, shared.NewDomainError("INVALID_LINES", fmt.Sprintf("Unknown posting side %q", line.Side))
		}
	}
	if !debits.Equal(credits) {
		return nil, shared.NewDomainError("UNBALANCED_POSTING",
			fmt.Sprintf("Debits %s do not equal credits %s", debits, credits))
	}

	p := &Posting{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SourceType:          sourceType,
		SourceID:            sourceID,
		PostedOn:            postedOn,
		Description:         description,
		Lines:               lines,
	}
	p.AddDomainEvent(NewPostingCreatedEvent(p))
	return p, nil
}

// Total returns the posting's debit total (equal to the credit total)
func (p *Posting) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range p.Lines {
		if line.Side == SideDebit {
			total = total.Add(line.Amount)
		}
	}
	return total
}

// Reverse builds a new posting that cancels this one: every side swapped,
// amounts unchanged. The reversal carries its own source identity so the
// (source_type, source_id) uniqueness of the original stays intact.
func (p *Posting) Reverse(postedOn time.Time, reason string) (*Posting, error) {
	reversed := make([]PostingLine, len(p.Lines))
	for i, line := range p.Lines {
		side := SideDebit
		if line.Side == SideDebit {
			side = SideCredit
		}
		reversed[i] = PostingLine{
			AccountID: line.AccountID,
			Side:      side,
			Amount:    line.Amount,
			Label:     line.Label,
		}
	}

	reversal, err := NewPosting(p.TenantID, SourceReversal, p.ID, postedOn,
		fmt.Sprintf("Reversal of %s: %s", p.Description, reason), reversed)
	if err != nil {
		return nil, err
	}
	reversal.ReversesID = &p.ID
	return reversal, nil
}

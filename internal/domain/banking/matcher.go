package banking

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/billing"
)

// ScorerConfig tunes the match heuristics. The zero value is not usable;
// start from DefaultScorerConfig and override per deployment.
type ScorerConfig struct {
	// MaxDateDistanceDays rejects a pair outright when the booking date is
	// further than this from the invoice due date.
	MaxDateDistanceDays int

	// ExactAmountScore is granted when amounts match to the cent (within
	// one cent either way).
	ExactAmountScore decimal.Decimal

	// CloseAmountScore is granted when the amount is within
	// CloseAmountTolerancePercent of the remaining balance. A pair matching
	// neither amount rule is rejected.
	CloseAmountScore            decimal.Decimal
	CloseAmountTolerancePercent decimal.Decimal

	// NearDateScore applies within NearDateDays of the due date,
	// FarDateScore within FarDateDays.
	NearDateScore decimal.Decimal
	NearDateDays  int
	FarDateScore  decimal.Decimal
	FarDateDays   int

	// SurnameScore is granted when the counterpart name contains the
	// lessee's surname.
	SurnameScore decimal.Decimal

	// MinConfidence is the emission threshold; MaxSuggestions bounds the
	// returned list on large portfolios.
	MinConfidence  decimal.Decimal
	MaxSuggestions int
}

// DefaultScorerConfig returns the standard heuristic weights
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		MaxDateDistanceDays:         30,
		ExactAmountScore:            decimal.NewFromFloat(0.5),
		CloseAmountScore:            decimal.NewFromFloat(0.3),
		CloseAmountTolerancePercent: decimal.NewFromInt(5),
		NearDateScore:               decimal.NewFromFloat(0.25),
		NearDateDays:                3,
		FarDateScore:                decimal.NewFromFloat(0.15),
		FarDateDays:                 14,
		SurnameScore:                decimal.NewFromFloat(0.25),
		MinConfidence:               decimal.NewFromFloat(0.4),
		MaxSuggestions:              50,
	}
}

// Suggestion is an ephemeral match proposal. It is never persisted; a human
// either confirms it (which links the transaction) or lets it expire.
type Suggestion struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	LesseeID      uuid.UUID       `json:"lessee_id"`
	LesseeName    string          `json:"lessee_name"`
	Confidence    decimal.Decimal `json:"confidence"`
	Reasons       []string        `json:"reasons"`
}

// MatchScorer proposes (transaction, invoice) pairs for human confirmation.
// It is pure read→suggest: no writes, and an empty result is a normal
// outcome, not an error.
type MatchScorer struct {
	config ScorerConfig
}

// NewMatchScorer creates a scorer with the given configuration
func NewMatchScorer(config ScorerConfig) *MatchScorer {
	return &MatchScorer{config: config}
}

// Suggest scores every unmatched credit transaction against every open
// invoice with an outstanding balance, and returns suggestions above the
// confidence threshold, best first, capped at MaxSuggestions.
func (s *MatchScorer) Suggest(transactions []*BankTransaction, invoices []*billing.Invoice) []Suggestion {
	suggestions := make([]Suggestion, 0)

	for _, tx := range transactions {
		if tx.IsMatched() || !tx.IsCredit() {
			continue
		}
		for _, inv := range invoices {
			if !inv.Status.CanApplyPayment() || !inv.Outstanding().IsPositive() {
				continue
			}
			if suggestion, ok := s.score(tx, inv); ok {
				suggestions = append(suggestions, suggestion)
			}
		}
	}

	sort.SliceStable(suggestions, func(a, b int) bool {
		if !suggestions[a].Confidence.Equal(suggestions[b].Confidence) {
			return suggestions[a].Confidence.GreaterThan(suggestions[b].Confidence)
		}
		if suggestions[a].TransactionID != suggestions[b].TransactionID {
			return suggestions[a].TransactionID.String() < suggestions[b].TransactionID.String()
		}
		return suggestions[a].InvoiceID.String() < suggestions[b].InvoiceID.String()
	})

	if len(suggestions) > s.config.MaxSuggestions {
		suggestions = suggestions[:s.config.MaxSuggestions]
	}
	return suggestions
}

func (s *MatchScorer) score(tx *BankTransaction, inv *billing.Invoice) (Suggestion, bool) {
	dateDistance := daysBetween(tx.BookedOn, inv.DueDate)
	if dateDistance > s.config.MaxDateDistanceDays {
		return Suggestion{}, false
	}

	confidence := decimal.Zero
	reasons := make([]string, 0, 3)

	outstanding := inv.Outstanding()
	amount := tx.Amount.Amount()
	diff := amount.Sub(outstanding).Abs()
	oneCent := decimal.New(1, -2)

	switch {
	case diff.LessThanOrEqual(oneCent):
		confidence = confidence.Add(s.config.ExactAmountScore)
		reasons = append(reasons, fmt.Sprintf("amount matches outstanding balance of %s", outstanding.StringFixed(2)))
	case !outstanding.IsZero() && diff.Div(outstanding).Mul(decimal.NewFromInt(100)).LessThanOrEqual(s.config.CloseAmountTolerancePercent):
		confidence = confidence.Add(s.config.CloseAmountScore)
		reasons = append(reasons, fmt.Sprintf("amount within %s%% of outstanding balance %s",
			s.config.CloseAmountTolerancePercent, outstanding.StringFixed(2)))
	default:
		return Suggestion{}, false
	}

	switch {
	case dateDistance <= s.config.NearDateDays:
		confidence = confidence.Add(s.config.NearDateScore)
		reasons = append(reasons, fmt.Sprintf("booked %d day(s) from due date", dateDistance))
	case dateDistance <= s.config.FarDateDays:
		confidence = confidence.Add(s.config.FarDateScore)
		reasons = append(reasons, fmt.Sprintf("booked %d days from due date", dateDistance))
	}

	if surname := surnameOf(inv.LesseeName); surname != "" &&
		strings.Contains(strings.ToLower(tx.CounterpartName), strings.ToLower(surname)) {
		confidence = confidence.Add(s.config.SurnameScore)
		reasons = append(reasons, fmt.Sprintf("counterpart name contains %q", surname))
	}

	one := decimal.NewFromInt(1)
	if confidence.GreaterThan(one) {
		confidence = one
	}
	if confidence.LessThan(s.config.MinConfidence) {
		return Suggestion{}, false
	}

	return Suggestion{
		TransactionID: tx.ID,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		LesseeID:      inv.LesseeID,
		LesseeName:    inv.LesseeName,
		Confidence:    confidence,
		Reasons:       reasons,
	}, true
}

// daysBetween returns the absolute calendar-day distance between two dates,
// ignoring the time-of-day component.
func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// surnameOf extracts the surname from a full lessee name, taken to be the
// last whitespace-separated token ("Max Mustermann" -> "Mustermann").
func surnameOf(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

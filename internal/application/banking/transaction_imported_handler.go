package banking

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hausverwaltung/backend/internal/domain/banking"
	"github.com/hausverwaltung/backend/internal/domain/shared"
)

// TransactionImportedHandler reacts to imported statement lines by scoring
// them against open invoices and confirming the match without operator
// review when exactly one suggestion clears the auto-confirm threshold.
// Ambiguous or low-confidence lines stay unmatched for manual confirmation.
type TransactionImportedHandler struct {
	matches      *MatchService
	transactions banking.BankTransactionRepository
	threshold    decimal.Decimal
	logger       *zap.Logger
}

// NewTransactionImportedHandler creates a handler for transaction imported events
func NewTransactionImportedHandler(
	matches *MatchService,
	transactions banking.BankTransactionRepository,
	autoConfirmThreshold decimal.Decimal,
	logger *zap.Logger,
) *TransactionImportedHandler {
	return &TransactionImportedHandler{
		matches:      matches,
		transactions: transactions,
		threshold:    autoConfirmThreshold,
		logger:       logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *TransactionImportedHandler) EventTypes() []string {
	return []string{banking.EventTypeTransactionImported}
}

// Handle scores the imported transaction and auto-confirms an unambiguous match
func (h *TransactionImportedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	imported, ok := event.(*banking.TransactionImportedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			banking.EventTypeTransactionImported, event.EventType())
	}

	if !imported.Amount.IsPositive() {
		return nil // debits never match invoices
	}

	tenantID := imported.TenantID()
	tx, err := h.transactions.FindByIDForTenant(ctx, tenantID, imported.AggregateID())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("imported transaction no longer exists, skipping auto-match",
				zap.String("transaction_id", imported.AggregateID().String()),
			)
			return nil
		}
		return fmt.Errorf("failed to load imported transaction: %w", err)
	}
	if tx.IsMatched() {
		return nil // already confirmed, nothing to do
	}

	suggestions, err := h.matches.SuggestMatches(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to score imported transaction: %w", err)
	}

	var candidates []banking.Suggestion
	for _, s := range suggestions {
		if s.TransactionID == tx.ID && s.Confidence.GreaterThanOrEqual(h.threshold) {
			candidates = append(candidates, s)
		}
	}

	switch len(candidates) {
	case 0:
		h.logger.Debug("no suggestion cleared the auto-confirm threshold",
			zap.String("transaction_id", tx.ID.String()),
			zap.String("threshold", h.threshold.String()),
		)
		return nil
	case 1:
		// fall through to confirmation
	default:
		h.logger.Info("ambiguous auto-match, leaving transaction for manual review",
			zap.String("transaction_id", tx.ID.String()),
			zap.Int("candidates", len(candidates)),
		)
		return nil
	}

	best := candidates[0]
	result, err := h.matches.ConfirmMatch(ctx, ConfirmMatchRequest{
		TenantID:      tenantID,
		TransactionID: best.TransactionID,
		InvoiceID:     best.InvoiceID,
	})
	if err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "ALREADY_MATCHED" {
			return nil // concurrent confirmation won, the outcome is the same
		}
		return fmt.Errorf("failed to auto-confirm match: %w", err)
	}

	h.logger.Info("bank transaction auto-matched",
		zap.String("transaction_id", best.TransactionID.String()),
		zap.String("invoice_id", best.InvoiceID.String()),
		zap.String("invoice_number", best.InvoiceNumber),
		zap.String("confidence", best.Confidence.String()),
		zap.String("payment_id", result.Allocation.PaymentID.String()),
	)

	return nil
}

var _ shared.EventHandler = (*TransactionImportedHandler)(nil)

package banking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appbilling "github.com/hausverwaltung/backend/internal/application/billing"
	"github.com/hausverwaltung/backend/internal/domain/banking"
	"github.com/hausverwaltung/backend/internal/domain/billing"
	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
	"github.com/hausverwaltung/backend/internal/infrastructure/telemetry"
)

// MatchService scores unmatched bank transactions against open invoices and
// turns confirmed matches into payments. Scoring itself never writes;
// confirmation is the explicit write path.
type MatchService struct {
	transactions banking.BankTransactionRepository
	invoices     billing.InvoiceRepository
	scorer       *banking.MatchScorer
	allocations  *appbilling.AllocationService
	tx           shared.TransactionManager
	clock        shared.Clock
	logger       *zap.Logger
}

// NewMatchService creates a MatchService
func NewMatchService(
	transactions banking.BankTransactionRepository,
	invoices billing.InvoiceRepository,
	scorer *banking.MatchScorer,
	allocations *appbilling.AllocationService,
	tx shared.TransactionManager,
	clock shared.Clock,
	logger *zap.Logger,
) *MatchService {
	return &MatchService{
		transactions: transactions,
		invoices:     invoices,
		scorer:       scorer,
		allocations:  allocations,
		tx:           tx,
		clock:        clock,
		logger:       logger,
	}
}

// SuggestMatches scores every unmatched credit against every open invoice of
// the tenant. An empty list is a normal result.
func (s *MatchService) SuggestMatches(ctx context.Context, tenantID uuid.UUID) ([]banking.Suggestion, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_match", "suggest")
	defer span.End()

	transactions, err := s.transactions.FindUnmatchedCredits(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load unmatched transactions: %w", err)
	}
	invoices, err := s.invoices.FindOutstanding(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load open invoices: %w", err)
	}

	suggestions := s.scorer.Suggest(transactions, invoices)
	telemetry.SetAttributes(span,
		"transaction_count", len(transactions),
		"invoice_count", len(invoices),
		"suggestion_count", len(suggestions),
	)
	return suggestions, nil
}

// ConfirmMatchRequest identifies the suggestion the user accepted
type ConfirmMatchRequest struct {
	TenantID      uuid.UUID
	TransactionID uuid.UUID
	InvoiceID     uuid.UUID
}

// ConfirmMatchResult reports what the confirmation did
type ConfirmMatchResult struct {
	TransactionID uuid.UUID                    `json:"transaction_id"`
	Allocation    *appbilling.AllocationResult `json:"allocation"`
}

// ConfirmMatch links the transaction to the invoice's lessee and feeds the
// transaction amount into payment allocation. The link is written under
// optimistic locking, so two users confirming the same transaction race
// cleanly: one wins, the other gets a conflict. Link and allocation commit
// as one unit: a failed allocation rolls the link back, so the transaction
// stays in the unmatched pool instead of being stranded as matched without
// a payment.
func (s *MatchService) ConfirmMatch(ctx context.Context, req ConfirmMatchRequest) (*ConfirmMatchResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_match", "confirm")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTransactionID, req.TransactionID.String(),
		telemetry.SpanAttrInvoiceID, req.InvoiceID.String(),
	)

	tx, err := s.transactions.FindByIDForTenant(ctx, req.TenantID, req.TransactionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	inv, err := s.invoices.FindByIDForTenant(ctx, req.TenantID, req.InvoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	if err := tx.LinkToInvoice(inv.LesseeID, inv.ID, now); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var allocation *appbilling.AllocationResult
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		if err := s.transactions.SaveWithLock(ctx, tx); err != nil {
			return err
		}
		allocation, err = s.allocations.RecordAndAllocate(ctx, appbilling.RecordPaymentRequest{
			TenantID:      req.TenantID,
			PaymentNumber: paymentNumberFor(tx),
			LesseeID:      inv.LesseeID,
			Amount:        tx.Amount,
			ReceivedOn:    tx.BookedOn,
			Reference:     tx.Purpose,
		})
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("bank match confirmed",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("lessee_id", inv.LesseeID.String()),
		zap.String("amount", tx.Amount.StringFixed(2)),
	)

	return &ConfirmMatchResult{TransactionID: tx.ID, Allocation: allocation}, nil
}

// Unmatch removes a transaction's match link and returns it to the
// unmatched pool. Confirmation is atomic, so a matched transaction always
// carries a payment; unmatching corrects a confirmation against the wrong
// invoice, and the payment must be reversed separately.
func (s *MatchService) Unmatch(ctx context.Context, tenantID, transactionID uuid.UUID) (*banking.BankTransaction, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_match", "unmatch")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrTransactionID, transactionID.String())

	tx, err := s.transactions.FindByIDForTenant(ctx, tenantID, transactionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := tx.Unlink(s.clock.Now()); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.transactions.SaveWithLock(ctx, tx); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("bank match removed",
		zap.String("transaction_id", tx.ID.String()),
	)
	return tx, nil
}

// paymentNumberFor derives a stable payment number from the bank transaction
// so re-imports of the same statement line stay recognizable.
func paymentNumberFor(tx *banking.BankTransaction) string {
	return fmt.Sprintf("BK-%s-%s", tx.BookedOn.Format("20060102"), tx.ID.String()[:8])
}

// ImportTransactionRequest describes one statement line to import
type ImportTransactionRequest struct {
	TenantID        uuid.UUID
	Amount          valueobject.Money
	BookedOn        time.Time
	CounterpartName string
	CounterpartIBAN string
	Purpose         string
}

// ImportTransaction stores a statement line as an unmatched transaction
func (s *MatchService) ImportTransaction(ctx context.Context, req ImportTransactionRequest) (*banking.BankTransaction, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_match", "import_transaction")
	defer span.End()

	tx, err := banking.NewBankTransaction(req.TenantID, req.Amount, req.BookedOn,
		req.CounterpartName, req.CounterpartIBAN, req.Purpose)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.transactions.Save(ctx, tx); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}
	return tx, nil
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hausverwaltung/backend/internal/domain/billing"
	"github.com/hausverwaltung/backend/internal/domain/ledger"
	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
	"github.com/hausverwaltung/backend/internal/infrastructure/telemetry"
)

// allocationRetries bounds the optimistic-lock retry loop. Each retry
// re-reads the invoice set, so a retry never operates on stale paid amounts.
const allocationRetries = 3

// AllocationService orchestrates payment allocation: it loads the lessee's
// open invoices, runs the allocator, persists the mutated invoices under
// optimistic locking and books the resulting posting.
type AllocationService struct {
	invoices  billing.InvoiceRepository
	payments  billing.PaymentRepository
	allocator *billing.PaymentAllocator
	emitter   *ledger.PostingEmitter
	tx        shared.TransactionManager
	clock     shared.Clock
	logger    *zap.Logger

	// Retries overrides the optimistic-lock retry budget; zero keeps the
	// built-in default.
	Retries int
}

// NewAllocationService creates an AllocationService
func NewAllocationService(
	invoices billing.InvoiceRepository,
	payments billing.PaymentRepository,
	emitter *ledger.PostingEmitter,
	tx shared.TransactionManager,
	clock shared.Clock,
	logger *zap.Logger,
) *AllocationService {
	return &AllocationService{
		invoices:  invoices,
		payments:  payments,
		allocator: billing.NewPaymentAllocator(),
		emitter:   emitter,
		tx:        tx,
		clock:     clock,
		logger:    logger,
	}
}

// RecordPaymentRequest registers an incoming payment and allocates it
type RecordPaymentRequest struct {
	TenantID      uuid.UUID
	PaymentNumber string
	LesseeID      uuid.UUID
	Amount        valueobject.Money
	ReceivedOn    time.Time
	Reference     string
}

// AllocationResult is returned to the caller after a completed run
type AllocationResult struct {
	PaymentID uuid.UUID                  `json:"payment_id"`
	Outcome   *billing.AllocationOutcome `json:"outcome"`
	PostingID *uuid.UUID                 `json:"posting_id,omitempty"`
}

// RecordAndAllocate creates the payment, allocates it against the lessee's
// open invoices oldest period first, and books the allocation posting.
//
// Lost optimistic-lock races are retried from scratch: the invoice set is
// re-read, the payment re-created in memory and the allocation re-run, so a
// concurrent allocation for the same lessee can never double-apply.
func (s *AllocationService) RecordAndAllocate(ctx context.Context, req RecordPaymentRequest) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "record_and_allocate")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrLesseeID, req.LesseeID.String(),
		telemetry.SpanAttrAmount, req.Amount.StringFixed(2),
		telemetry.SpanAttrPaymentNumber, req.PaymentNumber,
	)

	retries := s.Retries
	if retries <= 0 {
		retries = allocationRetries
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		result, err := s.runOnce(ctx, req)
		if err == nil {
			telemetry.AddEvent(span, "allocation_completed",
				"payment_id", result.PaymentID.String(),
				"applied", result.Outcome.TotalApplied.String(),
				"unapplied", result.Outcome.Unapplied.String(),
			)
			return result, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			telemetry.RecordError(span, err)
			return nil, err
		}
		lastErr = err
		s.logger.Warn("allocation lost optimistic lock, retrying",
			zap.String("lessee_id", req.LesseeID.String()),
			zap.Int("attempt", attempt+1),
		)
	}

	telemetry.RecordError(span, lastErr)
	return nil, fmt.Errorf("allocation for lessee %s kept losing the optimistic lock: %w", req.LesseeID, lastErr)
}

func (s *AllocationService) runOnce(ctx context.Context, req RecordPaymentRequest) (*AllocationResult, error) {
	payment, err := billing.NewPayment(req.TenantID, req.PaymentNumber, req.LesseeID, req.Amount, req.ReceivedOn, req.Reference)
	if err != nil {
		return nil, err
	}

	invoices, err := s.invoices.FindOutstandingByLessee(ctx, req.TenantID, req.LesseeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load outstanding invoices: %w", err)
	}

	outcome, err := s.allocator.Allocate(payment, invoices)
	if err != nil {
		return nil, err
	}

	touched := make([]*billing.Invoice, 0, len(outcome.Lines))
	byID := make(map[uuid.UUID]*billing.Invoice, len(invoices))
	for _, inv := range invoices {
		byID[inv.ID] = inv
	}
	for _, line := range outcome.Lines {
		touched = append(touched, byID[line.InvoiceID])
	}

	// All writes of one attempt commit as one unit. A lost lock on any
	// invoice rolls back every invoice already saved, the payment and the
	// posting, so the retry starts from the pre-attempt state and the
	// applied total can never exceed the payment.
	result := &AllocationResult{Outcome: outcome}
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		for _, inv := range touched {
			if err := s.invoices.SaveWithLock(ctx, inv); err != nil {
				return err
			}
		}
		if err := s.payments.Save(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		posting, err := s.emitter.EmitPaymentAllocation(ctx, payment, outcome, s.clock.Now())
		if err != nil {
			return fmt.Errorf("failed to book allocation: %w", err)
		}
		if posting != nil {
			result.PostingID = &posting.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.PaymentID = payment.ID

	s.logger.Info("payment allocated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("lessee_id", req.LesseeID.String()),
		zap.String("applied", outcome.TotalApplied.String()),
		zap.String("unapplied", outcome.Unapplied.String()),
		zap.Int("invoices", len(outcome.Lines)),
	)
	return result, nil
}

// PreviewAllocation computes what an amount would settle without writing
// anything.
func (s *AllocationService) PreviewAllocation(ctx context.Context, tenantID, lesseeID uuid.UUID, amount valueobject.Money) (*billing.AllocationOutcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "preview")
	defer span.End()

	invoices, err := s.invoices.FindOutstandingByLessee(ctx, tenantID, lesseeID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load outstanding invoices: %w", err)
	}
	return s.allocator.Preview(amount, invoices)
}

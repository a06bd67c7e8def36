package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hausverwaltung/backend/internal/domain/billing"
	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/infrastructure/telemetry"
)

// DunningService recomputes dunning levels and default interest for overdue
// invoices. Levels are pure functions of days overdue, so a run is always an
// idempotent recomputation, never a stored state transition.
type DunningService struct {
	invoices billing.InvoiceRepository
	clock    shared.Clock
	rate     decimal.Decimal
	logger   *zap.Logger
}

// NewDunningService creates a DunningService. A non-positive rate falls back
// to the statutory default.
func NewDunningService(invoices billing.InvoiceRepository, clock shared.Clock, annualRatePercent decimal.Decimal, logger *zap.Logger) *DunningService {
	if !annualRatePercent.IsPositive() {
		annualRatePercent = billing.DefaultAnnualInterestRate
	}
	return &DunningService{
		invoices: invoices,
		clock:    clock,
		rate:     annualRatePercent,
		logger:   logger,
	}
}

// DunningRunResult summarizes one dunning run
type DunningRunResult struct {
	Assessments   []billing.DunningAssessment `json:"assessments"`
	TotalInterest decimal.Decimal             `json:"total_interest"`
}

// Run assesses every overdue invoice of a tenant as of the injected clock's
// now. Invoices are also flipped to the OVERDUE status as a side effect, so
// list views reflect what the assessment saw.
func (s *DunningService) Run(ctx context.Context, tenantID uuid.UUID) (*DunningRunResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dunning", "run")
	defer span.End()

	now := s.clock.Now()
	overdue, err := s.invoices.FindOverdue(ctx, tenantID, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load overdue invoices: %w", err)
	}

	assessments := make([]billing.DunningAssessment, 0, len(overdue))
	totalInterest := decimal.Zero
	for _, inv := range overdue {
		assessment, err := billing.AssessInvoice(inv, now, s.rate)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		statusBefore := inv.Status
		inv.MarkOverdue(now)
		if inv.Status != statusBefore {
			if err := s.invoices.SaveWithLock(ctx, inv); err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
		}
		assessments = append(assessments, *assessment)
		totalInterest = totalInterest.Add(assessment.Interest)
	}

	telemetry.SetAttributes(span,
		"overdue_count", len(assessments),
		"total_interest", totalInterest.String(),
	)
	s.logger.Info("dunning run completed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("overdue", len(assessments)),
		zap.String("total_interest", totalInterest.String()),
	)

	return &DunningRunResult{Assessments: assessments, TotalInterest: totalInterest}, nil
}

// AssessInvoice assesses a single invoice without persisting anything
func (s *DunningService) AssessInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*billing.DunningAssessment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dunning", "assess_invoice")
	defer span.End()

	inv, err := s.invoices.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return billing.AssessInvoice(inv, s.clock.Now(), s.rate)
}

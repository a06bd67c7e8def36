package distribution

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/hausverwaltung/backend/internal/domain/distribution"
	"github.com/hausverwaltung/backend/internal/domain/ledger"
	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
	"github.com/hausverwaltung/backend/internal/infrastructure/telemetry"
)

// CostItem is one cost position of a settlement run (heating, water,
// insurance, ...), distributed independently of the others.
type CostItem struct {
	ID             uuid.UUID
	Description    string
	Amount         valueobject.Money
	Key            distribution.Key
	TaxRatePercent decimal.Decimal
	ReserveAnnual  decimal.Decimal
	Monthly        bool
}

// ItemResult pairs a cost item with its computed distribution
type ItemResult struct {
	ItemID      uuid.UUID            `json:"item_id"`
	Description string               `json:"description"`
	Result      *distribution.Result `json:"result"`
	PostingID   *uuid.UUID           `json:"posting_id,omitempty"`
}

// RunRequest describes a settlement run over one participant set
type RunRequest struct {
	TenantID     uuid.UUID
	Items        []CostItem
	Participants []distribution.Participant
}

// RunResult is the outcome of a settlement run
type RunResult struct {
	Items      []ItemResult    `json:"items"`
	GrossTotal decimal.Decimal `json:"gross_total"`
}

// Service computes cost distributions and books the results. Cost items are
// independent of each other, so the calculation fans out across them; within
// one item the reconciliation needs the full share ordering and stays
// sequential.
type Service struct {
	calculator *distribution.Calculator
	emitter    *ledger.PostingEmitter
	clock      shared.Clock
	logger     *zap.Logger

	// Workers caps the calculation fan-out; zero means one goroutine per
	// cost item.
	Workers int
}

// NewService creates a distribution Service
func NewService(emitter *ledger.PostingEmitter, clock shared.Clock, logger *zap.Logger) *Service {
	return &Service{
		calculator: distribution.NewCalculator(),
		emitter:    emitter,
		clock:      clock,
		logger:     logger,
	}
}

// Run distributes every cost item across the participants and books one
// posting per item. Calculation runs in parallel across items; emission is
// sequential in item order so posting creation stays deterministic.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "distribution", "run")
	defer span.End()

	telemetry.SetAttributes(span,
		"item_count", len(req.Items),
		"participant_count", len(req.Participants),
	)

	if len(req.Items) == 0 {
		return &RunResult{Items: []ItemResult{}, GrossTotal: decimal.Zero}, nil
	}

	results := make([]*distribution.Result, len(req.Items))
	p := pool.New().WithErrors()
	if s.Workers > 0 {
		p = p.WithMaxGoroutines(s.Workers)
	}
	for i, item := range req.Items {
		p.Go(func() error {
			result, err := s.calculator.Distribute(item.Amount, req.Participants, item.Key, distribution.Options{
				TaxRatePercent: item.TaxRatePercent,
				ReserveAnnual:  item.ReserveAnnual,
				Monthly:        item.Monthly,
			})
			if err != nil {
				return fmt.Errorf("cost item %q: %w", item.Description, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	items := make([]ItemResult, len(req.Items))
	grossTotal := decimal.Zero
	for i, item := range req.Items {
		itemResult := ItemResult{
			ItemID:      item.ID,
			Description: item.Description,
			Result:      results[i],
		}
		posting, err := s.emitter.EmitCostDistribution(ctx, req.TenantID, item.ID, results[i], item.Description, now)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to book cost item %q: %w", item.Description, err)
		}
		if posting != nil {
			itemResult.PostingID = &posting.ID
		}
		items[i] = itemResult
		grossTotal = grossTotal.Add(results[i].GrossTotal)
	}

	s.logger.Info("distribution run completed",
		zap.String("tenant_id", req.TenantID.String()),
		zap.Int("items", len(items)),
		zap.Int("participants", len(req.Participants)),
		zap.String("gross_total", grossTotal.String()),
	)

	return &RunResult{Items: items, GrossTotal: grossTotal}, nil
}

// Preview computes a single distribution without booking anything
func (s *Service) Preview(ctx context.Context, item CostItem, participants []distribution.Participant) (*distribution.Result, error) {
	_, span := telemetry.StartServiceSpan(ctx, "distribution", "preview")
	defer span.End()

	result, err := s.calculator.Distribute(item.Amount, participants, item.Key, distribution.Options{
		TaxRatePercent: item.TaxRatePercent,
		ReserveAnnual:  item.ReserveAnnual,
		Monthly:        item.Monthly,
	})
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return result, err
}

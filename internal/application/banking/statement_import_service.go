package banking

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
	"github.com/hausverwaltung/backend/internal/infrastructure/bankcsv"
	"github.com/hausverwaltung/backend/internal/infrastructure/telemetry"
)

// StatementImportService imports whole bank statement exports. Each line
// becomes an unmatched transaction through the regular single-line import,
// so imported lines flow into the same auto-match pipeline.
type StatementImportService struct {
	parser  *bankcsv.Parser
	matches *MatchService
	logger  *zap.Logger
}

// NewStatementImportService creates a StatementImportService
func NewStatementImportService(parser *bankcsv.Parser, matches *MatchService, logger *zap.Logger) *StatementImportService {
	return &StatementImportService{
		parser:  parser,
		matches: matches,
		logger:  logger,
	}
}

// StatementImportResult summarizes one statement import
type StatementImportResult struct {
	TotalRows int                `json:"total_rows"`
	Imported  int                `json:"imported"`
	Failed    int                `json:"failed"`
	Errors    []bankcsv.RowError `json:"errors,omitempty"`
}

// Import parses the statement and stores every valid line. A structurally
// broken file fails the call; individual bad rows are reported in the
// result and do not abort the rest of the import.
func (s *StatementImportService) Import(ctx context.Context, tenantID uuid.UUID, r io.Reader) (*StatementImportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_match", "import_statement")
	defer span.End()

	lines, rowErrors, err := s.parser.Parse(r)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, bankcsv.ErrEmptyFile) ||
			errors.Is(err, bankcsv.ErrInvalidEncoding) ||
			errors.Is(err, bankcsv.ErrMissingHeader) ||
			errors.Is(err, bankcsv.ErrUnknownColumns) {
			return nil, shared.NewDomainError("INVALID_STATEMENT_FILE", err.Error())
		}
		return nil, err
	}

	// A row can carry several errors; failed rows are counted once.
	failedRows := make(map[int]struct{}, len(rowErrors))
	for _, rowErr := range rowErrors {
		failedRows[rowErr.Row] = struct{}{}
	}

	result := &StatementImportResult{
		TotalRows: len(lines) + len(failedRows),
		Errors:    rowErrors,
	}

	for _, line := range lines {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		_, err := s.matches.ImportTransaction(ctx, ImportTransactionRequest{
			TenantID:        tenantID,
			Amount:          valueobject.NewMoneyEUR(line.Amount),
			BookedOn:        line.BookedOn,
			CounterpartName: line.CounterpartName,
			CounterpartIBAN: line.CounterpartIBAN,
			Purpose:         line.Purpose,
		})
		if err != nil {
			s.logger.Warn("statement line import failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Int("line", line.LineNumber),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, bankcsv.NewRowError(
				line.LineNumber, "", bankcsv.ErrCodeMalformedRow, err.Error()))
			continue
		}
		result.Imported++
	}

	result.Failed = result.TotalRows - result.Imported

	s.logger.Info("statement imported",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("total_rows", result.TotalRows),
		zap.Int("imported", result.Imported),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}

package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hausverwaltung/backend/internal/domain/ledger"
	"github.com/hausverwaltung/backend/internal/domain/shared"
)

// newMockPostingRepository creates a GormPostingRepository with a mocked SQL connection
func newMockPostingRepository(t *testing.T) (*GormPostingRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormPostingRepository(gormDB), mock, mockDB
}

func postingColumns() []string {
	return []string{
		"id", "tenant_id", "version", "source_type", "source_id",
		"posted_on", "description", "lines",
	}
}

func rentAllocationLines() []byte {
	return []byte(`[
		{"account_id":"1200","side":"DEBIT","amount":"850.00","label":"Bank"},
		{"account_id":"1400","side":"CREDIT","amount":"850.00","label":"Forderungen"}
	]`)
}

func TestGormPostingRepository_FindBySource(t *testing.T) {
	t.Run("finds posting recorded for a source event", func(t *testing.T) {
		repo, mock, mockDB := newMockPostingRepository(t)
		defer mockDB.Close()

		postingID := uuid.New()
		tenantID := uuid.New()
		paymentID := uuid.New()

		rows := sqlmock.NewRows(postingColumns()).
			AddRow(postingID, tenantID, 1, "payment_allocation", paymentID,
				time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
				"Zahlungszuordnung PAY-2026-001", rentAllocationLines())

		mock.ExpectQuery(`SELECT \* FROM "postings" WHERE tenant_id = \$1 AND \(source_type = \$2 AND source_id = \$3\) ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, "payment_allocation", paymentID, 1).
			WillReturnRows(rows)

		posting, err := repo.FindBySource(context.Background(), tenantID, ledger.SourcePaymentAllocation, paymentID)

		assert.NoError(t, err)
		require.NotNil(t, posting)
		assert.Equal(t, postingID, posting.ID)
		assert.Equal(t, ledger.SourcePaymentAllocation, posting.SourceType)
		require.Len(t, posting.Lines, 2)
		assert.Equal(t, ledger.SideDebit, posting.Lines[0].Side)
		assert.True(t, posting.Lines[0].Amount.Equal(decimal.RequireFromString("850.00")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound when no posting exists for source", func(t *testing.T) {
		repo, mock, mockDB := newMockPostingRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		paymentID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "postings" WHERE tenant_id = \$1 AND \(source_type = \$2 AND source_id = \$3\) ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, "payment_allocation", paymentID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		posting, err := repo.FindBySource(context.Background(), tenantID, ledger.SourcePaymentAllocation, paymentID)

		assert.Error(t, err)
		assert.Nil(t, posting)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPostingRepository_ExistsForSource(t *testing.T) {
	t.Run("reports true when a posting was recorded", func(t *testing.T) {
		repo, mock, mockDB := newMockPostingRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		invoiceID := uuid.New()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "postings" WHERE tenant_id = \$1 AND \(source_type = \$2 AND source_id = \$3\)`).
			WithArgs(tenantID, "invoice_issuance", invoiceID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		exists, err := repo.ExistsForSource(context.Background(), tenantID, ledger.SourceInvoiceIssuance, invoiceID)

		assert.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports false when nothing was recorded", func(t *testing.T) {
		repo, mock, mockDB := newMockPostingRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		invoiceID := uuid.New()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "postings" WHERE tenant_id = \$1 AND \(source_type = \$2 AND source_id = \$3\)`).
			WithArgs(tenantID, "invoice_issuance", invoiceID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		exists, err := repo.ExistsForSource(context.Background(), tenantID, ledger.SourceInvoiceIssuance, invoiceID)

		assert.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPostingRepository_Save(t *testing.T) {
	newAllocationPosting := func(tenantID uuid.UUID) *ledger.Posting {
		posting := &ledger.Posting{
			SourceType:  ledger.SourcePaymentAllocation,
			SourceID:    uuid.New(),
			PostedOn:    time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
			Description: "Zahlungszuordnung PAY-2026-001",
			Lines: ledger.PostingLines{
				{AccountID: "1200", Side: ledger.SideDebit, Amount: decimal.RequireFromString("850.00")},
				{AccountID: "1400", Side: ledger.SideCredit, Amount: decimal.RequireFromString("850.00")},
			},
		}
		posting.ID = uuid.New()
		posting.TenantID = tenantID
		posting.Version = 1
		return posting
	}

	t.Run("inserts a new posting", func(t *testing.T) {
		repo, mock, mockDB := newMockPostingRepository(t)
		defer mockDB.Close()

		posting := newAllocationPosting(uuid.New())

		// PostgreSQL GORM issues the INSERT as a query with a RETURNING clause
		mock.ExpectQuery(`INSERT INTO "postings"`).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))

		err := repo.Save(context.Background(), posting)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violation to ErrAlreadyExists", func(t *testing.T) {
		repo, mock, mockDB := newMockPostingRepository(t)
		defer mockDB.Close()

		posting := newAllocationPosting(uuid.New())

		mock.ExpectQuery(`INSERT INTO "postings"`).
			WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_postings_tenant_source" (SQLSTATE 23505)`))

		err := repo.Save(context.Background(), posting)

		assert.Equal(t, shared.ErrAlreadyExists, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps translated duplicate key error to ErrAlreadyExists", func(t *testing.T) {
		repo, mock, mockDB := newMockPostingRepository(t)
		defer mockDB.Close()

		posting := newAllocationPosting(uuid.New())

		mock.ExpectQuery(`INSERT INTO "postings"`).
			WillReturnError(gorm.ErrDuplicatedKey)

		err := repo.Save(context.Background(), posting)

		assert.Equal(t, shared.ErrAlreadyExists, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

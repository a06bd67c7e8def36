package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hausverwaltung/backend/internal/domain/banking"
	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
	"github.com/hausverwaltung/backend/internal/infrastructure/event"
)

// newMockBankTransactionRepository creates a GormBankTransactionRepository with a mocked SQL connection
func newMockBankTransactionRepository(t *testing.T) (*GormBankTransactionRepository, sqlmock.Sqlmock, *sql.DB) {
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

	return NewGormBankTransactionRepository(gormDB), mock, mockDB
}

func bankTransactionColumns() []string {
	return []string{
		"id", "tenant_id", "version", "amount", "booked_on",
		"counterpart_name", "counterpart_iban", "purpose",
		"matched_lessee_id", "matched_invoice_id",
	}
}

func TestGormBankTransactionRepository_FindByIDForTenant(t *testing.T) {
	t.Run("finds transaction within tenant", func(t *testing.T) {
		repo, mock, mockDB := newMockBankTransactionRepository(t)
		defer mockDB.Close()

		txID := uuid.New()
		tenantID := uuid.New()

		rows := sqlmock.NewRows(bankTransactionColumns()).
			AddRow(txID, tenantID, 1, decimal.RequireFromString("850.00"),
				time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
				"Erika Mustermann", "DE89370400440532013000", "Miete Januar INV-2026-001",
				nil, nil)

		mock.ExpectQuery(`SELECT \* FROM "bank_transactions" WHERE tenant_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, txID, 1).
			WillReturnRows(rows)

		tx, err := repo.FindByIDForTenant(context.Background(), tenantID, txID)

		assert.NoError(t, err)
		require.NotNil(t, tx)
		assert.Equal(t, txID, tx.ID)
		assert.True(t, tx.Amount.Amount().Equal(decimal.RequireFromString("850.00")))
		assert.Nil(t, tx.MatchedInvoiceID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for non-existent transaction", func(t *testing.T) {
		repo, mock, mockDB := newMockBankTransactionRepository(t)
		defer mockDB.Close()

		txID := uuid.New()
		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "bank_transactions" WHERE tenant_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, txID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		tx, err := repo.FindByIDForTenant(context.Background(), tenantID, txID)

		assert.Error(t, err)
		assert.Nil(t, tx)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormBankTransactionRepository_FindUnmatchedCredits(t *testing.T) {
	t.Run("returns unlinked credits oldest booking first", func(t *testing.T) {
		repo, mock, mockDB := newMockBankTransactionRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		earlyID := uuid.New()
		lateID := uuid.New()

		rows := sqlmock.NewRows(bankTransactionColumns()).
			AddRow(earlyID, tenantID, 1, decimal.RequireFromString("850.00"),
				time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
				"Erika Mustermann", "DE89370400440532013000", "Miete Januar", nil, nil).
			AddRow(lateID, tenantID, 1, decimal.RequireFromString("920.00"),
				time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
				"Hans Weber", "DE02120300000000202051", "Miete", nil, nil)

		mock.ExpectQuery(`SELECT \* FROM "bank_transactions" WHERE tenant_id = \$1 AND \(matched_invoice_id IS NULL AND amount > 0\) ORDER BY booked_on ASC, id ASC`).
			WithArgs(tenantID).
			WillReturnRows(rows)

		transactions, err := repo.FindUnmatchedCredits(context.Background(), tenantID)

		assert.NoError(t, err)
		require.Len(t, transactions, 2)
		assert.Equal(t, earlyID, transactions[0].ID)
		assert.Equal(t, lateID, transactions[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormBankTransactionRepository_SaveWithLock(t *testing.T) {
	newMatchedTransaction := func(tenantID uuid.UUID) *banking.BankTransaction {
		lesseeID := uuid.New()
		invoiceID := uuid.New()
		matchedAt := time.Date(2026, 1, 4, 9, 30, 0, 0, time.UTC)
		tx := &banking.BankTransaction{
			Amount:           valueobject.NewMoneyEUR(decimal.RequireFromString("850.00")),
			BookedOn:         time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
			CounterpartName:  "Erika Mustermann",
			CounterpartIBAN:  "DE89370400440532013000",
			Purpose:          "Miete Januar",
			MatchedLesseeID:  &lesseeID,
			MatchedInvoiceID: &invoiceID,
			MatchedAt:        &matchedAt,
		}
		tx.ID = uuid.New()
		tx.TenantID = tenantID
		tx.Version = 2
		return tx
	}

	t.Run("updates match link when version matches", func(t *testing.T) {
		repo, mock, mockDB := newMockBankTransactionRepository(t)
		defer mockDB.Close()

		tx := newMatchedTransaction(uuid.New())

		mock.ExpectExec(`UPDATE "bank_transactions" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SaveWithLock(context.Background(), tx)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns concurrency conflict when version moved on", func(t *testing.T) {
		repo, mock, mockDB := newMockBankTransactionRepository(t)
		defer mockDB.Close()

		tx := newMatchedTransaction(uuid.New())

		mock.ExpectExec(`UPDATE "bank_transactions" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SaveWithLock(context.Background(), tx)

		assert.Equal(t, shared.ErrConcurrencyConflict, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormBankTransactionRepository_SaveWithLock_WritesOutbox(t *testing.T) {
	t.Run("match event lands in the outbox within the same transaction", func(t *testing.T) {
		repo, mock, mockDB := newMockBankTransactionRepository(t)
		defer mockDB.Close()

		repo.SetOutboxEventSaver(event.NewOutboxPublisher(event.NewEventSerializer()))

		lesseeID := uuid.New()
		invoiceID := uuid.New()
		matchedAt := time.Date(2026, 1, 4, 9, 30, 0, 0, time.UTC)
		tx := &banking.BankTransaction{
			Amount:           valueobject.NewMoneyEUR(decimal.RequireFromString("850.00")),
			BookedOn:         time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
			CounterpartName:  "Erika Mustermann",
			CounterpartIBAN:  "DE89370400440532013000",
			Purpose:          "Miete Januar INV-2026-001",
			MatchedLesseeID:  &lesseeID,
			MatchedInvoiceID: &invoiceID,
			MatchedAt:        &matchedAt,
		}
		tx.ID = uuid.New()
		tx.TenantID = uuid.New()
		tx.Version = 2
		tx.AddDomainEvent(banking.NewTransactionMatchedEvent(tx))

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "bank_transactions" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO "outbox_events"`).
			WillReturnRows(sqlmock.NewRows([]string{"retry_count", "max_retries"}).AddRow(0, 5))
		mock.ExpectCommit()

		err := repo.SaveWithLock(context.Background(), tx)

		assert.NoError(t, err)
		assert.Empty(t, tx.GetDomainEvents())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

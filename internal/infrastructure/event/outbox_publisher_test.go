package event

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOutboxPublisher_PublishWithTx(t *testing.T) {
	db, mock := setupMockDB(t)

	serializer := NewEventSerializer()
	publisher := NewOutboxPublisher(serializer)

	tenantID := uuid.New()
	event := newTestEvent("billing.invoice.paid", tenantID)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "outbox_events"`)).
		WillReturnRows(sqlmock.NewRows([]string{"retry_count", "max_retries"}).AddRow(0, 5))
	mock.ExpectCommit()

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.PublishWithTx(context.Background(), tx, event)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPublisher_NoEventsIsNoop(t *testing.T) {
	db, mock := setupMockDB(t)

	publisher := NewOutboxPublisher(NewEventSerializer())

	err := publisher.PublishWithTx(context.Background(), db)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPublisher_SaveEventsRejectsWrongTxType(t *testing.T) {
	publisher := NewOutboxPublisher(NewEventSerializer())

	err := publisher.SaveEvents(context.Background(), "not a tx", newTestEvent("billing.invoice.paid", uuid.New()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "*gorm.DB")
}

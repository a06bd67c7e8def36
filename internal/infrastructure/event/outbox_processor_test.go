package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hausverwaltung/backend/internal/domain/shared"
)

// memoryOutboxRepository is an in-memory OutboxRepository for processor tests
type memoryOutboxRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*shared.OutboxEntry
}

func newMemoryOutboxRepository() *memoryOutboxRepository {
	return &memoryOutboxRepository{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *memoryOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		copied := *e
		r.entries[e.ID] = &copied
	}
	return nil
}

func (r *memoryOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusPending && len(result) < limit {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *memoryOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusFailed && e.NextRetryAt != nil && e.NextRetryAt.Before(before) && len(result) < limit {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *memoryOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusDead {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, int64(len(result)), nil
}

func (r *memoryOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

func (r *memoryOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []*shared.OutboxEntry
	for _, id := range ids {
		e, ok := r.entries[id]
		if !ok {
			continue
		}
		if e.Status != shared.OutboxStatusPending && e.Status != shared.OutboxStatusFailed {
			continue
		}
		e.Status = shared.OutboxStatusProcessing
		copied := *e
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (r *memoryOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *entry
	r.entries[entry.ID] = &copied
	return nil
}

func (r *memoryOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, e := range r.entries {
		if e.Status == shared.OutboxStatusSent && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *memoryOutboxRepository) get(id uuid.UUID) *shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id]
}

func storedEntry(t *testing.T, repo *memoryOutboxRepository, serializer *EventSerializer, eventType string) *shared.OutboxEntry {
	t.Helper()
	tenantID := uuid.New()
	event := newTestEvent(eventType, tenantID)
	payload, err := serializer.Serialize(event)
	require.NoError(t, err)
	entry := shared.NewOutboxEntry(tenantID, event, payload)
	require.NoError(t, repo.Save(context.Background(), entry))
	return entry
}

func TestOutboxProcessor_DeliversPendingEntry(t *testing.T) {
	repo := newMemoryOutboxRepository()
	serializer := NewEventSerializer()
	serializer.Register("billing.invoice.paid", &testEvent{})
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("billing.invoice.paid")
	bus.Subscribe(handler, "billing.invoice.paid")

	entry := storedEntry(t, repo, serializer, "billing.invoice.paid")

	processor := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), zap.NewNop())
	processor.processBatch(context.Background())

	assert.Len(t, handler.getHandled(), 1)
	assert.Equal(t, shared.OutboxStatusSent, repo.get(entry.ID).Status)
	require.NotNil(t, repo.get(entry.ID).ProcessedAt)
}

func TestOutboxProcessor_UnknownEventTypeFails(t *testing.T) {
	repo := newMemoryOutboxRepository()
	serializer := NewEventSerializer() // nothing registered
	bus := NewInMemoryEventBus(zap.NewNop())

	entry := storedEntry(t, repo, serializer, "billing.invoice.paid")

	processor := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), zap.NewNop())
	processor.processBatch(context.Background())

	stored := repo.get(entry.ID)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.LastError, "unknown event type")
	require.NotNil(t, stored.NextRetryAt)
}

func TestOutboxProcessor_FailureGoesDeadAfterMaxRetries(t *testing.T) {
	repo := newMemoryOutboxRepository()
	serializer := NewEventSerializer()
	bus := NewInMemoryEventBus(zap.NewNop())

	entry := storedEntry(t, repo, serializer, "billing.invoice.paid")

	processor := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), zap.NewNop())

	// drive the entry through its whole retry budget
	for i := 0; i < shared.DefaultMaxRetries; i++ {
		stored := repo.get(entry.ID)
		processor.processEntry(context.Background(), stored)
	}

	assert.Equal(t, shared.OutboxStatusDead, repo.get(entry.ID).Status)
}

func TestOutboxProcessor_Cleanup(t *testing.T) {
	repo := newMemoryOutboxRepository()
	serializer := NewEventSerializer()
	serializer.Register("billing.invoice.paid", &testEvent{})
	bus := NewInMemoryEventBus(zap.NewNop())

	entry := storedEntry(t, repo, serializer, "billing.invoice.paid")
	stored := repo.get(entry.ID)
	stored.MarkSent()
	old := time.Now().Add(-30 * 24 * time.Hour)
	stored.ProcessedAt = &old

	config := DefaultOutboxProcessorConfig()
	processor := NewOutboxProcessor(repo, bus, serializer, config, zap.NewNop())
	processor.cleanup(context.Background())

	assert.Nil(t, repo.get(entry.ID))
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	repo := newMemoryOutboxRepository()
	serializer := NewEventSerializer()
	bus := NewInMemoryEventBus(zap.NewNop())

	config := DefaultOutboxProcessorConfig()
	config.PollInterval = 10 * time.Millisecond
	processor := NewOutboxProcessor(repo, bus, serializer, config, zap.NewNop())

	require.NoError(t, processor.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, processor.Stop(stopCtx))
}

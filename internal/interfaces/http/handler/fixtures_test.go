package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hausverwaltung/backend/internal/domain/banking"
	"github.com/hausverwaltung/backend/internal/domain/billing"
	"github.com/hausverwaltung/backend/internal/domain/ledger"
	"github.com/hausverwaltung/backend/internal/domain/shared"
)

// apiEnvelope mirrors the response wrapper for test assertions
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, tenantID string, body any) (*httptest.ResponseRecorder, apiEnvelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var envelope apiEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

// staticChart resolves every account role to a deterministic account number
type staticChart struct{}

func (staticChart) AccountFor(_ context.Context, _ uuid.UUID, role ledger.AccountRole) (string, error) {
	return "1000-" + string(role), nil
}

type memoryPostingStore struct {
	mu       sync.Mutex
	postings []*ledger.Posting
}

func (s *memoryPostingStore) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*ledger.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.postings {
		if p.ID == id && p.TenantID == tenantID {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *memoryPostingStore) FindBySource(_ context.Context, tenantID uuid.UUID, sourceType ledger.SourceType, sourceID uuid.UUID) (*ledger.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findBySourceLocked(tenantID, sourceType, sourceID)
}

func (s *memoryPostingStore) findBySourceLocked(tenantID uuid.UUID, sourceType ledger.SourceType, sourceID uuid.UUID) (*ledger.Posting, error) {
	for _, p := range s.postings {
		if p.TenantID == tenantID && p.SourceType == sourceType && p.SourceID == sourceID {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *memoryPostingStore) ExistsForSource(_ context.Context, tenantID uuid.UUID, sourceType ledger.SourceType, sourceID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.findBySourceLocked(tenantID, sourceType, sourceID)
	return err == nil, nil
}

func (s *memoryPostingStore) Save(_ context.Context, posting *ledger.Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.findBySourceLocked(posting.TenantID, posting.SourceType, posting.SourceID); err == nil {
		return shared.ErrAlreadyExists
	}
	s.postings = append(s.postings, posting)
	return nil
}

// memoryInvoiceRepo is an in-memory billing.InvoiceRepository
type memoryInvoiceRepo struct {
	mu       sync.Mutex
	invoices []*billing.Invoice
}

func (r *memoryInvoiceRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.ID == id && inv.TenantID == tenantID {
			return inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryInvoiceRepo) FindByNumber(_ context.Context, tenantID uuid.UUID, invoiceNumber string) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID && inv.InvoiceNumber == invoiceNumber {
			return inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryInvoiceRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, _ billing.InvoiceFilter) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []billing.Invoice
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID {
			result = append(result, *inv)
		}
	}
	return result, nil
}

func (r *memoryInvoiceRepo) FindOutstandingByLessee(_ context.Context, tenantID, lesseeID uuid.UUID) ([]*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*billing.Invoice
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID && inv.LesseeID == lesseeID && inv.Outstanding().IsPositive() {
			result = append(result, inv)
		}
	}
	sortInvoicesByPeriod(result)
	return result, nil
}

func (r *memoryInvoiceRepo) FindOutstanding(_ context.Context, tenantID uuid.UUID) ([]*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*billing.Invoice
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID && inv.Outstanding().IsPositive() {
			result = append(result, inv)
		}
	}
	sortInvoicesByPeriod(result)
	return result, nil
}

func (r *memoryInvoiceRepo) FindOverdue(_ context.Context, tenantID uuid.UUID, cutoff time.Time) ([]*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*billing.Invoice
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID && inv.Outstanding().IsPositive() && inv.DueDate.Before(cutoff) {
			result = append(result, inv)
		}
	}
	sortInvoicesByPeriod(result)
	return result, nil
}

func (r *memoryInvoiceRepo) Save(_ context.Context, invoice *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, inv := range r.invoices {
		if inv.ID == invoice.ID {
			r.invoices[i] = invoice
			return nil
		}
	}
	r.invoices = append(r.invoices, invoice)
	return nil
}

func (r *memoryInvoiceRepo) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	return r.Save(ctx, invoice)
}

func (r *memoryInvoiceRepo) CountByStatus(_ context.Context, tenantID uuid.UUID, status billing.InvoiceStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID && inv.Status == status {
			count++
		}
	}
	return count, nil
}

func sortInvoicesByPeriod(invoices []*billing.Invoice) {
	for i := 1; i < len(invoices); i++ {
		for j := i; j > 0 && invoices[j].Period.String() < invoices[j-1].Period.String(); j-- {
			invoices[j], invoices[j-1] = invoices[j-1], invoices[j]
		}
	}
}

// memoryPaymentRepo is an in-memory billing.PaymentRepository
type memoryPaymentRepo struct {
	mu       sync.Mutex
	payments []*billing.Payment
}

func (r *memoryPaymentRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*billing.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ID == id && p.TenantID == tenantID {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryPaymentRepo) FindByLessee(_ context.Context, tenantID, lesseeID uuid.UUID) ([]billing.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []billing.Payment
	for _, p := range r.payments {
		if p.TenantID == tenantID && p.LesseeID == lesseeID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (r *memoryPaymentRepo) Save(_ context.Context, payment *billing.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.payments {
		if p.ID == payment.ID {
			r.payments[i] = payment
			return nil
		}
	}
	r.payments = append(r.payments, payment)
	return nil
}

// memoryTransactionRepo is an in-memory banking.BankTransactionRepository
type memoryTransactionRepo struct {
	mu           sync.Mutex
	transactions []*banking.BankTransaction
}

func (r *memoryTransactionRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*banking.BankTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.transactions {
		if tx.ID == id && tx.TenantID == tenantID {
			return tx, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryTransactionRepo) FindUnmatchedCredits(_ context.Context, tenantID uuid.UUID) ([]*banking.BankTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*banking.BankTransaction
	for _, tx := range r.transactions {
		if tx.TenantID == tenantID && !tx.IsMatched() && tx.IsCredit() {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (r *memoryTransactionRepo) Save(_ context.Context, tx *banking.BankTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.transactions {
		if existing.ID == tx.ID {
			r.transactions[i] = tx
			return nil
		}
	}
	r.transactions = append(r.transactions, tx)
	return nil
}

func (r *memoryTransactionRepo) SaveWithLock(ctx context.Context, tx *banking.BankTransaction) error {
	return r.Save(ctx, tx)
}

func testClock() shared.FixedClock {
	return shared.FixedClock{Instant: time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)}
}

func testEmitter(store *memoryPostingStore) *ledger.PostingEmitter {
	return ledger.NewPostingEmitter(staticChart{}, store)
}

func jsonUnmarshal(data json.RawMessage, v any) error {
	return json.Unmarshal(data, v)
}

var testLogger = zap.NewNop()

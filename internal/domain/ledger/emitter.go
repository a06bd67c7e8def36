package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/billing"
	"github.com/hausverwaltung/backend/internal/domain/distribution"
	"github.com/hausverwaltung/backend/internal/domain/shared"
)

// PostingEmitter translates completed economic events into balanced postings.
// Emission is idempotent per (source_type, source_id): replaying an event that
// was already booked returns the existing posting and writes nothing, which
// keeps at-least-once callers safe.
type PostingEmitter struct {
	accounts ChartOfAccounts
	postings PostingRepository
}

// NewPostingEmitter creates a PostingEmitter
func NewPostingEmitter(accounts ChartOfAccounts, postings PostingRepository) *PostingEmitter {
	return &PostingEmitter{accounts: accounts, postings: postings}
}

// EmitInvoiceIssuance books a newly issued invoice:
// debit receivable, credit rent income, over the gross total.
func (e *PostingEmitter) EmitInvoiceIssuance(ctx context.Context, inv *billing.Invoice, postedOn time.Time) (*Posting, error) {
	receivable, err := e.accounts.AccountFor(ctx, inv.TenantID, RoleReceivable)
	if err != nil {
		return nil, err
	}
	income, err := e.accounts.AccountFor(ctx, inv.TenantID, RoleRentIncome)
	if err != nil {
		return nil, err
	}

	lines := []PostingLine{
		{AccountID: receivable, Side: SideDebit, Amount: inv.GrossTotal, Label: inv.InvoiceNumber},
		{AccountID: income, Side: SideCredit, Amount: inv.GrossTotal, Label: inv.InvoiceNumber},
	}
	return e.emit(ctx, inv.TenantID, SourceInvoiceIssuance, inv.ID, postedOn,
		fmt.Sprintf("Invoice %s issued to %s", inv.InvoiceNumber, inv.LesseeName), lines)
}

// EmitPaymentAllocation books a completed allocation: debit bank for the
// applied total, credit receivable per settled invoice. An allocation that
// applied nothing produces no posting.
func (e *PostingEmitter) EmitPaymentAllocation(ctx context.Context, payment *billing.Payment, outcome *billing.AllocationOutcome, postedOn time.Time) (*Posting, error) {
	if !outcome.TotalApplied.IsPositive() {
		return nil, nil
	}

	bank, err := e.accounts.AccountFor(ctx, payment.TenantID, RoleBank)
	if err != nil {
		return nil, err
	}
	receivable, err := e.accounts.AccountFor(ctx, payment.TenantID, RoleReceivable)
	if err != nil {
		return nil, err
	}

	lines := make([]PostingLine, 0, len(outcome.Lines)+1)
	lines = append(lines, PostingLine{
		AccountID: bank,
		Side:      SideDebit,
		Amount:    outcome.TotalApplied,
		Label:     payment.PaymentNumber,
	})
	for _, line := range outcome.Lines {
		lines = append(lines, PostingLine{
			AccountID: receivable,
			Side:      SideCredit,
			Amount:    line.Amount,
			Label:     line.InvoiceNumber,
		})
	}

	return e.emit(ctx, payment.TenantID, SourcePaymentAllocation, payment.ID, postedOn,
		fmt.Sprintf("Payment %s allocated", payment.PaymentNumber), lines)
}

// EmitCostDistribution books a distribution run: debit receivable per
// participant gross share, credit the cost category (net), VAT payable (tax)
// and reserve fund (reserve) with the component totals.
func (e *PostingEmitter) EmitCostDistribution(ctx context.Context, tenantID, runID uuid.UUID, result *distribution.Result, description string, postedOn time.Time) (*Posting, error) {
	if !result.GrossTotal.IsPositive() {
		return nil, nil
	}

	receivable, err := e.accounts.AccountFor(ctx, tenantID, RoleReceivable)
	if err != nil {
		return nil, err
	}
	cost, err := e.accounts.AccountFor(ctx, tenantID, RoleCostCategory)
	if err != nil {
		return nil, err
	}

	lines := make([]PostingLine, 0, len(result.Lines)+3)
	for _, share := range result.Lines {
		if !share.GrossShare.IsPositive() {
			continue
		}
		lines = append(lines, PostingLine{
			AccountID: receivable,
			Side:      SideDebit,
			Amount:    share.GrossShare,
			Label:     share.ParticipantName,
		})
	}
	lines = append(lines, PostingLine{AccountID: cost, Side: SideCredit, Amount: result.NetTotal, Label: description})

	if result.TaxTotal.IsPositive() {
		vat, err := e.accounts.AccountFor(ctx, tenantID, RoleVATPayable)
		if err != nil {
			return nil, err
		}
		lines = append(lines, PostingLine{AccountID: vat, Side: SideCredit, Amount: result.TaxTotal, Label: description})
	}
	if result.ReserveTotal.IsPositive() {
		reserve, err := e.accounts.AccountFor(ctx, tenantID, RoleReserveFund)
		if err != nil {
			return nil, err
		}
		lines = append(lines, PostingLine{AccountID: reserve, Side: SideCredit, Amount: result.ReserveTotal, Label: description})
	}

	return e.emit(ctx, tenantID, SourceCostDistribution, runID, postedOn, description, lines)
}

// EmitExpense books a paid expense: debit cost category (net) and VAT
// receivable (input tax), credit bank for the gross amount.
func (e *PostingEmitter) EmitExpense(ctx context.Context, tenantID, expenseID uuid.UUID, net, vat decimal.Decimal, description string, postedOn time.Time) (*Posting, error) {
	if net.IsNegative() || vat.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Expense amounts cannot be negative")
	}
	gross := net.Add(vat)
	if !gross.IsPositive() {
		return nil, nil
	}

	cost, err := e.accounts.AccountFor(ctx, tenantID, RoleCostCategory)
	if err != nil {
		return nil, err
	}
	bank, err := e.accounts.AccountFor(ctx, tenantID, RoleBank)
	if err != nil {
		return nil, err
	}

	lines := make([]PostingLine, 0, 3)
	if net.IsPositive() {
		lines = append(lines, PostingLine{AccountID: cost, Side: SideDebit, Amount: net, Label: description})
	}
	if vat.IsPositive() {
		vatAccount, err := e.accounts.AccountFor(ctx, tenantID, RoleVATReceivable)
		if err != nil {
			return nil, err
		}
		lines = append(lines, PostingLine{AccountID: vatAccount, Side: SideDebit, Amount: vat, Label: description})
	}
	lines = append(lines, PostingLine{AccountID: bank, Side: SideCredit, Amount: gross, Label: description})

	return e.emit(ctx, tenantID, SourceExpense, expenseID, postedOn, description, lines)
}

// EmitReversal books a reversing posting for an existing one
func (e *PostingEmitter) EmitReversal(ctx context.Context, original *Posting, reason string, postedOn time.Time) (*Posting, error) {
	reversal, err := original.Reverse(postedOn, reason)
	if err != nil {
		return nil, err
	}
	return e.store(ctx, reversal)
}

func (e *PostingEmitter) emit(ctx context.Context, tenantID uuid.UUID, sourceType SourceType, sourceID uuid.UUID, postedOn time.Time, description string, lines []PostingLine) (*Posting, error) {
	exists, err := e.postings.ExistsForSource(ctx, tenantID, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	if exists {
		return e.postings.FindBySource(ctx, tenantID, sourceType, sourceID)
	}

	posting, err := NewPosting(tenantID, sourceType, sourceID, postedOn, description, lines)
	if err != nil {
		return nil, err
	}
	return e.store(ctx, posting)
}

// store saves the posting, collapsing a lost uniqueness race into the
// already-recorded posting.
func (e *PostingEmitter) store(ctx context.Context, posting *Posting) (*Posting, error) {
	if err := e.postings.Save(ctx, posting); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return e.postings.FindBySource(ctx, posting.TenantID, posting.SourceType, posting.SourceID)
		}
		return nil, err
	}
	return posting, nil
}

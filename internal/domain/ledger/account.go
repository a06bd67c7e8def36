package ledger

import (
	"context"

	"github.com/google/uuid"
)

// AccountRole identifies an account by its semantic function. The actual
// chart-of-accounts identifiers live outside this engine; roles are resolved
// to account IDs through the ChartOfAccounts collaborator.
type AccountRole string

const (
	RoleReceivable    AccountRole = "RECEIVABLE"
	RoleRentIncome    AccountRole = "RENT_INCOME"
	RoleCostCategory  AccountRole = "COST_CATEGORY"
	RoleBank          AccountRole = "BANK"
	RoleVATPayable    AccountRole = "VAT_PAYABLE"
	RoleVATReceivable AccountRole = "VAT_RECEIVABLE"
	RoleReserveFund   AccountRole = "RESERVE_FUND"
)

// IsValid checks whether the role is a known one
func (r AccountRole) IsValid() bool {
	switch r {
	case RoleReceivable, RoleRentIncome, RoleCostCategory, RoleBank,
		RoleVATPayable, RoleVATReceivable, RoleReserveFund:
		return true
	}
	return false
}

func (r AccountRole) String() string {
	return string(r)
}

// ChartOfAccounts resolves semantic roles to the external chart-of-accounts
// identifiers of a tenant. Implemented by the surrounding accounting system.
type ChartOfAccounts interface {
	AccountFor(ctx context.Context, tenantID uuid.UUID, role AccountRole) (string, error)
}

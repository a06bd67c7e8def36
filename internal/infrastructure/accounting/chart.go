package accounting

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hausverwaltung/backend/internal/domain/ledger"
)

// StaticChart resolves account roles from a fixed role-to-account mapping
// shared by all tenants. Deployments that book into an external accounting
// system with per-tenant charts replace this with their own resolver.
type StaticChart struct {
	accounts map[ledger.AccountRole]string
}

// DefaultAccounts is an SKR03-flavoured default mapping for residential
// property management.
func DefaultAccounts() map[ledger.AccountRole]string {
	return map[ledger.AccountRole]string{
		ledger.RoleReceivable:    "1410",
		ledger.RoleRentIncome:    "8100",
		ledger.RoleCostCategory:  "4200",
		ledger.RoleBank:          "1200",
		ledger.RoleVATPayable:    "1776",
		ledger.RoleVATReceivable: "1576",
		ledger.RoleReserveFund:   "0920",
	}
}

// NewStaticChart creates a chart from the default mapping with the given
// overrides applied on top.
func NewStaticChart(overrides map[ledger.AccountRole]string) *StaticChart {
	accounts := DefaultAccounts()
	for role, account := range overrides {
		accounts[role] = account
	}
	return &StaticChart{accounts: accounts}
}

// AccountFor implements ledger.ChartOfAccounts
func (c *StaticChart) AccountFor(_ context.Context, _ uuid.UUID, role ledger.AccountRole) (string, error) {
	account, ok := c.accounts[role]
	if !ok {
		return "", fmt.Errorf("no account configured for role %s", role)
	}
	return account, nil
}

// Package accountdefaults self-heals a company's role-to-account mapping: whenever a
// posting path needs the concrete account for a role (AR, COGS, GRNI, ...) and no mapping
// exists yet, it resolves one from a fallback role, a candidate chart-of-accounts code, or
// (for opening-balance roles only) a synthetic equity account — and persists the result so
// it never needs to resolve that role again.
package accountdefaults

import (
	"context"
	"fmt"

	apperr "github.com/baytretail/core/internal/apperr"
	auditdomain "github.com/baytretail/core/internal/audit/domain"
	companydomain "github.com/baytretail/core/internal/company/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// autoHealRoles is the set of roles this resolver will attempt to self-heal. Roles outside
// this set must be mapped explicitly by an administrator.
var autoHealRoles = map[companydomain.AccountRoleCode]bool{
	companydomain.RoleAR:               true,
	companydomain.RoleAP:               true,
	companydomain.RoleCash:             true,
	companydomain.RoleBank:             true,
	companydomain.RoleSales:            true,
	companydomain.RoleSalesReturns:     true,
	companydomain.RoleVATPayable:       true,
	companydomain.RoleVATRecoverable:   true,
	companydomain.RoleInventory:        true,
	companydomain.RoleCOGS:             true,
	companydomain.RoleInvAdj:           true,
	companydomain.RoleShrinkage:        true,
	companydomain.RoleRounding:         true,
	companydomain.RoleOpeningStock:     true,
	companydomain.RoleOpeningBalance:   true,
	companydomain.RoleGRNI:             true,
	companydomain.RoleIntercoAR:        true,
	companydomain.RoleIntercoAP:        true,
	companydomain.RolePurchasesExpense: true,
}

// roleFallbacks lets a role borrow another role's already-mapped account. Fallbacks are
// tried before any candidate code, in order; the first mapped fallback wins.
var roleFallbacks = map[companydomain.AccountRoleCode][]companydomain.AccountRoleCode{
	companydomain.RoleShrinkage:        {companydomain.RoleInvAdj},
	companydomain.RoleRounding:         {companydomain.RoleInvAdj, companydomain.RoleShrinkage},
	companydomain.RoleOpeningStock:     {companydomain.RoleOpeningBalance, companydomain.RoleInvAdj},
	companydomain.RoleOpeningBalance:   {companydomain.RoleOpeningStock, companydomain.RoleInvAdj},
}

// roleAccountCodeCandidates lists COA codes tried, in order, when no fallback role resolves
// the mapping. The first postable account matching one of these codes wins.
var roleAccountCodeCandidates = map[companydomain.AccountRoleCode][]string{
	companydomain.RoleAR:               {"4111"},
	companydomain.RoleAP:               {"2111"},
	companydomain.RoleCash:             {"1011"},
	companydomain.RoleBank:             {"1012"},
	companydomain.RoleSales:            {"4000"},
	companydomain.RoleSalesReturns:     {"4010"},
	companydomain.RoleVATPayable:       {"2141"},
	companydomain.RoleVATRecoverable:   {"1141"},
	companydomain.RoleInventory:        {"1310"},
	companydomain.RoleCOGS:             {"6011", "6010", "6000"},
	companydomain.RoleInvAdj:           {"6020"},
	companydomain.RoleGRNI:             {"2120"},
	companydomain.RoleIntercoAR:        {"1190"},
	companydomain.RoleIntercoAP:        {"2190"},
	companydomain.RolePurchasesExpense: {"6001"},
}

const (
	openingBalanceAccountCode = "1099"
	openingBalanceAccountName = "Opening Balance Equity"
)

// Resolver resolves and self-heals company_account_defaults rows.
type Resolver struct {
	repo  companydomain.Repository
	audit auditdomain.Service
	genID *snowflake.Node
}

func New(repo companydomain.Repository, audit auditdomain.Service, genID *snowflake.Node) *Resolver {
	return &Resolver{repo: repo, audit: audit, genID: genID}
}

// Resolve returns the account currently mapped to role for companyID, self-healing it first
// if no mapping exists yet. tx must be the transaction the caller is already posting inside.
func (r *Resolver) Resolve(ctx context.Context, gdb *gorm.DB, tx companydomain.Repository, companyID snowflake.ID, role companydomain.AccountRoleCode) (*companydomain.CompanyCoaAccount, error) {
	existing, err := tx.GetAccountDefault(ctx, companyID, role)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := r.heal(ctx, gdb, tx, companyID, role); err != nil {
			return nil, err
		}
		existing, err = tx.GetAccountDefault(ctx, companyID, role)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, apperr.Newf(apperr.KindMissingConfig, "no account mapped for role %s and it could not be auto-resolved", role)
		}
	}

	accounts, err := tx.ListCoaAccounts(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].ID == existing.AccountID {
			return &accounts[i], nil
		}
	}
	return nil, apperr.Newf(apperr.KindMissingConfig, "account %d mapped to role %s no longer exists", existing.AccountID, role)
}

// EnsureDefaults self-heals every role in roles (or every auto-heal role, if roles is empty)
// that doesn't already have a mapping for companyID. Never overwrites an existing mapping.
func (r *Resolver) EnsureDefaults(ctx context.Context, gdb *gorm.DB, tx companydomain.Repository, companyID snowflake.ID, roles []companydomain.AccountRoleCode) error {
	if len(roles) == 0 {
		for role := range autoHealRoles {
			roles = append(roles, role)
		}
	}

	existing, err := tx.ListAccountDefaults(ctx, companyID)
	if err != nil {
		return err
	}
	mapped := make(map[companydomain.AccountRoleCode]bool, len(existing))
	for _, m := range existing {
		mapped[m.RoleCode] = true
	}

	for _, role := range roles {
		if !autoHealRoles[role] || mapped[role] {
			continue
		}
		if err := r.heal(ctx, gdb, tx, companyID, role); err != nil {
			return err
		}
	}
	return nil
}

// heal resolves one role: fallback role first, then candidate codes, then (opening roles
// only) a synthetic equity account. A role left unresolved by all three stays unmapped;
// the caller surfaces MISSING_CONFIG the next time it's needed for a posting.
func (r *Resolver) heal(ctx context.Context, gdb *gorm.DB, tx companydomain.Repository, companyID snowflake.ID, role companydomain.AccountRoleCode) error {
	if !autoHealRoles[role] {
		return nil
	}

	if accountID, ok, err := r.resolveViaFallback(ctx, tx, companyID, role); err != nil {
		return err
	} else if ok {
		return r.setDefault(ctx, gdb, tx, companyID, role, accountID, "fallback")
	}

	if account, err := r.resolveViaCandidateCode(ctx, tx, companyID, role); err != nil {
		return err
	} else if account != nil {
		return r.setDefault(ctx, gdb, tx, companyID, role, account.ID, "candidate_code")
	}

	if role == companydomain.RoleOpeningStock || role == companydomain.RoleOpeningBalance {
		account, err := r.ensureOpeningBalanceAccount(ctx, tx, companyID)
		if err != nil {
			return err
		}
		return r.setDefault(ctx, gdb, tx, companyID, role, account.ID, "synthetic_opening_balance")
	}

	return nil
}

func (r *Resolver) resolveViaFallback(ctx context.Context, tx companydomain.Repository, companyID snowflake.ID, role companydomain.AccountRoleCode) (snowflake.ID, bool, error) {
	for _, fallback := range roleFallbacks[role] {
		mapping, err := tx.GetAccountDefault(ctx, companyID, fallback)
		if err != nil {
			return 0, false, err
		}
		if mapping != nil {
			return mapping.AccountID, true, nil
		}
	}
	return 0, false, nil
}

func (r *Resolver) resolveViaCandidateCode(ctx context.Context, tx companydomain.Repository, companyID snowflake.ID, role companydomain.AccountRoleCode) (*companydomain.CompanyCoaAccount, error) {
	for _, code := range roleAccountCodeCandidates[role] {
		account, err := tx.FindCoaAccountByCode(ctx, companyID, code)
		if err != nil {
			return nil, err
		}
		if account != nil {
			return account, nil
		}
	}
	return nil, nil
}

func (r *Resolver) ensureOpeningBalanceAccount(ctx context.Context, tx companydomain.Repository, companyID snowflake.ID) (*companydomain.CompanyCoaAccount, error) {
	existing, err := tx.FindCoaAccountByCode(ctx, companyID, openingBalanceAccountCode)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	account := companydomain.CompanyCoaAccount{
		ID:         r.genID.Generate(),
		CompanyID:  companyID,
		Code:       openingBalanceAccountCode,
		Name:       openingBalanceAccountName,
		Type:       "equity",
		IsPostable: true,
	}
	if err := tx.CreateCoaAccount(ctx, account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *Resolver) setDefault(ctx context.Context, gdb *gorm.DB, tx companydomain.Repository, companyID snowflake.ID, role companydomain.AccountRoleCode, accountID snowflake.ID, via string) error {
	if err := tx.SetAccountDefault(ctx, companydomain.CompanyAccountDefaults{
		CompanyID: companyID,
		RoleCode:  role,
		AccountID: accountID,
	}); err != nil {
		return err
	}

	if r.audit == nil {
		return nil
	}
	return r.audit.Record(ctx, gdb, companyID, auditdomain.ActorTypeSystem, nil,
		"config.account_default.autofill", "account_role", strPtr(string(role)),
		map[string]any{"account_id": fmt.Sprintf("%d", accountID), "resolved_via": via},
	)
}

func strPtr(s string) *string { return &s }

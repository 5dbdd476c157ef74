// Package domain contains persistence models for the company (tenant root) service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Company is the tenant root. All documents are scoped to one. Deletion is not supported.
type Company struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"type:text;not null" json:"name"`
	Slug         string            `gorm:"type:text;not null;uniqueIndex:ux_companies_slug" json:"slug"`
	CountryCode  string            `gorm:"column:country_code" json:"country_code"`
	TimezoneName string            `gorm:"column:timezone_name" json:"timezone_name"`
	BaseCurrency string            `gorm:"column:base_currency;default:USD" json:"base_currency"`
	IsDefault    bool              `gorm:"column:is_default" json:"is_default"`
	Settings     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"settings"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Company) TableName() string { return "companies" }

// RateType distinguishes which published exchange rate a document should use.
type RateType string

const (
	RateTypeOfficial RateType = "official"
	RateTypeMarket   RateType = "market"
	RateTypeInternal RateType = "internal"
)

// ExchangeRate publishes a usd_to_lbp conversion rate for a given date and rate type.
// Lookup policy: exact (date, type) match first, then latest-by-type.
type ExchangeRate struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"not null;uniqueIndex:ux_exchange_rates,priority:1" json:"company_id"`
	RateDate  time.Time    `gorm:"not null;uniqueIndex:ux_exchange_rates,priority:2" json:"rate_date"`
	RateType  RateType     `gorm:"type:text;not null;uniqueIndex:ux_exchange_rates,priority:3" json:"rate_type"`
	UsdToLbp  string       `gorm:"type:numeric;not null" json:"usd_to_lbp"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ExchangeRate) TableName() string { return "exchange_rates" }

// AccountRoleCode enumerates the global catalog of postable GL roles account defaults
// resolve against. Codes are global; mappings to a concrete COA account are per-company.
type AccountRoleCode string

const (
	RoleAR               AccountRoleCode = "AR"
	RoleAP               AccountRoleCode = "AP"
	RoleCash             AccountRoleCode = "CASH"
	RoleBank             AccountRoleCode = "BANK"
	RoleSales            AccountRoleCode = "SALES"
	RoleSalesReturns     AccountRoleCode = "SALES_RETURNS"
	RoleInventory        AccountRoleCode = "INVENTORY"
	RoleGRNI             AccountRoleCode = "GRNI"
	RoleCOGS             AccountRoleCode = "COGS"
	RoleInvAdj           AccountRoleCode = "INV_ADJ"
	RoleShrinkage        AccountRoleCode = "SHRINKAGE"
	RoleRounding         AccountRoleCode = "ROUNDING"
	RoleOpeningStock     AccountRoleCode = "OPENING_STOCK"
	RoleOpeningBalance   AccountRoleCode = "OPENING_BALANCE"
	RoleVATRecoverable   AccountRoleCode = "VAT_RECOVERABLE"
	RoleVATPayable       AccountRoleCode = "VAT_PAYABLE"
	RoleTaxPayable       AccountRoleCode = "TAX_PAYABLE"
	RoleIntercoAR        AccountRoleCode = "INTERCO_AR"
	RoleIntercoAP        AccountRoleCode = "INTERCO_AP"
	RolePurchaseRebates  AccountRoleCode = "PURCHASE_REBATES"
	RolePurchasesExpense AccountRoleCode = "PURCHASES_EXPENSE"
)

// AccountRole is the global (not per-company) catalog row describing a postable role.
type AccountRole struct {
	Code        AccountRoleCode `gorm:"primaryKey;type:text" json:"code"`
	Description string          `gorm:"type:text" json:"description"`
}

func (AccountRole) TableName() string { return "account_roles" }

// CompanyAccountDefaults maps a company+role to the concrete COA account it posts to.
type CompanyAccountDefaults struct {
	CompanyID snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"company_id"`
	RoleCode  AccountRoleCode `gorm:"primaryKey;type:text" json:"role_code"`
	AccountID snowflake.ID    `gorm:"not null" json:"account_id"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CompanyAccountDefaults) TableName() string { return "company_account_defaults" }

// CompanyCoaAccount is a postable chart-of-accounts account owned by a company.
type CompanyCoaAccount struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID  snowflake.ID `gorm:"not null;uniqueIndex:ux_coa_company_code,priority:1" json:"company_id"`
	Code       string       `gorm:"type:text;not null;uniqueIndex:ux_coa_company_code,priority:2" json:"code"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	Type       string       `gorm:"type:text;not null" json:"type"` // asset, liability, equity, income, expense
	IsPostable bool         `gorm:"not null;default:true" json:"is_postable"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CompanyCoaAccount) TableName() string { return "company_coa_accounts" }

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence port for companies, exchange rates, and the COA.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateCompany(ctx context.Context, c Company) error
	GetCompany(ctx context.Context, id snowflake.ID) (*Company, error)
	GetCompanyBySlug(ctx context.Context, slug string) (*Company, error)
	ListCompanies(ctx context.Context) ([]Company, error)

	UpsertExchangeRate(ctx context.Context, rate ExchangeRate) error
	// FindExchangeRate implements the lookup policy: exact (date, type) then latest-by-type.
	FindExchangeRate(ctx context.Context, companyID snowflake.ID, date time.Time, rateType RateType) (*ExchangeRate, error)

	ListAccountRoles(ctx context.Context) ([]AccountRole, error)
	GetAccountDefault(ctx context.Context, companyID snowflake.ID, role AccountRoleCode) (*CompanyAccountDefaults, error)
	ListAccountDefaults(ctx context.Context, companyID snowflake.ID) ([]CompanyAccountDefaults, error)
	// SetAccountDefault inserts a mapping only if one doesn't already exist (never overwrites).
	SetAccountDefault(ctx context.Context, mapping CompanyAccountDefaults) error

	ListCoaAccounts(ctx context.Context, companyID snowflake.ID) ([]CompanyCoaAccount, error)
	FindCoaAccountByCode(ctx context.Context, companyID snowflake.ID, code string) (*CompanyCoaAccount, error)
	GetCoaAccount(ctx context.Context, companyID, id snowflake.ID) (*CompanyCoaAccount, error)
	CreateCoaAccount(ctx context.Context, account CompanyCoaAccount) error
}

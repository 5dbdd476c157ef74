// Package repository is the gorm-backed implementation of the company domain port.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/baytretail/core/internal/company/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return &repo{db: tx}
}

func (r *repo) CreateCompany(ctx context.Context, c domain.Company) error {
	return r.db.WithContext(ctx).Create(&c).Error
}

func (r *repo) GetCompany(ctx context.Context, id snowflake.ID) (*domain.Company, error) {
	var c domain.Company
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) GetCompanyBySlug(ctx context.Context, slug string) (*domain.Company, error) {
	var c domain.Company
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	var out []domain.Company
	err := r.db.WithContext(ctx).Order("created_at asc").Find(&out).Error
	return out, err
}

func (r *repo) UpsertExchangeRate(ctx context.Context, rate domain.ExchangeRate) error {
	return r.db.WithContext(ctx).
		Where("company_id = ? AND rate_date = ? AND rate_type = ?", rate.CompanyID, rate.RateDate, rate.RateType).
		Assign(domain.ExchangeRate{UsdToLbp: rate.UsdToLbp}).
		FirstOrCreate(&rate).Error
}

func (r *repo) FindExchangeRate(ctx context.Context, companyID snowflake.ID, date time.Time, rateType domain.RateType) (*domain.ExchangeRate, error) {
	var rate domain.ExchangeRate
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND rate_date = ? AND rate_type = ?", companyID, date, rateType).
		First(&rate).Error
	if err == nil {
		return &rate, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Where("company_id = ? AND rate_type = ? AND rate_date <= ?", companyID, rateType, date).
		Order("rate_date desc").
		First(&rate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *repo) ListAccountRoles(ctx context.Context) ([]domain.AccountRole, error) {
	var out []domain.AccountRole
	err := r.db.WithContext(ctx).Order("code asc").Find(&out).Error
	return out, err
}

func (r *repo) GetAccountDefault(ctx context.Context, companyID snowflake.ID, role domain.AccountRoleCode) (*domain.CompanyAccountDefaults, error) {
	var m domain.CompanyAccountDefaults
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND role_code = ?", companyID, role).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repo) ListAccountDefaults(ctx context.Context, companyID snowflake.ID) ([]domain.CompanyAccountDefaults, error) {
	var out []domain.CompanyAccountDefaults
	err := r.db.WithContext(ctx).Where("company_id = ?", companyID).Find(&out).Error
	return out, err
}

func (r *repo) SetAccountDefault(ctx context.Context, mapping domain.CompanyAccountDefaults) error {
	return r.db.WithContext(ctx).
		Where("company_id = ? AND role_code = ?", mapping.CompanyID, mapping.RoleCode).
		FirstOrCreate(&mapping).Error
}

func (r *repo) ListCoaAccounts(ctx context.Context, companyID snowflake.ID) ([]domain.CompanyCoaAccount, error) {
	var out []domain.CompanyCoaAccount
	err := r.db.WithContext(ctx).Where("company_id = ?", companyID).Order("code asc").Find(&out).Error
	return out, err
}

func (r *repo) FindCoaAccountByCode(ctx context.Context, companyID snowflake.ID, code string) (*domain.CompanyCoaAccount, error) {
	var acc domain.CompanyCoaAccount
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND code = ? AND is_postable = true", companyID, code).
		First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *repo) GetCoaAccount(ctx context.Context, companyID, id snowflake.ID) (*domain.CompanyCoaAccount, error) {
	var acc domain.CompanyCoaAccount
	err := r.db.WithContext(ctx).Where("company_id = ? AND id = ?", companyID, id).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *repo) CreateCoaAccount(ctx context.Context, account domain.CompanyCoaAccount) error {
	return r.db.WithContext(ctx).Create(&account).Error
}

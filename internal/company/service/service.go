// Package service implements company onboarding and exchange-rate publishing.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/baytretail/core/internal/company/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Service is the company application port.
type Service interface {
	Create(ctx context.Context, req CreateCompanyRequest) (*domain.Company, error)
	Get(ctx context.Context, id snowflake.ID) (*domain.Company, error)
	PublishExchangeRate(ctx context.Context, companyID snowflake.ID, date time.Time, rateType domain.RateType, usdToLbp decimal.Decimal) error
	ResolveExchangeRate(ctx context.Context, companyID snowflake.ID, date time.Time, rateType domain.RateType) (decimal.Decimal, error)
}

type CreateCompanyRequest struct {
	Name         string
	CountryCode  string
	TimezoneName string
	BaseCurrency string
}

type svc struct {
	repo   domain.Repository
	genID  *snowflake.Node
	logger *zap.Logger
}

// Params groups the service's dependencies for fx.In-style construction.
type Params struct {
	fx.In

	Repo   domain.Repository
	GenID  *snowflake.Node
	Logger *zap.Logger
}

func New(p Params) Service {
	return &svc{repo: p.Repo, genID: p.GenID, logger: p.Logger}
}

func (s *svc) Create(ctx context.Context, req CreateCompanyRequest) (*domain.Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.BaseCurrency == "" {
		req.BaseCurrency = "USD"
	}

	c := domain.Company{
		ID:           s.genID.Generate(),
		Name:         name,
		Slug:         slug.Make(name),
		CountryCode:  req.CountryCode,
		TimezoneName: req.TimezoneName,
		BaseCurrency: req.BaseCurrency,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateCompany(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("company created", zap.Int64("company_id", c.ID.Int64()), zap.String("slug", c.Slug))
	return &c, nil
}

func (s *svc) Get(ctx context.Context, id snowflake.ID) (*domain.Company, error) {
	return s.repo.GetCompany(ctx, id)
}

func (s *svc) PublishExchangeRate(ctx context.Context, companyID snowflake.ID, date time.Time, rateType domain.RateType, usdToLbp decimal.Decimal) error {
	if !usdToLbp.IsPositive() {
		return domain.ErrRateNotFound
	}
	return s.repo.UpsertExchangeRate(ctx, domain.ExchangeRate{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		RateDate:  date.UTC().Truncate(24 * time.Hour),
		RateType:  rateType,
		UsdToLbp:  usdToLbp.String(),
		CreatedAt: time.Now().UTC(),
	})
}

func (s *svc) ResolveExchangeRate(ctx context.Context, companyID snowflake.ID, date time.Time, rateType domain.RateType) (decimal.Decimal, error) {
	rate, err := s.repo.FindExchangeRate(ctx, companyID, date.UTC().Truncate(24*time.Hour), rateType)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(rate.UsdToLbp)
}

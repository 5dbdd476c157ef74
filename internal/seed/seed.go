// Package seed provisions a demo company for local development: a minimal chart of
// accounts, a warehouse, a tax code, a few batch-tracked items, and an exchange rate,
// so the posting paths can be exercised without an importer run. Gated to non-production
// environments and idempotent via a demo_data marker on the company's settings.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/baytretail/core/internal/accountdefaults"
	catalogdomain "github.com/baytretail/core/internal/catalog/domain"
	catalogservice "github.com/baytretail/core/internal/catalog/service"
	companydomain "github.com/baytretail/core/internal/company/domain"
	companyservice "github.com/baytretail/core/internal/company/service"
	"github.com/baytretail/core/internal/config"
	"github.com/baytretail/core/internal/tenant"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const demoCompanySlug = "demo-retail-co"

// demoAccounts is the minimal postable COA the account-defaults resolver can heal every
// role from (codes match its candidate lists).
var demoAccounts = []struct {
	code, name, typ string
}{
	{"1011", "Cash on Hand", "asset"},
	{"1012", "Bank", "asset"},
	{"1141", "VAT Recoverable", "asset"},
	{"1310", "Inventory", "asset"},
	{"2111", "Accounts Payable", "liability"},
	{"2120", "Goods Received Not Invoiced", "liability"},
	{"2141", "VAT Payable", "liability"},
	{"4000", "Sales", "income"},
	{"4010", "Sales Returns", "income"},
	{"4111", "Accounts Receivable", "asset"},
	{"6000", "Cost of Goods Sold", "expense"},
	{"6001", "Purchases Expense", "expense"},
	{"6020", "Inventory Adjustments", "expense"},
}

type Seeder struct {
	cfg       config.Config
	db        *gorm.DB
	companies companyservice.Service
	compRepo  companydomain.Repository
	catalog   catalogservice.Service
	resolver  *accountdefaults.Resolver
	genID     *snowflake.Node
	log       *zap.Logger
}

func New(cfg config.Config, db *gorm.DB, companies companyservice.Service, compRepo companydomain.Repository, catalog catalogservice.Service, resolver *accountdefaults.Resolver, genID *snowflake.Node, log *zap.Logger) *Seeder {
	return &Seeder{cfg: cfg, db: db, companies: companies, compRepo: compRepo, catalog: catalog, resolver: resolver, genID: genID, log: log.Named("seed")}
}

// EnsureDemoCompany creates the demo tenant once. Safe to call on every boot.
func (s *Seeder) EnsureDemoCompany(ctx context.Context) error {
	switch s.cfg.Environment {
	case "local", "dev", "development":
	default:
		return nil
	}

	existing, err := s.compRepo.GetCompanyBySlug(ctx, demoCompanySlug)
	if err != nil {
		return err
	}
	if existing != nil {
		if _, done := existing.Settings["demo_data"]; done {
			return nil
		}
	}

	company := existing
	if company == nil {
		company, err = s.companies.Create(ctx, companyservice.CreateCompanyRequest{
			Name: "Demo Retail Co", CountryCode: "LB", TimezoneName: "Asia/Beirut", BaseCurrency: "USD",
		})
		if err != nil {
			return err
		}
	}

	if err := s.companies.PublishExchangeRate(ctx, company.ID, time.Now().UTC(), companydomain.RateTypeOfficial, decimal.NewFromInt(89_500)); err != nil {
		return err
	}

	if err := tenant.Begin(ctx, s.db, company.ID, func(ctx context.Context, tx *gorm.DB) error {
		compTx := s.compRepo.WithTx(tx)
		for _, a := range demoAccounts {
			found, err := compTx.FindCoaAccountByCode(ctx, company.ID, a.code)
			if err != nil {
				return err
			}
			if found != nil {
				continue
			}
			if err := compTx.CreateCoaAccount(ctx, companydomain.CompanyCoaAccount{
				ID: s.genID.Generate(), CompanyID: company.ID,
				Code: a.code, Name: a.name, Type: a.typ, IsPostable: true,
			}); err != nil {
				return err
			}
		}
		return s.resolver.EnsureDefaults(ctx, tx, compTx, company.ID, nil)
	}); err != nil {
		return err
	}

	warehouses, err := s.catalog.ListWarehouses(ctx, company.ID)
	if err != nil {
		return err
	}
	if len(warehouses) == 0 {
		if _, err := s.catalog.CreateWarehouse(ctx, catalogdomain.Warehouse{
			CompanyID: company.ID, Code: "MAIN", Name: "Main Warehouse", Active: true,
		}); err != nil {
			return err
		}
	}
	vat, err := s.catalog.FindTaxCode(ctx, company.ID, "VAT11")
	if err != nil {
		return err
	}
	if vat == nil {
		if _, err := s.catalog.CreateTaxCode(ctx, catalogdomain.TaxCode{
			CompanyID: company.ID, Code: "VAT11", Name: "VAT 11%", Rate: "0.11", Active: true,
		}); err != nil {
			return err
		}
	}

	shelfLife := 180
	items := []catalogdomain.Item{
		{CompanyID: company.ID, SKU: "MILK-1L", Name: "Whole Milk 1L", UnitOfMeasure: "EA",
			TrackBatches: true, TrackExpiry: true, DefaultShelfLifeDays: &shelfLife,
			MinShelfLifeDaysForSale: 7, ReorderPoint: "24", ReorderQty: "48", PrimaryTaxCode: "VAT11", Active: true},
		{CompanyID: company.ID, SKU: "RICE-5KG", Name: "Long Grain Rice 5kg", UnitOfMeasure: "EA",
			TrackBatches: true, ReorderPoint: "10", ReorderQty: "20", PrimaryTaxCode: "VAT11", Active: true},
		{CompanyID: company.ID, SKU: "BAG-PLASTIC", Name: "Plastic Bag", UnitOfMeasure: "EA",
			AllowNegativeStock: true, ReorderPoint: "0", ReorderQty: "0", Active: true},
	}
	for _, item := range items {
		if _, err := s.catalog.CreateItem(ctx, item); err != nil && !errors.Is(err, catalogservice.ErrDuplicateSKU) {
			return err
		}
	}

	if err := s.db.WithContext(ctx).
		Model(&companydomain.Company{}).
		Where("id = ?", company.ID).
		Update("settings", gorm.Expr("settings || ?::jsonb", `{"demo_data": {"seeded": true}}`)).Error; err != nil {
		return err
	}

	s.log.Info("demo company seeded", zap.Int64("company_id", company.ID.Int64()))
	return nil
}

// Package service implements item/warehouse/tax-code master-data management.
package service

import (
	"context"
	"errors"

	"github.com/baytretail/core/internal/catalog/domain"
	"github.com/baytretail/core/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrDuplicateSKU = errors.New("duplicate_sku")

// Service manages the catalog master data shared across purchasing, inventory, and AI.
type Service interface {
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	GetItem(ctx context.Context, companyID, itemID snowflake.ID) (*domain.Item, error)
	FindItemBySKU(ctx context.Context, companyID snowflake.ID, sku string) (*domain.Item, error)
	// ListItems returns every item for a company, used by the invoice-import pipeline's
	// name-overlap fallback match when no alias or SKU hit is found.
	ListItems(ctx context.Context, companyID snowflake.ID) ([]*domain.Item, error)

	CreateWarehouse(ctx context.Context, wh domain.Warehouse) (*domain.Warehouse, error)
	ListWarehouses(ctx context.Context, companyID snowflake.ID) ([]*domain.Warehouse, error)

	CreateTaxCode(ctx context.Context, tc domain.TaxCode) (*domain.TaxCode, error)
	FindTaxCode(ctx context.Context, companyID snowflake.ID, code string) (*domain.TaxCode, error)

	// FindSupplierAlias looks up a previously learned supplier code/name -> item mapping,
	// used by the invoice-import pipeline to auto-match a line with full confidence.
	FindSupplierAlias(ctx context.Context, companyID, supplierID snowflake.ID, normalizedCode string) (*domain.SupplierItemAlias, error)
	// LearnSupplierAlias upserts the (company, supplier, normalized code) -> item mapping
	// so future imports from the same supplier auto-match without review.
	LearnSupplierAlias(ctx context.Context, companyID, supplierID, itemID snowflake.ID, normalizedCode, normalizedName string) error
	// UpsertItemSupplierCost records the last cost a supplier charged for an item, learned
	// at invoice-import apply time.
	UpsertItemSupplierCost(ctx context.Context, itemID, supplierID snowflake.ID, supplierSKU string, lastCostUSD, lastCostLBP string) error
	// LatestItemSupplier returns the supplier record with the freshest cost for an item,
	// used by the AI executor to pick the supplier and unit cost for a reorder draft PO.
	LatestItemSupplier(ctx context.Context, itemID snowflake.ID) (*domain.ItemSupplier, error)
}

type svc struct {
	items           repository.Repository[domain.Item]
	warehouses      repository.Repository[domain.Warehouse]
	taxCodes        repository.Repository[domain.TaxCode]
	supplierAliases repository.Repository[domain.SupplierItemAlias]
	itemSuppliers   repository.Repository[domain.ItemSupplier]
	genID           *snowflake.Node
	logger          *zap.Logger
}

// Params groups the service's repository and infra dependencies.
type Params struct {
	fx.In

	Items           repository.Repository[domain.Item]
	Warehouses      repository.Repository[domain.Warehouse]
	TaxCodes        repository.Repository[domain.TaxCode]
	SupplierAliases repository.Repository[domain.SupplierItemAlias]
	ItemSuppliers   repository.Repository[domain.ItemSupplier]
	GenID           *snowflake.Node
	Logger          *zap.Logger
}

func New(p Params) Service {
	return &svc{
		items: p.Items, warehouses: p.Warehouses, taxCodes: p.TaxCodes,
		supplierAliases: p.SupplierAliases, itemSuppliers: p.ItemSuppliers,
		genID: p.GenID, logger: p.Logger,
	}
}

func (s *svc) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	existing, err := s.items.FindOne(ctx, &domain.Item{CompanyID: item.CompanyID, SKU: item.SKU})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateSKU
	}
	item.ID = s.genID.Generate()
	if item.UnitOfMeasure == "" {
		item.UnitOfMeasure = "EA"
	}
	if err := s.items.Create(ctx, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *svc) GetItem(ctx context.Context, companyID, itemID snowflake.ID) (*domain.Item, error) {
	return s.items.FindOne(ctx, &domain.Item{ID: itemID, CompanyID: companyID})
}

func (s *svc) FindItemBySKU(ctx context.Context, companyID snowflake.ID, sku string) (*domain.Item, error) {
	return s.items.FindOne(ctx, &domain.Item{CompanyID: companyID, SKU: sku})
}

func (s *svc) ListItems(ctx context.Context, companyID snowflake.ID) ([]*domain.Item, error) {
	return s.items.Find(ctx, &domain.Item{CompanyID: companyID})
}

func (s *svc) CreateWarehouse(ctx context.Context, wh domain.Warehouse) (*domain.Warehouse, error) {
	wh.ID = s.genID.Generate()
	if err := s.warehouses.Create(ctx, &wh); err != nil {
		return nil, err
	}
	return &wh, nil
}

func (s *svc) ListWarehouses(ctx context.Context, companyID snowflake.ID) ([]*domain.Warehouse, error) {
	return s.warehouses.Find(ctx, &domain.Warehouse{CompanyID: companyID})
}

func (s *svc) CreateTaxCode(ctx context.Context, tc domain.TaxCode) (*domain.TaxCode, error) {
	tc.ID = s.genID.Generate()
	if err := s.taxCodes.Create(ctx, &tc); err != nil {
		return nil, err
	}
	return &tc, nil
}

func (s *svc) FindTaxCode(ctx context.Context, companyID snowflake.ID, code string) (*domain.TaxCode, error) {
	return s.taxCodes.FindOne(ctx, &domain.TaxCode{CompanyID: companyID, Code: code})
}

func (s *svc) FindSupplierAlias(ctx context.Context, companyID, supplierID snowflake.ID, normalizedCode string) (*domain.SupplierItemAlias, error) {
	if normalizedCode == "" {
		return nil, nil
	}
	return s.supplierAliases.FindOne(ctx, &domain.SupplierItemAlias{
		CompanyID: companyID, SupplierID: supplierID, NormalizedCode: normalizedCode,
	})
}

func (s *svc) LearnSupplierAlias(ctx context.Context, companyID, supplierID, itemID snowflake.ID, normalizedCode, normalizedName string) error {
	if normalizedCode == "" {
		return nil
	}
	existing, err := s.supplierAliases.FindOne(ctx, &domain.SupplierItemAlias{
		CompanyID: companyID, SupplierID: supplierID, NormalizedCode: normalizedCode,
	})
	if err != nil {
		return err
	}
	if existing != nil {
		existing.ItemID = itemID
		existing.NormalizedName = normalizedName
		return s.supplierAliases.Update(ctx, existing.ID.String(), existing)
	}
	return s.supplierAliases.Create(ctx, &domain.SupplierItemAlias{
		ID: s.genID.Generate(), CompanyID: companyID, SupplierID: supplierID,
		NormalizedCode: normalizedCode, NormalizedName: normalizedName, ItemID: itemID,
	})
}

func (s *svc) LatestItemSupplier(ctx context.Context, itemID snowflake.ID) (*domain.ItemSupplier, error) {
	records, err := s.itemSuppliers.Find(ctx, &domain.ItemSupplier{ItemID: itemID})
	if err != nil {
		return nil, err
	}
	var latest *domain.ItemSupplier
	for _, r := range records {
		if latest == nil || r.UpdatedAt.After(latest.UpdatedAt) {
			latest = r
		}
	}
	return latest, nil
}

func (s *svc) UpsertItemSupplierCost(ctx context.Context, itemID, supplierID snowflake.ID, supplierSKU string, lastCostUSD, lastCostLBP string) error {
	existing, err := s.itemSuppliers.FindOne(ctx, &domain.ItemSupplier{ItemID: itemID, SupplierID: supplierID})
	if err != nil {
		return err
	}
	if existing != nil {
		existing.SupplierSKU = supplierSKU
		existing.LastCostUSD = lastCostUSD
		existing.LastCostLBP = lastCostLBP
		return s.itemSuppliers.Update(ctx, existing.ID.String(), existing)
	}
	return s.itemSuppliers.Create(ctx, &domain.ItemSupplier{
		ID: s.genID.Generate(), ItemID: itemID, SupplierID: supplierID,
		SupplierSKU: supplierSKU, LastCostUSD: lastCostUSD, LastCostLBP: lastCostLBP,
	})
}

// Package repository is the gorm-backed implementation of the purchasing domain port.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	catalogdomain "github.com/baytretail/core/internal/catalog/domain"
	"github.com/baytretail/core/internal/purchasing/domain"
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

func (r *repo) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder, lines []domain.PurchaseOrderLine) error {
	if err := r.db.WithContext(ctx).Create(&po).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) GetPurchaseOrder(ctx context.Context, companyID, id snowflake.ID) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	err := r.db.WithContext(ctx).Where("company_id = ? AND id = ?", companyID, id).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *repo) ListPurchaseOrderLines(ctx context.Context, poID snowflake.ID) ([]domain.PurchaseOrderLine, error) {
	var lines []domain.PurchaseOrderLine
	err := r.db.WithContext(ctx).Where("purchase_order_id = ?", poID).Find(&lines).Error
	return lines, err
}

func (r *repo) GetPurchaseOrderLine(ctx context.Context, id snowflake.ID) (*domain.PurchaseOrderLine, error) {
	var l domain.PurchaseOrderLine
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repo) UpdatePurchaseOrderStatus(ctx context.Context, id snowflake.ID, status domain.POStatus) error {
	return r.db.WithContext(ctx).Model(&domain.PurchaseOrder{}).Where("id = ?", id).Update("status", status).Error
}

func (r *repo) NextOrderNo(ctx context.Context, companyID snowflake.ID) (string, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.PurchaseOrder{}).
		Where("company_id = ? AND order_no <> ''", companyID).
		Count(&count).Error; err != nil {
		return "", err
	}
	for seq := count + 1; ; seq++ {
		candidate := fmt.Sprintf("PO-%06d", seq)
		var existing int64
		if err := r.db.WithContext(ctx).Model(&domain.PurchaseOrder{}).
			Where("company_id = ? AND order_no = ?", companyID, candidate).
			Count(&existing).Error; err != nil {
			return "", err
		}
		if existing == 0 {
			return candidate, nil
		}
	}
}

func (r *repo) UpdatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	return r.db.WithContext(ctx).Save(&po).Error
}

func (r *repo) CreateGoodsReceipt(ctx context.Context, gr domain.GoodsReceipt, lines []domain.GoodsReceiptLine) error {
	if err := r.db.WithContext(ctx).Create(&gr).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) GetGoodsReceipt(ctx context.Context, companyID, id snowflake.ID) (*domain.GoodsReceipt, error) {
	var gr domain.GoodsReceipt
	err := r.db.WithContext(ctx).Where("company_id = ? AND id = ?", companyID, id).First(&gr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gr, nil
}

func (r *repo) ListGoodsReceiptLines(ctx context.Context, grID snowflake.ID) ([]domain.GoodsReceiptLine, error) {
	var lines []domain.GoodsReceiptLine
	err := r.db.WithContext(ctx).Where("goods_receipt_id = ?", grID).Find(&lines).Error
	return lines, err
}

func (r *repo) UpdateGoodsReceiptStatus(ctx context.Context, id snowflake.ID, status domain.GRStatus) error {
	return r.db.WithContext(ctx).Model(&domain.GoodsReceipt{}).Where("id = ?", id).Update("status", status).Error
}

func (r *repo) UpdateGoodsReceipt(ctx context.Context, gr domain.GoodsReceipt) error {
	return r.db.WithContext(ctx).Save(&gr).Error
}

func (r *repo) SumReceivedQty(ctx context.Context, poLineID snowflake.ID) (string, error) {
	var total string
	err := r.db.WithContext(ctx).
		Table("goods_receipt_lines gl").
		Joins("JOIN goods_receipts gr ON gr.id = gl.goods_receipt_id").
		Where("gl.purchase_order_line_id = ? AND gr.status = ?", poLineID, domain.GRStatusPosted).
		Select("COALESCE(SUM(gl.qty), 0)").
		Row().Scan(&total)
	if err != nil {
		return "0", err
	}
	return total, nil
}

func (r *repo) GetItem(ctx context.Context, companyID, itemID snowflake.ID) (*catalogdomain.Item, error) {
	var item catalogdomain.Item
	err := r.db.WithContext(ctx).Where("company_id = ? AND id = ?", companyID, itemID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) GetTaxCode(ctx context.Context, companyID snowflake.ID, code string) (*catalogdomain.TaxCode, error) {
	var tc catalogdomain.TaxCode
	err := r.db.WithContext(ctx).Where("company_id = ? AND code = ?", companyID, code).First(&tc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tc, nil
}

func (r *repo) GetWarehouseLocation(ctx context.Context, id snowflake.ID) (*catalogdomain.WarehouseLocation, error) {
	var loc catalogdomain.WarehouseLocation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&loc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *repo) CreateSupplierInvoice(ctx context.Context, si domain.SupplierInvoice) error {
	return r.db.WithContext(ctx).Create(&si).Error
}

func (r *repo) GetSupplierInvoice(ctx context.Context, companyID, id snowflake.ID) (*domain.SupplierInvoice, error) {
	var si domain.SupplierInvoice
	err := r.db.WithContext(ctx).Where("company_id = ? AND id = ?", companyID, id).First(&si).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &si, nil
}

func (r *repo) UpdateSupplierInvoice(ctx context.Context, si domain.SupplierInvoice) error {
	return r.db.WithContext(ctx).Save(&si).Error
}

func (r *repo) ListSupplierInvoicesByImportStatus(ctx context.Context, companyID snowflake.ID, status domain.ImportStatus) ([]domain.SupplierInvoice, error) {
	var sis []domain.SupplierInvoice
	err := r.db.WithContext(ctx).Where("company_id = ? AND import_status = ?", companyID, status).Find(&sis).Error
	return sis, err
}

func (r *repo) CreateSupplierInvoiceLines(ctx context.Context, lines []domain.SupplierInvoiceLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) ListSupplierInvoiceLines(ctx context.Context, siID snowflake.ID) ([]domain.SupplierInvoiceLine, error) {
	var lines []domain.SupplierInvoiceLine
	err := r.db.WithContext(ctx).Where("supplier_invoice_id = ?", siID).Find(&lines).Error
	return lines, err
}

func (r *repo) DeleteSupplierInvoiceLines(ctx context.Context, siID snowflake.ID) error {
	return r.db.WithContext(ctx).Where("supplier_invoice_id = ?", siID).Delete(&domain.SupplierInvoiceLine{}).Error
}

func (r *repo) GetGoodsReceiptLine(ctx context.Context, id snowflake.ID) (*domain.GoodsReceiptLine, error) {
	var l domain.GoodsReceiptLine
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repo) SumInvoicedQty(ctx context.Context, grLineID, excludeInvoiceID snowflake.ID) (string, error) {
	var total string
	err := r.db.WithContext(ctx).
		Table("supplier_invoice_lines sl").
		Joins("JOIN supplier_invoices si ON si.id = sl.supplier_invoice_id").
		Where("sl.goods_receipt_line_id = ? AND si.id <> ? AND si.status IN ?",
			grLineID, excludeInvoiceID,
			[]domain.SIStatus{domain.SIStatusPosted, domain.SIStatusPaid, domain.SIStatusPartiallyPaid}).
		Select("COALESCE(SUM(sl.qty), 0)").
		Row().Scan(&total)
	if err != nil {
		return "0", err
	}
	return total, nil
}

func (r *repo) ListSupplierInvoicesByGoodsReceipt(ctx context.Context, grID snowflake.ID) ([]domain.SupplierInvoice, error) {
	var sis []domain.SupplierInvoice
	err := r.db.WithContext(ctx).Where("goods_receipt_id = ?", grID).Find(&sis).Error
	return sis, err
}

func (r *repo) CreateImportLines(ctx context.Context, lines []domain.SupplierInvoiceImportLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) ListImportLines(ctx context.Context, siID snowflake.ID) ([]domain.SupplierInvoiceImportLine, error) {
	var lines []domain.SupplierInvoiceImportLine
	err := r.db.WithContext(ctx).Where("supplier_invoice_id = ?", siID).Find(&lines).Error
	return lines, err
}

func (r *repo) GetImportLine(ctx context.Context, id snowflake.ID) (*domain.SupplierInvoiceImportLine, error) {
	var l domain.SupplierInvoiceImportLine
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repo) UpdateImportLine(ctx context.Context, line domain.SupplierInvoiceImportLine) error {
	return r.db.WithContext(ctx).Save(&line).Error
}

func (r *repo) CreatePayment(ctx context.Context, p domain.SupplierPayment) error {
	return r.db.WithContext(ctx).Create(&p).Error
}

func (r *repo) ListPayments(ctx context.Context, siID snowflake.ID) ([]domain.SupplierPayment, error) {
	var payments []domain.SupplierPayment
	err := r.db.WithContext(ctx).Where("supplier_invoice_id = ?", siID).Find(&payments).Error
	return payments, err
}

func (r *repo) GetPayment(ctx context.Context, companyID, id snowflake.ID) (*domain.SupplierPayment, error) {
	var p domain.SupplierPayment
	err := r.db.WithContext(ctx).
		Joins("JOIN supplier_invoices si ON si.id = supplier_payments.supplier_invoice_id").
		Where("si.company_id = ? AND supplier_payments.id = ?", companyID, id).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) ListPaymentsByDateRange(ctx context.Context, companyID snowflake.ID, from, to time.Time) ([]domain.SupplierPayment, error) {
	var payments []domain.SupplierPayment
	err := r.db.WithContext(ctx).
		Joins("JOIN supplier_invoices si ON si.id = supplier_payments.supplier_invoice_id").
		Where("si.company_id = ? AND supplier_payments.paid_at >= ? AND supplier_payments.paid_at <= ?", companyID, from, to).
		Order("supplier_payments.paid_at asc").
		Find(&payments).Error
	return payments, err
}

func (r *repo) GetPaymentMethodMapping(ctx context.Context, companyID snowflake.ID, method string) (*domain.PaymentMethodMapping, error) {
	var m domain.PaymentMethodMapping
	err := r.db.WithContext(ctx).Where("company_id = ? AND payment_method = ?", companyID, method).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

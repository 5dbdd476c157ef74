// Package repository is the gorm-backed implementation of the supplier credit domain port.
package repository

import (
	"context"
	"errors"

	"github.com/baytretail/core/internal/suppliercredit/domain"
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

func (r *repo) CreateCreditNote(ctx context.Context, cn domain.SupplierCreditNote) error {
	return r.db.WithContext(ctx).Create(&cn).Error
}

func (r *repo) GetCreditNote(ctx context.Context, companyID, id snowflake.ID) (*domain.SupplierCreditNote, error) {
	var cn domain.SupplierCreditNote
	err := r.db.WithContext(ctx).Where("company_id = ? AND id = ?", companyID, id).First(&cn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cn, nil
}

func (r *repo) UpdateCreditNote(ctx context.Context, cn domain.SupplierCreditNote) error {
	return r.db.WithContext(ctx).Save(&cn).Error
}

func (r *repo) CreateAllocations(ctx context.Context, allocs []domain.SupplierCreditAllocation) error {
	if len(allocs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&allocs).Error
}

func (r *repo) ListAllocations(ctx context.Context, creditNoteID snowflake.ID) ([]domain.SupplierCreditAllocation, error) {
	var allocs []domain.SupplierCreditAllocation
	err := r.db.WithContext(ctx).Where("credit_note_id = ?", creditNoteID).Find(&allocs).Error
	return allocs, err
}

func (r *repo) CreateApplication(ctx context.Context, app domain.SupplierCreditApplication) error {
	return r.db.WithContext(ctx).Create(&app).Error
}

func (r *repo) ListApplications(ctx context.Context, creditNoteID snowflake.ID) ([]domain.SupplierCreditApplication, error) {
	var apps []domain.SupplierCreditApplication
	err := r.db.WithContext(ctx).Where("credit_note_id = ?", creditNoteID).Find(&apps).Error
	return apps, err
}

func (r *repo) SumAppliedByCreditNote(ctx context.Context, creditNoteID snowflake.ID) (string, string, error) {
	return r.sumApplications(ctx, "credit_note_id = ?", creditNoteID)
}

func (r *repo) SumAppliedByInvoice(ctx context.Context, invoiceID snowflake.ID) (string, string, error) {
	return r.sumApplications(ctx, "supplier_invoice_id = ?", invoiceID)
}

func (r *repo) sumApplications(ctx context.Context, where string, arg snowflake.ID) (string, string, error) {
	var row struct {
		USD string
		LBP string
	}
	err := r.db.WithContext(ctx).
		Model(&domain.SupplierCreditApplication{}).
		Select("COALESCE(SUM(amount_usd), 0) AS usd, COALESCE(SUM(amount_lbp), 0) AS lbp").
		Where(where, arg).
		Scan(&row).Error
	if err != nil {
		return "0", "0", err
	}
	if row.USD == "" {
		row.USD = "0"
	}
	if row.LBP == "" {
		row.LBP = "0"
	}
	return row.USD, row.LBP, nil
}

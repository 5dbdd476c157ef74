// Package repository is the gorm-backed implementation of the invoice-import domain port.
package repository

import (
	"context"
	"errors"

	"github.com/baytretail/core/internal/invoiceimport/domain"
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

func (r *repo) CreateAttachment(ctx context.Context, a domain.DocumentAttachment) error {
	return r.db.WithContext(ctx).Create(&a).Error
}

func (r *repo) GetAttachment(ctx context.Context, companyID, id snowflake.ID) (*domain.DocumentAttachment, error) {
	var a domain.DocumentAttachment
	err := r.db.WithContext(ctx).Where("company_id = ? AND id = ?", companyID, id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) SaveExtractionRaw(ctx context.Context, id snowflake.ID, raw []byte) error {
	return r.db.WithContext(ctx).Model(&domain.DocumentAttachment{}).Where("id = ?", id).
		Update("extraction_raw", raw).Error
}

// Package repository is the gorm-backed implementation of the GL domain port.
package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/baytretail/core/internal/gl/domain"
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

func (r *repo) CreateJournal(ctx context.Context, j domain.GlJournal, lines []domain.GlEntry) error {
	if err := r.db.WithContext(ctx).Create(&j).Error; err != nil {
		return err
	}
	for i := range lines {
		lines[i].JournalID = j.ID
	}
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) FindJournalBySource(ctx context.Context, companyID snowflake.ID, sourceType string, sourceID snowflake.ID) (*domain.GlJournal, error) {
	var j domain.GlJournal
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND source_type = ? AND source_id = ?", companyID, sourceType, sourceID).
		First(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *repo) ListEntries(ctx context.Context, journalID snowflake.ID) ([]domain.GlEntry, error) {
	var out []domain.GlEntry
	err := r.db.WithContext(ctx).Where("journal_id = ?", journalID).Order("id asc").Find(&out).Error
	return out, err
}

// NextDocumentNo derives the next company+docType-scoped sequence number from the count of
// existing journal numbers with that prefix; falls back to a random 6-hex suffix if the base
// candidate is already taken (defends against manually-inserted journal_no values). It takes
// no lock: two concurrent posts can pick the same number, and the unique (company_id,
// journal_no) index then rejects the second insert.
func (r *repo) NextDocumentNo(ctx context.Context, companyID snowflake.ID, docType string) (string, error) {
	var seq int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.GlJournal{}).
			Where("company_id = ? AND journal_no LIKE ?", companyID, docType+"-%").
			Count(&count).Error; err != nil {
			return err
		}
		seq = count + 1
		return nil
	})
	if err != nil {
		return "", err
	}

	base := fmt.Sprintf("%s-%06d", docType, seq)
	candidate := base
	for {
		var existing int64
		if err := r.db.WithContext(ctx).Model(&domain.GlJournal{}).
			Where("company_id = ? AND journal_no = ?", companyID, candidate).
			Count(&existing).Error; err != nil {
			return "", err
		}
		if existing == 0 {
			return candidate, nil
		}
		candidate = base + "-" + randomHex(3)
	}
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (r *repo) InsertTaxLine(ctx context.Context, line domain.TaxLine) error {
	return r.db.WithContext(ctx).Create(&line).Error
}

func (r *repo) ListTaxLines(ctx context.Context, companyID snowflake.ID, sourceType string, sourceID snowflake.ID) ([]domain.TaxLine, error) {
	var out []domain.TaxLine
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND source_type = ? AND source_id = ?", companyID, sourceType, sourceID).
		Order("id asc").Find(&out).Error
	return out, err
}

func (r *repo) CreateTemplate(ctx context.Context, t domain.JournalTemplate) error {
	return r.db.WithContext(ctx).Create(&t).Error
}

func (r *repo) GetTemplate(ctx context.Context, id snowflake.ID) (*domain.JournalTemplate, error) {
	var t domain.JournalTemplate
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) UpdateTemplate(ctx context.Context, t domain.JournalTemplate) error {
	return r.db.WithContext(ctx).Model(&domain.JournalTemplate{}).Where("id = ?", t.ID).
		Updates(map[string]any{"name": t.Name, "lines": t.Lines, "updated_at": time.Now().UTC()}).Error
}

func (r *repo) UpsertRecurringRule(ctx context.Context, rule domain.RecurringRule) error {
	return r.db.WithContext(ctx).
		Where("company_id = ? AND template_id = ? AND cadence = ? AND day_of_week = ? AND day_of_month = ?",
			rule.CompanyID, rule.TemplateID, rule.Cadence, rule.DayOfWeek, rule.DayOfMonth).
		Assign(domain.RecurringRule{NextRunDate: rule.NextRunDate, IsActive: rule.IsActive}).
		FirstOrCreate(&rule).Error
}

func (r *repo) ListDueRecurringRules(ctx context.Context, companyID snowflake.ID) ([]domain.RecurringRule, error) {
	var out []domain.RecurringRule
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND is_active = true AND next_run_date <= ?", companyID, time.Now().UTC()).
		Find(&out).Error
	return out, err
}

func (r *repo) AdvanceRecurringRule(ctx context.Context, id snowflake.ID, nextRunDate time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.RecurringRule{}).Where("id = ?", id).
		Update("next_run_date", nextRunDate).Error
}

// Package tenant binds a company (tenant) id to the request context and to the
// underlying storage session, and gates postings against locked accounting periods.
package tenant

import (
	"context"
	"time"

	"github.com/baytretail/core/pkg/rls"
	"github.com/baytretail/core/pkg/tenantctx"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PeriodLock marks a closed accounting window; any posting whose effective date falls
// inside a locked window is rejected.
type PeriodLock struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CompanyID snowflake.ID `gorm:"index:idx_period_locks_company"`
	Start     time.Time
	End       time.Time
	Locked    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PeriodLock) TableName() string { return "accounting_period_locks" }

// Begin opens a transaction scoped to companyID: it binds the company id onto ctx,
// issues the RLS session variable as the first statement, and runs fn inside it.
// The demo seeder is its only caller; the domain services run on the *gorm.DB their
// caller passes in and do not set the RLS session variable.
func Begin(ctx context.Context, db *gorm.DB, companyID snowflake.ID, fn func(ctx context.Context, tx *gorm.DB) error) error {
	scoped := tenantctx.WithCompanyID(ctx, companyID)
	return db.WithContext(scoped).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, companyID); err != nil {
			return err
		}
		return fn(scoped, tx)
	})
}

// AssertPeriodOpen fails when any locked period for companyID covers date. All
// GL-emitting paths must call this with the effective posting date before writing.
func AssertPeriodOpen(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, date time.Time) error {
	var count int64
	err := tx.WithContext(ctx).
		Model(&PeriodLock{}).
		Where("company_id = ? AND locked = ? AND start <= ? AND \"end\" >= ?", companyID, true, date, date).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return errPeriodLocked
	}
	return nil
}

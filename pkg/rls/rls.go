// Package rls binds the current tenant to the database session so row-level security
// policies (or application-level scoping, on dialects without native RLS) can enforce
// per-company isolation without every query remembering to add a WHERE clause.
package rls

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// WithTenant sets the session-local tenant variable for the lifetime of the current
// transaction. It must be the first statement executed inside tx.
func WithTenant(tx *gorm.DB, companyID snowflake.ID) error {
	return tx.Exec(
		"SET LOCAL app.current_company_id = ?",
		fmt.Sprintf("%d", companyID.Int64()),
	).Error
}

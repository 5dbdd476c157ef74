// Package tenantctx carries the bound company (tenant) id as a context value.
package tenantctx

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type keyType string

const companyIDKey keyType = "company_id"

// WithCompanyID returns a context carrying companyID.
func WithCompanyID(ctx context.Context, companyID snowflake.ID) context.Context {
	return context.WithValue(ctx, companyIDKey, companyID)
}

// CompanyID returns the bound company id, if any.
func CompanyID(ctx context.Context) (snowflake.ID, bool) {
	id, ok := ctx.Value(companyIDKey).(snowflake.ID)
	return id, ok
}

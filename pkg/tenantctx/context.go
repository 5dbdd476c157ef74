package tenantctx

import "context"

type tenantKeyType string

const (
	TenantIDKey tenantKeyType = "tenant_id"
)

func TenantID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(TenantIDKey).(int64)
	return id, ok
}

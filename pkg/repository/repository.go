// Package repository provides a generic CRUD store over gorm, used by master-data
// entities whose access patterns don't warrant a bespoke query layer.
package repository

import (
	"context"

	"github.com/baytretail/core/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic persistence port for a single gorm model type T.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID string, resource any) error
	Delete(ctx context.Context, resourceID string) error
	Count(ctx context.Context, query *T) (int64, error)
	BatchCreate(ctx context.Context, resources []*T) error
	BatchUpdate(ctx context.Context, resources []*T) error
}

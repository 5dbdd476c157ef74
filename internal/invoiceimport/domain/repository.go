package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence port for document attachments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateAttachment(ctx context.Context, a DocumentAttachment) error
	GetAttachment(ctx context.Context, companyID, id snowflake.ID) (*DocumentAttachment, error)
	SaveExtractionRaw(ctx context.Context, id snowflake.ID, raw []byte) error
}

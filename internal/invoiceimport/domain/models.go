// Package domain contains persistence models and ports for the supplier-invoice import
// pipeline: the raw attachment, its extraction outcome, and the audit trail the extractor
// leaves behind. The pending-review import lines themselves live in the purchasing package
// alongside the SupplierInvoice they belong to — this package only owns the blob and the
// extraction step that fills them in.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// DocumentAttachment is an uploaded source file (invoice photo, PDF, scan) compressed at
// rest. The relational store is the system of record for it, per the Non-goals — there is
// no object-storage dependency to wire.
type DocumentAttachment struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID      snowflake.ID `gorm:"not null;index" json:"company_id"`
	Filename       string       `gorm:"type:text;not null" json:"filename"`
	ContentType    string       `gorm:"type:text;not null" json:"content_type"`
	SizeBytes      int64        `gorm:"not null" json:"size_bytes"`
	BlobCompressed []byte       `gorm:"type:bytea;not null" json:"-"`
	Checksum       string       `gorm:"type:text;not null" json:"checksum"`
	// ExtractionRaw holds the extractor's raw structured response, stamped with
	// extractor/model metadata, kept for audit independent of how it was later parsed.
	ExtractionRaw datatypes.JSON `gorm:"type:jsonb" json:"extraction_raw,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (DocumentAttachment) TableName() string { return "document_attachments" }

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence port for journals, entries, tax lines, templates and
// recurring rules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateJournal(ctx context.Context, j GlJournal, lines []GlEntry) error
	FindJournalBySource(ctx context.Context, companyID snowflake.ID, sourceType string, sourceID snowflake.ID) (*GlJournal, error)
	ListEntries(ctx context.Context, journalID snowflake.ID) ([]GlEntry, error)
	// NextDocumentNo allocates a tenant-scoped monotonic number for docType (e.g. "GJ"),
	// returning e.g. "GJ-000123". Collision-safe: if base is already taken it appends a
	// 6-hex suffix until a free value is found.
	NextDocumentNo(ctx context.Context, companyID snowflake.ID, docType string) (string, error)

	InsertTaxLine(ctx context.Context, line TaxLine) error
	ListTaxLines(ctx context.Context, companyID snowflake.ID, sourceType string, sourceID snowflake.ID) ([]TaxLine, error)

	CreateTemplate(ctx context.Context, t JournalTemplate) error
	GetTemplate(ctx context.Context, id snowflake.ID) (*JournalTemplate, error)
	UpdateTemplate(ctx context.Context, t JournalTemplate) error

	UpsertRecurringRule(ctx context.Context, r RecurringRule) error
	ListDueRecurringRules(ctx context.Context, companyID snowflake.ID) ([]RecurringRule, error)
	AdvanceRecurringRule(ctx context.Context, id snowflake.ID, nextRunDate time.Time) error
}

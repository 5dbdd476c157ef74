// Package domain contains persistence models and ports for the general-ledger posting
// engine: journals, entries, tax lines, manual-journal templates, and recurring rules.
package domain

import (
	"time"

	"github.com/baytretail/core/internal/company/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// GlJournal is a balanced set of debit/credit entries emitted by one posting event.
type GlJournal struct {
	ID           snowflake.ID       `gorm:"primaryKey" json:"id"`
	CompanyID    snowflake.ID       `gorm:"not null;uniqueIndex:ux_gl_journals_company_no,priority:1" json:"company_id"`
	JournalNo    string             `gorm:"type:text;not null;uniqueIndex:ux_gl_journals_company_no,priority:2" json:"journal_no"`
	SourceType   string             `gorm:"type:text;not null;index:idx_gl_journals_source" json:"source_type"`
	SourceID     snowflake.ID       `gorm:"not null;index:idx_gl_journals_source" json:"source_id"`
	JournalDate  time.Time          `gorm:"not null" json:"journal_date"`
	RateType     domain.RateType    `gorm:"type:text;not null" json:"rate_type"`
	ExchangeRate string             `gorm:"type:numeric;not null" json:"exchange_rate"`
	Memo         string             `json:"memo,omitempty"`
	CreatedAt    time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (GlJournal) TableName() string { return "gl_journals" }

// GlEntry is a single debit/credit line within a journal.
type GlEntry struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	JournalID  snowflake.ID  `gorm:"not null;index:idx_gl_entries_journal" json:"journal_id"`
	AccountID  snowflake.ID  `gorm:"not null" json:"account_id"`
	DebitUSD   string        `gorm:"type:numeric;not null;default:0" json:"debit_usd"`
	CreditUSD  string        `gorm:"type:numeric;not null;default:0" json:"credit_usd"`
	DebitLBP   string        `gorm:"type:numeric;not null;default:0" json:"debit_lbp"`
	CreditLBP  string        `gorm:"type:numeric;not null;default:0" json:"credit_lbp"`
	Memo       string        `json:"memo,omitempty"`
	WarehouseID *snowflake.ID `json:"warehouse_id,omitempty"`
	CostCenter string        `json:"cost_center,omitempty"`
	Project    string        `json:"project,omitempty"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (GlEntry) TableName() string { return "gl_entries" }

// TaxLine records the tax effect of a posting; cancel inserts a negated row rather than
// deleting the original.
type TaxLine struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID  snowflake.ID `gorm:"not null;index:idx_tax_lines_source,priority:1" json:"company_id"`
	SourceType string       `gorm:"type:text;not null;index:idx_tax_lines_source,priority:2" json:"source_type"`
	SourceID   snowflake.ID `gorm:"not null;index:idx_tax_lines_source,priority:3" json:"source_id"`
	TaxCode    string       `gorm:"type:text;not null" json:"tax_code"`
	BaseUSD    string       `gorm:"type:numeric;not null" json:"base_usd"`
	BaseLBP    string       `gorm:"type:numeric;not null" json:"base_lbp"`
	TaxUSD     string       `gorm:"type:numeric;not null" json:"tax_usd"`
	TaxLBP     string       `gorm:"type:numeric;not null" json:"tax_lbp"`
	TaxDate    time.Time    `gorm:"not null" json:"tax_date"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (TaxLine) TableName() string { return "tax_lines" }

// JournalTemplate is a reusable, pre-balanced set of lines a recurring rule replays.
type JournalTemplate struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID      `gorm:"not null" json:"company_id"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Lines     datatypes.JSONMap `gorm:"type:jsonb;not null" json:"lines"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (JournalTemplate) TableName() string { return "gl_journal_templates" }

type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// RecurringRule schedules a template to be replayed as a new journal.
type RecurringRule struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID   snowflake.ID `gorm:"not null;uniqueIndex:ux_gl_recurring,priority:1" json:"company_id"`
	TemplateID  snowflake.ID `gorm:"not null;uniqueIndex:ux_gl_recurring,priority:2" json:"template_id"`
	Cadence     Cadence      `gorm:"type:text;not null;uniqueIndex:ux_gl_recurring,priority:3" json:"cadence"`
	DayOfWeek   int          `gorm:"not null;default:0;uniqueIndex:ux_gl_recurring,priority:4" json:"day_of_week"`
	DayOfMonth  int          `gorm:"not null;default:0;uniqueIndex:ux_gl_recurring,priority:5" json:"day_of_month"`
	NextRunDate time.Time    `gorm:"not null" json:"next_run_date"`
	IsActive    bool         `gorm:"not null;default:true" json:"is_active"`
}

func (RecurringRule) TableName() string { return "gl_recurring_rules" }

// Package domain contains persistence models for bank reconciliation: bank accounts,
// imported statement transactions, and the import batches they arrived in.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// BankAccount is one real-world bank account, denominated in a single currency and
// optionally linked to the COA account its balance posts against.
type BankAccount struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID  `gorm:"not null;index" json:"company_id"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	Currency  string        `gorm:"type:text;not null" json:"currency"` // USD or LBP
	AccountID *snowflake.ID `json:"account_id,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (BankAccount) TableName() string { return "bank_accounts" }

// BankStatementImportBatch records one statement upload. ImportKey makes re-uploading
// the same statement a no-op rather than a duplicate set of transactions.
type BankStatementImportBatch struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID     snowflake.ID `gorm:"not null;index" json:"company_id"`
	BankAccountID snowflake.ID `gorm:"not null" json:"bank_account_id"`
	ImportKey     string       `gorm:"type:text;uniqueIndex:ux_bank_import_key" json:"import_key,omitempty"`
	ImportedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"imported_at"`
	LineCount     int          `gorm:"not null;default:0" json:"line_count"`
}

func (BankStatementImportBatch) TableName() string { return "bank_statement_import_batches" }

// TxnStatus tracks a statement line through reconciliation.
type TxnStatus string

const (
	TxnStatusUnmatched TxnStatus = "unmatched"
	TxnStatusMatched   TxnStatus = "matched"
	TxnStatusIgnored   TxnStatus = "ignored"
)

// BankTransaction is one raw statement line, in the bank account's currency. Outflows
// are negative. A matched line points at the supplier payment it settles.
type BankTransaction struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID        snowflake.ID  `gorm:"not null;index" json:"company_id"`
	BankAccountID    snowflake.ID  `gorm:"not null;index" json:"bank_account_id"`
	ImportBatchID    *snowflake.ID `json:"import_batch_id,omitempty"`
	TxnDate          time.Time     `gorm:"type:date;not null" json:"txn_date"`
	Amount           string        `gorm:"type:numeric;not null" json:"amount"`
	Description      string        `gorm:"type:text" json:"description,omitempty"`
	MatchedPaymentID *snowflake.ID `json:"matched_payment_id,omitempty"`
	Status           TxnStatus     `gorm:"type:text;not null;default:unmatched" json:"status"`
	CreatedAt        time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (BankTransaction) TableName() string { return "bank_transactions" }

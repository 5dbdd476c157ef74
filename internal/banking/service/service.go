// Package service implements bank reconciliation: statement import and a matching pass
// linking statement lines to supplier payments by amount and date window. Read/write
// only — reconciliation never opens a posting path of its own.
package service

import (
	"context"
	"time"

	"github.com/baytretail/core/internal/apperr"
	"github.com/baytretail/core/internal/banking/domain"
	purchasingdomain "github.com/baytretail/core/internal/purchasing/domain"
	"github.com/baytretail/core/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrUnknownAccount  = apperr.New(apperr.KindNotFound, "bank account not found")
	ErrTxnNotUnmatched = apperr.New(apperr.KindPrecondition, "bank transaction is not unmatched")
)

// StatementLine is one parsed line of an uploaded bank statement.
type StatementLine struct {
	TxnDate     time.Time
	Amount      decimal.Decimal
	Description string
}

// ImportResult reports what an ImportStatement call did.
type ImportResult struct {
	Batch          *domain.BankStatementImportBatch
	AlreadyApplied bool
}

type Service struct {
	accounts repository.Repository[domain.BankAccount]
	batches  repository.Repository[domain.BankStatementImportBatch]
	txns     repository.Repository[domain.BankTransaction]
	payments purchasingdomain.Repository
	genID    *snowflake.Node
	log      *zap.Logger
}

// Params groups the service's repository and infra dependencies.
type Params struct {
	fx.In

	Accounts repository.Repository[domain.BankAccount]
	Batches  repository.Repository[domain.BankStatementImportBatch]
	Txns     repository.Repository[domain.BankTransaction]
	Payments purchasingdomain.Repository
	GenID    *snowflake.Node
	Logger   *zap.Logger
}

func New(p Params) *Service {
	return &Service{
		accounts: p.Accounts, batches: p.Batches, txns: p.Txns,
		payments: p.Payments, genID: p.GenID, log: p.Logger.Named("banking.service"),
	}
}

// CreateAccount registers a bank account for reconciliation.
func (s *Service) CreateAccount(ctx context.Context, companyID snowflake.ID, name, currency string, coaAccountID *snowflake.ID) (*domain.BankAccount, error) {
	if currency != "USD" && currency != "LBP" {
		return nil, apperr.Newf(apperr.KindValidation, "unsupported bank account currency %q", currency)
	}
	acct := domain.BankAccount{
		ID: s.genID.Generate(), CompanyID: companyID,
		Name: name, Currency: currency, AccountID: coaAccountID,
	}
	if err := s.accounts.Create(ctx, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// ImportStatement writes one unmatched transaction per statement line, idempotent by
// importKey: re-uploading the same statement returns the original batch untouched.
func (s *Service) ImportStatement(ctx context.Context, companyID, bankAccountID snowflake.ID, importKey string, lines []StatementLine) (*ImportResult, error) {
	acct, err := s.accounts.FindOne(ctx, &domain.BankAccount{ID: bankAccountID, CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrUnknownAccount
	}

	if importKey != "" {
		existing, err := s.batches.FindOne(ctx, &domain.BankStatementImportBatch{CompanyID: companyID, ImportKey: importKey})
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &ImportResult{Batch: existing, AlreadyApplied: true}, nil
		}
	}

	batch := domain.BankStatementImportBatch{
		ID: s.genID.Generate(), CompanyID: companyID, BankAccountID: bankAccountID,
		ImportKey: importKey, LineCount: len(lines),
	}
	if err := s.batches.Create(ctx, &batch); err != nil {
		return nil, err
	}

	txns := make([]*domain.BankTransaction, 0, len(lines))
	batchID := batch.ID
	for _, l := range lines {
		txns = append(txns, &domain.BankTransaction{
			ID: s.genID.Generate(), CompanyID: companyID, BankAccountID: bankAccountID,
			ImportBatchID: &batchID, TxnDate: l.TxnDate, Amount: l.Amount.String(),
			Description: l.Description, Status: domain.TxnStatusUnmatched,
		})
	}
	if len(txns) > 0 {
		if err := s.txns.BatchCreate(ctx, txns); err != nil {
			return nil, err
		}
	}
	return &ImportResult{Batch: &batch}, nil
}

// MatchPayments links unmatched outflow transactions to supplier payments of the same
// amount (in the account's currency) paid within windowDays of the transaction date.
// Each payment is consumed at most once per pass. Returns how many lines matched.
func (s *Service) MatchPayments(ctx context.Context, companyID, bankAccountID snowflake.ID, windowDays int) (int, error) {
	acct, err := s.accounts.FindOne(ctx, &domain.BankAccount{ID: bankAccountID, CompanyID: companyID})
	if err != nil {
		return 0, err
	}
	if acct == nil {
		return 0, ErrUnknownAccount
	}

	unmatched, err := s.txns.Find(ctx, &domain.BankTransaction{
		CompanyID: companyID, BankAccountID: bankAccountID, Status: domain.TxnStatusUnmatched,
	})
	if err != nil {
		return 0, err
	}

	consumed := map[snowflake.ID]bool{}
	already, err := s.txns.Find(ctx, &domain.BankTransaction{CompanyID: companyID, Status: domain.TxnStatusMatched})
	if err != nil {
		return 0, err
	}
	for _, t := range already {
		if t.MatchedPaymentID != nil {
			consumed[*t.MatchedPaymentID] = true
		}
	}

	matched := 0
	for _, t := range unmatched {
		amount, err := decimal.NewFromString(t.Amount)
		if err != nil || !amount.IsNegative() {
			continue // only outflows settle supplier payments
		}
		outflow := amount.Neg()

		from := t.TxnDate.AddDate(0, 0, -windowDays)
		to := t.TxnDate.AddDate(0, 0, windowDays)
		candidates, err := s.payments.ListPaymentsByDateRange(ctx, companyID, from, to)
		if err != nil {
			return matched, err
		}

		for _, p := range candidates {
			if consumed[p.ID] {
				continue
			}
			paid := p.AmountUSD
			if acct.Currency == "LBP" {
				paid = p.AmountLBP
			}
			paidDec, err := decimal.NewFromString(paid)
			if err != nil || !paidDec.Equal(outflow) {
				continue
			}
			paymentID := p.ID
			t.Status = domain.TxnStatusMatched
			t.MatchedPaymentID = &paymentID
			if err := s.txns.Update(ctx, t.ID.String(), t); err != nil {
				return matched, err
			}
			consumed[paymentID] = true
			matched++
			break
		}
	}

	s.log.Info("bank reconciliation pass complete",
		zap.Int64("company_id", int64(companyID)),
		zap.Int("unmatched", len(unmatched)-matched),
		zap.Int("matched", matched))
	return matched, nil
}

// IgnoreTransaction marks a statement line as not reconcilable (bank fees, interest).
func (s *Service) IgnoreTransaction(ctx context.Context, companyID, txnID snowflake.ID) error {
	t, err := s.txns.FindOne(ctx, &domain.BankTransaction{ID: txnID, CompanyID: companyID})
	if err != nil {
		return err
	}
	if t == nil {
		return apperr.Newf(apperr.KindNotFound, "bank transaction %d not found", txnID)
	}
	if t.Status != domain.TxnStatusUnmatched {
		return ErrTxnNotUnmatched
	}
	t.Status = domain.TxnStatusIgnored
	return s.txns.Update(ctx, t.ID.String(), t)
}

package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/baytretail/core/internal/banking/domain"
	purchasingdomain "github.com/baytretail/core/internal/purchasing/domain"
	purchasingrepo "github.com/baytretail/core/internal/purchasing/repository"
	"github.com/baytretail/core/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const companyID = snowflake.ID(31)

type fixture struct {
	db  *gorm.DB
	svc *Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.BankAccount{}, &domain.BankStatementImportBatch{}, &domain.BankTransaction{},
		&purchasingdomain.SupplierInvoice{}, &purchasingdomain.SupplierPayment{},
	))

	node, err := snowflake.NewNode(6)
	require.NoError(t, err)

	svc := New(Params{
		Accounts: repository.ProvideStore[domain.BankAccount](db),
		Batches:  repository.ProvideStore[domain.BankStatementImportBatch](db),
		Txns:     repository.ProvideStore[domain.BankTransaction](db),
		Payments: purchasingrepo.New(db),
		GenID:    node,
		Logger:   zap.NewNop(),
	})
	return &fixture{db: db, svc: svc}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestImportStatementIsIdempotentByKey(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	acct, err := f.svc.CreateAccount(ctx, companyID, "Operating USD", "USD", nil)
	require.NoError(t, err)

	lines := []StatementLine{
		{TxnDate: time.Now().UTC(), Amount: dec("-150"), Description: "wire out"},
		{TxnDate: time.Now().UTC(), Amount: dec("2000"), Description: "deposit"},
	}
	first, err := f.svc.ImportStatement(ctx, companyID, acct.ID, "stmt-2026-07", lines)
	require.NoError(t, err)
	require.False(t, first.AlreadyApplied)
	require.Equal(t, 2, first.Batch.LineCount)

	again, err := f.svc.ImportStatement(ctx, companyID, acct.ID, "stmt-2026-07", lines)
	require.NoError(t, err)
	require.True(t, again.AlreadyApplied)
	require.Equal(t, first.Batch.ID, again.Batch.ID)

	var count int64
	require.NoError(t, f.db.Model(&domain.BankTransaction{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestMatchPaymentsLinksOutflowToEqualPayment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	acct, err := f.svc.CreateAccount(ctx, companyID, "Operating USD", "USD", nil)
	require.NoError(t, err)

	si := purchasingdomain.SupplierInvoice{
		ID: 9001, CompanyID: companyID, SupplierID: 1, Status: purchasingdomain.SIStatusPaid,
		DocSubtype: purchasingdomain.DocSubtypeStandard, ExchangeRate: "89500", InvoiceDate: now,
	}
	require.NoError(t, f.db.Create(&si).Error)
	payment := purchasingdomain.SupplierPayment{
		ID: 9002, CompanyID: companyID, SupplierInvoiceID: si.ID,
		PaymentMethod: "bank", AmountUSD: "150", AmountLBP: "0", PaidAt: now.AddDate(0, 0, -2),
	}
	require.NoError(t, f.db.Create(&payment).Error)

	_, err = f.svc.ImportStatement(ctx, companyID, acct.ID, "stmt-1", []StatementLine{
		{TxnDate: now, Amount: dec("-150"), Description: "wire out"},
		{TxnDate: now, Amount: dec("-99"), Description: "no counterpart"},
		{TxnDate: now, Amount: dec("500"), Description: "inflow, never matched"},
	})
	require.NoError(t, err)

	matched, err := f.svc.MatchPayments(ctx, companyID, acct.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 1, matched)

	var txn domain.BankTransaction
	require.NoError(t, f.db.First(&txn, "status = ?", domain.TxnStatusMatched).Error)
	require.NotNil(t, txn.MatchedPaymentID)
	require.Equal(t, payment.ID, *txn.MatchedPaymentID)

	// A second pass finds nothing new: the payment is consumed.
	matched, err = f.svc.MatchPayments(ctx, companyID, acct.ID, 7)
	require.NoError(t, err)
	require.Zero(t, matched)
}

func TestMatchPaymentsRespectsDateWindow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	acct, err := f.svc.CreateAccount(ctx, companyID, "Operating USD", "USD", nil)
	require.NoError(t, err)

	si := purchasingdomain.SupplierInvoice{
		ID: 9101, CompanyID: companyID, SupplierID: 1, Status: purchasingdomain.SIStatusPaid,
		DocSubtype: purchasingdomain.DocSubtypeStandard, ExchangeRate: "89500", InvoiceDate: now,
	}
	require.NoError(t, f.db.Create(&si).Error)
	require.NoError(t, f.db.Create(&purchasingdomain.SupplierPayment{
		ID: 9102, CompanyID: companyID, SupplierInvoiceID: si.ID,
		PaymentMethod: "bank", AmountUSD: "75", AmountLBP: "0", PaidAt: now.AddDate(0, 0, -30),
	}).Error)

	_, err = f.svc.ImportStatement(ctx, companyID, acct.ID, "stmt-2", []StatementLine{
		{TxnDate: now, Amount: dec("-75")},
	})
	require.NoError(t, err)

	matched, err := f.svc.MatchPayments(ctx, companyID, acct.ID, 7)
	require.NoError(t, err)
	require.Zero(t, matched)
}

func TestIgnoreTransaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	acct, err := f.svc.CreateAccount(ctx, companyID, "Operating USD", "USD", nil)
	require.NoError(t, err)
	res, err := f.svc.ImportStatement(ctx, companyID, acct.ID, "", []StatementLine{
		{TxnDate: time.Now().UTC(), Amount: dec("-3"), Description: "bank fee"},
	})
	require.NoError(t, err)
	require.False(t, res.AlreadyApplied)

	var txn domain.BankTransaction
	require.NoError(t, f.db.First(&txn).Error)
	require.NoError(t, f.svc.IgnoreTransaction(ctx, companyID, txn.ID))
	require.ErrorIs(t, f.svc.IgnoreTransaction(ctx, companyID, txn.ID), ErrTxnNotUnmatched)

	_, err = f.svc.CreateAccount(ctx, companyID, "Euro account", "EUR", nil)
	require.Error(t, err)
}

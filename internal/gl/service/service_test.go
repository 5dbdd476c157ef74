package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/baytretail/core/internal/accountdefaults"
	auditrepo "github.com/baytretail/core/internal/audit/repository"
	auditservice "github.com/baytretail/core/internal/audit/service"
	companydomain "github.com/baytretail/core/internal/company/domain"
	companyrepo "github.com/baytretail/core/internal/company/repository"
	"github.com/baytretail/core/internal/gl/domain"
	"github.com/baytretail/core/internal/gl/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testCompanyID = snowflake.ID(1)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	repo     domain.Repository
	compRepo companydomain.Repository
	rounding snowflake.ID
	cash     snowflake.ID
	expense  snowflake.ID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.GlJournal{}, &domain.GlEntry{}, &domain.TaxLine{},
		&domain.JournalTemplate{}, &domain.RecurringRule{},
		&companydomain.Company{}, &companydomain.CompanyCoaAccount{},
		&companydomain.CompanyAccountDefaults{},
	))
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	compRepo := companyrepo.New(db)
	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Repo: auditrepo.Provide(),
	})
	resolver := accountdefaults.New(compRepo, auditSvc, node)
	glRepo := repository.New(db)
	svc := New(glRepo, compRepo, resolver, node, zap.NewNop())

	f := &fixture{db: db, svc: svc, repo: glRepo, compRepo: compRepo}
	ctx := context.Background()
	accounts := []struct {
		code, name, typ string
		id              *snowflake.ID
	}{
		{"5900", "Rounding Differences", "expense", &f.rounding},
		{"1011", "Cash", "asset", &f.cash},
		{"6001", "Purchases Expense", "expense", &f.expense},
	}
	for _, a := range accounts {
		acct := companydomain.CompanyCoaAccount{
			ID: node.Generate(), CompanyID: testCompanyID,
			Code: a.code, Name: a.name, Type: a.typ, IsPostable: true,
		}
		require.NoError(t, compRepo.CreateCoaAccount(ctx, acct))
		*a.id = acct.ID
	}
	require.NoError(t, compRepo.SetAccountDefault(ctx, companydomain.CompanyAccountDefaults{
		CompanyID: testCompanyID, RoleCode: companydomain.RoleRounding, AccountID: f.rounding,
	}))
	return f
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (f *fixture) post(t *testing.T, lines []EntryLine) (*domain.GlJournal, error) {
	t.Helper()
	return f.svc.Post(context.Background(), f.db, f.repo, f.compRepo, PostInput{
		CompanyID: testCompanyID, DocType: "GJ", SourceType: "manual_journal", SourceID: snowflake.ID(time.Now().UnixNano()),
		JournalDate: time.Now().UTC(), RateType: companydomain.RateTypeOfficial, ExchangeRate: dec("89500"),
		Memo: "test", Lines: lines,
	})
}

func TestPostBalancedJournalHasNoRoundingLine(t *testing.T) {
	f := setup(t)
	j, err := f.post(t, []EntryLine{
		{AccountID: f.expense, DebitUSD: dec("100"), DebitLBP: dec("8950000")},
		{AccountID: f.cash, CreditUSD: dec("100"), CreditLBP: dec("8950000")},
	})
	require.NoError(t, err)

	entries, err := f.repo.ListEntries(context.Background(), j.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestPostAppendsRoundingLineWithinTolerance(t *testing.T) {
	f := setup(t)
	j, err := f.post(t, []EntryLine{
		{AccountID: f.expense, DebitUSD: dec("100.0003")},
		{AccountID: f.cash, CreditUSD: dec("100.0000")},
	})
	require.NoError(t, err)

	entries, err := f.repo.ListEntries(context.Background(), j.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var rounding *domain.GlEntry
	for i := range entries {
		if entries[i].AccountID == f.rounding {
			rounding = &entries[i]
		}
	}
	require.NotNil(t, rounding, "expected a line against the ROUNDING account")
	require.True(t, dec(rounding.CreditUSD).Equal(dec("0.0003")))

	var sumDebit, sumCredit decimal.Decimal
	for _, e := range entries {
		sumDebit = sumDebit.Add(dec(e.DebitUSD))
		sumCredit = sumCredit.Add(dec(e.CreditUSD))
	}
	require.True(t, sumDebit.Equal(sumCredit))
}

func TestPostRejectsImbalanceBeyondTolerance(t *testing.T) {
	f := setup(t)
	_, err := f.post(t, []EntryLine{
		{AccountID: f.expense, DebitUSD: dec("100.06")},
		{AccountID: f.cash, CreditUSD: dec("100")},
	})
	require.ErrorIs(t, err, domain.ErrImbalanced)
}

func TestPostRejectsOppositeSignDiffs(t *testing.T) {
	f := setup(t)
	_, err := f.post(t, []EntryLine{
		{AccountID: f.expense, DebitUSD: dec("100.01"), DebitLBP: dec("8949000")},
		{AccountID: f.cash, CreditUSD: dec("100"), CreditLBP: dec("8950000")},
	})
	require.ErrorIs(t, err, domain.ErrSignMismatch)
}

func TestPostRejectsNegativeAndZeroLines(t *testing.T) {
	f := setup(t)
	_, err := f.post(t, []EntryLine{
		{AccountID: f.expense, DebitUSD: dec("-5")},
		{AccountID: f.cash, CreditUSD: dec("-5")},
	})
	require.ErrorIs(t, err, domain.ErrNegativeAmount)

	_, err = f.post(t, []EntryLine{
		{AccountID: f.expense},
		{AccountID: f.cash},
	})
	require.ErrorIs(t, err, domain.ErrZeroLine)
}

func TestPostLBPOnlyJournal(t *testing.T) {
	f := setup(t)
	j, err := f.post(t, []EntryLine{
		{AccountID: f.expense, DebitLBP: dec("500000")},
		{AccountID: f.cash, CreditLBP: dec("500000")},
	})
	require.NoError(t, err)
	entries, err := f.repo.ListEntries(context.Background(), j.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestReverseSwapsDebitsAndCreditsAndIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sourceID := snowflake.ID(42)

	_, err := f.svc.Post(ctx, f.db, f.repo, f.compRepo, PostInput{
		CompanyID: testCompanyID, DocType: "SI", SourceType: "supplier_invoice", SourceID: sourceID,
		JournalDate: time.Now().UTC(), RateType: companydomain.RateTypeOfficial, ExchangeRate: dec("89500"),
		Lines: []EntryLine{
			{AccountID: f.expense, DebitUSD: dec("50")},
			{AccountID: f.cash, CreditUSD: dec("50")},
		},
	})
	require.NoError(t, err)

	require.NoError(t, f.repo.InsertTaxLine(ctx, domain.TaxLine{
		ID: snowflake.ID(4242), CompanyID: testCompanyID, SourceType: "supplier_invoice", SourceID: sourceID,
		TaxCode: "VAT11", BaseUSD: "50", BaseLBP: "0", TaxUSD: "5.5", TaxLBP: "0", TaxDate: time.Now().UTC(),
	}))

	rev, err := f.svc.Reverse(ctx, f.repo, testCompanyID, "supplier_invoice", sourceID, time.Now().UTC(), "cancel")
	require.NoError(t, err)
	require.Equal(t, "supplier_invoice_cancel", rev.SourceType)

	entries, err := f.repo.ListEntries(ctx, rev.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		if e.AccountID == f.expense {
			require.True(t, dec(e.CreditUSD).Equal(dec("50")))
			require.True(t, dec(e.DebitUSD).IsZero())
		}
		if e.AccountID == f.cash {
			require.True(t, dec(e.DebitUSD).Equal(dec("50")))
		}
	}

	// Net tax across original + reversal is zero.
	taxes, err := f.repo.ListTaxLines(ctx, testCompanyID, "supplier_invoice_cancel", sourceID)
	require.NoError(t, err)
	require.Len(t, taxes, 1)
	require.True(t, dec(taxes[0].TaxUSD).Equal(dec("-5.5")))

	// A second cancel returns the same journal without new artifacts.
	again, err := f.svc.Reverse(ctx, f.repo, testCompanyID, "supplier_invoice", sourceID, time.Now().UTC(), "cancel")
	require.NoError(t, err)
	require.Equal(t, rev.ID, again.ID)

	taxes, err = f.repo.ListTaxLines(ctx, testCompanyID, "supplier_invoice_cancel", sourceID)
	require.NoError(t, err)
	require.Len(t, taxes, 1)
}

func TestPostManualDerivesMissingCurrencyLeg(t *testing.T) {
	f := setup(t)
	j, err := f.svc.PostManual(context.Background(), f.db, f.repo, f.compRepo, PostInput{
		CompanyID: testCompanyID, DocType: "GJ", SourceType: "manual_journal", SourceID: 77,
		JournalDate: time.Now().UTC(), RateType: companydomain.RateTypeOfficial, ExchangeRate: dec("89500"),
		Lines: []EntryLine{
			{AccountID: f.expense, DebitUSD: dec("100")},         // LBP leg derived
			{AccountID: f.cash, CreditLBP: dec("8950000")},       // USD leg derived
		},
	})
	require.NoError(t, err)

	entries, err := f.repo.ListEntries(context.Background(), j.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		if e.AccountID == f.expense {
			require.True(t, dec(e.DebitLBP).Equal(dec("8950000")))
		}
		if e.AccountID == f.cash {
			require.True(t, dec(e.CreditUSD).Equal(dec("100")))
		}
	}
}

func TestRecurringRuleReplaysTemplate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tmpl := domain.JournalTemplate{CompanyID: testCompanyID, Name: "monthly rent"}
	require.NoError(t, f.svc.SaveTemplate(ctx, f.repo, tmpl, []EntryLine{
		{AccountID: f.expense, DebitUSD: dec("800")},
		{AccountID: f.cash, CreditUSD: dec("800")},
	}))

	var saved domain.JournalTemplate
	require.NoError(t, f.db.First(&saved, "company_id = ?", testCompanyID).Error)

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	rule := domain.RecurringRule{
		ID: 4001, CompanyID: testCompanyID, TemplateID: saved.ID,
		Cadence: domain.CadenceDaily, NextRunDate: yesterday, IsActive: true,
	}
	require.NoError(t, f.repo.UpsertRecurringRule(ctx, rule))

	require.NoError(t, f.svc.RunRecurringJob(ctx, f.db, testCompanyID))

	journal, err := f.repo.FindJournalBySource(ctx, testCompanyID, "recurring_rule", rule.ID)
	require.NoError(t, err)
	require.NotNil(t, journal)
	entries, err := f.repo.ListEntries(ctx, journal.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var advanced domain.RecurringRule
	require.NoError(t, f.db.First(&advanced, "id = ?", rule.ID).Error)
	require.True(t, advanced.NextRunDate.After(yesterday))
}

func TestSaveTemplateRequiresBalance(t *testing.T) {
	f := setup(t)
	err := f.svc.SaveTemplate(context.Background(), f.repo, domain.JournalTemplate{
		CompanyID: testCompanyID, Name: "rent",
	}, []EntryLine{
		{AccountID: f.expense, DebitUSD: dec("10")},
		{AccountID: f.cash, CreditUSD: dec("9")},
	})
	require.ErrorIs(t, err, domain.ErrImbalanced)
}

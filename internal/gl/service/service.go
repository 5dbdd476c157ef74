// Package service implements the GL posting engine: auto-balanced journal emission,
// reversal, and manual-journal/template/recurring-rule management.
package service

import (
	"context"
	"time"

	"github.com/baytretail/core/internal/apperr"
	companydomain "github.com/baytretail/core/internal/company/domain"
	"github.com/baytretail/core/internal/gl/domain"
	"github.com/baytretail/core/internal/money"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// roundingToleranceUSD / roundingToleranceLBP bound the auto-balance rule: a journal whose
// per-currency debit/credit diff falls within tolerance gets a single rounding line; beyond
// that it's rejected as IMBALANCED.
var (
	roundingToleranceUSD = decimal.NewFromFloat(0.05)
	roundingToleranceLBP = decimal.NewFromInt(5000)
)

// AccountResolver resolves a role to a concrete postable account, used to find the
// ROUNDING account when auto-balancing.
type AccountResolver interface {
	Resolve(ctx context.Context, gdb *gorm.DB, tx companydomain.Repository, companyID snowflake.ID, role companydomain.AccountRoleCode) (*companydomain.CompanyCoaAccount, error)
}

// EntryLine is the input shape for one journal line before posting.
type EntryLine struct {
	AccountID   snowflake.ID
	DebitUSD    decimal.Decimal
	CreditUSD   decimal.Decimal
	DebitLBP    decimal.Decimal
	CreditLBP   decimal.Decimal
	Memo        string
	WarehouseID *snowflake.ID
	CostCenter  string
	Project     string
}

// PostInput fully describes a journal to emit.
type PostInput struct {
	CompanyID    snowflake.ID
	DocType      string // used to allocate journal_no when JournalNo is empty
	JournalNo    string
	SourceType   string
	SourceID     snowflake.ID
	JournalDate  time.Time
	RateType     companydomain.RateType
	ExchangeRate decimal.Decimal
	Memo         string
	Lines        []EntryLine
}

type Service struct {
	repo      domain.Repository
	companies companydomain.Repository
	resolver  AccountResolver
	genID     *snowflake.Node
	log       *zap.Logger
}

func New(repo domain.Repository, companies companydomain.Repository, resolver AccountResolver, genID *snowflake.Node, log *zap.Logger) *Service {
	return &Service{repo: repo, companies: companies, resolver: resolver, genID: genID, log: log.Named("gl.service")}
}

// Post validates, auto-balances, and persists a journal plus its entries. gdb/tx must be
// the caller's open transaction: every GL-emitting path runs inside the same transaction as
// the stock moves / document state change it accompanies.
func (s *Service) Post(ctx context.Context, gdb *gorm.DB, tx domain.Repository, companiesTx companydomain.Repository, in PostInput) (*domain.GlJournal, error) {
	if len(in.Lines) == 0 {
		return nil, domain.ErrNoLines
	}

	lines := make([]domain.GlEntry, 0, len(in.Lines)+1)
	var sumDebitUSD, sumCreditUSD, sumDebitLBP, sumCreditLBP decimal.Decimal
	for _, l := range in.Lines {
		if l.DebitUSD.IsNegative() || l.CreditUSD.IsNegative() || l.DebitLBP.IsNegative() || l.CreditLBP.IsNegative() {
			return nil, domain.ErrNegativeAmount
		}
		if l.DebitUSD.IsZero() && l.CreditUSD.IsZero() && l.DebitLBP.IsZero() && l.CreditLBP.IsZero() {
			return nil, domain.ErrZeroLine
		}
		sumDebitUSD = sumDebitUSD.Add(l.DebitUSD)
		sumCreditUSD = sumCreditUSD.Add(l.CreditUSD)
		sumDebitLBP = sumDebitLBP.Add(l.DebitLBP)
		sumCreditLBP = sumCreditLBP.Add(l.CreditLBP)
		lines = append(lines, toEntry(l))
	}

	diffUSD := sumDebitUSD.Sub(sumCreditUSD)
	diffLBP := sumDebitLBP.Sub(sumCreditLBP)

	if !diffUSD.IsZero() || !diffLBP.IsZero() {
		if diffUSD.Sign() != 0 && diffLBP.Sign() != 0 && diffUSD.Sign() != diffLBP.Sign() {
			return nil, domain.ErrSignMismatch
		}
		if diffUSD.Abs().GreaterThan(roundingToleranceUSD) || diffLBP.Abs().GreaterThan(roundingToleranceLBP) {
			return nil, domain.ErrImbalanced
		}

		roundingAccount, err := s.resolver.Resolve(ctx, gdb, companiesTx, in.CompanyID, companydomain.RoleRounding)
		if err != nil {
			return nil, err
		}

		roundingLine := domain.GlEntry{AccountID: roundingAccount.ID, Memo: "auto-balance rounding"}
		if diffUSD.IsPositive() {
			roundingLine.CreditUSD = money.QUSD(diffUSD).String()
		} else if diffUSD.IsNegative() {
			roundingLine.DebitUSD = money.QUSD(diffUSD.Neg()).String()
		}
		if diffLBP.IsPositive() {
			roundingLine.CreditLBP = money.QLBP(diffLBP).String()
		} else if diffLBP.IsNegative() {
			roundingLine.DebitLBP = money.QLBP(diffLBP.Neg()).String()
		}
		lines = append(lines, roundingLine)
	}

	journalNo := in.JournalNo
	if journalNo == "" {
		no, err := tx.NextDocumentNo(ctx, in.CompanyID, in.DocType)
		if err != nil {
			return nil, err
		}
		journalNo = no
	}

	journal := domain.GlJournal{
		ID:           s.genID.Generate(),
		CompanyID:    in.CompanyID,
		JournalNo:    journalNo,
		SourceType:   in.SourceType,
		SourceID:     in.SourceID,
		JournalDate:  in.JournalDate,
		RateType:     in.RateType,
		ExchangeRate: in.ExchangeRate.String(),
		Memo:         in.Memo,
	}

	for i := range lines {
		lines[i].ID = s.genID.Generate()
	}

	if err := tx.CreateJournal(ctx, journal, lines); err != nil {
		return nil, err
	}
	return &journal, nil
}

// Reverse creates a compensating journal for an already-posted document, idempotently: if a
// reversal journal already exists for (sourceType_cancel, sourceID) it is returned unchanged.
func (s *Service) Reverse(ctx context.Context, tx domain.Repository, companyID snowflake.ID, sourceType string, sourceID snowflake.ID, journalDate time.Time, memo string) (*domain.GlJournal, error) {
	cancelSourceType := sourceType + "_cancel"

	if existing, err := tx.FindJournalBySource(ctx, companyID, cancelSourceType, sourceID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	original, err := tx.FindJournalBySource(ctx, companyID, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "no journal found for %s/%d to reverse", sourceType, sourceID)
	}

	originalLines, err := tx.ListEntries(ctx, original.ID)
	if err != nil {
		return nil, err
	}

	reversedLines := make([]domain.GlEntry, 0, len(originalLines))
	for _, l := range originalLines {
		reversedLines = append(reversedLines, domain.GlEntry{
			ID:          s.genID.Generate(),
			AccountID:   l.AccountID,
			DebitUSD:    l.CreditUSD,
			CreditUSD:   l.DebitUSD,
			DebitLBP:    l.CreditLBP,
			CreditLBP:   l.DebitLBP,
			Memo:        l.Memo,
			WarehouseID: l.WarehouseID,
			CostCenter:  l.CostCenter,
			Project:     l.Project,
		})
	}

	rate, _ := decimal.NewFromString(original.ExchangeRate)
	journalNo, err := tx.NextDocumentNo(ctx, companyID, "REV")
	if err != nil {
		return nil, err
	}

	reversal := domain.GlJournal{
		ID:           s.genID.Generate(),
		CompanyID:    companyID,
		JournalNo:    journalNo,
		SourceType:   cancelSourceType,
		SourceID:     sourceID,
		JournalDate:  journalDate,
		RateType:     original.RateType,
		ExchangeRate: rate.String(),
		Memo:         memo,
	}
	if err := tx.CreateJournal(ctx, reversal, reversedLines); err != nil {
		return nil, err
	}

	taxLines, err := tx.ListTaxLines(ctx, companyID, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	for _, t := range taxLines {
		if err := tx.InsertTaxLine(ctx, negateTaxLine(s.genID.Generate(), t, cancelSourceType)); err != nil {
			return nil, err
		}
	}

	return &reversal, nil
}

// PostManual books an operator-entered journal. Each line may carry only one currency
// leg; the other is derived from the document rate before the standard validation and
// auto-balance run (an operator keys amounts in whichever currency the source document
// shows).
func (s *Service) PostManual(ctx context.Context, gdb *gorm.DB, tx domain.Repository, companiesTx companydomain.Repository, in PostInput) (*domain.GlJournal, error) {
	if len(in.Lines) == 0 {
		return nil, domain.ErrNoLines
	}
	normalized := make([]EntryLine, 0, len(in.Lines))
	anyAmount := false
	for _, l := range in.Lines {
		debit := money.Normalize(money.Dual{USD: l.DebitUSD, LBP: l.DebitLBP}, in.ExchangeRate)
		credit := money.Normalize(money.Dual{USD: l.CreditUSD, LBP: l.CreditLBP}, in.ExchangeRate)
		if !debit.IsZero() || !credit.IsZero() {
			anyAmount = true
		}
		l.DebitUSD, l.DebitLBP = debit.USD, debit.LBP
		l.CreditUSD, l.CreditLBP = credit.USD, credit.LBP
		normalized = append(normalized, l)
	}
	if !anyAmount {
		return nil, domain.ErrZeroLine
	}
	in.Lines = normalized
	if in.SourceType == "" {
		in.SourceType = "manual_journal"
	}
	return s.Post(ctx, gdb, tx, companiesTx, in)
}

// SaveTemplate validates a journal template balances in both currencies before persisting
// the lines onto the template row.
func (s *Service) SaveTemplate(ctx context.Context, tx domain.Repository, t domain.JournalTemplate, lines []EntryLine) error {
	if err := validateTemplateBalance(lines); err != nil {
		return err
	}
	t.Lines = encodeTemplateLines(lines)
	if t.ID == 0 {
		t.ID = s.genID.Generate()
		return tx.CreateTemplate(ctx, t)
	}
	return tx.UpdateTemplate(ctx, t)
}

// RunRecurringJob replays every due recurring rule's template as a fresh journal and
// advances the rule to its next run date. The advance happens before the post so a
// handler retry after a partial failure skips the rule instead of double-posting; a rule
// whose post failed is surfaced by the job run's recorded error and replayed manually.
func (s *Service) RunRecurringJob(ctx context.Context, gdb *gorm.DB, companyID snowflake.ID) error {
	tx := s.repo.WithTx(gdb)
	rules, err := tx.ListDueRecurringRules(ctx, companyID)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		tmpl, err := tx.GetTemplate(ctx, rule.TemplateID)
		if err != nil {
			return err
		}
		lines, err := decodeTemplateLines(tmpl.Lines)
		if err != nil {
			return err
		}

		runDate := rule.NextRunDate
		if err := tx.AdvanceRecurringRule(ctx, rule.ID, nextRunDate(rule, runDate)); err != nil {
			return err
		}
		if _, err := s.Post(ctx, gdb, tx, s.companies.WithTx(gdb), PostInput{
			CompanyID: companyID, DocType: "GJ", SourceType: "recurring_rule", SourceID: rule.ID,
			JournalDate: runDate, RateType: companydomain.RateTypeOfficial, ExchangeRate: decimal.Zero,
			Memo: "recurring journal: " + tmpl.Name, Lines: lines,
		}); err != nil {
			return err
		}
		s.log.Info("recurring journal posted",
			zap.Int64("rule_id", int64(rule.ID)), zap.Int64("company_id", int64(companyID)))
	}
	return nil
}

// nextRunDate advances a rule past from according to its cadence.
func nextRunDate(rule domain.RecurringRule, from time.Time) time.Time {
	switch rule.Cadence {
	case domain.CadenceDaily:
		return from.AddDate(0, 0, 1)
	case domain.CadenceWeekly:
		next := from.AddDate(0, 0, 1)
		for int(next.Weekday()) != rule.DayOfWeek%7 {
			next = next.AddDate(0, 0, 1)
		}
		return next
	default: // monthly, clamped to the month's last day for short months
		next := time.Date(from.Year(), from.Month()+1, 1, 0, 0, 0, 0, from.Location())
		day := rule.DayOfMonth
		lastDay := next.AddDate(0, 1, -1).Day()
		if day > lastDay {
			day = lastDay
		}
		if day < 1 {
			day = 1
		}
		return time.Date(next.Year(), next.Month(), day, 0, 0, 0, 0, next.Location())
	}
}

func encodeTemplateLines(lines []EntryLine) datatypes.JSONMap {
	encoded := make([]any, 0, len(lines))
	for _, l := range lines {
		encoded = append(encoded, map[string]any{
			"account_id": l.AccountID.String(),
			"debit_usd":  l.DebitUSD.String(),
			"credit_usd": l.CreditUSD.String(),
			"debit_lbp":  l.DebitLBP.String(),
			"credit_lbp": l.CreditLBP.String(),
			"memo":       l.Memo,
		})
	}
	return datatypes.JSONMap{"lines": encoded}
}

func decodeTemplateLines(raw datatypes.JSONMap) ([]EntryLine, error) {
	items, _ := raw["lines"].([]any)
	lines := make([]EntryLine, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, apperr.New(apperr.KindValidation, "malformed template line")
		}
		accountID, err := snowflake.ParseString(str(m["account_id"]))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, err)
		}
		lines = append(lines, EntryLine{
			AccountID: accountID,
			DebitUSD:  mustDec(str(m["debit_usd"])),
			CreditUSD: mustDec(str(m["credit_usd"])),
			DebitLBP:  mustDec(str(m["debit_lbp"])),
			CreditLBP: mustDec(str(m["credit_lbp"])),
			Memo:      str(m["memo"]),
		})
	}
	return lines, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func mustDec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func validateTemplateBalance(lines []EntryLine) error {
	var sumDebitUSD, sumCreditUSD, sumDebitLBP, sumCreditLBP decimal.Decimal
	for _, l := range lines {
		sumDebitUSD = sumDebitUSD.Add(l.DebitUSD)
		sumCreditUSD = sumCreditUSD.Add(l.CreditUSD)
		sumDebitLBP = sumDebitLBP.Add(l.DebitLBP)
		sumCreditLBP = sumCreditLBP.Add(l.CreditLBP)
	}
	if !sumDebitUSD.Equal(sumCreditUSD) || !sumDebitLBP.Equal(sumCreditLBP) {
		return domain.ErrImbalanced
	}
	return nil
}

func toEntry(l EntryLine) domain.GlEntry {
	return domain.GlEntry{
		AccountID:   l.AccountID,
		DebitUSD:    money.QUSD(l.DebitUSD).String(),
		CreditUSD:   money.QUSD(l.CreditUSD).String(),
		DebitLBP:    money.QLBP(l.DebitLBP).String(),
		CreditLBP:   money.QLBP(l.CreditLBP).String(),
		Memo:        l.Memo,
		WarehouseID: l.WarehouseID,
		CostCenter:  l.CostCenter,
		Project:     l.Project,
	}
}

func negateTaxLine(id snowflake.ID, t domain.TaxLine, sourceType string) domain.TaxLine {
	neg := func(s string) string {
		d, _ := decimal.NewFromString(s)
		return d.Neg().String()
	}
	return domain.TaxLine{
		ID:         id,
		CompanyID:  t.CompanyID,
		SourceType: sourceType,
		SourceID:   t.SourceID,
		TaxCode:    t.TaxCode,
		BaseUSD:    neg(t.BaseUSD),
		BaseLBP:    neg(t.BaseLBP),
		TaxUSD:     neg(t.TaxUSD),
		TaxLBP:     neg(t.TaxLBP),
		TaxDate:    t.TaxDate,
	}
}

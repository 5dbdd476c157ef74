// Package service orchestrates the supplier-invoice import pipeline: upload an attachment,
// extract candidate lines from it, let a human review the extractor's guesses, then apply
// the reviewed lines onto the real SupplierInvoice the purchasing package posts.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/baytretail/core/internal/apperr"
	catalogdomain "github.com/baytretail/core/internal/catalog/domain"
	catalogservice "github.com/baytretail/core/internal/catalog/service"
	"github.com/baytretail/core/internal/config"
	"github.com/baytretail/core/internal/invoiceimport/domain"
	"github.com/baytretail/core/internal/invoiceimport/extract"
	purchasingdomain "github.com/baytretail/core/internal/purchasing/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/golang/snappy"
	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// extractionLockTTL bounds how long a scheduler instance holds the per-invoice extraction
// lock, so a crashed worker doesn't hold it forever. An invoice a crashed worker left in
// "processing" is not retried: the sweep only picks up invoices still "pending".
const extractionLockTTL = 5 * time.Minute

// fuzzyMatchFloor is the minimum name-overlap score a line needs before the pipeline offers
// it as a suggestion at all; below this a blank field name match is worse than no guess.
var fuzzyMatchFloor = decimal.NewFromFloat(0.4)

// UploadInput describes a newly received supplier document.
type UploadInput struct {
	SupplierID  snowflake.ID
	Filename    string `validate:"required"`
	ContentType string `validate:"required"`
	Content     []byte `validate:"required"`
	InvoiceDate time.Time `validate:"required"`
	// SkipExtract files the attachment without ever running extraction, for a supplier whose
	// invoices are keyed in by hand from the start.
	SkipExtract bool
	// Sync runs extraction inline instead of waiting for the background sweep, surfacing an
	// extraction failure directly to the caller instead of only recording it on the draft.
	Sync bool
}

// ApplyInput carries the header fields a reviewer fills in before an import is posted-ready.
type ApplyInput struct {
	InvoiceNo    string `validate:"required"`
	DocSubtype   string `validate:"required"`
	TaxCode      string
	ExchangeRate decimal.Decimal `validate:"required"`
}

// Service implements the upload/extract/review/apply state machine described in the
// supplier-invoice-import module.
type Service struct {
	db       *gorm.DB
	attach   domain.Repository
	invoices purchasingdomain.Repository
	catalog  catalogservice.Service
	extractor extract.Extractor
	redis    *redis.Client
	validate *validator.Validate
	cfg      config.Config
	genID    *snowflake.Node
	log      *zap.Logger
}

// Params groups the service's dependencies for fx injection.
type Params struct {
	fx.In

	DB        *gorm.DB
	Attach    domain.Repository
	Invoices  purchasingdomain.Repository
	Catalog   catalogservice.Service
	Extractor extract.Extractor
	Redis     *redis.Client
	Config    config.Config
	GenID     *snowflake.Node
	Log       *zap.Logger
}

func New(p Params) *Service {
	return &Service{
		db:        p.DB,
		attach:    p.Attach,
		invoices:  p.Invoices,
		catalog:   p.Catalog,
		extractor: p.Extractor,
		redis:     p.Redis,
		validate:  validator.New(),
		cfg:       p.Config,
		genID:     p.GenID,
		log:       p.Log.Named("invoiceimport"),
	}
}

// Upload stores the attachment, creates a draft SupplierInvoice for it, and either leaves
// extraction for the background sweep or runs it inline when in.Sync is set.
func (s *Service) Upload(ctx context.Context, companyID snowflake.ID, in UploadInput) (*purchasingdomain.SupplierInvoice, *domain.DocumentAttachment, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, nil, fmt.Errorf("invoiceimport: invalid upload: %w", err)
	}
	if len(in.Content) == 0 {
		return nil, nil, domain.ErrAttachmentEmpty
	}
	maxBytes := s.cfg.AttachmentMaxMB * 1024 * 1024
	if int64(len(in.Content)) > maxBytes {
		return nil, nil, apperr.New(apperr.KindValidation, fmt.Sprintf(
			"attachment (%s) exceeds the %s limit",
			humanize.Bytes(uint64(len(in.Content))), humanize.Bytes(uint64(maxBytes)),
		))
	}

	sum := sha256.Sum256(in.Content)
	attachment := domain.DocumentAttachment{
		ID:             s.genID.Generate(),
		CompanyID:      companyID,
		Filename:       in.Filename,
		ContentType:    in.ContentType,
		SizeBytes:      int64(len(in.Content)),
		BlobCompressed: snappy.Encode(nil, in.Content),
		Checksum:       hex.EncodeToString(sum[:]),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.attach.CreateAttachment(ctx, attachment); err != nil {
		return nil, nil, err
	}

	status := purchasingdomain.ImportStatusPending
	if in.SkipExtract {
		status = purchasingdomain.ImportStatusSkipped
	}
	si := purchasingdomain.SupplierInvoice{
		ID:           s.genID.Generate(),
		CompanyID:    companyID,
		SupplierID:   in.SupplierID,
		Status:       purchasingdomain.SIStatusDraft,
		DocSubtype:   purchasingdomain.DocSubtypeDirect,
		ImportStatus: status,
		AttachmentID: &attachment.ID,
		InvoiceDate:  in.InvoiceDate,
	}
	if err := s.invoices.CreateSupplierInvoice(ctx, si); err != nil {
		return nil, nil, err
	}

	if in.Sync && !in.SkipExtract {
		if err := s.extractOne(ctx, companyID, si); err != nil {
			return nil, &attachment, err
		}
		refreshed, err := s.invoices.GetSupplierInvoice(ctx, companyID, si.ID)
		if err != nil {
			return nil, &attachment, err
		}
		return refreshed, &attachment, nil
	}
	return &si, &attachment, nil
}

// ExtractDueJob is the scheduler.JobHandler entrypoint: it sweeps every invoice still
// waiting on extraction for one company and runs each through the configured extractor.
// Per-invoice failures are recorded on the draft rather than propagated, so one bad document
// never blocks the rest of the sweep (or makes the job run show as failed).
func (s *Service) ExtractDueJob(ctx context.Context, companyID snowflake.ID, _ map[string]any) error {
	pending, err := s.invoices.ListSupplierInvoicesByImportStatus(ctx, companyID, purchasingdomain.ImportStatusPending)
	if err != nil {
		return err
	}
	for _, si := range pending {
		if err := s.extractOne(ctx, companyID, si); err != nil {
			s.log.Warn("extraction failed, recorded on draft",
				zap.Int64("supplier_invoice_id", int64(si.ID)), zap.Error(err))
		}
	}
	return nil
}

// extractOne runs the extractor over one invoice's attachment and files the resulting
// candidate lines for review. A redis lock keeps two scheduler instances from racing the
// same invoice; if redis is unavailable the sweep proceeds without the lock rather than
// stalling extraction entirely.
func (s *Service) extractOne(ctx context.Context, companyID snowflake.ID, si purchasingdomain.SupplierInvoice) error {
	if si.AttachmentID == nil {
		return domain.ErrAttachmentEmpty
	}

	if s.redis != nil {
		lockKey := fmt.Sprintf("invoiceimport:extract:%s", si.ID.String())
		ok, err := s.redis.SetNX(ctx, lockKey, "1", extractionLockTTL).Result()
		if err != nil {
			s.log.Warn("extraction lock unavailable, proceeding without dedupe", zap.Error(err))
		} else if !ok {
			return nil
		} else {
			defer s.redis.Del(context.Background(), lockKey)
		}
	}

	si.ImportStatus = purchasingdomain.ImportStatusProcessing
	if err := s.invoices.UpdateSupplierInvoice(ctx, si); err != nil {
		return err
	}

	attachment, err := s.attach.GetAttachment(ctx, companyID, *si.AttachmentID)
	if err != nil {
		return err
	}
	if attachment == nil {
		return s.failImport(ctx, si, domain.ErrAttachmentEmpty)
	}

	raw, err := snappy.Decode(nil, attachment.BlobCompressed)
	if err != nil {
		return s.failImport(ctx, si, fmt.Errorf("decompress attachment: %w", err))
	}

	extracted, rawResp, err := s.extractor.Extract(ctx, attachment.Filename, attachment.ContentType, raw)
	if err != nil {
		return s.failImport(ctx, si, err)
	}
	if len(rawResp) > 0 {
		if err := s.attach.SaveExtractionRaw(ctx, attachment.ID, rawResp); err != nil {
			s.log.Warn("failed to persist extraction audit trail", zap.Error(err))
		}
	}

	lines := make([]purchasingdomain.SupplierInvoiceImportLine, 0, len(extracted.Lines))
	for _, l := range extracted.Lines {
		suggestedItemID, confidence := s.matchLine(ctx, companyID, si.SupplierID, l)
		lines = append(lines, purchasingdomain.SupplierInvoiceImportLine{
			ID:                  s.genID.Generate(),
			SupplierInvoiceID:   si.ID,
			SupplierItemCode:    l.SupplierItemCode,
			SupplierItemName:    l.SupplierItemName,
			Qty:                 orOne(l.Qty),
			UnitCostUSD:         orZero(l.UnitCostUSD),
			UnitCostLBP:         orZero(l.UnitCostLBP),
			SuggestedItemID:     suggestedItemID,
			SuggestedConfidence: confidence,
			Status:              purchasingdomain.ImportLineStatusPending,
			CreatedAt:           time.Now().UTC(),
		})
	}
	if err := s.invoices.CreateImportLines(ctx, lines); err != nil {
		return err
	}

	if extracted.InvoiceNoGuess != "" {
		si.InvoiceNo = extracted.InvoiceNoGuess
	}
	si.ImportStatus = purchasingdomain.ImportStatusPendingReview
	return s.invoices.UpdateSupplierInvoice(ctx, si)
}

// failImport records an extraction failure on the draft and swallows it: a document the
// extractor can't read is an expected outcome a reviewer must act on, not a system error.
func (s *Service) failImport(ctx context.Context, si purchasingdomain.SupplierInvoice, cause error) error {
	si.ImportStatus = purchasingdomain.ImportStatusFailed
	si.ImportError = cause.Error()
	if err := s.invoices.UpdateSupplierInvoice(ctx, si); err != nil {
		s.log.Error("failed to record import failure", zap.Error(err))
	}
	return cause
}

// matchLine looks for a catalog item to suggest for one extracted line: an exact learned
// alias first, then an exact SKU match, then a best-effort name-overlap score. Returns nil,
// nil when nothing clears fuzzyMatchFloor.
func (s *Service) matchLine(ctx context.Context, companyID, supplierID snowflake.ID, l extract.Line) (*snowflake.ID, *string) {
	code := strings.TrimSpace(l.SupplierItemCode)
	if code != "" {
		normalizedCode := slug.Make(code)
		if alias, err := s.catalog.FindSupplierAlias(ctx, companyID, supplierID, normalizedCode); err == nil && alias != nil {
			conf := "1.00"
			return &alias.ItemID, &conf
		}
		if item, err := s.catalog.FindItemBySKU(ctx, companyID, code); err == nil && item != nil {
			conf := "0.90"
			return &item.ID, &conf
		}
	}

	name := strings.TrimSpace(l.SupplierItemName)
	if name == "" {
		return nil, nil
	}
	items, err := s.catalog.ListItems(ctx, companyID)
	if err != nil || len(items) == 0 {
		return nil, nil
	}
	var best *catalogdomain.Item
	bestScore := decimal.Zero
	for _, it := range items {
		score := nameOverlapScore(name, it.Name)
		if score.GreaterThan(bestScore) {
			bestScore = score
			best = it
		}
	}
	if best == nil || bestScore.LessThan(fuzzyMatchFloor) {
		return nil, nil
	}
	conf := bestScore.StringFixed(2)
	return &best.ID, &conf
}

// nameOverlapScore is a Jaccard index over whitespace-tokenized, lowercased words: cheap,
// dependency-free, and good enough to separate "probably the same item" from noise.
func nameOverlapScore(a, b string) decimal.Decimal {
	aw := strings.Fields(strings.ToLower(a))
	bw := strings.Fields(strings.ToLower(b))
	if len(aw) == 0 || len(bw) == 0 {
		return decimal.Zero
	}
	bSet := make(map[string]bool, len(bw))
	for _, w := range bw {
		bSet[w] = true
	}
	matched := 0
	for _, w := range aw {
		if bSet[w] {
			matched++
		}
	}
	union := len(aw) + len(bw) - matched
	if union == 0 || matched == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(matched)).Div(decimal.NewFromInt(int64(union)))
}

// SetSupplier assigns the supplier that issued an imported invoice, required before Apply
// since every learned alias and cost is keyed by (supplier, item).
func (s *Service) SetSupplier(ctx context.Context, companyID, siID, supplierID snowflake.ID) (*purchasingdomain.SupplierInvoice, error) {
	si, err := s.invoices.GetSupplierInvoice(ctx, companyID, siID)
	if err != nil {
		return nil, err
	}
	if si == nil {
		return nil, domain.ErrNotPendingReview
	}
	si.SupplierID = supplierID
	if err := s.invoices.UpdateSupplierInvoice(ctx, *si); err != nil {
		return nil, err
	}
	return si, nil
}

// ResolveLine assigns (or clears) the catalog item a reviewer confirms for an extracted
// line. Passing a nil itemID reverts the line to pending.
func (s *Service) ResolveLine(ctx context.Context, lineID snowflake.ID, itemID *snowflake.ID) error {
	line, err := s.invoices.GetImportLine(ctx, lineID)
	if err != nil {
		return err
	}
	if line == nil {
		return domain.ErrNotPendingReview
	}
	line.ResolvedItemID = itemID
	if itemID == nil {
		line.Status = purchasingdomain.ImportLineStatusPending
	} else {
		line.Status = purchasingdomain.ImportLineStatusResolved
	}
	return s.invoices.UpdateImportLine(ctx, *line)
}

// SkipLine marks an extracted line as not worth keeping (a subtotal row, a misread
// duplicate) so it no longer blocks Apply.
func (s *Service) SkipLine(ctx context.Context, lineID snowflake.ID) error {
	line, err := s.invoices.GetImportLine(ctx, lineID)
	if err != nil {
		return err
	}
	if line == nil {
		return domain.ErrNotPendingReview
	}
	line.Status = purchasingdomain.ImportLineStatusSkipped
	return s.invoices.UpdateImportLine(ctx, *line)
}

// Apply replaces the invoice's confirmed lines with the reviewed import lines, learns an
// alias and a last-cost for every resolved item, and advances the invoice past import so
// purchasing's own MatchInvoice/PostInvoice operations can take over. Every import line
// must be resolved or skipped first; Apply never guesses on the reviewer's behalf.
func (s *Service) Apply(ctx context.Context, companyID, siID snowflake.ID, in ApplyInput) (*purchasingdomain.SupplierInvoice, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invoiceimport: invalid apply input: %w", err)
	}
	si, err := s.invoices.GetSupplierInvoice(ctx, companyID, siID)
	if err != nil {
		return nil, err
	}
	if si == nil {
		return nil, domain.ErrNotPendingReview
	}
	if si.ImportStatus != purchasingdomain.ImportStatusPendingReview {
		return nil, domain.ErrNotPendingReview
	}
	if si.SupplierID == 0 {
		return nil, domain.ErrNoSupplierAssigned
	}

	lines, err := s.invoices.ListImportLines(ctx, siID)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if l.Status == purchasingdomain.ImportLineStatusPending {
			return nil, domain.ErrLinesStillPending
		}
	}

	if err := s.invoices.DeleteSupplierInvoiceLines(ctx, siID); err != nil {
		return nil, err
	}

	siLines := make([]purchasingdomain.SupplierInvoiceLine, 0, len(lines))
	for _, l := range lines {
		if l.Status == purchasingdomain.ImportLineStatusSkipped {
			continue
		}
		itemID := l.ResolvedItemID
		if itemID == nil {
			itemID = l.SuggestedItemID
		}
		if itemID == nil {
			continue
		}
		qty, err := decimal.NewFromString(orOne(l.Qty))
		if err != nil {
			qty = decimal.NewFromInt(1)
		}
		costUSD, err := decimal.NewFromString(orZero(l.UnitCostUSD))
		if err != nil {
			costUSD = decimal.Zero
		}
		costLBP, err := decimal.NewFromString(orZero(l.UnitCostLBP))
		if err != nil {
			costLBP = decimal.Zero
		}
		siLines = append(siLines, purchasingdomain.SupplierInvoiceLine{
			ID:                s.genID.Generate(),
			SupplierInvoiceID: si.ID,
			ItemID:            *itemID,
			Qty:               qty.String(),
			UnitCostUSD:       costUSD.String(),
			UnitCostLBP:       costLBP.String(),
			TaxCode:           in.TaxCode,
		})

		normalizedCode := ""
		if code := strings.TrimSpace(l.SupplierItemCode); code != "" {
			normalizedCode = slug.Make(code)
		}
		if err := s.catalog.LearnSupplierAlias(ctx, companyID, si.SupplierID, *itemID, normalizedCode, strings.TrimSpace(l.SupplierItemName)); err != nil {
			return nil, err
		}
		if err := s.catalog.UpsertItemSupplierCost(ctx, *itemID, si.SupplierID, strings.TrimSpace(l.SupplierItemCode), costUSD.String(), costLBP.String()); err != nil {
			return nil, err
		}
	}
	if err := s.invoices.CreateSupplierInvoiceLines(ctx, siLines); err != nil {
		return nil, err
	}

	si.InvoiceNo = in.InvoiceNo
	si.DocSubtype = in.DocSubtype
	si.TaxCode = in.TaxCode
	si.ExchangeRate = in.ExchangeRate.String()
	si.ImportStatus = purchasingdomain.ImportStatusFilled
	if si.DocSubtype == purchasingdomain.DocSubtypeStandard {
		si.Status = purchasingdomain.SIStatusDraft
	}
	if err := s.invoices.UpdateSupplierInvoice(ctx, *si); err != nil {
		return nil, err
	}
	return si, nil
}

func orOne(v string) string {
	if strings.TrimSpace(v) == "" {
		return "1"
	}
	return v
}

func orZero(v string) string {
	if strings.TrimSpace(v) == "" {
		return "0"
	}
	return v
}

package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// MatchConfig holds the tolerance thresholds the AP 3-way match engine uses to decide
// whether a supplier invoice line can post automatically or must be held for variance
// review. The invoice is held when any one check fails; a USD unit-cost check fails only
// when the variance reaches both PctThreshold and AbsUSDThreshold.
type MatchConfig struct {
	// PctThreshold is the relative difference between invoiced unit cost and the PO/receipt
	// unit cost at which a USD cost variance can flag. Quantities have no relative check.
	PctThreshold decimal.Decimal
	// AbsUSDThreshold / AbsLBPThreshold are absolute per-line variance floors: a
	// relative difference above PctThreshold is still ignored if the absolute amount
	// it represents is below these, so low-value lines don't trigger holds on rounding.
	AbsUSDThreshold decimal.Decimal
	AbsLBPThreshold decimal.Decimal
	// TaxDiffPctThreshold / TaxDiffLBPThreshold bound the allowed difference between
	// the tax implied by each line item's own tax code and the tax the invoice's header
	// code yields; the check runs only when some item's code differs from the header's.
	TaxDiffPctThreshold decimal.Decimal
	TaxDiffLBPThreshold decimal.Decimal
	// QtyEpsilon is the tolerance below which a qty difference between invoiced and
	// received quantity is treated as floating-point noise rather than a real variance.
	QtyEpsilon decimal.Decimal
}

func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		PctThreshold:        decimal.NewFromFloat(0.15),
		AbsUSDThreshold:     decimal.NewFromInt(25),
		AbsLBPThreshold:     decimal.NewFromInt(2_500_000),
		TaxDiffPctThreshold: decimal.NewFromFloat(0.02),
		TaxDiffLBPThreshold: decimal.NewFromInt(500_000),
		QtyEpsilon:          decimal.NewFromFloat(1e-6),
	}
}

// MatchConfigHolder serves the current MatchConfig and hot-reloads it from disk so
// ops can loosen or tighten match tolerances without a redeploy.
type MatchConfigHolder struct {
	current atomic.Value // holds MatchConfig
}

func NewMatchConfigHolder() (*MatchConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("ap_3way_match")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/baytretail")

	v.SetEnvPrefix("BAYTRETAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &MatchConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
		holder.current.Store(DefaultMatchConfig())
		return holder, nil
	}

	cfg, err := decodeMatchConfig(v)
	if err != nil {
		return nil, err
	}
	if err := validateMatchConfig(cfg); err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeMatchConfig(v)
		if err != nil {
			log.Printf("[ap_3way_match-config] reload failed: %v", err)
			return
		}
		if err := validateMatchConfig(updated); err != nil {
			log.Printf("[ap_3way_match-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[ap_3way_match-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *MatchConfigHolder) Get() MatchConfig {
	return h.current.Load().(MatchConfig)
}

// NewStaticMatchConfigHolder serves a fixed config with no file watching, for embedded
// callers and tests that pin thresholds explicitly.
func NewStaticMatchConfigHolder(cfg MatchConfig) *MatchConfigHolder {
	holder := &MatchConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func decodeMatchConfig(v *viper.Viper) (MatchConfig, error) {
	cfg := DefaultMatchConfig()

	if v.IsSet("ap_3way_match.pct_threshold") {
		cfg.PctThreshold = decimal.NewFromFloat(v.GetFloat64("ap_3way_match.pct_threshold"))
	}
	if v.IsSet("ap_3way_match.abs_usd_threshold") {
		cfg.AbsUSDThreshold = decimal.NewFromFloat(v.GetFloat64("ap_3way_match.abs_usd_threshold"))
	}
	if v.IsSet("ap_3way_match.abs_lbp_threshold") {
		cfg.AbsLBPThreshold = decimal.NewFromFloat(v.GetFloat64("ap_3way_match.abs_lbp_threshold"))
	}
	if v.IsSet("ap_3way_match.tax_diff_pct_threshold") {
		cfg.TaxDiffPctThreshold = decimal.NewFromFloat(v.GetFloat64("ap_3way_match.tax_diff_pct_threshold"))
	}
	if v.IsSet("ap_3way_match.tax_diff_lbp_threshold") {
		cfg.TaxDiffLBPThreshold = decimal.NewFromFloat(v.GetFloat64("ap_3way_match.tax_diff_lbp_threshold"))
	}
	if v.IsSet("ap_3way_match.qty_epsilon") {
		cfg.QtyEpsilon = decimal.NewFromFloat(v.GetFloat64("ap_3way_match.qty_epsilon"))
	}
	return cfg, nil
}

func validateMatchConfig(cfg MatchConfig) error {
	fields := map[string]decimal.Decimal{
		"ap_3way_match.pct_threshold":           cfg.PctThreshold,
		"ap_3way_match.abs_usd_threshold":       cfg.AbsUSDThreshold,
		"ap_3way_match.abs_lbp_threshold":       cfg.AbsLBPThreshold,
		"ap_3way_match.tax_diff_pct_threshold":  cfg.TaxDiffPctThreshold,
		"ap_3way_match.tax_diff_lbp_threshold":  cfg.TaxDiffLBPThreshold,
		"ap_3way_match.qty_epsilon":             cfg.QtyEpsilon,
	}
	for name, d := range fields {
		if d.IsNegative() {
			return errors.New(name + " cannot be negative")
		}
	}
	return nil
}

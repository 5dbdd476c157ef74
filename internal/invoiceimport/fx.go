// Package invoiceimport wires the supplier-document upload/extract/review/apply pipeline:
// an attachment store, a pluggable extractor, and the service that drives both against
// purchasing's SupplierInvoice state machine.
package invoiceimport

import (
	"github.com/baytretail/core/internal/config"
	"github.com/baytretail/core/internal/invoiceimport/domain"
	"github.com/baytretail/core/internal/invoiceimport/extract"
	"github.com/baytretail/core/internal/invoiceimport/repository"
	"github.com/baytretail/core/internal/invoiceimport/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module wires the document-attachment store, the extractor chosen by
// config.Config.ExtractorMode, an optional redis client for the extraction-sweep lock, and
// the orchestration service.
var Module = fx.Module("invoiceimport",
	fx.Provide(
		func(db *gorm.DB) domain.Repository { return repository.New(db) },
		newExtractor,
		newRedisClient,
		service.New,
	),
)

func newExtractor(cfg config.Config) extract.Extractor {
	if cfg.ExtractorMode == "openai" && cfg.OpenAIAPIKey != "" {
		return extract.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	}
	return extract.NewMock()
}

// newRedisClient returns nil when RedisAddr is unset: the extraction sweep degrades to
// running without a distributed lock rather than failing to start.
func newRedisClient(cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	log.Named("invoiceimport").Info("redis client configured for extraction dedupe lock", zap.String("addr", cfg.RedisAddr))
	return client
}

package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	documentsPosted metric.Int64Counter
	glEntries       metric.Int64Counter
	stockMoves      metric.Int64Counter
	jobRuns         metric.Int64Counter
	outboxEvents    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "baytretail-core"
	}
	meter := provider.Meter(name)

	documentsPosted, err := meter.Int64Counter("core_documents_posted_total")
	if err != nil {
		return nil, err
	}
	glEntries, err := meter.Int64Counter("core_gl_journals_total")
	if err != nil {
		return nil, err
	}
	stockMoves, err := meter.Int64Counter("core_stock_moves_total")
	if err != nil {
		return nil, err
	}
	jobRuns, err := meter.Int64Counter("core_job_runs_total")
	if err != nil {
		return nil, err
	}
	outboxEvents, err := meter.Int64Counter("core_outbox_events_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		documentsPosted: documentsPosted,
		glEntries:       glEntries,
		stockMoves:      stockMoves,
		jobRuns:         jobRuns,
		outboxEvents:    outboxEvents,
	}, nil
}

// RecordDocumentPosted increments per-doc-type posting counts (PO, GR, SI, SCN).
func (m *Metrics) RecordDocumentPosted(ctx context.Context, docType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("doc_type", strings.TrimSpace(docType)))
	m.documentsPosted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGLJournal increments GL journal posting counts.
func (m *Metrics) RecordGLJournal(ctx context.Context, sourceType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source_type", strings.TrimSpace(sourceType)))
	m.glEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStockMove increments stock move counts.
func (m *Metrics) RecordStockMove(ctx context.Context, sourceType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source_type", strings.TrimSpace(sourceType)))
	m.stockMoves.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordJobRun increments background job run counts by job code and outcome.
func (m *Metrics) RecordJobRun(ctx context.Context, jobCode, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("job_code", strings.TrimSpace(jobCode)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.jobRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOutboxEvent increments drained outbox event counts by type and outcome.
func (m *Metrics) RecordOutboxEvent(ctx context.Context, eventType, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.outboxEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"doc_type":    {},
	"source_type": {},
	"job_code":    {},
	"event_type":  {},
	"status":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

// Package scheduler drains the durable event outbox and runs per-company background jobs:
// it is the only long-lived, non-request-scoped process in the system.
package scheduler

import (
	"context"
	"errors"
	"time"

	companydomain "github.com/baytretail/core/internal/company/domain"
	"github.com/baytretail/core/internal/events"
	"github.com/baytretail/core/internal/observability/metrics"
	"github.com/baytretail/core/pkg/telemetry"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: missing required dependency")

// EventHandler processes a single outbox event. Handlers must be idempotent: the outbox
// guarantees at-least-once delivery.
type EventHandler func(ctx context.Context, ev OutboxEvent) error

// JobHandler runs one tick of a registered background job for a single company.
type JobHandler func(ctx context.Context, companyID snowflake.ID, options map[string]any) error

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Companies companydomain.Repository
	GenID     *snowflake.Node
	Metrics   *metrics.Metrics   `optional:"true"`
	Prom      *telemetry.Metrics `optional:"true"`
	Config    Config             `optional:"true"`
}

// Scheduler polls the events outbox, the POS device outbox, and company job schedules on a
// fixed interval. Handlers are registered by event type / job code before RunForever starts;
// an unregistered event type or job code is logged and left for a human to wire up.
type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	companies companydomain.Repository
	genID     *snowflake.Node
	metrics   *metrics.Metrics
	prom      *telemetry.Metrics
	cfg       Config

	eventHandlers    map[string]EventHandler
	jobHandlers      map[string]JobHandler
	posEventHandlers map[string]PosEventHandler

	// wakeup, when non-nil, is nudged by the LISTEN/NOTIFY listener so a new POS event
	// drains immediately instead of waiting for the next tick. A nil channel blocks
	// forever in select, so the loop is unchanged without a listener.
	wakeup chan struct{}
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Companies == nil || p.GenID == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:            p.DB,
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		companies:     p.Companies,
		genID:         p.GenID,
		metrics:       p.Metrics,
		prom:          p.Prom,
		cfg:              p.Config.withDefaults(),
		eventHandlers:    map[string]EventHandler{},
		jobHandlers:      map[string]JobHandler{},
		posEventHandlers: map[string]PosEventHandler{},
	}, nil
}

// RegisterEventHandler binds an outbox event type to a handler. Not safe to call after
// RunForever has started.
func (s *Scheduler) RegisterEventHandler(eventType string, h EventHandler) {
	s.eventHandlers[eventType] = h
}

// RegisterJobHandler binds a background_job_schedules.job_code to a handler. Not safe to
// call after RunForever has started.
func (s *Scheduler) RegisterJobHandler(jobCode string, h JobHandler) {
	s.jobHandlers[jobCode] = h
}

// RunForever ticks every cfg.RunInterval until ctx is cancelled, draining the events
// outbox, the POS outbox, and any due job schedules on each tick.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		case <-s.wakeup:
			if err := s.DrainPosOutbox(ctx); err != nil {
				s.log.Error("pos outbox drain failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.DrainOutbox(ctx); err != nil {
		s.log.Error("outbox drain failed", zap.Error(err))
	}
	if err := s.DrainPosOutbox(ctx); err != nil {
		s.log.Error("pos outbox drain failed", zap.Error(err))
	}
	if err := s.RunDueJobs(ctx); err != nil {
		s.log.Error("job run failed", zap.Error(err))
	}
	if err := s.Heartbeat(ctx); err != nil {
		s.log.Error("heartbeat failed", zap.Error(err))
	}
	s.updateOpsGauges(ctx)
}

// updateOpsGauges refreshes the Prometheus queue-health gauges Ops alerts on. Best
// effort: a failed count only logs, it never fails the tick.
func (s *Scheduler) updateOpsGauges(ctx context.Context) {
	if s.prom == nil {
		return
	}
	var pending, dead, posPending int64
	if err := s.db.WithContext(ctx).Model(&events.Event{}).Where("status = ?", events.StatusPending).Count(&pending).Error; err == nil {
		s.prom.SetOutboxBacklog(float64(pending))
	}
	if err := s.db.WithContext(ctx).Model(&events.Event{}).Where("status = ?", events.StatusDead).Count(&dead).Error; err == nil {
		s.prom.SetDeadEvents(float64(dead))
	}
	if err := s.db.WithContext(ctx).Model(&PosOutboxEvent{}).Where("status = ?", PosEventStatusPending).Count(&posPending).Error; err == nil {
		s.prom.SetPosOutboxBacklog(float64(posPending))
	}
	if overdue, err := s.OverdueSchedules(ctx); err == nil {
		s.prom.SetOverdueSchedules(float64(len(overdue)))
	}
}

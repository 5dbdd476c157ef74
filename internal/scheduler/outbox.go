package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/baytretail/core/internal/events"
	"go.uber.org/zap"
)

// OutboxEvent is the row shape handed to a registered EventHandler.
type OutboxEvent = events.Event

// DrainOutbox claims up to cfg.OutboxBatchSize pending rows from the events table and
// dispatches each to its registered handler. An event type with no registered handler is
// marked failed (and eventually dead after repeated attempts) rather than silently dropped,
// so an operator notices a missing wiring instead of losing the event.
func (s *Scheduler) DrainOutbox(ctx context.Context) error {
	started := time.Now()
	claimed, err := events.Claim(ctx, s.db, s.cfg.OutboxBatchSize)
	if err != nil {
		s.prom.RecordOutboxBatch("claim_failed", time.Since(started))
		return err
	}
	for _, ev := range claimed {
		s.processOutboxEvent(ctx, ev)
	}
	if len(claimed) > 0 {
		s.prom.RecordOutboxBatch("ok", time.Since(started))
	}
	return nil
}

func (s *Scheduler) processOutboxEvent(ctx context.Context, ev events.Event) {
	log := s.log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.EventType))

	handler, ok := s.eventHandlers[ev.EventType]
	if !ok {
		log.Warn("no handler registered for event type")
		if err := events.MarkFailed(ctx, s.db, ev, fmt.Errorf("no handler registered for event type %q", ev.EventType)); err != nil {
			log.Error("failed to mark unhandled event", zap.Error(err))
		}
		return
	}

	if err := handler(ctx, ev); err != nil {
		log.Error("event handler failed", zap.Error(err), zap.Int("attempts", ev.Attempts+1))
		if markErr := events.MarkFailed(ctx, s.db, ev, err); markErr != nil {
			log.Error("failed to mark event failed", zap.Error(markErr))
		}
		s.metrics.RecordOutboxEvent(ctx, ev.EventType, string(events.StatusFailed))
		return
	}
	if err := events.MarkDone(ctx, s.db, ev.ID); err != nil {
		log.Error("failed to mark event done", zap.Error(err))
	}
	s.metrics.RecordOutboxEvent(ctx, ev.EventType, string(events.StatusDone))
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/baytretail/core/pkg/db/option"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PosEventStatus mirrors the pending -> processing -> done|failed -> dead lifecycle shared
// with the events outbox.
type PosEventStatus string

const (
	PosEventStatusPending    PosEventStatus = "pending"
	PosEventStatusProcessing PosEventStatus = "processing"
	PosEventStatusDone       PosEventStatus = "done"
	PosEventStatusFailed     PosEventStatus = "failed"
	PosEventStatusDead       PosEventStatus = "dead"
)

const posMaxAttempts = 5

// PosOutboxEvent is a row appended by a POS device; edge/cloud replication of the device
// itself is out of scope, but draining its outbox into domain handlers is this package's job.
type PosOutboxEvent struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID      `gorm:"column:company_id;not null;index" json:"company_id"`
	DeviceID  string            `gorm:"column:device_id;not null" json:"device_id"`
	EventType string            `gorm:"column:event_type;not null" json:"event_type"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb;not null" json:"payload"`
	Status    PosEventStatus    `gorm:"type:text;not null;default:pending;index" json:"status"`
	Attempts  int               `gorm:"not null;default:0" json:"attempts"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PosOutboxEvent) TableName() string { return "pos_events_outbox" }

// PosEventHandler processes one device event, keyed by event_type.
type PosEventHandler func(ctx context.Context, ev PosOutboxEvent) error

// RegisterPosEventHandler binds a POS event_type to a handler.
func (s *Scheduler) RegisterPosEventHandler(eventType string, h PosEventHandler) {
	s.posEventHandlers[eventType] = h
}

// DrainPosOutbox claims up to cfg.PosOutboxBatchSize pending or previously failed POS
// device events FOR UPDATE SKIP LOCKED and advances each through processing -> done|failed|dead.
func (s *Scheduler) DrainPosOutbox(ctx context.Context) error {
	var claimed []PosOutboxEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stmt := option.ForUpdateSkipLocked().Apply(tx.WithContext(ctx).Model(&PosOutboxEvent{}))
		if err := stmt.Where("status IN ?", []PosEventStatus{PosEventStatusPending, PosEventStatusFailed}).
			Order("created_at asc").Limit(s.cfg.PosOutboxBatchSize).Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].Status = PosEventStatusProcessing
			claimed[i].UpdatedAt = time.Now().UTC()
			if err := tx.WithContext(ctx).Model(&PosOutboxEvent{}).Where("id = ?", claimed[i].ID).
				Updates(map[string]any{"status": PosEventStatusProcessing, "updated_at": claimed[i].UpdatedAt}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, ev := range claimed {
		s.processPosEvent(ctx, ev)
	}
	return nil
}

func (s *Scheduler) processPosEvent(ctx context.Context, ev PosOutboxEvent) {
	log := s.log.With(zap.Int64("pos_event_id", int64(ev.ID)), zap.String("device_id", ev.DeviceID), zap.String("event_type", ev.EventType))

	handler, ok := s.posEventHandlers[ev.EventType]
	if !ok {
		s.markPosEventFailed(ctx, ev, fmt.Errorf("no handler registered for pos event type %q", ev.EventType))
		log.Warn("no handler registered for pos event type")
		return
	}

	if err := handler(ctx, ev); err != nil {
		log.Error("pos event handler failed", zap.Error(err), zap.Int("attempts", ev.Attempts+1))
		s.markPosEventFailed(ctx, ev, err)
		return
	}
	if err := s.db.WithContext(ctx).Model(&PosOutboxEvent{}).Where("id = ?", ev.ID).
		Updates(map[string]any{"status": PosEventStatusDone, "updated_at": time.Now().UTC()}).Error; err != nil {
		log.Error("failed to mark pos event done", zap.Error(err))
	}
}

func (s *Scheduler) markPosEventFailed(ctx context.Context, ev PosOutboxEvent, cause error) {
	attempts := ev.Attempts + 1
	status := PosEventStatusFailed
	if attempts >= posMaxAttempts {
		status = PosEventStatusDead
	}
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	if err := s.db.WithContext(ctx).Model(&PosOutboxEvent{}).Where("id = ?", ev.ID).
		Updates(map[string]any{
			"status":     status,
			"attempts":   attempts,
			"error":      errMsg,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
		s.log.Error("failed to mark pos event failed", zap.Error(err))
	}
}

package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

type workerHeartbeat struct {
	WorkerName string            `gorm:"column:worker_name;primaryKey" json:"worker_name"`
	CompanyID  int64             `gorm:"column:company_id;primaryKey" json:"company_id"`
	LastSeenAt time.Time         `gorm:"column:last_seen_at;not null" json:"last_seen_at"`
	Details    datatypes.JSONMap `gorm:"type:jsonb" json:"details,omitempty"`
}

func (workerHeartbeat) TableName() string { return "worker_heartbeats" }

// Heartbeat upserts one row per active company this worker serves, so a stale or crashed
// worker is visible to Ops via last_seen_at drift.
func (s *Scheduler) Heartbeat(ctx context.Context) error {
	companies, err := s.companies.ListCompanies(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, c := range companies {
		row := workerHeartbeat{
			WorkerName: s.cfg.WorkerName,
			CompanyID:  int64(c.ID),
			LastSeenAt: now,
			Details:    datatypes.JSONMap{},
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "worker_name"}, {Name: "company_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seen_at", "details"}),
		}).Create(&row).Error
		if err != nil {
			s.log.Error("heartbeat upsert failed", zap.Int64("company_id", int64(c.ID)), zap.Error(err))
			return err
		}
	}
	return nil
}

package scheduler

import (
	"context"
	"time"

	"github.com/baytretail/core/pkg/db/option"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BackgroundJobSchedule is a per-company recurring job: the leader claims rows where
// enabled AND next_run_at <= now, runs the job, then advances next_run_at.
type BackgroundJobSchedule struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	CompanyID       snowflake.ID      `gorm:"not null;index" json:"company_id"`
	JobCode         string            `gorm:"column:job_code;not null" json:"job_code"`
	Enabled         bool              `gorm:"not null;default:true" json:"enabled"`
	IntervalSeconds int               `gorm:"not null" json:"interval_seconds"`
	OptionsJSON     datatypes.JSONMap `gorm:"column:options_json;type:jsonb" json:"options_json,omitempty"`
	LastRunAt       *time.Time        `gorm:"column:last_run_at" json:"last_run_at,omitempty"`
	NextRunAt       time.Time         `gorm:"column:next_run_at;not null" json:"next_run_at"`
}

func (BackgroundJobSchedule) TableName() string { return "background_job_schedules" }

// BackgroundJobRun records a single execution of a BackgroundJobSchedule.
type BackgroundJobRun struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ScheduleID snowflake.ID `gorm:"column:schedule_id;not null;index" json:"schedule_id"`
	StartedAt  time.Time    `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt *time.Time   `gorm:"column:finished_at" json:"finished_at,omitempty"`
	Status     string       `gorm:"not null;default:running" json:"status"`
	Error      string       `json:"error,omitempty"`
}

func (BackgroundJobRun) TableName() string { return "background_job_runs" }

const (
	jobRunStatusRunning = "running"
	jobRunStatusOK      = "ok"
	jobRunStatusFailed  = "failed"
)

// RunDueJobs claims every schedule row that is enabled and due (next_run_at <= now),
// FOR UPDATE SKIP LOCKED so concurrent scheduler instances never double-run the same job.
func (s *Scheduler) RunDueJobs(ctx context.Context) error {
	now := time.Now().UTC()
	var due []BackgroundJobSchedule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stmt := option.ForUpdateSkipLocked().Apply(tx.WithContext(ctx).Model(&BackgroundJobSchedule{}))
		if err := stmt.Where("enabled AND next_run_at <= ?", now).Order("next_run_at asc").Find(&due).Error; err != nil {
			return err
		}
		for _, sched := range due {
			next := now.Add(time.Duration(sched.IntervalSeconds) * time.Second)
			if err := tx.WithContext(ctx).Model(&BackgroundJobSchedule{}).Where("id = ?", sched.ID).
				Updates(map[string]any{"last_run_at": now, "next_run_at": next}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, sched := range due {
		s.runJob(ctx, sched)
	}
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, sched BackgroundJobSchedule) {
	log := s.log.With(zap.String("job_code", sched.JobCode), zap.Int64("company_id", int64(sched.CompanyID)))

	run := BackgroundJobRun{
		ID:         s.genID.Generate(),
		ScheduleID: sched.ID,
		StartedAt:  time.Now().UTC(),
		Status:     jobRunStatusRunning,
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		log.Error("failed to record job run", zap.Error(err))
		return
	}

	handler, ok := s.jobHandlers[sched.JobCode]
	if !ok {
		log.Warn("no handler registered for job code")
		s.finishJobRun(ctx, run.ID, jobRunStatusFailed, "no handler registered for job code")
		return
	}

	if err := handler(ctx, sched.CompanyID, map[string]any(sched.OptionsJSON)); err != nil {
		log.Error("job handler failed", zap.Error(err))
		s.finishJobRun(ctx, run.ID, jobRunStatusFailed, err.Error())
		s.metrics.RecordJobRun(ctx, sched.JobCode, jobRunStatusFailed)
		return
	}
	s.finishJobRun(ctx, run.ID, jobRunStatusOK, "")
	s.metrics.RecordJobRun(ctx, sched.JobCode, jobRunStatusOK)
}

func (s *Scheduler) finishJobRun(ctx context.Context, runID snowflake.ID, status, errMsg string) {
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&BackgroundJobRun{}).Where("id = ?", runID).
		Updates(map[string]any{"status": status, "error": errMsg, "finished_at": now}).Error; err != nil {
		s.log.Error("failed to finish job run", zap.Error(err), zap.Int64("run_id", int64(runID)))
	}
}

// OverdueSchedules returns schedules that are enabled but have missed their next_run_at by
// more than cfg.OverdueThreshold — surfaced to Ops per the scheduler's overdue signal.
func (s *Scheduler) OverdueSchedules(ctx context.Context) ([]BackgroundJobSchedule, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.OverdueThreshold)
	var overdue []BackgroundJobSchedule
	err := s.db.WithContext(ctx).Where("enabled AND next_run_at < ?", cutoff).Order("next_run_at asc").Find(&overdue).Error
	return overdue, err
}

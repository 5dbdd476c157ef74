package scheduler

import (
	"os"
	"strings"
	"time"
)

// Config controls scheduler polling intervals and batch sizes.
type Config struct {
	RunInterval       time.Duration
	OutboxBatchSize   int
	PosOutboxBatchSize int
	OverdueThreshold  time.Duration
	WorkerName        string
	EnabledJobs       []string
}

func ProvideConfig() Config {
	cfg := DefaultConfig()
	if jobs := os.Getenv("ENABLED_JOBS"); jobs != "" {
		cfg.EnabledJobs = strings.Split(jobs, ",")
		for i := range cfg.EnabledJobs {
			cfg.EnabledJobs[i] = strings.TrimSpace(cfg.EnabledJobs[i])
		}
	}
	if name := strings.TrimSpace(os.Getenv("WORKER_NAME")); name != "" {
		cfg.WorkerName = name
	}
	return cfg
}

func DefaultConfig() Config {
	return Config{
		RunInterval:        5 * time.Second,
		OutboxBatchSize:    50,
		PosOutboxBatchSize: 100,
		OverdueThreshold:   5 * time.Minute,
		WorkerName:         "core-scheduler",
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.OutboxBatchSize <= 0 {
		c.OutboxBatchSize = defaults.OutboxBatchSize
	}
	if c.PosOutboxBatchSize <= 0 {
		c.PosOutboxBatchSize = defaults.PosOutboxBatchSize
	}
	if c.OverdueThreshold <= 0 {
		c.OverdueThreshold = defaults.OverdueThreshold
	}
	if c.WorkerName == "" {
		c.WorkerName = defaults.WorkerName
	}
	return c
}

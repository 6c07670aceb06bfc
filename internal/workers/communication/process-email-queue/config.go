// internal/workers/communication/process-email-queue/config.go
package processemailqueue

import (
	"fmt"
	"time"

	"veripass/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	BatchSize     int
	// ReclaimStale returns abandoned "sending" jobs to pending before each run.
	ReclaimStale bool
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 1,
		Timeout:       2 * time.Minute,
		BatchSize:     10,
		ReclaimStale:  true,
	}
}

// ConfigFromApp overlays the worker entry and the queue settings of cfg.
func ConfigFromApp(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	wc := config.GetWorkerConfig(cfg, WorkerName)
	c.Enabled = wc.Enabled
	if wc.MaxJobsActive > 0 {
		c.MaxJobsActive = wc.MaxJobsActive
	}
	if wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	if cfg.Notifications.Queue.BatchSize > 0 {
		c.BatchSize = cfg.Notifications.Queue.BatchSize
	}
	return c
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	return nil
}

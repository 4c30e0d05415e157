package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/callisto/pkg/guardrail"
)

// RetentionConfig contains configuration for the retention job.
type RetentionConfig struct {
	// Period is how long records are kept. Default: 30 days.
	Period time.Duration `yaml:"period"`

	// Schedule is the cron expression for the prune job.
	// Default: "0 3 * * *" (daily at 03:00).
	Schedule string `yaml:"schedule"`
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		Period:   30 * 24 * time.Hour,
		Schedule: "0 3 * * *",
	}
}

// Validate validates the retention configuration.
func (c *RetentionConfig) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("%w: retention period must be positive", guardrail.ErrInvalidConfig)
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("%w: retention schedule %q: %v", guardrail.ErrInvalidConfig, c.Schedule, err)
	}
	return nil
}

// Retention prunes old evidence records on a cron schedule.
type Retention struct {
	config *RetentionConfig
	store  Store
	logger *slog.Logger
	cron   *cron.Cron
}

// NewRetention creates a retention job over the given store.
func NewRetention(config *RetentionConfig, store Store, logger *slog.Logger) (*Retention, error) {
	if config == nil {
		config = DefaultRetentionConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{
		config: config,
		store:  store,
		logger: logger,
		cron:   cron.New(),
	}, nil
}

// Start schedules the prune job and starts the scheduler.
func (r *Retention) Start() error {
	_, err := r.cron.AddFunc(r.config.Schedule, func() {
		if err := r.PruneOnce(context.Background()); err != nil {
			r.logger.Error("evidence retention prune failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling retention job: %w", err)
	}
	r.cron.Start()
	r.logger.Info("evidence retention started",
		"schedule", r.config.Schedule,
		"period", r.config.Period,
	)
	return nil
}

// Stop stops the scheduler, waiting for a running prune to finish.
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}

// PruneOnce removes records older than the retention period.
func (r *Retention) PruneOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-r.config.Period)
	removed, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	r.logger.Info("evidence retention pruned",
		"removed", removed,
		"cutoff", cutoff,
	)
	return nil
}

package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/progdesk/comms/internal/models"
	"github.com/progdesk/comms/pkg/logger"
	"github.com/progdesk/comms/pkg/metrics"
)

const (
	defaultRetention = 90 * 24 * time.Hour
	defaultSchedule  = "@daily"
)

// Sweeper periodically purges read notifications past the retention window.
// Unread notifications are never purged: the user has not seen them yet.
type Sweeper struct {
	db        *gorm.DB
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention time.Duration
	schedule  string
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRetention overrides how long read notifications are kept.
func WithRetention(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSchedule overrides the cron schedule expression.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// NewSweeper constructs a Sweeper.
func NewSweeper(db *gorm.DB, opts ...Option) (*Sweeper, error) {
	if db == nil {
		return nil, errors.New("maintenance: db is required")
	}

	s := &Sweeper{
		db:        db,
		cron:      cron.New(),
		now:       time.Now,
		log:       logger.WithModule("maintenance"),
		retention: defaultRetention,
		schedule:  defaultSchedule,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the sweep job and begins the schedule.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.SweepOnce(context.Background()); err != nil {
			s.log.Error("notification sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}

// SweepOnce removes read notifications older than the retention window.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.retention)

	result := s.db.WithContext(ctx).
		Where("is_read = ? AND read_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("maintenance: purge notifications: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.NotificationsPurged.Add(float64(result.RowsAffected))
		s.log.Info("purged read notifications",
			zap.Int64("count", result.RowsAffected),
			zap.Time("cutoff", cutoff))
	}
	return nil
}

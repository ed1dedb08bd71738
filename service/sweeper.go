package service

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/walletauth/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepFunc removes expired entries and reports how many it removed
type SweepFunc func(ctx context.Context) (int, error)

// Sweeper runs housekeeping jobs on a fixed interval. It is started and
// stopped by the process that owns the stores.
type Sweeper struct {
	cron     *cron.Cron
	interval time.Duration
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewSweeper creates a sweeper running every interval
func NewSweeper(interval time.Duration, log logrus.FieldLogger) *Sweeper {
	return &Sweeper{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		interval: interval,
		timeout:  interval,
		log:      log,
	}
}

// Add schedules sweep under name. Must be called before Start.
func (s *Sweeper) Add(name string, sweep SweepFunc) error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.Run(name, sweep)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s sweep: %w", name, err)
	}
	return nil
}

// Run executes a single sweep immediately
func (s *Sweeper) Run(name string, sweep SweepFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	log := s.log.WithField("store", name)

	removed, err := sweep(ctx)
	if err != nil {
		log.WithError(err).Warn("sweep failed")
		return
	}

	metrics.Swept(name, removed)
	if removed > 0 {
		log.WithField("swept", removed).Debug("expired entries removed")
	}
}

// Start begins running scheduled sweeps in the background
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for running sweeps to finish or ctx to
// be done
func (s *Sweeper) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

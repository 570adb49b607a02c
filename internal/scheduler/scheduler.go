// Package scheduler triggers scrapes of all configured categories on a
// cron schedule.
package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scrapes is the single operation the scheduler drives.
type Scrapes interface {
	Categories() []string
}

// Runner triggers one scrape. Satisfied by *service.Rankings.
type Runner interface {
	Scrapes
	ScrapeCategory(ctx context.Context, category string) error
}

// Scheduler runs the configured cron spec, scraping every category per
// tick. Categories run sequentially inside a tick: a shared browser binary
// and a marketplace on the other side both prefer one page at a time.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	logger *zap.Logger
}

// New constructs a Scheduler; it does nothing until Start.
func New(spec string, runner Runner, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		spec:   spec,
		logger: logger,
	}
}

// Start registers the tick and begins scheduling.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scrape schedule started", zap.String("spec", s.spec))
	return nil
}

// Stop ends scheduling and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn("scheduled scrape still running at shutdown")
	}
}

func (s *Scheduler) tick() {
	categories := s.runner.Categories()
	sort.Strings(categories)

	for _, category := range categories {
		if err := s.runner.ScrapeCategory(context.Background(), category); err != nil {
			s.logger.Error("scheduled scrape failed",
				zap.String("category", category),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("scheduled scrape complete", zap.String("category", category))
	}
}

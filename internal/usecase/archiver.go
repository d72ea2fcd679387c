package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "CandleKeep/internal/domain/repository"
	applogger "CandleKeep/pkg/logger"

	"github.com/go-co-op/gocron/v2"
)

// Archiver periodically relocates hot rows past the retention cutoff into
// the cold tier. Hot rows are deleted only after the cold insert is
// acknowledged; a failed cold write leaves everything in place for the next
// run.
type Archiver struct {
	hot       domrepo.HotStore
	cold      domrepo.ColdStore
	logger    *applogger.Logger
	scheduler gocron.Scheduler
	interval  time.Duration
	retention time.Duration
	batchSize int
}

// NewArchiver creates the archival mover.
func NewArchiver(hot domrepo.HotStore, cold domrepo.ColdStore, logger *applogger.Logger, interval, retention time.Duration, batchSize int) (*Archiver, error) {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 48 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 50000
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating job scheduler: %w", err)
	}

	return &Archiver{
		hot:       hot,
		cold:      cold,
		logger:    logger,
		scheduler: scheduler,
		interval:  interval,
		retention: retention,
		batchSize: batchSize,
	}, nil
}

// Start schedules the archival job and launches the scheduler.
func (a *Archiver) Start(ctx context.Context) error {
	_, err := a.scheduler.NewJob(
		gocron.DurationJob(a.interval),
		gocron.NewTask(func() {
			if _, err := a.RunOnce(ctx); err != nil && a.logger != nil {
				a.logger.Error("archival run failed", applogger.Error(err))
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("scheduling archival job: %w", err)
	}

	a.scheduler.Start()
	if a.logger != nil {
		a.logger.Info("archiver started",
			applogger.Duration("interval", a.interval),
			applogger.Duration("retention", a.retention),
			applogger.Int("batch_size", a.batchSize),
		)
	}
	return nil
}

// Stop shuts the scheduler down, waiting for a running job to finish.
func (a *Archiver) Stop() error {
	return a.scheduler.Shutdown()
}

// RunOnce moves one bounded batch of aged rows from hot to cold and reports
// how many rows were relocated. The delete is issued strictly after the cold
// write succeeds.
func (a *Archiver) RunOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-a.retention)

	rows, err := a.hot.SelectBefore(ctx, cutoff, a.batchSize)
	if err != nil {
		return 0, fmt.Errorf("select aged rows: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := a.cold.InsertBatch(ctx, rows); err != nil {
		return 0, fmt.Errorf("cold insert: %w", err)
	}

	// Delete only the rows that made it into cold. Aged rows beyond this
	// batch stay in hot until a later run selects them.
	deleted, err := a.hot.DeleteRows(ctx, rows)
	if err != nil {
		// Cold already holds the rows; the delete retries next run.
		return len(rows), fmt.Errorf("hot delete after archive: %w", err)
	}

	if a.logger != nil {
		a.logger.Info("archived aged candles",
			applogger.Int("moved", len(rows)),
			applogger.Int64("deleted", deleted),
			applogger.Time("cutoff", cutoff),
		)
	}
	return len(rows), nil
}

package worker

import (
	"context"
	"log"
	"time"

	"newbusiness/config"
	"newbusiness/models"
	"newbusiness/syncer"
)

// Runner runs one bulk pull.
type Runner interface {
	Run(ctx context.Context, source models.Source, opts syncer.RunOptions) (*models.SyncRun, error)
}

// SyncWorker pulls every configured source on a fixed interval.
type SyncWorker struct {
	Runner       Runner
	Integrations map[models.Source]config.SourceConfig
	Interval     time.Duration
	StartDelay   time.Duration
	Logger       *log.Logger
}

func NewSyncWorker(runner Runner, cfg *config.Config, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		Runner:       runner,
		Integrations: cfg.Integrations,
		Interval:     cfg.SyncInterval,
		StartDelay:   10 * time.Second,
		Logger:       logger,
	}
}

// Start blocks until ctx is done. A non-positive interval disables the worker.
func (sw *SyncWorker) Start(ctx context.Context) {
	if sw.Interval <= 0 {
		sw.Logger.Println("Scheduled sync disabled")
		return
	}

	// Initial delay to let the server start up
	select {
	case <-ctx.Done():
		return
	case <-time.After(sw.StartDelay):
	}

	sw.Logger.Printf("Sync worker started, interval %s", sw.Interval)

	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Logger.Println("Sync worker shutting down...")
			return
		case <-ticker.C:
			sw.RunOnce(ctx)
		}
	}
}

// RunOnce pulls each source that has both an API URL and key. It returns
// the runs that completed.
func (sw *SyncWorker) RunOnce(ctx context.Context) []*models.SyncRun {
	var runs []*models.SyncRun
	for _, src := range models.Sources {
		sc := sw.Integrations[src]
		if sc.BaseURL == "" || sc.APIKey == "" {
			continue
		}
		run, err := sw.Runner.Run(ctx, src, syncer.RunOptions{Trigger: syncer.TriggerScheduled})
		if err != nil {
			sw.Logger.Printf("Scheduled sync from %s failed: %v", src.Label(), err)
			continue
		}
		sw.Logger.Printf("Scheduled sync from %s: %s", src.Label(), run.Message)
		runs = append(runs, run)
	}
	return runs
}

package worker

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"newbusiness/config"
	"newbusiness/models"
	"newbusiness/syncer"
)

type fakeRunner struct {
	calls chan models.Source
	fail  map[models.Source]bool
}

func (f *fakeRunner) Run(ctx context.Context, source models.Source, opts syncer.RunOptions) (*models.SyncRun, error) {
	if opts.Trigger != syncer.TriggerScheduled {
		return nil, errors.New("unexpected trigger " + opts.Trigger)
	}
	select {
	case f.calls <- source:
	default:
	}
	if f.fail[source] {
		return nil, errors.New("upstream down")
	}
	return &models.SyncRun{Source: source, Message: "ok"}, nil
}

func newWorker(runner Runner, interval time.Duration, integrations map[models.Source]config.SourceConfig) (*SyncWorker, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := &config.Config{SyncInterval: interval, Integrations: integrations}
	sw := NewSyncWorker(runner, cfg, log.New(&buf, "", 0))
	sw.StartDelay = 0
	return sw, &buf
}

func TestRunOnceSkipsUnconfiguredSources(t *testing.T) {
	runner := &fakeRunner{calls: make(chan models.Source, 4)}
	sw, _ := newWorker(runner, time.Minute, map[models.Source]config.SourceConfig{
		models.SourceAgencyCRM: {BaseURL: "http://crm", APIKey: "k"},
		models.SourceTVPlanner: {BaseURL: "http://planner"},
	})

	runs := sw.RunOnce(context.Background())
	require.Len(t, runs, 1)
	assert.Equal(t, models.SourceAgencyCRM, runs[0].Source)
	assert.Len(t, runner.calls, 1)
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	runner := &fakeRunner{
		calls: make(chan models.Source, 4),
		fail:  map[models.Source]bool{models.SourceAgencyCRM: true},
	}
	sw, buf := newWorker(runner, time.Minute, map[models.Source]config.SourceConfig{
		models.SourceAgencyCRM: {BaseURL: "http://crm", APIKey: "k"},
		models.SourceTVPlanner: {BaseURL: "http://planner", APIKey: "k"},
	})

	runs := sw.RunOnce(context.Background())
	require.Len(t, runs, 1)
	assert.Equal(t, models.SourceTVPlanner, runs[0].Source)
	assert.Contains(t, buf.String(), "Scheduled sync from Agency CRM failed: upstream down")
}

func TestStartDisabled(t *testing.T) {
	runner := &fakeRunner{calls: make(chan models.Source, 1)}
	sw, buf := newWorker(runner, 0, nil)

	done := make(chan struct{})
	go func() {
		sw.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return with a zero interval")
	}
	assert.Contains(t, buf.String(), "Scheduled sync disabled")
	assert.Empty(t, runner.calls)
}

func TestStartTicksUntilCancelled(t *testing.T) {
	runner := &fakeRunner{calls: make(chan models.Source, 16)}
	sw, _ := newWorker(runner, 10*time.Millisecond, map[models.Source]config.SourceConfig{
		models.SourceTVPlanner: {BaseURL: "http://planner", APIKey: "k"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Start(ctx)
		close(done)
	}()

	select {
	case src := <-runner.calls:
		assert.Equal(t, models.SourceTVPlanner, src)
	case <-time.After(2 * time.Second):
		t.Fatal("no scheduled run")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not stop after cancel")
	}
}

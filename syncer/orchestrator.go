// Package syncer applies Agency CRM and TV Planner data to the entity store,
// both from webhook events and from bulk pulls of the upstream read APIs.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"newbusiness/config"
	"newbusiness/metrics"
	"newbusiness/models"
	"newbusiness/reconcile"
	"newbusiness/resolver"
	"newbusiness/utils"
)

// Bulk pull triggers
const (
	TriggerManual    = "manual"
	TriggerInitial   = "initial"
	TriggerWebsocket = "websocket"
	TriggerScheduled = "scheduled"
)

// Progress stages
const (
	StageStarted  = "started"
	StageFinished = "finished"
	StageFailed   = "failed"
)

// Config wires the orchestrator.
type Config struct {
	Sources         map[models.Source]config.SourceConfig
	SystemUserID    uint
	Resolver        resolver.Resolver
	EmailPolicies   map[models.Source]reconcile.EmailPolicy
	UpstreamTimeout time.Duration
	Clock           func() time.Time
}

// Progress is reported once when a collection starts and once when it ends.
type Progress struct {
	RunID      string                 `json:"run_id"`
	Source     models.Source          `json:"source"`
	Collection string                 `json:"collection"`
	Stage      string                 `json:"stage"`
	Stats      models.CollectionStats `json:"stats"`
}

// RunOptions overrides the configured upstream for one bulk pull.
type RunOptions struct {
	BaseURL  string
	APIKey   string
	Trigger  string
	Progress func(Progress)
}

// EventResult reports what HandleEvent did.
type EventResult struct {
	Event   string           `json:"event"`
	Action  reconcile.Action `json:"action,omitempty"`
	Ignored bool             `json:"ignored,omitempty"`
}

type Orchestrator struct {
	db     *gorm.DB
	cfg    Config
	engine *reconcile.Engine
}

func NewOrchestrator(db *gorm.DB, cfg Config) (*Orchestrator, error) {
	if cfg.SystemUserID == 0 {
		return nil, fmt.Errorf("SystemUserID is required")
	}
	if cfg.Resolver == nil {
		cfg.Resolver = resolver.NewSubstringResolver()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = DefaultTimeout
	}
	if cfg.Sources == nil {
		cfg.Sources = map[models.Source]config.SourceConfig{}
	}

	engine, err := reconcile.NewEngine(db, reconcile.Config{
		Resolver:      cfg.Resolver,
		SystemUserID:  cfg.SystemUserID,
		EmailPolicies: cfg.EmailPolicies,
	})
	if err != nil {
		return nil, err
	}
	return &Orchestrator{db: db, cfg: cfg, engine: engine}, nil
}

type itemFunc func(ctx context.Context, tx *gorm.DB, raw json.RawMessage) (reconcile.Action, error)

// handler returns the item function for an event, or nil when the event is
// not handled for the source.
func (o *Orchestrator) handler(source models.Source, event string) itemFunc {
	switch source {
	case models.SourceAgencyCRM:
		switch event {
		case "company.created", "company.updated":
			return decoded(o.syncCompany)
		case "brand.created", "brand.updated":
			return decoded(o.syncBrand)
		case "contact.created", "contact.updated":
			return decoded(o.syncAgencyContact)
		case "invoice.created":
			return decoded(o.syncInvoice)
		case "status_update.created":
			return decoded(o.syncStatusUpdate)
		}
	case models.SourceTVPlanner:
		switch event {
		case "campaign.created", "campaign.updated":
			return decoded(o.syncCampaign)
		case "wave.created", "wave.updated":
			return decoded(o.syncWave)
		case "contact.created", "contact.updated":
			return decoded(o.syncTVContact)
		}
	}
	return nil
}

func decoded[T any](fn func(context.Context, *gorm.DB, T) (reconcile.Action, error)) itemFunc {
	return func(ctx context.Context, tx *gorm.DB, raw json.RawMessage) (reconcile.Action, error) {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return reconcile.ActionSkipped, fmt.Errorf("%w: %v", utils.ErrValidation, err)
		}
		return fn(ctx, tx, item)
	}
}

// HandleEvent applies one webhook event in a single transaction. Unknown
// events are acknowledged and ignored.
func (o *Orchestrator) HandleEvent(ctx context.Context, source models.Source, event string, raw []byte) (*EventResult, error) {
	result := &EventResult{Event: event}

	fn := o.handler(source, event)
	if fn == nil {
		result.Ignored = true
		metrics.InboundWebhooksTotal.WithLabelValues(string(source), event, "ignored").Inc()
		utils.LogEvent("webhook_event_ignored", map[string]interface{}{
			"source": source,
			"event":  event,
		})
		return result, nil
	}

	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		action, err := fn(ctx, tx, raw)
		result.Action = action
		return err
	})
	if err != nil {
		metrics.InboundWebhooksTotal.WithLabelValues(string(source), event, "error").Inc()
		return nil, fmt.Errorf("failed to process %s event %s: %w", source.Label(), event, err)
	}

	metrics.InboundWebhooksTotal.WithLabelValues(string(source), event, string(result.Action)).Inc()
	utils.LogEvent("webhook_event_processed", map[string]interface{}{
		"source": source,
		"event":  event,
		"action": result.Action,
	})
	return result, nil
}

type collection struct {
	name   string
	path   string
	limit  int
	item   itemFunc
	enrich func(ctx context.Context, client *Client, raw json.RawMessage) json.RawMessage
}

func (o *Orchestrator) collections(source models.Source) []collection {
	switch source {
	case models.SourceAgencyCRM:
		return []collection{
			{name: "companies", path: "companies", item: decoded(o.syncCompany)},
			{name: "brands", path: "brands", item: decoded(o.syncBrand)},
			{name: "contacts", path: "contacts", item: decoded(o.syncAgencyContact)},
			{name: "invoices", path: "invoices", limit: 50, item: decoded(o.syncInvoice)},
			{name: "status-updates", path: "status-updates?limit=100", item: decoded(o.syncStatusUpdate)},
		}
	case models.SourceTVPlanner:
		return []collection{
			{name: "campaigns", path: "campaigns", item: decoded(o.syncCampaign), enrich: mergeCampaignSpending},
			{name: "contacts", path: "contacts", item: decoded(o.syncTVContact)},
		}
	}
	return nil
}

// mergeCampaignSpending overlays /campaigns/{id}/spending onto the campaign.
// A failed spending lookup leaves the campaign as listed.
func mergeCampaignSpending(ctx context.Context, client *Client, raw json.RawMessage) json.RawMessage {
	var campaign map[string]interface{}
	if err := json.Unmarshal(raw, &campaign); err != nil {
		return raw
	}
	id, ok := campaign["id"]
	if !ok {
		return raw
	}

	var spending map[string]interface{}
	if err := client.GetJSON(ctx, "campaign-spending", fmt.Sprintf("campaigns/%v/spending", id), &spending); err != nil {
		utils.LogEvent("campaign_spending_unavailable", map[string]interface{}{
			"campaign_id": id,
			"error":       err.Error(),
		})
		return raw
	}
	for k, v := range spending {
		campaign[k] = v
	}
	merged, err := json.Marshal(campaign)
	if err != nil {
		return raw
	}
	return merged
}

// Run pulls every collection of source and returns the persisted summary.
// A failing collection or item is counted and the pull moves on.
func (o *Orchestrator) Run(ctx context.Context, source models.Source, opts RunOptions) (*models.SyncRun, error) {
	cols := o.collections(source)
	if cols == nil {
		return nil, fmt.Errorf("unknown source %q", source)
	}

	sc := o.cfg.Sources[source]
	if strings.TrimSpace(opts.BaseURL) != "" {
		sc.BaseURL = opts.BaseURL
	}
	if strings.TrimSpace(opts.APIKey) != "" {
		sc.APIKey = opts.APIKey
	}
	client, err := NewClient(source, ClientConfig{
		BaseURL: sc.BaseURL,
		APIKey:  sc.APIKey,
		Timeout: o.cfg.UpstreamTimeout,
	})
	if err != nil {
		return nil, err
	}
	if opts.Trigger == "" {
		opts.Trigger = TriggerManual
	}

	run := &models.SyncRun{
		RunID:       uuid.NewString(),
		Source:      source,
		Trigger:     opts.Trigger,
		Status:      models.SyncRunning,
		Collections: map[string]models.CollectionStats{},
		StartedAt:   o.cfg.Clock().UTC(),
	}
	if err := o.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to record sync run: %w", err)
	}

	start := time.Now()
	aborted := 0
	for _, col := range cols {
		stats := o.pullCollection(ctx, client, source, run.RunID, col, opts.Progress)
		run.Collections[col.name] = stats
		run.ErrorCount += stats.Failed
		if stats.Error != "" {
			run.ErrorCount++
			aborted++
		}
	}
	metrics.SyncRunDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())

	switch {
	case aborted == len(cols):
		run.Status = models.SyncFailed
		run.Message = fmt.Sprintf("Sync from %s failed", source.Label())
	case run.ErrorCount > 0:
		run.Status = models.SyncPartial
		run.Message = fmt.Sprintf("Data synced from %s with %d errors", source.Label(), run.ErrorCount)
	default:
		run.Status = models.SyncSuccess
		run.Message = fmt.Sprintf("Data synced from %s", source.Label())
	}
	finished := o.cfg.Clock().UTC()
	run.FinishedAt = &finished

	if err := o.db.WithContext(context.WithoutCancel(ctx)).Save(run).Error; err != nil {
		utils.LogError("sync_run_save", err, map[string]interface{}{"run_id": run.RunID})
	}
	utils.LogEvent("sync_run_finished", map[string]interface{}{
		"run_id":      run.RunID,
		"source":      source,
		"status":      run.Status,
		"error_count": run.ErrorCount,
	})
	return run, nil
}

func (o *Orchestrator) pullCollection(ctx context.Context, client *Client, source models.Source, runID string, col collection, progress func(Progress)) models.CollectionStats {
	var stats models.CollectionStats
	report := func(stage string) {
		if progress != nil {
			progress(Progress{RunID: runID, Source: source, Collection: col.name, Stage: stage, Stats: stats})
		}
	}
	report(StageStarted)

	var items []json.RawMessage
	if err := client.GetJSON(ctx, col.name, col.path, &items); err != nil {
		stats.Error = err.Error()
		utils.LogError("sync_collection_failed", err, map[string]interface{}{
			"source":     source,
			"collection": col.name,
		})
		report(StageFailed)
		return stats
	}
	if col.limit > 0 && len(items) > col.limit {
		items = items[:col.limit]
	}
	stats.Fetched = len(items)

	for _, raw := range items {
		if ctx.Err() != nil {
			stats.Error = ctx.Err().Error()
			break
		}
		if col.enrich != nil {
			raw = col.enrich(ctx, client, raw)
		}

		var action reconcile.Action
		err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			action, err = col.item(ctx, tx, raw)
			return err
		})

		result := string(action)
		switch {
		case errors.Is(err, utils.ErrValidation):
			stats.Skipped++
			result = string(reconcile.ActionSkipped)
		case err != nil:
			stats.Failed++
			result = "failed"
			utils.LogError("sync_item_failed", err, map[string]interface{}{
				"source":     source,
				"collection": col.name,
			})
		case action == reconcile.ActionCreated:
			stats.Created++
		case action == reconcile.ActionUpdated:
			stats.Updated++
		default:
			stats.Skipped++
		}
		metrics.SyncItemsTotal.WithLabelValues(string(source), col.name, result).Inc()
	}

	if stats.Error != "" {
		report(StageFailed)
	} else {
		report(StageFinished)
	}
	return stats
}

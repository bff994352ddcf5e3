package models

import (
	"time"
)

// Source identifies an external system we synchronize with.
type Source string

const (
	SourceAgencyCRM Source = "agency-crm"
	SourceTVPlanner Source = "tv-planner"
)

var Sources = []Source{SourceAgencyCRM, SourceTVPlanner}

// ParseSource maps a route parameter or config key onto a known source.
func ParseSource(s string) (Source, bool) {
	for _, src := range Sources {
		if string(src) == s {
			return src, true
		}
	}
	return "", false
}

// Label is the human-readable name used in provenance notes.
func (s Source) Label() string {
	switch s {
	case SourceAgencyCRM:
		return "Agency CRM"
	case SourceTVPlanner:
		return "TV Planner"
	default:
		return string(s)
	}
}

// Sync run statuses
const (
	SyncRunning = "running"
	SyncSuccess = "success"
	SyncPartial = "partial"
	SyncFailed  = "failed"
)

// CollectionStats counts what a bulk pull did with one upstream collection.
type CollectionStats struct {
	Fetched int    `json:"fetched"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// SyncRun is the persisted summary of one bulk pull.
type SyncRun struct {
	ID          uint                       `gorm:"primarykey" json:"id"`
	RunID       string                     `gorm:"size:36;uniqueIndex;not null" json:"run_id"`
	Source      Source                     `gorm:"size:32;not null;index" json:"source"`
	Trigger     string                     `gorm:"size:32" json:"trigger"` // manual, initial, websocket, scheduled
	Status      string                     `gorm:"size:16;not null" json:"status"`
	Message     string                     `gorm:"type:text" json:"message"`
	Collections map[string]CollectionStats `gorm:"serializer:json" json:"collections"`
	ErrorCount  int                        `json:"error_count"`
	StartedAt   time.Time                  `json:"started_at"`
	FinishedAt  *time.Time                 `json:"finished_at,omitempty"`
}

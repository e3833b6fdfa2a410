package messages

import "time"

// SerialsSynced is published after a non-dry sync or build run that wrote
// to the store.
type SerialsSynced struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	RecordsChecked int `json:"records_checked"`
	RecordsUpdated int `json:"records_updated"`
	Errors         int `json:"errors"`

	// Exact serials added or changed by the run.
	ExactSerials []string `json:"exact_serials,omitempty"`
	// RID tracking numbers whose ranges were added or changed.
	RangeTrackings []string `json:"range_trackings,omitempty"`
}

const (
	KindSync  = "sync"
	KindBuild = "build"
)

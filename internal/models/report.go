package models

import "time"

// Metadata keys persisted in the key/value metadata table.
const (
	MetaLastSyncDate      = "last_sync_date"
	MetaBuildDate         = "build_date"
	MetaBuildMethod       = "build_method"
	MetaTotalRIDs         = "total_rids"
	MetaExactSerialsCount = "exact_serials_count"
	MetaSerialRangesCount = "serial_ranges_count"
	MetaTotalRecords      = "total_records"
)

// SyncReport is the aggregate outcome of one sync or build run.
type SyncReport struct {
	RunID          string     `json:"run_id"`
	DryRun         bool       `json:"dry_run"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Completed      bool       `json:"completed"`
	RecordsChecked int        `json:"records_checked"`
	RecordsUpdated int        `json:"records_updated"`
	ExactAdded     int        `json:"exact_added"`
	ExactUpdated   int        `json:"exact_updated"`
	RangeAdded     int        `json:"range_added"`
	RangeUpdated   int        `json:"range_updated"`
	APICalls       int        `json:"api_calls"`
	Errors         int        `json:"errors"`
}

// StoreStats mirrors the metadata table plus actual row counts.
type StoreStats struct {
	Metadata     map[string]string `json:"metadata"`
	ExactSerials int64             `json:"exact_serials"`
	SerialRanges int64             `json:"serial_ranges"`
}

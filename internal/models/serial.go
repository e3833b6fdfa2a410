package models

import "time"

// DescriptionRID is the description stamped on every entry produced from a
// Remote ID declaration of compliance.
const DescriptionRID = "Remote ID (RID)"

type Source string

const (
	SourceLocal Source = "local"
	SourceAPI   Source = "api"
	SourceNone  Source = "none"
)

type ExactSerialEntry struct {
	SerialNumber string
	RIDTracking  string
	Description  string
	Status       string
	Make         string
	Model        string
	MfrSerial    *string
	SyncedAt     time.Time
	FAAUpdatedAt *time.Time
	Deleted      bool
}

// SameData reports whether two entries carry the same persisted data.
// SyncedAt is a local write stamp and is ignored.
func (e *ExactSerialEntry) SameData(o *ExactSerialEntry) bool {
	return e.SerialNumber == o.SerialNumber &&
		e.RIDTracking == o.RIDTracking &&
		e.Description == o.Description &&
		e.Status == o.Status &&
		e.Make == o.Make &&
		e.Model == o.Model &&
		equalStrPtr(e.MfrSerial, o.MfrSerial) &&
		equalTimePtr(e.FAAUpdatedAt, o.FAAUpdatedAt) &&
		e.Deleted == o.Deleted
}

type SerialRangeEntry struct {
	ID           int64
	SerialStart  string
	SerialEnd    string
	RIDTracking  string
	Description  string
	Status       string
	Make         string
	Model        string
	MfrSerial    *string
	SyncedAt     time.Time
	FAAUpdatedAt *time.Time
	Deleted      bool
}

// RangeKey is the natural key of a range row; ID is only a surrogate.
type RangeKey struct {
	SerialStart string
	SerialEnd   string
	RIDTracking string
}

func (r *SerialRangeEntry) Key() RangeKey {
	return RangeKey{SerialStart: r.SerialStart, SerialEnd: r.SerialEnd, RIDTracking: r.RIDTracking}
}

// Contains reports whether serial falls inside the range. Bounds and serial
// must have the same length; comparison is byte-wise.
func (r *SerialRangeEntry) Contains(serial string) bool {
	if len(serial) != len(r.SerialStart) || len(serial) != len(r.SerialEnd) {
		return false
	}
	return r.SerialStart <= serial && serial <= r.SerialEnd
}

// ValidBounds checks the range invariant: equal length and start <= end.
func ValidBounds(start, end string) bool {
	return start != "" && len(start) == len(end) && start <= end
}

func (r *SerialRangeEntry) SameData(o *SerialRangeEntry) bool {
	return r.SerialStart == o.SerialStart &&
		r.SerialEnd == o.SerialEnd &&
		r.RIDTracking == o.RIDTracking &&
		r.Description == o.Description &&
		r.Status == o.Status &&
		r.Make == o.Make &&
		r.Model == o.Model &&
		equalStrPtr(r.MfrSerial, o.MfrSerial) &&
		equalTimePtr(r.FAAUpdatedAt, o.FAAUpdatedAt) &&
		r.Deleted == o.Deleted
}

// LookupResult is the contract returned to every caller. Optional fields are
// nil (JSON null) when absent, regardless of Source.
type LookupResult struct {
	Found        bool    `json:"found"`
	SerialNumber string  `json:"serial_number"`
	RIDTracking  *string `json:"rid_tracking"`
	Description  *string `json:"description"`
	Status       *string `json:"status"`
	Make         *string `json:"make"`
	Model        *string `json:"model"`
	MfrSerial    *string `json:"mfr_serial"`
	Source       Source  `json:"source"`
}

func NotFound(serial string) LookupResult {
	return LookupResult{SerialNumber: serial, Source: SourceNone}
}

func ResultFromExact(e *ExactSerialEntry) LookupResult {
	return LookupResult{
		Found:        true,
		SerialNumber: e.SerialNumber,
		RIDTracking:  StrPtr(e.RIDTracking),
		Description:  StrPtr(e.Description),
		Status:       StrPtr(e.Status),
		Make:         StrPtr(e.Make),
		Model:        StrPtr(e.Model),
		MfrSerial:    e.MfrSerial,
		Source:       SourceLocal,
	}
}

func ResultFromRange(serial string, r *SerialRangeEntry) LookupResult {
	return LookupResult{
		Found:        true,
		SerialNumber: serial,
		RIDTracking:  StrPtr(r.RIDTracking),
		Description:  StrPtr(r.Description),
		Status:       StrPtr(r.Status),
		Make:         StrPtr(r.Make),
		Model:        StrPtr(r.Model),
		MfrSerial:    r.MfrSerial,
		Source:       SourceLocal,
	}
}

// Stale reports whether an entry stamped next must not replace one stamped
// prev: both stamps known and prev strictly newer.
func Stale(prev, next *time.Time) bool {
	return prev != nil && next != nil && prev.After(*next)
}

// StrPtr returns nil for an empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

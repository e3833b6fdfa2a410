package faa

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultPageSize is the page size of the publicDOCRev listing.
const DefaultPageSize = 100

// RIDRecord is one Remote ID declaration of compliance from the listing.
type RIDRecord struct {
	TrackingNumber string
	MakeName       string
	ModelName      string
	Status         string
	DocType        string
	UpdatedAt      string
}

// UpdatedTime parses the record's remote update timestamp.
func (r RIDRecord) UpdatedTime() (time.Time, error) {
	return ParseTimestamp(r.UpdatedAt)
}

// SerialItem is one raw serial entry attached to a record. Value carries
// either a single serial or "START-END"; Start/End are set when the payload
// already splits the bounds.
type SerialItem struct {
	Value     string
	Start     string
	End       string
	MfrSerial string
	UpdatedAt string
}

// SerialMatch is the result of a single-serial lookup.
type SerialMatch struct {
	TrackingNumber string
	DocType        string
	Status         string
	MakeName       string
	ModelName      string
	UpdatedAt      string
}

type Page struct {
	Index int
	Items []RIDRecord
}

// Source is the FAA Remote ID compliance API as seen by this service.
// Listings are ordered by updatedAt, newest first.
type Source interface {
	ListUpdated(ctx context.Context, pageIndex, pageSize int) (Page, error)
	GetSerials(ctx context.Context, trackingNumber string) ([]SerialItem, error)
	// FindBySerial returns (nil, nil) when the API knows no such serial.
	FindBySerial(ctx context.Context, serial string) (*SerialMatch, error)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts the formats the FAA API and operators use. Values
// without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unsupported timestamp %q", s)
}

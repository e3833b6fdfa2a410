// Package normalizer turns the raw serial payload of one Remote ID record
// into typed exact and range entries. It is shared by build and sync.
package normalizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/RIDBox/internal/integrations/faa"
	"github.com/BearBump/RIDBox/internal/models"
)

// RecordMeta holds the record-level fields every produced entry inherits.
type RecordMeta struct {
	RIDTracking string
	Description string
	Status      string
	Make        string
	Model       string
}

func MetaFromRecord(r faa.RIDRecord) RecordMeta {
	return RecordMeta{
		RIDTracking: r.TrackingNumber,
		Description: models.DescriptionRID,
		Status:      r.Status,
		Make:        r.MakeName,
		Model:       r.ModelName,
	}
}

// Issue describes one raw item that was skipped.
type Issue struct {
	Index  int
	Value  string
	Reason string
}

func (i Issue) Error() string {
	return fmt.Sprintf("item %d (%q): %s", i.Index, i.Value, i.Reason)
}

type Result struct {
	Exact  []*models.ExactSerialEntry
	Ranges []*models.SerialRangeEntry
	Issues []Issue
}

// Normalize classifies every item, validates range bounds and collapses
// duplicates (last wins, first position kept). remoteUpdatedAt may be nil.
func Normalize(items []faa.SerialItem, meta RecordMeta, remoteUpdatedAt *time.Time, syncedAt time.Time) Result {
	var res Result
	exactIdx := map[string]int{}
	rangeIdx := map[[2]string]int{}

	for i, it := range items {
		var mfr *string
		if m := strings.TrimSpace(it.MfrSerial); m != "" {
			mfr = &m
		}

		start, end, isRange, ok := classify(it)
		if !ok {
			res.Issues = append(res.Issues, Issue{Index: i, Value: it.Value, Reason: "empty serial value"})
			continue
		}

		if isRange {
			if len(start) != len(end) {
				res.Issues = append(res.Issues, Issue{Index: i, Value: rangeValue(it), Reason: "range bounds differ in length"})
				continue
			}
			if start > end {
				res.Issues = append(res.Issues, Issue{Index: i, Value: rangeValue(it), Reason: "range start is after end"})
				continue
			}
			e := &models.SerialRangeEntry{
				SerialStart:  start,
				SerialEnd:    end,
				RIDTracking:  meta.RIDTracking,
				Description:  meta.Description,
				Status:       meta.Status,
				Make:         meta.Make,
				Model:        meta.Model,
				MfrSerial:    mfr,
				SyncedAt:     syncedAt,
				FAAUpdatedAt: remoteUpdatedAt,
			}
			k := [2]string{start, end}
			if pos, dup := rangeIdx[k]; dup {
				res.Ranges[pos] = e
				continue
			}
			rangeIdx[k] = len(res.Ranges)
			res.Ranges = append(res.Ranges, e)
			continue
		}

		e := &models.ExactSerialEntry{
			SerialNumber: start,
			RIDTracking:  meta.RIDTracking,
			Description:  meta.Description,
			Status:       meta.Status,
			Make:         meta.Make,
			Model:        meta.Model,
			MfrSerial:    mfr,
			SyncedAt:     syncedAt,
			FAAUpdatedAt: remoteUpdatedAt,
		}
		if pos, dup := exactIdx[start]; dup {
			res.Exact[pos] = e
			continue
		}
		exactIdx[start] = len(res.Exact)
		res.Exact = append(res.Exact, e)
	}
	return res
}

// classify returns the bounds of an item. For exact items start holds the
// serial. ok is false when the item carries no serial at all.
func classify(it faa.SerialItem) (start, end string, isRange, ok bool) {
	s, e := strings.TrimSpace(it.Start), strings.TrimSpace(it.End)
	if s != "" || e != "" {
		return s, e, true, true
	}

	v := strings.TrimSpace(it.Value)
	if v == "" {
		return "", "", false, false
	}
	// "ABC001-ABC999": split on the first dash. A leading dash is part of
	// an exact serial.
	if i := strings.Index(v, "-"); i > 0 {
		return strings.TrimSpace(v[:i]), strings.TrimSpace(v[i+1:]), true, true
	}
	return v, "", false, true
}

func rangeValue(it faa.SerialItem) string {
	if it.Value != "" {
		return it.Value
	}
	return it.Start + "-" + it.End
}

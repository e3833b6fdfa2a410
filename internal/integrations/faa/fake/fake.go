package fake

import (
	"context"
	"sort"
	"sync"

	"github.com/BearBump/RIDBox/internal/integrations/faa"
)

// Source is an in-memory stand-in for the FAA API. Records are served newest
// first, the same order the real listing uses.
type Source struct {
	mu      sync.Mutex
	records []faa.RIDRecord
	serials map[string][]faa.SerialItem
	matches map[string]faa.SerialMatch

	ListErr   error
	SerialErr map[string]error
	FindErr   error

	ListCalls   int
	SerialCalls int
	FindCalls   int
}

func New() *Source {
	return &Source{
		serials:   map[string][]faa.SerialItem{},
		matches:   map[string]faa.SerialMatch{},
		SerialErr: map[string]error{},
	}
}

// AddRecord registers (or replaces) a record and its serial items.
func (s *Source) AddRecord(r faa.RIDRecord, items ...faa.SerialItem) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, cur := range s.records {
		if cur.TrackingNumber != r.TrackingNumber {
			kept = append(kept, cur)
		}
	}
	s.records = append(kept, r)
	sort.SliceStable(s.records, func(i, j int) bool {
		ti, erri := s.records[i].UpdatedTime()
		tj, errj := s.records[j].UpdatedTime()
		if erri != nil || errj != nil {
			return s.records[i].UpdatedAt > s.records[j].UpdatedAt
		}
		return ti.After(tj)
	})
	s.serials[r.TrackingNumber] = append([]faa.SerialItem(nil), items...)
	return s
}

// AddMatch registers a single-serial lookup answer.
func (s *Source) AddMatch(serial string, m faa.SerialMatch) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[serial] = m
	return s
}

func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ListCalls + s.SerialCalls + s.FindCalls
}

func (s *Source) ListUpdated(ctx context.Context, pageIndex, pageSize int) (faa.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListCalls++
	if s.ListErr != nil {
		return faa.Page{}, s.ListErr
	}
	if pageSize <= 0 {
		pageSize = faa.DefaultPageSize
	}
	from := pageIndex * pageSize
	if from >= len(s.records) {
		return faa.Page{Index: pageIndex}, nil
	}
	to := from + pageSize
	if to > len(s.records) {
		to = len(s.records)
	}
	return faa.Page{Index: pageIndex, Items: append([]faa.RIDRecord(nil), s.records[from:to]...)}, nil
}

func (s *Source) GetSerials(ctx context.Context, trackingNumber string) ([]faa.SerialItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SerialCalls++
	if err := s.SerialErr[trackingNumber]; err != nil {
		return nil, err
	}
	return append([]faa.SerialItem(nil), s.serials[trackingNumber]...), nil
}

func (s *Source) FindBySerial(ctx context.Context, serial string) (*faa.SerialMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FindCalls++
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	m, ok := s.matches[serial]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

package testutil

import (
	"context"
	"sort"
	"sync"

	"mcs-go/internal/mcs"
)

// MemorySource is an in-memory mcs.RecordStore with failure injection.
// Safe for concurrent use.
type MemorySource struct {
	mu         sync.Mutex
	records    map[string]*mcs.FileRecord
	updateErrs map[string]error
	lateErrs   map[string]error
	listErr    error
	listCalls  int
}

// NewMemorySource creates a MemorySource holding copies of recs.
func NewMemorySource(recs ...*mcs.FileRecord) *MemorySource {
	s := &MemorySource{
		records:    make(map[string]*mcs.FileRecord),
		updateErrs: make(map[string]error),
		lateErrs:   make(map[string]error),
	}
	for _, r := range recs {
		c := *r
		s.records[r.ID] = &c
	}
	return s
}

// FailUpdate makes UpdateRecord(id) return err.
func (s *MemorySource) FailUpdate(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErrs[id] = err
}

// FailUpdateAfterCommit makes UpdateRecord(id) apply the update and then
// return err, like a commit whose acknowledgement was lost.
func (s *MemorySource) FailUpdateAfterCommit(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lateErrs[id] = err
}

// FailList makes ListRecords return err.
func (s *MemorySource) FailList(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

// ListCalls returns the number of ListRecords calls.
func (s *MemorySource) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

// Get returns a copy of the record with id, or nil.
func (s *MemorySource) Get(id string) *mcs.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil
	}
	c := *r
	return &c
}

func (s *MemorySource) ListRecords(_ context.Context, afterID string, limit int) ([]*mcs.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	page := make([]*mcs.FileRecord, 0, len(ids))
	for _, id := range ids {
		c := *s.records[id]
		page = append(page, &c)
	}
	return page, nil
}

func (s *MemorySource) UpdateRecord(_ context.Context, id string, u mcs.RecordUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.updateErrs[id]; err != nil {
		return err
	}
	r, ok := s.records[id]
	if !ok {
		return mcs.ErrNotFound
	}
	r.URL = u.URL
	r.ContentHash = u.ContentHash
	r.Folder = u.Folder
	return s.lateErrs[id]
}

func (s *MemorySource) GetRecord(_ context.Context, id string) (*mcs.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, mcs.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (s *MemorySource) InsertRecord(_ context.Context, rec *mcs.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *rec
	s.records[rec.ID] = &c
	return nil
}

func (s *MemorySource) FindRecordByURL(_ context.Context, url string) (*mcs.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.URL == url {
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

// Compile-time check
var _ mcs.RecordStore = (*MemorySource)(nil)

package outcome

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/modsieve/modsieve/errors"
	"github.com/modsieve/modsieve/logger"
)

// writeJSONAtomic rewrites a state file wholesale via temp-file rename so a
// crash mid-write never truncates it.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create state directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp state file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write temp state file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close temp state file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to replace state file %s", path)
	}
	return nil
}

// readJSON loads a state file; a missing file yields the zero value. A
// corrupt document is not fatal: whatever valid prefix decoded is kept, the
// rest is dropped with a warning, and the next write replaces the file.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to read state file %s", path)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warnw("Corrupt state file, salvaging what parsed",
			"path", path, "error", err)
	}
	return nil
}

// ReportedStore holds the reported-items ledger, keyed by fullname.
type ReportedStore struct {
	path string

	mu      sync.Mutex
	records []ReportedRecord
	index   map[string]int
}

// OpenReportedStore loads (or initializes) the reported ledger.
func OpenReportedStore(path string) (*ReportedStore, error) {
	s := &ReportedStore{path: path, index: make(map[string]int)}
	if err := readJSON(path, &s.records); err != nil {
		return nil, err
	}
	for i, r := range s.records {
		s.index[r.CommentID] = i
	}
	return s, nil
}

// Has reports whether an item was already reported.
func (s *ReportedStore) Has(commentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[commentID]
	return ok
}

// Add appends a new record; an existing record for the same item is left
// untouched.
func (s *ReportedStore) Add(rec ReportedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[rec.CommentID]; ok {
		return nil
	}
	if rec.Outcome == "" {
		rec.Outcome = OutcomePending
	}
	s.records = append(s.records, rec)
	s.index[rec.CommentID] = len(s.records) - 1
	return writeJSONAtomic(s.path, s.records)
}

// SetOutcome resolves a pending record. Outcomes are monotonic: once a
// record is removed or approved it never changes again, whatever later
// observations claim.
func (s *ReportedStore) SetOutcome(commentID, outcome string, checkedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[commentID]
	if !ok {
		return false, nil
	}
	if s.records[i].Resolved() || s.records[i].Outcome == outcome {
		return false, nil
	}
	s.records[i].Outcome = outcome
	s.records[i].CheckedAt = &checkedAt
	return true, writeJSONAtomic(s.path, s.records)
}

// Pending returns records still awaiting a moderator decision.
func (s *ReportedStore) Pending() []ReportedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ReportedRecord
	for _, r := range s.records {
		if !r.Resolved() {
			out = append(out, r)
		}
	}
	return out
}

// All returns a copy of every record.
func (s *ReportedStore) All() []ReportedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReportedRecord, len(s.records))
	copy(out, s.records)
	return out
}

// PruneResolved drops resolved records older than the cutoff. Pending
// records are never pruned, whatever their age.
func (s *ReportedStore) PruneResolved(olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, r := range s.records {
		if r.Resolved() && r.ReportedAt.Before(olderThan) {
			continue
		}
		kept = append(kept, r)
	}

	pruned := len(s.records) - len(kept)
	if pruned == 0 {
		return 0, nil
	}

	s.records = kept
	s.index = make(map[string]int, len(kept))
	for i, r := range kept {
		s.index[r.CommentID] = i
	}
	return pruned, writeJSONAtomic(s.path, s.records)
}

// BenignStore holds arbiter-cleared items with age-based eviction.
type BenignStore struct {
	path   string
	maxAge time.Duration

	mu      sync.Mutex
	records []BenignRecord
	index   map[string]bool
}

// OpenBenignStore loads the benign cache, evicting stale entries on open.
func OpenBenignStore(path string, maxAge time.Duration) (*BenignStore, error) {
	s := &BenignStore{path: path, maxAge: maxAge, index: make(map[string]bool)}
	if err := readJSON(path, &s.records); err != nil {
		return nil, err
	}
	s.evictLocked(time.Now())
	for _, r := range s.records {
		s.index[r.CommentID] = true
	}
	return s, nil
}

// Has reports whether an item was already cleared.
func (s *BenignStore) Has(commentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index[commentID]
}

// Add records a cleared item and evicts anything past max age.
func (s *BenignStore) Add(rec BenignRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index[rec.CommentID] {
		return nil
	}
	s.records = append(s.records, rec)
	s.index[rec.CommentID] = true
	s.evictLocked(time.Now())
	return writeJSONAtomic(s.path, s.records)
}

// Len returns the live entry count.
func (s *BenignStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// All returns a copy of every live record.
func (s *BenignStore) All() []BenignRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BenignRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *BenignStore) evictLocked(now time.Time) {
	if s.maxAge <= 0 {
		return
	}
	cutoff := now.Add(-s.maxAge)
	kept := s.records[:0]
	for _, r := range s.records {
		if r.SeenAt.Before(cutoff) {
			delete(s.index, r.CommentID)
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
}

// FalsePositiveStore holds moderator-overturned reports, deduped by item.
type FalsePositiveStore struct {
	path string

	mu      sync.Mutex
	records []FalsePositiveRecord
	index   map[string]bool
}

// OpenFalsePositiveStore loads the false-positive ledger.
func OpenFalsePositiveStore(path string) (*FalsePositiveStore, error) {
	s := &FalsePositiveStore{path: path, index: make(map[string]bool)}
	if err := readJSON(path, &s.records); err != nil {
		return nil, err
	}
	for _, r := range s.records {
		s.index[r.CommentID] = true
	}
	return s, nil
}

// Add records one false positive; repeats for the same item are dropped.
func (s *FalsePositiveStore) Add(rec FalsePositiveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index[rec.CommentID] {
		return nil
	}
	s.records = append(s.records, rec)
	s.index[rec.CommentID] = true
	return writeJSONAtomic(s.path, s.records)
}

// All returns a copy of every false positive.
func (s *FalsePositiveStore) All() []FalsePositiveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FalsePositiveRecord, len(s.records))
	copy(out, s.records)
	return out
}

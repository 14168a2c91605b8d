package outcome

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/modsieve/modsieve/errors"
)

// ScanEntry is one line in the append-only scan log. The log doubles as the
// dedup set: an item whose fullname appears was already evaluated.
type ScanEntry struct {
	Fullname   string    `json:"fullname"`
	Action     string    `json:"action"` // prefilter action, then the final disposition
	TopScore   float64   `json:"top_score"`
	Confidence string    `json:"confidence,omitempty"`
	Trigger    string    `json:"trigger,omitempty"`
	Verdict    string    `json:"verdict,omitempty"`
	SeenAt     time.Time `json:"seen_at"`
}

// SeenSet is the scan log: a JSONL file appended per item, with an in-memory
// fullname set rebuilt from it on open.
type SeenSet struct {
	path string

	mu   sync.Mutex
	file *os.File
	seen map[string]bool
}

// OpenSeenSet replays the scan log and opens it for appending.
func OpenSeenSet(path string) (*SeenSet, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create scan log directory")
	}

	s := &SeenSet{path: path, seen: make(map[string]bool)}

	if existing, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(existing)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var e ScanEntry
			if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
				continue // tolerate a torn final line from a crash
			}
			s.seen[e.Fullname] = true
		}
		existing.Close()
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to replay scan log")
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to open scan log")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open scan log for append")
	}
	s.file = f
	return s, nil
}

// Seen reports whether an item was already scanned.
func (s *SeenSet) Seen(fullname string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[fullname]
}

// Record appends one entry and marks the item seen.
func (s *SeenSet) Record(e ScanEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "failed to marshal scan entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "failed to append scan log")
	}
	s.seen[e.Fullname] = true
	return nil
}

// Len returns the number of distinct items seen.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// ReadScanLog loads every parseable entry from a scan log file. Used by
// reporting, which needs the scores, not just the fullname set.
func ReadScanLog(path string) ([]ScanEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to open scan log %s", path)
	}
	defer f.Close()

	var entries []ScanEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e ScanEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read scan log")
	}
	return entries, nil
}

// Close closes the underlying log file.
func (s *SeenSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

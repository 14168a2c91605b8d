package outcome

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/modsieve/modsieve/errors"
)

// OutcomeEntry is one line in the append-only outcome log: a moderator
// decision observed for a reported item.
type OutcomeEntry struct {
	Fullname   string    `json:"fullname"`
	Status     string    `json:"status"` // removed | approved
	Action     string    `json:"action,omitempty"`
	Moderator  string    `json:"moderator,omitempty"`
	CreatedUTC int64     `json:"created_utc"`
	RecordedAt time.Time `json:"recorded_at"`
}

// dedupKey makes re-observing the same modlog action idempotent across
// refresh runs.
func (e OutcomeEntry) dedupKey() string {
	return fmt.Sprintf("%s|%s|%d", e.Fullname, e.Status, e.CreatedUTC)
}

// OutcomeLog is the JSONL outcome journal with an in-memory dedup set.
type OutcomeLog struct {
	path string

	mu   sync.Mutex
	file *os.File
	keys map[string]bool
}

// OpenOutcomeLog replays the journal and opens it for appending.
func OpenOutcomeLog(path string) (*OutcomeLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create outcome log directory")
	}

	l := &OutcomeLog{path: path, keys: make(map[string]bool)}

	if existing, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(existing)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var e OutcomeEntry
			if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
				continue
			}
			l.keys[e.dedupKey()] = true
		}
		existing.Close()
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to replay outcome log")
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to open outcome log")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open outcome log for append")
	}
	l.file = f
	return l, nil
}

// Append writes one entry unless its dedup key was already journaled.
// Returns true when the entry was new.
func (l *OutcomeLog) Append(e OutcomeEntry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := e.dedupKey()
	if l.keys[key] {
		return false, nil
	}

	line, err := json.Marshal(e)
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal outcome entry")
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return false, errors.Wrap(err, "failed to append outcome log")
	}
	l.keys[key] = true
	return true, nil
}

// Len returns the number of distinct journaled outcomes.
func (l *OutcomeLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// Close closes the underlying journal file.
func (l *OutcomeLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

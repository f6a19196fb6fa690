package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mapleads/internal/logger"
)

// Ledger is the persisted set of completed task keys. It is append-only:
// once a task is marked, it is never executed again, even if it yielded
// nothing. The file is rewritten after every mark so a crash loses at most
// the in-flight task.
type Ledger struct {
	mu   sync.Mutex
	path string
	log  *logger.Logger
	done map[string]struct{}
}

type ledgerFile struct {
	CompletedSearches []string  `json:"completed_searches"`
	LastUpdated       time.Time `json:"last_updated"`
	TotalSearches     int       `json:"total_searches"`
}

func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{
		path: path,
		log:  logger.New("TaskLedger"),
		done: make(map[string]struct{}),
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	var f ledgerFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse ledger: %w", err)
	}
	for _, k := range f.CompletedSearches {
		l.done[k] = struct{}{}
	}
	l.log.LogInfof("loaded %d completed searches", len(l.done))
	return l, nil
}

// IsCompleted reports whether the task has already been executed.
func (l *Ledger) IsCompleted(t Task) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.done[t.Key()]
	return ok
}

// MarkCompleted records the task and flushes the set to disk.
func (l *Ledger) MarkCompleted(t Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done[t.Key()] = struct{}{}
	return l.flushLocked()
}

// Count returns the size of the completion set.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.done)
}

// Flush rewrites the ledger file; used on shutdown.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *Ledger) flushLocked() error {
	keys := make([]string, 0, len(l.done))
	for k := range l.done {
		keys = append(keys, k)
	}
	f := ledgerFile{
		CompletedSearches: keys,
		LastUpdated:       time.Now().UTC(),
		TotalSearches:     len(keys),
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

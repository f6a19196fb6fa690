package leads

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mapleads/internal/logger"
)

// Store persists BusinessRecords as a JSON array and keeps an in-memory
// identity index for O(1) duplicate checks. Writes are serialized and the
// file is flushed after every accepted record, so a crash loses at most the
// record being written.
type Store struct {
	mu    sync.Mutex
	path  string
	log   *logger.Logger
	items []BusinessRecord
	index map[string]int
}

func NewStore(path string) (*Store, error) {
	s := &Store{
		path:  path,
		log:   logger.New("LeadStore"),
		index: make(map[string]int),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.LogInfof("no lead file at %s, starting fresh", s.path)
			return nil
		}
		return fmt.Errorf("read leads: %w", err)
	}
	if err := json.Unmarshal(b, &s.items); err != nil {
		return fmt.Errorf("parse leads: %w", err)
	}
	for i := range s.items {
		s.index[s.items[i].IdentityKey()] = i
	}
	s.log.LogInfof("loaded %d existing leads", len(s.items))
	return nil
}

// Accept appends the record unless its identity key is already present.
// Returns true when the record was persisted. First write wins: a later
// extraction of the same business never replaces the stored one.
func (s *Store) Accept(rec BusinessRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.IdentityKey()
	if key == "" {
		return false, nil
	}
	if _, dup := s.index[key]; dup {
		return false, nil
	}
	s.items = append(s.items, rec)
	s.index[key] = len(s.items) - 1
	if err := s.flushLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// Contains reports whether a record with this identity is already stored.
func (s *Store) Contains(name, phone string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[IdentityKey(name, phone)]
	return ok
}

// SetWebsiteStatus updates the website fields of an existing record. Only
// the verification pass calls this; discovery itself never mutates stored
// records.
func (s *Store) SetWebsiteStatus(name, phone string, status WebsiteStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[IdentityKey(name, phone)]
	if !ok {
		return false, nil
	}
	s.items[i].WebsiteStatus = status
	s.items[i].HasWebsite = status == WebsiteActive
	if err := s.flushLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of persisted records.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// QualifiedCount returns how many stored records have no active website.
func (s *Store) QualifiedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.items {
		if s.items[i].Qualified() {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of all records, for read-only consumers.
func (s *Store) Snapshot() []BusinessRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BusinessRecord, len(s.items))
	copy(out, s.items)
	return out
}

// Flush rewrites the file; used for the best-effort flush on shutdown.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode leads: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write leads: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace leads: %w", err)
	}
	return nil
}

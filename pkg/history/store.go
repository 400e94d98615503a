// Package history owns the terminal job records. It is the only place a
// terminal snapshot is ever stored, which closes the duplicate-insertion
// races a shared list mutated from several call sites would allow: Append is
// idempotent by job id, so whichever finalization path reaches the store
// first wins and later attempts are no-ops.
package history

import (
	"sync"
	"time"

	"github.com/pakmirror/pakmirror/pkg/jobregistry"
)

// Entry is an immutable snapshot of a job at the moment it became terminal.
// The full configuration is retained so the retry engine can replay the job
// without external input.
type Entry struct {
	ID        string              `json:"id"`
	Component string              `json:"component"`
	Version   string              `json:"version"`
	Name      string              `json:"name"`
	Kind      jobregistry.Kind    `json:"kind"`
	Status    jobregistry.Status  `json:"status"`
	StartTime time.Time           `json:"start_time"`
	EndTime   time.Time           `json:"end_time"`
	ExitCode  int                 `json:"exit_code"`
	LogPath   string              `json:"log_path,omitempty"`

	Config jobregistry.ConfigSnapshot `json:"config"`
}

// FromSnapshot builds the terminal entry for a finalized job snapshot.
func FromSnapshot(snap jobregistry.Snapshot) Entry {
	return Entry{
		ID:        snap.ID,
		Component: snap.Component,
		Version:   snap.Version,
		Name:      snap.Name,
		Kind:      snap.Kind,
		Status:    snap.Status,
		StartTime: snap.StartTime,
		EndTime:   snap.EndTime,
		ExitCode:  snap.ExitCode,
		LogPath:   snap.LogPath,
		Config:    snap.Config,
	}
}

// Store is the append-only terminal history. All methods are safe for
// concurrent use by monitors and request handlers.
type Store struct {
	mu      sync.Mutex
	entries []Entry
	byID    map[string]struct{}
}

func NewStore() *Store {
	return &Store{byID: make(map[string]struct{})}
}

// Append records the entry unless one with the same job id already exists.
// Returns true when the entry was actually stored.
func (s *Store) Append(e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[e.ID]; ok {
		return false
	}
	s.byID[e.ID] = struct{}{}
	s.entries = append(s.entries, e)
	return true
}

// FindByID returns the entry for a job id.
func (s *Store) FindByID(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// RemoveByName drops every entry sharing the logical name and returns how
// many were removed. Used before a retry so stale failed/dismissed entries
// do not linger next to the relaunched job.
func (s *Store) RemoveByName(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.Name == name {
			delete(s.byID, e.ID)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed
}

// List returns the entries in termination order.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

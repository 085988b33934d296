// Package inmem keeps call events in process memory. It backs tests and the
// CLI when no database is configured.
package inmem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"goa.design/agentcall/runtime/agent/runlog"
)

// Store is a runlog.Store holding events in memory. Event IDs are the
// 1-based position of the event within its call.
type Store struct {
	mu    sync.RWMutex
	calls map[string][]runlog.Event
}

var _ runlog.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{calls: make(map[string][]runlog.Event)}
}

// Append copies e into the log of its call and sets e.ID.
func (s *Store) Append(_ context.Context, e *runlog.Event) error {
	if e == nil {
		return errors.New("event is required")
	}
	if e.CallID == "" {
		return errors.New("call_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.calls[e.CallID]
	e.ID = strconv.Itoa(len(log) + 1)
	s.calls[e.CallID] = append(log, *e)
	return nil
}

// List returns up to limit events of callID recorded after cursor.
func (s *Store) List(_ context.Context, callID string, cursor string, limit int) (runlog.Page, error) {
	if callID == "" {
		return runlog.Page{}, errors.New("call_id is required")
	}
	if limit <= 0 {
		return runlog.Page{}, errors.New("limit must be > 0")
	}
	offset, err := parseCursor(cursor)
	if err != nil {
		return runlog.Page{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.calls[callID]
	if offset >= len(log) {
		return runlog.Page{}, nil
	}
	window := log[offset:min(offset+limit, len(log))]
	page := runlog.Page{Events: make([]*runlog.Event, len(window))}
	for i := range window {
		ev := window[i]
		page.Events[i] = &ev
	}
	if offset+len(window) < len(log) {
		page.NextCursor = window[len(window)-1].ID
	}
	return page, nil
}

// Len returns the number of events recorded for callID.
func (s *Store) Len(callID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calls[callID])
}

func parseCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(cursor)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	return n, nil
}

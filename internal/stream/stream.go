// Package stream provides change-capture feeds over warehouse tables, in the
// spirit of warehouse change streams: each stream tracks its own consumer
// offset on one source table and is advanced explicitly once its pending
// changes have been consumed.
package stream

import (
	"fmt"
	"sync"

	"slicehouse/internal/store"
	"slicehouse/pkg/errors"
)

// Stream is a change-capture feed over one source table. Multiple independent
// streams may exist per table; each keeps its own offset.
type Stream struct {
	mu     sync.Mutex
	name   string
	table  *store.Table
	offset int64
}

// New creates a stream positioned at the table's current version, so only
// subsequent changes are visible.
func New(name string, table *store.Table) *Stream {
	return &Stream{name: name, table: table, offset: table.Version()}
}

// NewFromStart creates a stream that sees the table's full changelog.
func NewFromStart(name string, table *store.Table) *Stream {
	return &Stream{name: name, table: table}
}

// Name returns the stream name.
func (s *Stream) Name() string { return s.name }

// Source returns the source table name.
func (s *Stream) Source() string { return s.table.Name() }

// Offset returns the committed consumer offset.
func (s *Stream) Offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Pending returns all change events past the committed offset.
func (s *Stream) Pending() []store.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.ChangesSince(s.offset)
}

// PendingCount returns the number of unconsumed change events.
func (s *Stream) PendingCount() int {
	return len(s.Pending())
}

// HasData reports whether any unconsumed changes exist.
func (s *Stream) HasData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Version() > s.offset
}

// AppendOnly reports whether every pending change is an insert. This is the
// gate for incremental refresh: updates and deletes force a full rebuild.
func (s *Stream) AppendOnly() bool {
	for _, ev := range s.Pending() {
		if ev.Action != store.ActionInsert {
			return false
		}
	}
	return true
}

// Advance commits consumption up to the given table version. Advancing past
// the source's current version is an error.
func (s *Stream) Advance(to int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to > s.table.Version() {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("cannot advance stream %s past source version", s.name)).
			WithContext("stream", s.name).
			WithContext("to", to)
	}
	if to > s.offset {
		s.offset = to
	}
	return nil
}

// Manager owns the streams for a warehouse, keyed by stream name.
type Manager struct {
	mu      sync.Mutex
	wh      *store.Warehouse
	streams map[string]*Stream
}

// NewManager creates a stream manager over the given warehouse.
func NewManager(wh *store.Warehouse) *Manager {
	return &Manager{wh: wh, streams: make(map[string]*Stream)}
}

// Ensure returns the named stream, creating it on the source table if needed.
// New streams start at the table's current version.
func (m *Manager) Ensure(name, source string) (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.streams[name]; ok {
		return s, nil
	}
	tbl, err := m.wh.Table(source)
	if err != nil {
		return nil, err
	}
	s := New(name, tbl)
	m.streams[name] = s
	return s, nil
}

// EnsureFromStart is Ensure, but new streams see the full changelog. Used
// when derived tables must pick up rows that existed before the stream was
// created.
func (m *Manager) EnsureFromStart(name, source string) (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.streams[name]; ok {
		return s, nil
	}
	tbl, err := m.wh.Table(source)
	if err != nil {
		return nil, err
	}
	s := NewFromStart(name, tbl)
	m.streams[name] = s
	return s, nil
}

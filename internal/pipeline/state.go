package pipeline

import (
	"sync"
	"time"
)

// TableState is the refresh bookkeeping for one derived table.
type TableState struct {
	LastRefresh  time.Time
	LastMode     Mode
	LastRows     int
	LastDuration time.Duration
	LastError    string
	Refreshes    int
	Failures     int
}

// RunRecord is one entry of the refresh history.
type RunRecord struct {
	Table    string
	Mode     Mode
	Started  time.Time
	Duration time.Duration
	Rows     int
	Err      string
}

// State tracks per-table refresh bookkeeping and a bounded refresh history.
type State struct {
	mu      sync.RWMutex
	tables  map[string]*TableState
	history []RunRecord
	maxHist int
}

// NewState creates refresh state keeping up to maxHistory run records.
func NewState(maxHistory int) *State {
	if maxHistory <= 0 {
		maxHistory = 200
	}
	return &State{
		tables:  make(map[string]*TableState),
		maxHist: maxHistory,
	}
}

// Table returns a copy of the state for the named table.
func (s *State) Table(name string) TableState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.tables[name]; ok {
		return *st
	}
	return TableState{}
}

// RecordSuccess records a completed refresh. started is the planning instant
// of the cycle: freshness is measured from when the refresh was decided, not
// when it finished.
func (s *State) RecordSuccess(name string, mode Mode, started time.Time, d time.Duration, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.tableLocked(name)
	st.LastRefresh = started
	st.LastMode = mode
	st.LastRows = rows
	st.LastDuration = d
	st.LastError = ""
	st.Refreshes++
	s.appendLocked(RunRecord{Table: name, Mode: mode, Started: started, Duration: d, Rows: rows})
}

// RecordFailure records a failed refresh. The freshness clock is not reset:
// the table stays due until a refresh succeeds.
func (s *State) RecordFailure(name string, mode Mode, started time.Time, d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.tableLocked(name)
	st.LastError = err.Error()
	st.Failures++
	s.appendLocked(RunRecord{Table: name, Mode: mode, Started: started, Duration: d, Err: err.Error()})
}

// RecordNoOp resets the freshness clock for a table that was due but had no
// upstream changes.
func (s *State) RecordNoOp(name string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.tableLocked(name)
	st.LastRefresh = now
}

// History returns the refresh history, newest first.
func (s *State) History() []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunRecord, len(s.history))
	for i, rec := range s.history {
		out[len(s.history)-1-i] = rec
	}
	return out
}

func (s *State) tableLocked(name string) *TableState {
	st, ok := s.tables[name]
	if !ok {
		st = &TableState{}
		s.tables[name] = st
	}
	return st
}

func (s *State) appendLocked(rec RunRecord) {
	s.history = append(s.history, rec)
	if len(s.history) > s.maxHist {
		s.history = s.history[len(s.history)-s.maxHist:]
	}
}

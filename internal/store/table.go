package store

import (
	"fmt"
	"sync"
	"time"

	"slicehouse/pkg/errors"
)

// Action is the kind of row-level change recorded in a table's changelog.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// ChangeEvent is one row-level change. Seq increases monotonically per table
// and doubles as the table version at which the change happened.
type ChangeEvent struct {
	Seq    int64
	Action Action
	Row    Row
	At     time.Time
}

// Table holds rows keyed by a single key column, plus a changelog that
// change-capture streams read from. All methods are safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	name    string
	key     string
	rows    map[interface{}]Row
	order   []interface{}
	log     []ChangeEvent
	version int64
}

func newTable(name, key string) *Table {
	return &Table{
		name: name,
		key:  key,
		rows: make(map[interface{}]Row),
	}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Key returns the key column name.
func (t *Table) Key() string { return t.key }

// Version returns the sequence number of the latest change.
func (t *Table) Version() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Count returns the number of rows.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Insert adds a new row. The key column must be present and unused.
func (t *Table) Insert(row Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(row)
}

// InsertBatch adds rows in order, stopping at the first failure.
func (t *Table) InsertBatch(rows []Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, row := range rows {
		if err := t.insertLocked(row); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) insertLocked(row Row) error {
	k, ok := row[t.key]
	if !ok {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("row for table %s is missing key column %s", t.name, t.key))
	}
	if _, exists := t.rows[k]; exists {
		return errors.New(errors.ErrCodeDuplicateKey,
			fmt.Sprintf("duplicate key %v in table %s", k, t.name)).
			WithContext("table", t.name)
	}
	r := row.Clone()
	t.rows[k] = r
	t.order = append(t.order, k)
	t.appendLocked(ActionInsert, r)
	return nil
}

// Update replaces the row with the given key value.
func (t *Table) Update(keyVal interface{}, row Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.rows[keyVal]; !exists {
		return errors.New(errors.ErrCodeRowNotFound,
			fmt.Sprintf("no row with key %v in table %s", keyVal, t.name)).
			WithContext("table", t.name)
	}
	r := row.Clone()
	r[t.key] = keyVal
	t.rows[keyVal] = r
	t.appendLocked(ActionUpdate, r)
	return nil
}

// Upsert inserts the row, or updates it when the key already exists.
func (t *Table) Upsert(row Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	k, ok := row[t.key]
	if !ok {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("row for table %s is missing key column %s", t.name, t.key))
	}
	r := row.Clone()
	if _, exists := t.rows[k]; exists {
		t.rows[k] = r
		t.appendLocked(ActionUpdate, r)
		return nil
	}
	t.rows[k] = r
	t.order = append(t.order, k)
	t.appendLocked(ActionInsert, r)
	return nil
}

// Delete removes the row with the given key value.
func (t *Table) Delete(keyVal interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, exists := t.rows[keyVal]
	if !exists {
		return errors.New(errors.ErrCodeRowNotFound,
			fmt.Sprintf("no row with key %v in table %s", keyVal, t.name)).
			WithContext("table", t.name)
	}
	delete(t.rows, keyVal)
	for i, k := range t.order {
		if k == keyVal {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.appendLocked(ActionDelete, row)
	return nil
}

// Replace swaps the full table content. Old rows are logged as deletes and
// new rows as inserts, so downstream streams see a replace as non-append-only
// and fall back to full recomputation.
func (t *Table) Replace(rows []Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, k := range t.order {
		t.appendLocked(ActionDelete, t.rows[k])
	}
	t.rows = make(map[interface{}]Row, len(rows))
	t.order = t.order[:0]

	for _, row := range rows {
		k, ok := row[t.key]
		if !ok {
			return errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("row for table %s is missing key column %s", t.name, t.key))
		}
		if _, exists := t.rows[k]; exists {
			return errors.New(errors.ErrCodeDuplicateKey,
				fmt.Sprintf("duplicate key %v in table %s", k, t.name))
		}
		r := row.Clone()
		t.rows[k] = r
		t.order = append(t.order, k)
		t.appendLocked(ActionInsert, r)
	}
	return nil
}

// Get returns a copy of the row with the given key value.
func (t *Table) Get(keyVal interface{}) (Row, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[keyVal]
	if !ok {
		return nil, false
	}
	return row.Clone(), true
}

// Scan returns copies of all rows in insertion order.
func (t *Table) Scan() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Row, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.rows[k].Clone())
	}
	return out
}

// ChangesSince returns copies of all change events with Seq > since.
func (t *Table) ChangesSince(since int64) []ChangeEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	// The log is ordered by Seq; binary search would be overkill at demo scale.
	var out []ChangeEvent
	for _, ev := range t.log {
		if ev.Seq > since {
			out = append(out, ChangeEvent{Seq: ev.Seq, Action: ev.Action, Row: ev.Row.Clone(), At: ev.At})
		}
	}
	return out
}

func (t *Table) appendLocked(action Action, row Row) {
	t.version++
	t.log = append(t.log, ChangeEvent{
		Seq:    t.version,
		Action: action,
		Row:    row.Clone(),
		At:     time.Now(),
	})
}

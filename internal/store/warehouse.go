package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"slicehouse/pkg/errors"
)

// Warehouse is the embedded analytical store: a set of named tables with
// change capture. Snapshots persist row data only; changelogs and versions
// restart on restore, so streams must be re-primed after a restore.
type Warehouse struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewWarehouse creates an empty warehouse.
func NewWarehouse() *Warehouse {
	return &Warehouse{tables: make(map[string]*Table)}
}

// Create adds a new table with the given key column.
func (w *Warehouse) Create(name, key string) (*Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.tables[name]; exists {
		return nil, errors.New(errors.ErrCodeTableExists,
			fmt.Sprintf("table %s already exists", name))
	}
	t := newTable(name, key)
	w.tables[name] = t
	return t, nil
}

// Table returns the named table.
func (w *Warehouse) Table(name string) (*Table, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.tables[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeTableNotFound,
			fmt.Sprintf("table %s does not exist", name)).
			WithSuggestions("Run 'slicehouse seed' to initialize the warehouse")
	}
	return t, nil
}

// Has reports whether the named table exists.
func (w *Warehouse) Has(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.tables[name]
	return ok
}

// Names returns all table names, sorted.
func (w *Warehouse) Names() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type snapshotTable struct {
	Key  string `yaml:"key"`
	Rows []Row  `yaml:"rows"`
}

type snapshotFile struct {
	Tables map[string]snapshotTable `yaml:"tables"`
}

// Snapshot writes all tables to a YAML file, creating parent directories as
// needed.
func (w *Warehouse) Snapshot(path string) error {
	w.mu.RLock()
	snap := snapshotFile{Tables: make(map[string]snapshotTable, len(w.tables))}
	for name, t := range w.tables {
		snap.Tables[name] = snapshotTable{Key: t.Key(), Rows: t.Scan()}
	}
	w.mu.RUnlock()

	data, err := yaml.Marshal(&snap)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotFailed, "failed to marshal snapshot")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotFailed, "failed to create snapshot directory")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotFailed, "failed to write snapshot").
			WithContext("path", path)
	}
	return nil
}

// Restore loads tables from a YAML snapshot, replacing current content.
func (w *Warehouse) Restore(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from validated config
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotFailed, "failed to read snapshot").
			WithContext("path", path).
			WithSuggestions("Run 'slicehouse seed' to create the warehouse first")
	}
	var snap snapshotFile
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotFailed, "failed to parse snapshot")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.tables = make(map[string]*Table, len(snap.Tables))
	for name, st := range snap.Tables {
		t := newTable(name, st.Key)
		// The table is not shared yet, no lock needed.
		for _, row := range st.Rows {
			if err := t.insertLocked(row); err != nil {
				return errors.Wrap(err, errors.ErrCodeSnapshotFailed,
					fmt.Sprintf("bad row in snapshot table %s", name))
			}
		}
		w.tables[name] = t
	}
	return nil
}

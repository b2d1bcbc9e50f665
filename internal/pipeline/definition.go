// Package pipeline implements the declarative incremental refresh engine:
// derived tables are declared with their inputs and a freshness target
// ("lag"), and a planner/executor pair decides when and how to recompute
// them based on staleness and upstream change volume.
package pipeline

import (
	"context"
	"time"

	"slicehouse/internal/store"
)

// Layer names the conventional medallion layers.
type Layer string

const (
	LayerBronze Layer = "bronze"
	LayerSilver Layer = "silver"
	LayerGold   Layer = "gold"
)

// Mode is a refresh mode.
type Mode string

const (
	// ModeAuto lets the planner pick incremental when it is safe and cheap.
	ModeAuto Mode = "AUTO"
	// ModeIncremental prefers incremental refresh where possible.
	ModeIncremental Mode = "INCREMENTAL"
	// ModeFull always rebuilds the table from its inputs.
	ModeFull Mode = "FULL"
)

// Reader gives transforms read access to warehouse tables.
type Reader interface {
	// Scan returns all rows of the named table.
	Scan(table string) ([]store.Row, error)
	// Lookup returns the row with the given key value from the named table.
	Lookup(table string, key interface{}) (store.Row, bool)
}

// MutationKind is the kind of row change an incremental apply emits.
type MutationKind string

const (
	MutationUpsert MutationKind = "UPSERT"
	MutationDelete MutationKind = "DELETE"
)

// Mutation is one row change produced by an incremental apply.
type Mutation struct {
	Kind MutationKind
	Row  store.Row
}

// BuildFunc fully recomputes a derived table from its inputs.
type BuildFunc func(ctx context.Context, r Reader) ([]store.Row, error)

// ApplyFunc incrementally folds pending input changes into a derived table.
// Changes are keyed by input table name and only contain inserts: the planner
// falls back to a full rebuild whenever updates or deletes are pending.
type ApplyFunc func(ctx context.Context, r Reader, changes map[string][]store.ChangeEvent) ([]Mutation, error)

// Definition declares one derived table.
type Definition struct {
	Name    string
	Layer   Layer
	Inputs  []string      // Upstream table names (base or derived)
	Lag     time.Duration // Freshness target
	Mode    Mode          // Refresh mode preference
	Key     string        // Key column of the derived table
	Build   BuildFunc
	Apply   ApplyFunc // Optional; nil means full refresh only
	Comment string
}

// Incremental reports whether the definition can be refreshed incrementally.
func (d *Definition) Incremental() bool {
	return d.Apply != nil && d.Mode != ModeFull
}

// Package semantic loads and validates the semantic model: a YAML description
// of warehouse tables, dimensions and measures that analyst tooling consumes.
package semantic

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"slicehouse/internal/store"
	"slicehouse/pkg/errors"
)

//go:embed model.yaml
var defaultModel []byte

// Model is the root of a semantic model document.
type Model struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Tables      []Table `yaml:"tables"`
}

// Table describes one warehouse table to analyst tooling.
type Table struct {
	Name           string      `yaml:"name"`
	Description    string      `yaml:"description"`
	Dimensions     []Dimension `yaml:"dimensions,omitempty"`
	TimeDimensions []Dimension `yaml:"time_dimensions,omitempty"`
	Measures       []Measure   `yaml:"measures,omitempty"`
}

// Dimension is a column analysts can group or filter by.
type Dimension struct {
	Name        string   `yaml:"name"`
	Column      string   `yaml:"column"`
	Description string   `yaml:"description,omitempty"`
	Synonyms    []string `yaml:"synonyms,omitempty"`
}

// Measure is a numeric column with a default aggregation.
type Measure struct {
	Name        string `yaml:"name"`
	Column      string `yaml:"column"`
	Aggregation string `yaml:"aggregation"` // sum, avg, count, min, max
	Description string `yaml:"description,omitempty"`
}

var validAggregations = map[string]bool{
	"sum": true, "avg": true, "count": true, "min": true, "max": true,
}

// Default returns the shipped semantic model.
func Default() (*Model, error) {
	return Parse(defaultModel)
}

// Load reads a semantic model from a YAML file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot read semantic model %s", path))
	}
	return Parse(data)
}

// Parse decodes and structurally validates a semantic model document.
func Parse(data []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "semantic model is not valid YAML")
	}
	if m.Name == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "semantic model has no name")
	}
	if len(m.Tables) == 0 {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "semantic model declares no tables")
	}

	seen := map[string]bool{}
	for _, t := range m.Tables {
		if t.Name == "" {
			return nil, errors.New(errors.ErrCodeConfigInvalid, "semantic model table without a name")
		}
		if seen[t.Name] {
			return nil, errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("semantic model declares table %s twice", t.Name))
		}
		seen[t.Name] = true
		for _, meas := range t.Measures {
			if !validAggregations[meas.Aggregation] {
				return nil, errors.New(errors.ErrCodeConfigInvalid,
					fmt.Sprintf("measure %s.%s has unknown aggregation %q",
						t.Name, meas.Name, meas.Aggregation)).
					WithSuggestions("Use one of: sum, avg, count, min, max")
			}
		}
	}
	return &m, nil
}

// Issue is one problem found when checking a model against a warehouse.
type Issue struct {
	Table   string
	Subject string // Dimension or measure name; empty for table-level issues
	Problem string
}

func (i Issue) String() string {
	if i.Subject == "" {
		return fmt.Sprintf("%s: %s", i.Table, i.Problem)
	}
	return fmt.Sprintf("%s.%s: %s", i.Table, i.Subject, i.Problem)
}

// Validate checks the model against live warehouse contents: every declared
// table must exist and every referenced column must appear in the table's
// rows. Empty tables only get table-level checks.
func Validate(m *Model, wh *store.Warehouse) []Issue {
	var issues []Issue
	for _, t := range m.Tables {
		if !wh.Has(t.Name) {
			issues = append(issues, Issue{Table: t.Name, Problem: "table does not exist"})
			continue
		}
		tbl, err := wh.Table(t.Name)
		if err != nil {
			issues = append(issues, Issue{Table: t.Name, Problem: err.Error()})
			continue
		}
		rows := tbl.Scan()
		if len(rows) == 0 {
			continue
		}
		sample := rows[0]

		check := func(subject, column string) {
			if column == "" {
				issues = append(issues, Issue{Table: t.Name, Subject: subject, Problem: "no column mapped"})
				return
			}
			if _, ok := sample[column]; !ok {
				issues = append(issues, Issue{Table: t.Name, Subject: subject,
					Problem: fmt.Sprintf("column %q not present in table", column)})
			}
		}
		for _, d := range t.Dimensions {
			check(d.Name, d.Column)
		}
		for _, d := range t.TimeDimensions {
			check(d.Name, d.Column)
		}
		for _, meas := range t.Measures {
			check(meas.Name, meas.Column)
		}
	}
	return issues
}

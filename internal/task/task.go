// Package task runs scheduled procedures against the warehouse. Tasks are
// scheduled either on an interval ("EVERY 24h") or chained after another task
// ("AFTER daily_summary"), the way warehouse task graphs chain merges behind
// the summaries they read.
package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"slicehouse/internal/store"
	"slicehouse/pkg/errors"
)

// Func is the body of a task. It returns the number of rows it touched.
type Func func(ctx context.Context, wh *store.Warehouse, now time.Time) (int, error)

// Task is one schedulable procedure.
type Task struct {
	Name     string
	Schedule string // "EVERY <duration>" or "AFTER <task>"
	Run      Func
	Comment  string
}

type schedule struct {
	every time.Duration
	after string
}

func (s schedule) chained() bool { return s.after != "" }

func parseSchedule(raw string) (schedule, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return schedule{}, errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("schedule %q must be EVERY <duration> or AFTER <task>", raw))
	}
	switch strings.ToUpper(fields[0]) {
	case "EVERY":
		d, err := time.ParseDuration(fields[1])
		if err != nil || d <= 0 {
			return schedule{}, errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("schedule %q has an invalid interval", raw))
		}
		return schedule{every: d}, nil
	case "AFTER":
		return schedule{after: fields[1]}, nil
	default:
		return schedule{}, errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("schedule %q must start with EVERY or AFTER", raw))
	}
}

// RunRecord is the outcome of one task execution.
type RunRecord struct {
	Task     string
	At       time.Time
	Duration time.Duration
	Rows     int
	Err      string
}

// Failed reports whether the run errored.
func (r RunRecord) Failed() bool { return r.Err != "" }

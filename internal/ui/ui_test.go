package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"slicehouse/internal/pipeline"
	"slicehouse/internal/quality"
	"slicehouse/internal/task"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "never", FormatDuration(-1))
	assert.Equal(t, "<1s", FormatDuration(200*time.Millisecond))
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "5m03s", FormatDuration(5*time.Minute+3*time.Second))
	assert.Equal(t, "2h15m", FormatDuration(2*time.Hour+15*time.Minute))
}

func TestStatusTable(t *testing.T) {
	var buf bytes.Buffer
	StatusTable(&buf, []pipeline.TableStatus{
		{Name: "daily_sales", Layer: pipeline.LayerGold, Lag: 5 * time.Minute,
			EffectiveLag: 5 * time.Minute, Staleness: 90 * time.Second,
			Pending: 3, LastMode: pipeline.ModeFull, LastRows: 120},
	})
	out := buf.String()
	assert.Contains(t, out, "daily_sales")
	assert.Contains(t, out, "gold")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "120")
}

func TestTaskTables(t *testing.T) {
	var buf bytes.Buffer
	TaskTable(&buf, []task.Task{
		{Name: "daily_summary", Schedule: "EVERY 24h", Comment: "merge summaries"},
	})
	assert.Contains(t, buf.String(), "EVERY 24h")

	buf.Reset()
	TaskHistoryTable(&buf, []task.RunRecord{
		{Task: "daily_summary", At: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), Rows: 7},
		{Task: "rfm_scoring", At: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), Err: "boom"},
	})
	out := buf.String()
	assert.Contains(t, out, "daily_summary")
	assert.Contains(t, out, "boom")
}

func TestQualityTable(t *testing.T) {
	var buf bytes.Buffer
	QualityTable(&buf, []quality.Result{
		{Name: "unique_emails", Table: "customers"},
		{Name: "rating_range", Table: "reviews", Total: 2, Violations: []string{"review 9: rating 8 out of range"}},
	})
	out := buf.String()
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "rating 8 out of range")
}

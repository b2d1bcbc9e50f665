package ui

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"slicehouse/internal/pipeline"
	"slicehouse/internal/quality"
	"slicehouse/internal/task"
)

func newTable(w io.Writer, headers []string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(headers)
	t.SetBorder(false)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

// RenderTable renders a generic report table.
func RenderTable(w io.Writer, headers []string, rows [][]string) {
	t := newTable(w, headers)
	t.AppendBulk(rows)
	t.Render()
}

// StatusTable renders pipeline table statuses.
func StatusTable(w io.Writer, statuses []pipeline.TableStatus) {
	t := newTable(w, []string{"Table", "Layer", "Lag", "Effective", "Staleness", "Pending", "Mode", "Rows", "Last Error"})
	for _, s := range statuses {
		staleness := FormatDuration(s.Staleness)
		if s.Staleness >= 0 && s.Staleness > s.EffectiveLag {
			staleness = color.YellowString(staleness)
		}
		lastErr := s.LastError
		if lastErr != "" {
			lastErr = color.RedString(lastErr)
		}
		t.Append([]string{
			s.Name,
			string(s.Layer),
			FormatDuration(s.Lag),
			FormatDuration(s.EffectiveLag),
			staleness,
			strconv.Itoa(s.Pending),
			string(s.LastMode),
			strconv.Itoa(s.LastRows),
			lastErr,
		})
	}
	t.Render()
}

// HistoryTable renders refresh history records.
func HistoryTable(w io.Writer, records []pipeline.RunRecord) {
	t := newTable(w, []string{"Started", "Table", "Mode", "Rows", "Duration", "Error"})
	for _, r := range records {
		errText := r.Err
		if errText != "" {
			errText = color.RedString(errText)
		}
		t.Append([]string{
			r.Started.Format("2006-01-02 15:04:05"),
			r.Table,
			string(r.Mode),
			strconv.Itoa(r.Rows),
			FormatDuration(r.Duration),
			errText,
		})
	}
	t.Render()
}

// TaskTable renders scheduled tasks with their schedules.
func TaskTable(w io.Writer, tasks []task.Task) {
	t := newTable(w, []string{"Task", "Schedule", "Comment"})
	for _, tk := range tasks {
		t.Append([]string{tk.Name, tk.Schedule, tk.Comment})
	}
	t.Render()
}

// TaskHistoryTable renders task run records.
func TaskHistoryTable(w io.Writer, records []task.RunRecord) {
	t := newTable(w, []string{"At", "Task", "Rows", "Duration", "Result"})
	for _, r := range records {
		result := color.GreenString("ok")
		if r.Failed() {
			result = color.RedString(r.Err)
		}
		t.Append([]string{
			r.At.Format("2006-01-02 15:04:05"),
			r.Task,
			strconv.Itoa(r.Rows),
			FormatDuration(r.Duration),
			result,
		})
	}
	t.Render()
}

// QualityTable renders data quality results.
func QualityTable(w io.Writer, results []quality.Result) {
	t := newTable(w, []string{"Check", "Table", "Status", "Violations"})
	for _, r := range results {
		status := color.GreenString("PASS")
		detail := ""
		switch {
		case r.Err != "":
			status = color.RedString("ERROR")
			detail = r.Err
		case r.Total > 0:
			status = color.RedString("FAIL")
			detail = fmt.Sprintf("%d", r.Total)
			if len(r.Violations) > 0 {
				detail += ": " + r.Violations[0]
			}
		}
		t.Append([]string{r.Name, r.Table, status, detail})
	}
	t.Render()
}

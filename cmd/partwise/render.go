package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/guillermoBallester/partwise/internal/core/domain"
	"github.com/guillermoBallester/partwise/internal/core/service"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// writeResult prints an analysis as a summary followed by the candidate,
// issue and warning tables that have rows.
func writeResult(w io.Writer, r *domain.AnalysisResult) {
	rec := r.Recommendation

	summary := newTable(w, r.Table.Ref().String())
	summary.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Colors: text.Colors{text.Bold}}})
	if r.TaskID > 0 {
		summary.AppendRow(table.Row{"Task", r.TaskID})
	}
	summary.AppendRows([]table.Row{
		{"Kind", r.Table.Kind},
		{"Rows", rowCount(r.Table.RowCount)},
		{"Size", humanize.IBytes(uint64(r.Table.SizeMB * 1024 * 1024))},
		{"Stereotype", stereotype(r.Stereotype)},
	})
	summary.AppendSeparator()
	summary.AppendRows([]table.Row{
		{"Scheme", scheme(rec)},
		{"Key", orDash(rec.Key)},
		{"Rationale", rec.Rationale},
		{"Source", rec.Source},
	})
	if rec.Conversion != nil {
		summary.AppendRow(table.Row{"Conversion", *rec.Conversion})
	}
	summary.AppendSeparator()
	summary.AppendRows([]table.Row{
		{"Complexity", fmt.Sprintf("%d / 10", r.Complexity)},
		{"Downtime", fmt.Sprintf("~%s min (%s)", humanize.Ftoa(r.DowntimeMinutes), r.Method)},
		{"Parallel hint", r.ParallelHint},
		{"Readiness", r.Readiness},
		{"Analyzed", fmt.Sprintf("%s in %s", r.AnalyzedAt.Format(time.RFC3339), time.Duration(r.DurationMS)*time.Millisecond)},
	})
	summary.Render()

	if len(r.Candidates.Profiles) > 0 {
		t := newTable(w, "Candidate columns")
		t.AppendHeader(table.Row{"Column", "Type", "Min", "Max", "Days", "Nulls %", "Time", "Usage", ""})
		for _, p := range r.Candidates.Profiles {
			marker := ""
			if r.Selected != nil && r.Selected.Column == p.Column {
				marker = "selected"
			}
			t.AppendRow(table.Row{
				p.Column, p.DataType, day(p.Min), day(p.Max),
				humanize.Comma(p.RangeDays), humanize.FtoaWithDigits(p.NullPercent, 2),
				yesNo(p.HasTime), p.UsageScore, marker,
			})
		}
		t.Render()
	}

	if len(r.Candidates.NonStandard) > 0 {
		t := newTable(w, "Non-standard date columns")
		t.AppendHeader(table.Row{"Column", "Type", "Format", "Expression"})
		for _, c := range r.Candidates.NonStandard {
			t.AppendRow(table.Row{c.Column, c.DataType, c.Format, c.Expression})
		}
		t.Render()
	}

	if len(r.BlockingIssues) > 0 {
		t := newTable(w, "Blocking issues")
		t.AppendHeader(table.Row{"Severity", "Issue", "Remedy"})
		for _, issue := range r.BlockingIssues {
			t.AppendRow(table.Row{strings.ToUpper(string(issue.Severity)), issue.Description, issue.Remedy})
		}
		t.Render()
	}

	if len(r.Warnings) > 0 {
		t := newTable(w, "Warnings")
		t.AppendHeader(table.Row{"Code", "Column", "Message"})
		for _, warn := range r.Warnings {
			t.AppendRow(table.Row{warn.Code, orDash(warn.Column), warn.Message})
		}
		t.Render()
	}
}

// writeTasks prints one row per task; times are relative to now.
func writeTasks(w io.Writer, tasks []domain.Task, now time.Time) {
	t := newTable(w, "")
	t.AppendHeader(table.Row{"ID", "Table", "Status", "Readiness", "Updated", "Error"})
	for _, task := range tasks {
		t.AppendRow(table.Row{
			task.ID,
			task.Ref().String(),
			task.Status,
			orDash(string(task.Readiness)),
			humanize.RelTime(task.UpdatedAt, now, "ago", "from now"),
			task.ErrorMessage,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d tasks", len(tasks))})
	t.Render()
}

func writeReport(w io.Writer, r service.BatchReport, elapsed time.Duration) {
	t := newTable(w, "Batch")
	t.AppendRows([]table.Row{
		{"Analyzed", r.Analyzed},
		{"Ready", r.Ready},
		{"Blocked", r.Blocked},
		{"Failed", r.Failed},
		{"Skipped", r.Skipped},
		{"Elapsed", elapsed.Round(time.Millisecond)},
	})
	t.Render()
}

func rowCount(n int64) string {
	if n < 0 {
		return "unknown (no statistics)"
	}
	return humanize.Comma(n)
}

func scheme(rec domain.Recommendation) string {
	switch {
	case !rec.Partitioned():
		return string(domain.SchemeNone)
	case rec.Scheme == domain.SchemeHash:
		return string(rec.Scheme) + " x " + strconv.Itoa(rec.PartitionCount)
	case rec.Granularity != "" && rec.Granularity != domain.GranularityNone:
		return string(rec.Scheme) + " " + string(rec.Granularity)
	default:
		return string(rec.Scheme)
	}
}

func stereotype(m domain.StereotypeMatch) string {
	if !m.Matched() {
		return "-"
	}
	if m.Column == "" {
		return string(m.Archetype)
	}
	return fmt.Sprintf("%s (%s)", m.Archetype, m.Column)
}

func day(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

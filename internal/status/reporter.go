// Package status aggregates read-only operational state for the
// pipeline: queue counts, directory totals and a sample of failures.
package status

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/openlocal/bizdir-ingest/internal/directory"
	"github.com/openlocal/bizdir-ingest/internal/queue"
)

// Report is one point-in-time snapshot. Producing it mutates nothing.
type Report struct {
	Queue      map[queue.Status]int64
	Businesses int64
	Reviews    int64
	Failed     []queue.WorkItem
}

// Reporter reads queue and directory state.
type Reporter struct {
	queue     queue.Store
	directory directory.Store
}

// New constructs a Reporter.
func New(q queue.Store, dir directory.Store) *Reporter {
	return &Reporter{queue: q, directory: dir}
}

// Snapshot collects the current report, listing at most failedLimit
// failed work items.
func (r *Reporter) Snapshot(ctx context.Context, failedLimit int) (Report, error) {
	counts, err := r.queue.CountByStatus(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("count queue items: %w", err)
	}

	businesses, reviews, err := r.directory.Counts(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("count directory rows: %w", err)
	}

	failed, err := r.queue.ListFailed(ctx, failedLimit)
	if err != nil {
		return Report{}, fmt.Errorf("list failed items: %w", err)
	}

	return Report{
		Queue:      counts,
		Businesses: businesses,
		Reviews:    reviews,
		Failed:     failed,
	}, nil
}

// Render writes the report as tables.
func Render(w io.Writer, rep Report) {
	qt := table.NewWriter()
	qt.SetOutputMirror(w)
	qt.SetStyle(table.StyleLight)
	qt.AppendHeader(table.Row{"Queue Status", "Count"})
	for _, s := range []queue.Status{
		queue.StatusPending,
		queue.StatusInProgress,
		queue.StatusCompleted,
		queue.StatusFailed,
	} {
		qt.AppendRow(table.Row{string(s), rep.Queue[s]})
	}
	qt.Render()

	dt := table.NewWriter()
	dt.SetOutputMirror(w)
	dt.SetStyle(table.StyleLight)
	dt.AppendHeader(table.Row{"Directory", "Count"})
	dt.AppendRow(table.Row{"businesses", rep.Businesses})
	dt.AppendRow(table.Row{"reviews", rep.Reviews})
	dt.Render()

	if len(rep.Failed) == 0 {
		return
	}
	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.SetStyle(table.StyleLight)
	ft.AppendHeader(table.Row{"Failed Item", "Error"})
	for _, item := range rep.Failed {
		msg := ""
		if item.ErrorMessage != nil {
			msg = *item.ErrorMessage
		}
		ft.AppendRow(table.Row{fmt.Sprintf("%s/%s", item.Locality, item.Category), msg})
	}
	ft.Render()
}

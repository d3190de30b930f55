// Package report collects per-item outcomes of a worker run into a
// structured batch report, so tests and operators can assert on what
// happened instead of reading side-effect counters out of logs.
package report

import (
	"fmt"
	"strings"
	"sync"
)

// Outcome classifies what happened to one item in a batch.
type Outcome string

// Per-item outcomes. Abandoned is terminal for the run but not for the
// item: an abandoned enrichment task is re-derived by a later run.
const (
	OutcomeSuccess   Outcome = "success"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeError     Outcome = "error"
	OutcomeAbandoned Outcome = "abandoned"
)

// Item is one entry in a batch report.
type Item struct {
	Key     string
	Outcome Outcome
	Detail  string
}

// Batch accumulates item outcomes. Safe for concurrent use.
type Batch struct {
	mu    sync.Mutex
	items []Item
}

// Add records an outcome for a keyed item.
func (b *Batch) Add(key string, outcome Outcome, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, Item{Key: key, Outcome: outcome, Detail: detail})
}

// Merge appends all items of other into b.
func (b *Batch) Merge(other *Batch) {
	if other == nil {
		return
	}
	other.mu.Lock()
	items := append([]Item(nil), other.items...)
	other.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, items...)
}

// Items returns a copy of the recorded items.
func (b *Batch) Items() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Item(nil), b.items...)
}

// Count returns how many items carry the given outcome.
func (b *Batch) Count(outcome Outcome) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, item := range b.items {
		if item.Outcome == outcome {
			n++
		}
	}
	return n
}

// Len returns the total number of recorded items.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Summary renders a one-line outcome tally.
func (b *Batch) Summary() string {
	parts := []string{
		fmt.Sprintf("success=%d", b.Count(OutcomeSuccess)),
		fmt.Sprintf("skipped=%d", b.Count(OutcomeSkipped)),
		fmt.Sprintf("error=%d", b.Count(OutcomeError)),
	}
	if n := b.Count(OutcomeAbandoned); n > 0 {
		parts = append(parts, fmt.Sprintf("abandoned=%d", n))
	}
	return strings.Join(parts, " ")
}

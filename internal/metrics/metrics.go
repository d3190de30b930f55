// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	workItemsTotal     *prometheus.CounterVec
	listingsTotal      *prometheus.CounterVec
	reviewTasksTotal   *prometheus.CounterVec
	reviewsStoredTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		workItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdir_work_items_total",
				Help: "Total work items processed, labeled by terminal status.",
			},
			[]string{"status"},
		)

		listingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdir_listings_total",
				Help: "Total listings handled by discovery, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		reviewTasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdir_review_tasks_total",
				Help: "Total review tasks, labeled by state.",
			},
			[]string{"state"},
		)

		reviewsStoredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bizdir_reviews_stored_total",
				Help: "Total review rows written to the directory.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveWorkItem increments the work item counter for a terminal status.
func ObserveWorkItem(status string) {
	Init()
	workItemsTotal.WithLabelValues(status).Inc()
}

// ObserveListing increments the listing counter for an outcome.
func ObserveListing(outcome string) {
	Init()
	listingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveReviewTask increments the review task counter for a state
// (submitted, rejected, ready, abandoned, error).
func ObserveReviewTask(state string) {
	Init()
	reviewTasksTotal.WithLabelValues(state).Inc()
}

// ObserveReviewsStored adds written review rows to the total.
func ObserveReviewsStored(n int) {
	Init()
	if n > 0 {
		reviewsStoredTotal.Add(float64(n))
	}
}

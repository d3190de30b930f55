// Package enrichment implements the review enrichment worker.
//
// The provider's review API is asynchronous: tasks are submitted in a
// batch, then polled for readiness. Task state lives only in this
// process; a run that exhausts its poll budget abandons its leftover
// tasks and a later run re-derives and re-submits them, because the
// eligible businesses still lack stored reviews.
package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openlocal/bizdir-ingest/internal/directory"
	"github.com/openlocal/bizdir-ingest/internal/metrics"
	"github.com/openlocal/bizdir-ingest/internal/provider"
	"github.com/openlocal/bizdir-ingest/internal/report"
)

// TaskAPI is the provider surface the worker consumes.
type TaskAPI interface {
	SubmitReviewTasks(ctx context.Context, subs []provider.TaskSubmission) ([]provider.TaskAck, error)
	ReadyTasks(ctx context.Context) ([]string, error)
	TaskReviews(ctx context.Context, taskID string, limit int) ([]provider.ReviewItem, error)
}

// Config is the bounded retry policy for the poll loop plus batch
// limits. The loop runs at most MaxAttempts polls, one every
// PollInterval, so a run terminates within MaxAttempts x PollInterval
// even if nothing ever becomes ready.
type Config struct {
	BatchSize    int
	ReviewLimit  int
	PollInterval time.Duration
	MaxAttempts  int
}

// Worker backfills reviews for businesses that report reviews but own
// none.
type Worker struct {
	directory directory.Store
	tasks     TaskAPI
	cfg       Config
	logger    *zap.Logger
}

// pendingTask is the ephemeral mapping from a provider task id to the
// business it enriches. Never persisted.
type pendingTask struct {
	businessID string
	name       string
}

// New constructs a Worker.
func New(dir directory.Store, tasks TaskAPI, cfg Config, logger *zap.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.ReviewLimit <= 0 {
		cfg.ReviewLimit = 30
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &Worker{
		directory: dir,
		tasks:     tasks,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunOnce selects one batch of enrichment candidates, submits their
// review tasks and polls until done, out of budget or canceled.
func (w *Worker) RunOnce(ctx context.Context) (*report.Batch, error) {
	logger := w.logger.With(zap.String("run_id", uuid.NewString()))
	batch := &report.Batch{}

	candidates, err := w.directory.EnrichmentCandidates(ctx, w.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("select enrichment candidates: %w", err)
	}
	if len(candidates) == 0 {
		logger.Info("no enrichment candidates, nothing to do")
		return batch, nil
	}

	pending, err := w.submit(ctx, logger, candidates, batch)
	if err != nil {
		return nil, err
	}

	w.poll(ctx, logger, pending, batch)

	// Anything still pending is abandoned for this run, not failed: a
	// later run re-selects the same businesses and submits fresh tasks.
	for id, task := range pending {
		logger.Warn("task abandoned at poll budget",
			zap.String("task_id", id),
			zap.String("business", task.name),
		)
		metrics.ObserveReviewTask("abandoned")
		batch.Add(task.name, report.OutcomeAbandoned, "not ready within poll budget")
	}

	logger.Info("enrichment run finished", zap.String("summary", batch.Summary()))
	return batch, nil
}

// submit sends one batched task request and records accepted ids.
func (w *Worker) submit(
	ctx context.Context,
	logger *zap.Logger,
	candidates []directory.Candidate,
	batch *report.Batch,
) (map[string]pendingTask, error) {
	subs := make([]provider.TaskSubmission, 0, len(candidates))
	for _, c := range candidates {
		subs = append(subs, provider.TaskSubmission{PlaceID: c.SourceID, Limit: w.cfg.ReviewLimit})
	}

	acks, err := w.tasks.SubmitReviewTasks(ctx, subs)
	if err != nil {
		return nil, fmt.Errorf("submit review tasks: %w", err)
	}

	pending := make(map[string]pendingTask, len(acks))
	for i, ack := range acks {
		c := candidates[i]
		if ack.ID == "" {
			// Rejected at submission time: dropped from tracking now.
			logger.Warn("task rejected at submission", zap.String("business", c.Name))
			metrics.ObserveReviewTask("rejected")
			batch.Add(c.Name, report.OutcomeError, "task rejected at submission")
			continue
		}
		metrics.ObserveReviewTask("submitted")
		pending[ack.ID] = pendingTask{businessID: c.SourceID, name: c.Name}
	}
	logger.Info("review tasks submitted",
		zap.Int("accepted", len(pending)),
		zap.Int("rejected", len(acks)-len(pending)),
	)
	return pending, nil
}

// poll drains the pending set within the attempt budget. Entries are
// removed as they are processed; the map holds the leftovers.
func (w *Worker) poll(ctx context.Context, logger *zap.Logger, pending map[string]pendingTask, batch *report.Batch) {
	for attempt := 1; attempt <= w.cfg.MaxAttempts && len(pending) > 0; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}

		ready, err := w.tasks.ReadyTasks(ctx)
		if err != nil {
			logger.Warn("readiness poll failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		for _, id := range ready {
			task, ours := pending[id]
			if !ours {
				continue
			}
			delete(pending, id)
			metrics.ObserveReviewTask("ready")
			w.storeTaskReviews(ctx, logger, id, task, batch)
		}
	}
}

// storeTaskReviews fetches one ready task and appends its reviews.
// Failures here are isolated: other tasks in the run continue.
func (w *Worker) storeTaskReviews(
	ctx context.Context,
	logger *zap.Logger,
	taskID string,
	task pendingTask,
	batch *report.Batch,
) {
	items, err := w.tasks.TaskReviews(ctx, taskID, w.cfg.ReviewLimit)
	if err != nil {
		logger.Warn("task result fetch failed",
			zap.String("task_id", taskID),
			zap.String("business", task.name),
			zap.Error(err),
		)
		metrics.ObserveReviewTask("error")
		batch.Add(task.name, report.OutcomeError, err.Error())
		return
	}

	stored := 0
	for _, item := range items {
		if item.Text == "" {
			continue
		}
		inserted, err := w.directory.InsertReview(ctx, reviewFromItem(task.businessID, item))
		if err != nil {
			logger.Warn("review insert failed",
				zap.String("review_id", item.ID),
				zap.String("business", task.name),
				zap.Error(err),
			)
			continue
		}
		if inserted {
			stored++
		}
	}

	metrics.ObserveReviewsStored(stored)
	logger.Info("task reviews stored",
		zap.String("business", task.name),
		zap.Int("received", len(items)),
		zap.Int("stored", stored),
	)
	batch.Add(task.name, report.OutcomeSuccess, fmt.Sprintf("stored %d reviews", stored))
}

// reviewFromItem maps a provider review onto a directory row.
func reviewFromItem(businessID string, item provider.ReviewItem) directory.Review {
	return directory.Review{
		ExternalID: item.ID,
		BusinessID: businessID,
		Reviewer:   item.Reviewer,
		Rating:     item.Rating.Value,
		Text:       item.Text,
		Highlights: strings.Join(item.Highlights, "; "),
		OwnerReply: item.OwnerReply,
		Source:     "provider",
	}
}

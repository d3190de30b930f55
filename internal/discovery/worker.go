// Package discovery implements the listing discovery worker.
//
// Each invocation claims one work item from the queue, issues one
// synchronous search against the provider and upserts the resulting
// listings. A provider failure fails the work item; a failure writing
// one listing is absorbed so the rest of the batch keeps moving.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openlocal/bizdir-ingest/internal/directory"
	"github.com/openlocal/bizdir-ingest/internal/metrics"
	"github.com/openlocal/bizdir-ingest/internal/provider"
	"github.com/openlocal/bizdir-ingest/internal/queue"
	"github.com/openlocal/bizdir-ingest/internal/report"
)

// SearchAPI is the provider surface the worker consumes.
type SearchAPI interface {
	SearchListings(ctx context.Context, req provider.SearchRequest) ([]provider.Listing, error)
}

// Config controls discovery behavior.
type Config struct {
	// MinRating is the fixed minimum-rating filter applied to every
	// search request.
	MinRating float64
	// MaxResults caps the fan-out per work item.
	MaxResults int
}

// Worker claims work items and turns search results into directory rows.
type Worker struct {
	queue     queue.Store
	directory directory.Store
	search    SearchAPI
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(q queue.Store, dir directory.Store, search SearchAPI, cfg Config, logger *zap.Logger) *Worker {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	return &Worker{
		queue:     q,
		directory: dir,
		search:    search,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunOnce claims and processes exactly one work item. An empty queue
// is a clean no-op: the returned batch is empty and the error nil.
func (w *Worker) RunOnce(ctx context.Context) (*report.Batch, error) {
	logger := w.logger.With(zap.String("run_id", uuid.NewString()))

	item, err := w.queue.ClaimNext(ctx)
	if err != nil {
		if errors.Is(err, queue.ErrEmpty) {
			logger.Info("queue is empty, nothing to discover")
			return &report.Batch{}, nil
		}
		return nil, fmt.Errorf("claim next work item: %w", err)
	}

	return w.processItem(ctx, logger, item), nil
}

// RunAll drains the queue. Claims are issued sequentially; the
// outbound search calls run concurrently behind a counting admission
// gate so at most `concurrency` requests are in flight at once.
func (w *Worker) RunAll(ctx context.Context, concurrency int) (*report.Batch, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	logger := w.logger.With(zap.String("run_id", uuid.NewString()))

	combined := &report.Batch{}
	gate := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for {
		item, err := w.queue.ClaimNext(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				break
			}
			wg.Wait()
			return combined, fmt.Errorf("claim next work item: %w", err)
		}

		select {
		case gate <- struct{}{}:
		case <-ctx.Done():
			// The claimed item stays in_progress and is surfaced by
			// the status report.
			wg.Wait()
			return combined, ctx.Err()
		}

		wg.Add(1)
		go func(item queue.WorkItem) {
			defer wg.Done()
			defer func() { <-gate }()
			combined.Merge(w.processItem(ctx, logger, item))
		}(item)
	}

	wg.Wait()
	logger.Info("discovery drain finished", zap.String("summary", combined.Summary()))
	return combined, nil
}

// processItem runs one work item end to end and owns its terminal
// queue transition.
func (w *Worker) processItem(ctx context.Context, logger *zap.Logger, item queue.WorkItem) *report.Batch {
	batch := &report.Batch{}
	itemKey := fmt.Sprintf("%s/%s", item.Locality, item.Category)
	logger = logger.With(zap.String("work_item", itemKey))

	listings, err := w.search.SearchListings(ctx, provider.SearchRequest{
		Categories: []string{item.Category},
		Filters: []provider.Filter{
			{Field: "rating.value", Op: ">=", Value: w.cfg.MinRating},
			{Field: "address_info.locality", Op: "=", Value: item.Locality},
		},
		Limit: w.cfg.MaxResults,
	})
	if err != nil {
		// Provider failure is terminal for the item and writes no
		// rows. The error text becomes queue state, not a fault.
		logger.Error("listing search failed", zap.Error(err))
		if failErr := w.queue.Fail(ctx, item.ID, err.Error()); failErr != nil {
			logger.Error("fail transition failed", zap.Error(failErr))
		}
		metrics.ObserveWorkItem(string(queue.StatusFailed))
		batch.Add(itemKey, report.OutcomeError, err.Error())
		return batch
	}

	for _, listing := range listings {
		w.upsertListing(ctx, logger, item, listing, batch)
	}

	if err := w.queue.Complete(ctx, item.ID); err != nil {
		// The item stays in_progress; do not count it as completed.
		logger.Error("complete transition failed", zap.Error(err))
		batch.Add(itemKey, report.OutcomeError, err.Error())
		return batch
	}
	metrics.ObserveWorkItem(string(queue.StatusCompleted))
	logger.Info("work item completed",
		zap.Int("listings", len(listings)),
		zap.String("summary", batch.Summary()),
	)
	return batch
}

// upsertListing writes one listing, absorbing its errors so the rest
// of the batch continues.
func (w *Worker) upsertListing(
	ctx context.Context,
	logger *zap.Logger,
	item queue.WorkItem,
	listing provider.Listing,
	batch *report.Batch,
) {
	key, err := directory.DedupeKey(listing.PlaceID, listing.URL)
	if err != nil {
		logger.Warn("skipping listing without identity", zap.String("title", listing.Title), zap.Error(err))
		metrics.ObserveListing(string(report.OutcomeSkipped))
		batch.Add(listing.Title, report.OutcomeSkipped, err.Error())
		return
	}

	if err := w.directory.UpsertBusiness(ctx, businessFromListing(item, listing, key)); err != nil {
		logger.Warn("listing upsert failed",
			zap.String("dedupe_key", key),
			zap.String("title", listing.Title),
			zap.Error(err),
		)
		metrics.ObserveListing(string(report.OutcomeError))
		batch.Add(key, report.OutcomeError, err.Error())
		return
	}

	metrics.ObserveListing(string(report.OutcomeSuccess))
	batch.Add(key, report.OutcomeSuccess, "")
}

// businessFromListing maps a provider listing onto a directory row.
// The work item's locality fills gaps the provider leaves in the
// address hierarchy.
func businessFromListing(item queue.WorkItem, listing provider.Listing, key string) directory.Business {
	suburb := listing.AddressInfo.Suburb
	if suburb == "" {
		suburb = item.Locality
	}
	return directory.Business{
		SourceID:            key,
		Name:                listing.Title,
		Slug:                directory.Slugify(listing.Title),
		Category:            item.Category,
		Suburb:              suburb,
		City:                listing.AddressInfo.City,
		Region:              listing.AddressInfo.Region,
		Address:             listing.Address,
		Phone:               listing.Phone,
		Website:             listing.URL,
		RatingAvg:           listing.Rating.Value,
		RatingCount:         listing.Rating.VotesCount,
		ReportedReviewCount: listing.ReviewsCount,
		TrustScore:          directory.TrustScore(listing.Rating.Value),
		ClaimStatus:         directory.ClaimUnclaimed,
	}
}

package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openlocal/bizdir-ingest/internal/config"
	"github.com/openlocal/bizdir-ingest/internal/directory"
	"github.com/openlocal/bizdir-ingest/internal/provider"
	"github.com/openlocal/bizdir-ingest/internal/queue"
)

type fakeQueue struct {
	enqueued [][2]string
	retried  int64
	counts   map[queue.Status]int64
	failed   []queue.WorkItem
}

func (q *fakeQueue) Enqueue(_ context.Context, locality, category string) error {
	q.enqueued = append(q.enqueued, [2]string{locality, category})
	return nil
}

func (q *fakeQueue) ClaimNext(context.Context) (queue.WorkItem, error) {
	return queue.WorkItem{}, queue.ErrEmpty
}

func (q *fakeQueue) Complete(context.Context, int64) error     { return nil }
func (q *fakeQueue) Fail(context.Context, int64, string) error { return nil }

func (q *fakeQueue) Retry(context.Context) (int64, error) { return q.retried, nil }

func (q *fakeQueue) CountByStatus(context.Context) (map[queue.Status]int64, error) {
	return q.counts, nil
}

func (q *fakeQueue) ListFailed(context.Context, int) ([]queue.WorkItem, error) {
	return q.failed, nil
}

type fakeDirectory struct {
	updates map[string]directory.ListingUpdate
}

func (d *fakeDirectory) UpsertBusiness(context.Context, directory.Business) error { return nil }

func (d *fakeDirectory) UpdateListing(_ context.Context, sourceID string, update directory.ListingUpdate) error {
	if d.updates == nil {
		d.updates = make(map[string]directory.ListingUpdate)
	}
	d.updates[sourceID] = update
	return nil
}

func (d *fakeDirectory) EnrichmentCandidates(context.Context, int) ([]directory.Candidate, error) {
	return nil, nil
}

func (d *fakeDirectory) InsertReview(context.Context, directory.Review) (bool, error) {
	return false, nil
}

func (d *fakeDirectory) Counts(context.Context) (int64, int64, error) { return 7, 21, nil }

type fakeApp struct {
	queue  *fakeQueue
	dir    fakeDirectory
	closed bool
}

func (a *fakeApp) Close()              { a.closed = true }
func (a *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

func (a *fakeApp) Config() config.Config {
	return config.Config{
		Discovery:  config.DiscoveryConfig{MinRating: 4, MaxResults: 20, Concurrency: 2},
		Enrichment: config.EnrichmentConfig{BatchSize: 10, ReviewLimit: 30, PollIntervalSeconds: 1, MaxPollAttempts: 1},
		Status:     config.StatusConfig{FailedSample: 10},
	}
}

func (a *fakeApp) Queue() queue.Store         { return a.queue }
func (a *fakeApp) Directory() directory.Store { return &a.dir }

func (a *fakeApp) Provider() *provider.Client {
	return provider.New(config.ProviderConfig{BaseURL: "http://127.0.0.1:0", Login: "u", Password: "p", TimeoutSeconds: 1}, zap.NewNop())
}

// runCommand executes the CLI against a fake app and captures output.
func runCommand(t *testing.T, fake *fakeApp, args ...string) string {
	t.Helper()

	orig := newApp
	newApp = func(context.Context) (App, error) { return fake, nil }
	t.Cleanup(func() { newApp = orig })

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	require.NoError(t, root.Execute())
	return out.String()
}

func TestStatusCommandRendersReport(t *testing.T) {
	fake := &fakeApp{queue: &fakeQueue{
		counts: map[queue.Status]int64{queue.StatusPending: 2, queue.StatusFailed: 1},
	}}

	out := runCommand(t, fake, "status")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "businesses")
	assert.True(t, fake.closed, "app must be closed after the command")
}

func TestQueueSeedEnqueuesCrossProduct(t *testing.T) {
	fake := &fakeApp{queue: &fakeQueue{}}

	out := runCommand(t, fake,
		"queue", "seed",
		"--locality", "Belmont", "--locality", "Bayswater",
		"--category", "Plumber",
	)
	assert.Contains(t, out, "seeded 2 work item(s)")
	assert.Len(t, fake.queue.enqueued, 2)
	assert.Equal(t, [2]string{"Belmont", "Plumber"}, fake.queue.enqueued[0])
}

func TestQueueSeedRequiresFlags(t *testing.T) {
	fake := &fakeApp{queue: &fakeQueue{}}

	orig := newApp
	newApp = func(context.Context) (App, error) { return fake, nil }
	t.Cleanup(func() { newApp = orig })

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"queue", "seed"})
	require.Error(t, root.Execute())
}

func TestQueueRetryReportsCount(t *testing.T) {
	fake := &fakeApp{queue: &fakeQueue{retried: 3}}

	out := runCommand(t, fake, "queue", "retry")
	assert.Contains(t, out, "returned 3 failed item(s) to pending")
}

func TestListingUpdateAppliesChangedFlagsOnly(t *testing.T) {
	fake := &fakeApp{queue: &fakeQueue{}}

	out := runCommand(t, fake, "listing", "update", "place-1", "--name", "Belmont Plumbing & Gas")
	assert.Contains(t, out, "updated listing place-1")

	update, ok := fake.dir.updates["place-1"]
	require.True(t, ok)
	require.NotNil(t, update.Name)
	assert.Equal(t, "Belmont Plumbing & Gas", *update.Name)
	assert.Nil(t, update.Category, "unset flags must not touch fields")
	assert.Nil(t, update.Verified)
}

func TestListingUpdateRequiresAField(t *testing.T) {
	fake := &fakeApp{queue: &fakeQueue{}}

	orig := newApp
	newApp = func(context.Context) (App, error) { return fake, nil }
	t.Cleanup(func() { newApp = orig })

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"listing", "update", "place-1"})
	require.Error(t, root.Execute())
}

func TestDiscoverOnEmptyQueueIsClean(t *testing.T) {
	fake := &fakeApp{queue: &fakeQueue{}}

	runCommand(t, fake, "discover")
	assert.True(t, fake.closed)
}

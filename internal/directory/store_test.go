package directory

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewPostgresStore(mock)
	require.NoError(t, err)
	return store, mock
}

func sampleBusiness() Business {
	return Business{
		SourceID:            "place-123",
		Name:                "Belmont Plumbing",
		Slug:                "belmont-plumbing",
		Category:            "Plumber",
		Suburb:              "Belmont",
		City:                "Auckland",
		Region:              "Auckland",
		Address:             "12 High St, Belmont",
		Phone:               "+64 9 555 0100",
		Website:             "https://belmontplumbing.example",
		RatingAvg:           4.5,
		RatingCount:         12,
		ReportedReviewCount: 12,
		TrustScore:          90,
		ClaimStatus:         ClaimUnclaimed,
	}
}

func TestUpsertBusinessRefreshesOnlyMutableFields(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)
	b := sampleBusiness()

	// Re-running discovery over a seen listing must not duplicate the
	// row or touch identity columns, so the conflict clause carries
	// only the rating aggregate, reported count and trust score.
	mock.ExpectExec(`ON CONFLICT \(source_id\) DO UPDATE SET\s+rating_avg = EXCLUDED\.rating_avg,\s+rating_count = EXCLUDED\.rating_count,\s+reported_review_count = EXCLUDED\.reported_review_count,\s+trust_score = EXCLUDED\.trust_score,\s+updated_at = NOW\(\)`).
		WithArgs(
			b.SourceID, b.Name, b.Slug, b.Category, b.Suburb, b.City, b.Region,
			b.Address, b.Phone, b.Website, b.RatingAvg, b.RatingCount,
			b.ReportedReviewCount, b.TrustScore, b.ClaimStatus, b.Verified,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertBusiness(context.Background(), b))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBusinessValidation(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	b := sampleBusiness()
	b.SourceID = ""
	require.Error(t, store.UpsertBusiness(context.Background(), b))

	b = sampleBusiness()
	b.Name = ""
	require.Error(t, store.UpsertBusiness(context.Background(), b))
}

func TestUpdateListingUnknownSourceID(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)
	name := "Belmont Plumbing & Gas"

	mock.ExpectExec("UPDATE businesses SET").
		WithArgs("missing", &name, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateListing(context.Background(), "missing", ListingUpdate{Name: &name})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrichmentCandidates(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)

	rows := pgxmock.NewRows([]string{"source_id", "name"}).
		AddRow("place-1", "Belmont Plumbing").
		AddRow("place-2", "A1 Electrical")
	mock.ExpectQuery(`SELECT b\.source_id, b\.name`).
		WithArgs(10).
		WillReturnRows(rows)

	candidates, err := store.EnrichmentCandidates(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "place-1", candidates[0].SourceID)
	assert.Equal(t, "A1 Electrical", candidates[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReviewIgnoresDuplicate(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)
	r := Review{
		ExternalID: "rev-1",
		BusinessID: "place-1",
		Reviewer:   "Sam",
		Rating:     5,
		Text:       "Fast and tidy work.",
		Source:     "google",
	}

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(r.ExternalID, r.BusinessID, r.Reviewer, r.Rating, r.Text, r.Highlights, r.OwnerReply, r.Source).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(r.ExternalID, r.BusinessID, r.Reviewer, r.Rating, r.Text, r.Highlights, r.OwnerReply, r.Source).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := store.InsertReview(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertReview(context.Background(), r)
	require.NoError(t, err)
	assert.False(t, inserted, "duplicate external id must be ignored")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCounts(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)

	rows := pgxmock.NewRows([]string{"businesses", "reviews"}).AddRow(int64(42), int64(310))
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	businesses, reviews, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), businesses)
	assert.Equal(t, int64(310), reviews)
	require.NoError(t, mock.ExpectationsWereMet())
}

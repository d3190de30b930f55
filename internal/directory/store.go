package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs. pgxmock
// satisfies it, which keeps the SQL testable without a live database.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the directory persistence contract used by the workers and
// the status reporter.
type Store interface {
	// UpsertBusiness inserts the listing on first sight. On conflict
	// with an existing dedupe key, only the rating aggregate, reported
	// review count, trust score and updated_at refresh; identity
	// fields keep their first-insert values.
	UpsertBusiness(ctx context.Context, b Business) error

	// UpdateListing is the explicit field-level path for correcting
	// identity fields outside discovery.
	UpdateListing(ctx context.Context, sourceID string, update ListingUpdate) error

	// EnrichmentCandidates returns up to limit businesses whose
	// reported review count is positive but which own zero reviews.
	EnrichmentCandidates(ctx context.Context, limit int) ([]Candidate, error)

	// InsertReview stores a review, silently ignoring duplicate
	// external ids. Returns true when a row was written.
	InsertReview(ctx context.Context, r Review) (bool, error)

	// Counts returns total businesses and reviews.
	Counts(ctx context.Context) (businesses, reviews int64, err error)
}

// PostgresStore implements Store on the businesses and reviews tables.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgresStore constructs a store from an existing pool.
func NewPostgresStore(pool PgxPool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// UpsertBusiness writes a listing keyed by its dedupe key.
// First-write-wins for identity fields: the conflict clause touches
// only the mutable aggregate columns.
func (s *PostgresStore) UpsertBusiness(ctx context.Context, b Business) error {
	if b.SourceID == "" {
		return fmt.Errorf("business source id is required")
	}
	if b.Name == "" {
		return fmt.Errorf("business name is required")
	}
	query := `
		INSERT INTO businesses (
			source_id, name, slug, category, suburb, city, region,
			address, phone, website, rating_avg, rating_count,
			reported_review_count, trust_score, claim_status, verified
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (source_id) DO UPDATE SET
			rating_avg = EXCLUDED.rating_avg,
			rating_count = EXCLUDED.rating_count,
			reported_review_count = EXCLUDED.reported_review_count,
			trust_score = EXCLUDED.trust_score,
			updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query,
		b.SourceID,
		b.Name,
		b.Slug,
		b.Category,
		b.Suburb,
		b.City,
		b.Region,
		b.Address,
		b.Phone,
		b.Website,
		b.RatingAvg,
		b.RatingCount,
		b.ReportedReviewCount,
		b.TrustScore,
		b.ClaimStatus,
		b.Verified,
	)
	if err != nil {
		return fmt.Errorf("upsert business: %w", err)
	}
	return nil
}

// UpdateListing applies an explicit identity correction.
func (s *PostgresStore) UpdateListing(ctx context.Context, sourceID string, update ListingUpdate) error {
	if sourceID == "" {
		return fmt.Errorf("source id is required")
	}
	query := `
		UPDATE businesses SET
			name = COALESCE($2, name),
			slug = COALESCE($3, slug),
			category = COALESCE($4, category),
			verified = COALESCE($5, verified),
			updated_at = NOW()
		WHERE source_id = $1
	`
	var slug *string
	if update.Name != nil {
		normalized := Slugify(*update.Name)
		slug = &normalized
	}
	tag, err := s.pool.Exec(ctx, query, sourceID, update.Name, slug, update.Category, update.Verified)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no business with source id %q", sourceID)
	}
	return nil
}

// EnrichmentCandidates selects businesses with reported reviews but no
// stored reviews, oldest first so stale listings backfill first.
func (s *PostgresStore) EnrichmentCandidates(ctx context.Context, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT b.source_id, b.name
		FROM businesses b
		WHERE b.reported_review_count > 0
		  AND NOT EXISTS (SELECT 1 FROM reviews r WHERE r.business_id = b.source_id)
		ORDER BY b.created_at
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select enrichment candidates: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.SourceID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return candidates, nil
}

// InsertReview appends a review, ignoring duplicate external ids so
// reprocessing a ready task is always safe.
func (s *PostgresStore) InsertReview(ctx context.Context, r Review) (bool, error) {
	if r.ExternalID == "" {
		return false, fmt.Errorf("review external id is required")
	}
	if r.BusinessID == "" {
		return false, fmt.Errorf("review business id is required")
	}
	query := `
		INSERT INTO reviews (external_id, business_id, reviewer, rating, text, highlights, owner_reply, source)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (external_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query,
		r.ExternalID,
		r.BusinessID,
		r.Reviewer,
		r.Rating,
		r.Text,
		r.Highlights,
		r.OwnerReply,
		r.Source,
	)
	if err != nil {
		return false, fmt.Errorf("insert review: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Counts returns directory totals for the status report.
func (s *PostgresStore) Counts(ctx context.Context) (int64, int64, error) {
	var businesses, reviews int64
	query := `SELECT (SELECT COUNT(*) FROM businesses), (SELECT COUNT(*) FROM reviews)`
	if err := s.pool.QueryRow(ctx, query).Scan(&businesses, &reviews); err != nil {
		return 0, 0, fmt.Errorf("count directory rows: %w", err)
	}
	return businesses, reviews, nil
}

// Package directory holds the business directory records and their
// Postgres-backed store.
package directory

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ClaimStatus is the ownership state of a directory listing.
type ClaimStatus string

// Listing claim states. Discovery always inserts unclaimed; the claim
// flow that advances these lives outside the pipeline.
const (
	ClaimUnclaimed ClaimStatus = "unclaimed"
	ClaimPending   ClaimStatus = "pending"
	ClaimClaimed   ClaimStatus = "claimed"
)

// Business is one directory listing, keyed by the provider's stable
// identifier (the dedupe key). Identity fields set on first sight are
// never overwritten by later discovery conflicts; only the rating
// aggregate and updated_at refresh.
type Business struct {
	SourceID            string
	Name                string
	Slug                string
	Category            string
	Suburb              string
	City                string
	Region              string
	Address             string
	Phone               string
	Website             string
	RatingAvg           float64
	RatingCount         int
	ReportedReviewCount int
	TrustScore          int
	ClaimStatus         ClaimStatus
	Verified            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Review is one stored review, keyed by the provider's review id.
// Rows are append-only: duplicates are silently ignored on insert and
// stored rows are never mutated.
type Review struct {
	ExternalID string
	BusinessID string
	Reviewer   string
	Rating     float64
	Text       string
	Highlights string
	OwnerReply string
	Source     string
}

// Candidate is a business eligible for enrichment: the provider
// reported reviews for it, but none are stored yet.
type Candidate struct {
	SourceID string
	Name     string
}

// ListingUpdate is the explicit field-level correction path for
// identity fields. Nil fields are left untouched.
type ListingUpdate struct {
	Name     *string
	Category *string
	Verified *bool
}

// TrustScore normalizes a provider star rating to a 0-100 score.
// Deterministic and monotonic: rating x 20, clamped.
func TrustScore(rating float64) int {
	score := int(rating * 20)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// DedupeKey derives the upsert key for a listing: the provider's
// stable identifier, falling back to the listing URL when absent.
func DedupeKey(stableID, url string) (string, error) {
	if stableID != "" {
		return stableID, nil
	}
	if url != "" {
		return url, nil
	}
	return "", fmt.Errorf("listing has neither a stable identifier nor a URL")
}

// Slugify normalizes a name into a URL slug: lowercase, runs of
// non-alphanumerics collapsed to single hyphens, trimmed. Slugs are
// display metadata and never a uniqueness key; two businesses that
// normalize to the same slug are disambiguated by their source id.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) && r < unicode.MaxASCII || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Package provider is the HTTP client for the external listing search
// and review task APIs.
package provider

import (
	"encoding/json"
	"fmt"
)

// Filter is one [field, operator, value] triple in a search request.
// The provider expects triples as JSON arrays, not objects.
type Filter struct {
	Field string
	Op    string
	Value any
}

// MarshalJSON encodes the filter as the provider's triple form.
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{f.Field, f.Op, f.Value})
}

// SearchRequest parameterizes one listing search call.
type SearchRequest struct {
	Categories []string `json:"categories"`
	Filters    []Filter `json:"filters"`
	Limit      int      `json:"limit"`
}

// Rating is a provider rating aggregate.
type Rating struct {
	Value      float64 `json:"value"`
	VotesCount int     `json:"votes_count"`
}

// AddressInfo is the locality hierarchy a listing carries.
type AddressInfo struct {
	Suburb string `json:"suburb"`
	City   string `json:"city"`
	Region string `json:"region"`
}

// Listing is one ranked result from the search endpoint. PlaceID is
// the stable identifier; it may be absent, in which case URL is the
// dedupe fallback.
type Listing struct {
	Title        string      `json:"title"`
	Address      string      `json:"address"`
	AddressInfo  AddressInfo `json:"address_info"`
	Phone        string      `json:"phone"`
	URL          string      `json:"url"`
	Rating       Rating      `json:"rating"`
	PlaceID      string      `json:"place_id"`
	ReviewsCount int         `json:"reviews_count"`
}

// TaskSubmission asks the provider to fetch reviews for one place.
type TaskSubmission struct {
	PlaceID string `json:"place_id"`
	Limit   int    `json:"limit"`
}

// TaskAck is the provider's per-submission response, aligned by index
// with the submitted batch. An empty ID means the submission was
// rejected and must be dropped from tracking.
type TaskAck struct {
	ID      string `json:"id"`
	PlaceID string `json:"place_id"`
}

// ReviewItem is one review returned by the per-task results endpoint.
type ReviewItem struct {
	ID         string   `json:"review_id"`
	Reviewer   string   `json:"reviewer_name"`
	Rating     Rating   `json:"rating"`
	Text       string   `json:"text"`
	Highlights []string `json:"highlights"`
	OwnerReply string   `json:"owner_reply"`
}

// RequestError is a transport-level or non-success response from the
// provider. Workers record it on the owning work item; it is never
// retried automatically.
type RequestError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("provider request %s failed: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

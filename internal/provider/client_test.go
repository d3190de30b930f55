package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openlocal/bizdir-ingest/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(config.ProviderConfig{
		BaseURL:        srv.URL,
		Login:          "user",
		Password:       "pass",
		TimeoutSeconds: 5,
	}, zap.NewNop())
}

func TestFilterMarshalsAsTriple(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(Filter{Field: "rating.value", Op: ">=", Value: 4.0})
	require.NoError(t, err)
	assert.JSONEq(t, `["rating.value", ">=", 4]`, string(payload))
}

func TestSearchListings(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/listings/search", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "pass", pass)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"categories": ["Plumber"],
			"filters": [["rating.value", ">=", 4], ["address_info.locality", "=", "Belmont"]],
			"limit": 20
		}`, string(body))

		_, _ = w.Write([]byte(`{"items": [
			{"title": "Belmont Plumbing", "place_id": "place-1", "rating": {"value": 4.5, "votes_count": 12}, "reviews_count": 12},
			{"title": "Pipe Pros", "url": "https://pipepros.example", "rating": {"value": 4.0, "votes_count": 3}}
		]}`))
	})

	listings, err := client.SearchListings(context.Background(), SearchRequest{
		Categories: []string{"Plumber"},
		Filters: []Filter{
			{Field: "rating.value", Op: ">=", Value: 4.0},
			{Field: "address_info.locality", Op: "=", Value: "Belmont"},
		},
		Limit: 20,
	})
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "place-1", listings[0].PlaceID)
	assert.Equal(t, 4.5, listings[0].Rating.Value)
	assert.Empty(t, listings[1].PlaceID)
	assert.Equal(t, "https://pipepros.example", listings[1].URL)
}

func TestSearchListingsNonSuccessStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	})

	_, err := client.SearchListings(context.Background(), SearchRequest{Limit: 5})
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusPaymentRequired, reqErr.StatusCode)
	assert.Contains(t, reqErr.Message, "quota exceeded")
}

func TestSubmitReviewTasks(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reviews/tasks", r.URL.Path)
		_, _ = w.Write([]byte(`{"tasks": [
			{"id": "task-1", "place_id": "place-1"},
			{"id": "", "place_id": "place-2"}
		]}`))
	})

	acks, err := client.SubmitReviewTasks(context.Background(), []TaskSubmission{
		{PlaceID: "place-1", Limit: 30},
		{PlaceID: "place-2", Limit: 30},
	})
	require.NoError(t, err)
	require.Len(t, acks, 2)
	assert.Equal(t, "task-1", acks[0].ID)
	assert.Empty(t, acks[1].ID, "rejected submission carries an empty id")
}

func TestSubmitReviewTasksAckMismatch(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tasks": []}`))
	})

	_, err := client.SubmitReviewTasks(context.Background(), []TaskSubmission{{PlaceID: "place-1"}})
	require.Error(t, err)
}

func TestReadyTasksAndTaskReviews(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/reviews/tasks/ready":
			_, _ = w.Write([]byte(`{"task_ids": ["task-1", "task-9"]}`))
		case "/reviews/tasks/task-1":
			assert.Equal(t, "30", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"items": [
				{"review_id": "rev-1", "reviewer_name": "Sam", "rating": {"value": 5}, "text": "Great"},
				{"review_id": "rev-2", "reviewer_name": "Alex", "rating": {"value": 4}, "text": ""}
			]}`))
		default:
			http.NotFound(w, r)
		}
	})

	ready, err := client.ReadyTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"task-1", "task-9"}, ready)

	items, err := client.TaskReviews(context.Background(), "task-1", 30)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "rev-1", items[0].ID)
	assert.Empty(t, items[1].Text)
}

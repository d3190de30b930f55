package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/openlocal/bizdir-ingest/internal/config"
)

// Client talks to the listing search and review task endpoints.
// Calls have a bounded client-side timeout and no internal retry;
// callers decide what a failure means for their work item.
type Client struct {
	httpClient *http.Client
	baseURL    string
	login      string
	password   string
	logger     *zap.Logger
}

// New constructs a Client from provider config.
func New(cfg config.ProviderConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		login:      cfg.Login,
		password:   cfg.Password,
		logger:     logger,
	}
}

// SearchListings issues one synchronous listing search.
func (c *Client) SearchListings(ctx context.Context, req SearchRequest) ([]Listing, error) {
	var resp struct {
		Items []Listing `json:"items"`
	}
	if err := c.post(ctx, "/listings/search", req, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SubmitReviewTasks submits a batch of review-fetch tasks. The
// returned acks align by index with the submissions; an ack with an
// empty id was rejected at submission time.
func (c *Client) SubmitReviewTasks(ctx context.Context, subs []TaskSubmission) ([]TaskAck, error) {
	var resp struct {
		Tasks []TaskAck `json:"tasks"`
	}
	if err := c.post(ctx, "/reviews/tasks", subs, &resp); err != nil {
		return nil, err
	}
	if len(resp.Tasks) != len(subs) {
		return nil, fmt.Errorf("provider returned %d acks for %d submissions", len(resp.Tasks), len(subs))
	}
	return resp.Tasks, nil
}

// ReadyTasks returns the ids of all globally ready review tasks.
func (c *Client) ReadyTasks(ctx context.Context) ([]string, error) {
	var resp struct {
		TaskIDs []string `json:"task_ids"`
	}
	if err := c.get(ctx, "/reviews/tasks/ready", &resp); err != nil {
		return nil, err
	}
	return resp.TaskIDs, nil
}

// TaskReviews fetches the detailed results of one ready task.
func (c *Client) TaskReviews(ctx context.Context, taskID string, limit int) ([]ReviewItem, error) {
	endpoint := fmt.Sprintf("/reviews/tasks/%s?limit=%d", url.PathEscape(taskID), limit)
	var resp struct {
		Items []ReviewItem `json:"items"`
	}
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	req.SetBasicAuth(c.login, c.password)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Endpoint: endpoint, Message: err.Error()}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RequestError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("decode response: %v", err),
		}
	}

	c.logger.Debug("provider request succeeded",
		zap.String("endpoint", endpoint),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrCollectionNotFound is returned when searching a collection that was
// never created, which for a fresh tenant simply means nothing was ingested.
var ErrCollectionNotFound = errors.New("collection not found")

// StoreError wraps a failed vector store call. Retryable by the caller.
type StoreError struct {
	Op     string
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("qdrant %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("qdrant %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Point is one vector with its payload, keyed by a globally unique id.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint is a search hit, ordered by similarity descending.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Client is a minimal REST client to Qdrant. Collections are created with
// cosine distance and are addressed per call, one collection per tenant.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// EnsureCollection creates the named collection with the given dimension if
// it does not exist yet. Calling it again for an existing collection is a
// no-op; a concurrent create racing against another ingestion is tolerated
// as created-exactly-once.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return &StoreError{Op: "ensure_collection", Err: errors.New("invalid dimension")}
	}

	status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", c.baseURL, name), nil, nil)
	if err != nil {
		return &StoreError{Op: "ensure_collection", Err: err}
	}
	if status == http.StatusOK {
		return nil
	}
	if status != http.StatusNotFound {
		return &StoreError{Op: "ensure_collection", Status: status, Err: errors.New("unexpected status checking collection")}
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	status, err = c.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", c.baseURL, name), body, nil)
	if err != nil {
		return &StoreError{Op: "create_collection", Err: err}
	}
	// Conflict means another ingestion created it first; both callers proceed.
	if status >= 300 && status != http.StatusConflict {
		return &StoreError{Op: "create_collection", Status: status, Err: errors.New("create failed")}
	}
	return nil
}

// Upsert inserts or overwrites the batch by point id. wait=true makes the
// whole batch visible before returning, so the call either lands or fails.
func (c *Client) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	status, err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, name), body, nil)
	if err != nil {
		return &StoreError{Op: "upsert", Err: err}
	}
	if status >= 300 {
		return &StoreError{Op: "upsert", Status: status, Err: errors.New("upsert failed")}
	}
	return nil
}

// Search returns the top-k points by cosine similarity descending, with
// payloads. A missing collection surfaces as ErrCollectionNotFound.
func (c *Client) Search(ctx context.Context, name string, vector []float32, limit int) ([]ScoredPoint, error) {
	if limit <= 0 {
		limit = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	status, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, name), req, &resp)
	if err != nil {
		return nil, &StoreError{Op: "search", Err: err}
	}
	if status == http.StatusNotFound {
		return nil, ErrCollectionNotFound
	}
	if status >= 300 {
		return nil, &StoreError{Op: "search", Status: status, Err: errors.New("search failed")}
	}

	results := make([]ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, ScoredPoint{
			ID:      fmt.Sprint(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	return results, nil
}

func (c *Client) do(ctx context.Context, method, url string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

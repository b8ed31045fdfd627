// Package store talks to the preprocessed-feature store: a remote HTTP
// service keyed by repository and commit id, plus an optional local
// SQLite cache. The store only ever saves recomputation; every record it
// returns could be recomputed locally.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"prospector/internal/datamodel"
	"prospector/internal/logging"
)

const (
	// BatchSize is the maximum commit ids per lookup request.
	BatchSize = 500

	// maxBodySize bounds response reads.
	maxBodySize = 64 << 20
)

// Client is the HTTP client for the remote feature store.
type Client struct {
	address string
	client  *http.Client
	logger  *logging.Logger
}

// NewClient creates a store client for the given address.
func NewClient(address string, timeout time.Duration, logger *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		address: strings.TrimSuffix(address, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// StoreError represents a non-success response from the store.
type StoreError struct {
	StatusCode int
	Message    string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports a 404, the store's way of saying none of the batch
// is known.
func (e *StoreError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// FetchBatch looks up preprocessed records for up to BatchSize commit
// ids, scoped to the repository. One request, no retry: a failed batch is
// treated as entirely missing by the caller.
func (c *Client) FetchBatch(ctx context.Context, repositoryURL string, ids []string) ([]datamodel.Commit, error) {
	if len(ids) > BatchSize {
		return nil, fmt.Errorf("batch of %d exceeds the %d id limit", len(ids), BatchSize)
	}

	reqURL := fmt.Sprintf("%s/commits/%s?commit_id=%s",
		c.address, repositoryURL, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create store request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read store response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StoreError{StatusCode: resp.StatusCode, Message: truncate(string(body), 200)}
	}

	var records []datamodel.Commit
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to parse store response: %w", err)
	}
	return records, nil
}

// Save persists newly computed records, best effort from the caller's
// point of view. The payload is gzip-compressed; feature records for
// thousands of commits are large and highly compressible.
func (c *Client) Save(ctx context.Context, records []*datamodel.Commit) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to compress payload: %w", err)
	}

	compressedSize := buf.Len()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.address+"/commits/", &buf)
	if err != nil {
		return fmt.Errorf("failed to create store request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("store request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StoreError{StatusCode: resp.StatusCode, Message: truncate(string(body), 200)}
	}

	c.logger.Debug("Saved preprocessed commits to store", map[string]interface{}{
		"count":            len(records),
		"compressedBytes":  compressedSize,
		"uncompressedSize": len(data),
	})
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

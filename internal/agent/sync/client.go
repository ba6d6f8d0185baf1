// Package sync implements the background synchronization worker: it probes
// remote connectivity, drains the encrypted queue in bounded batches and
// applies per-item outcomes with adaptive backoff.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/edgemed/edgemed/internal/models"
)

// Client is the remote sync collaborator consumed by the worker.
type Client interface {
	// CheckHealth probes the remote health endpoint; a nil return means
	// the collaborator is reachable.
	CheckHealth(ctx context.Context) error

	// SubmitBatch posts one batch submission and returns the per-item
	// outcomes together with the HTTP status code.
	SubmitBatch(ctx context.Context, req *models.SyncRequest) (*models.SyncResponse, int, error)
}

const (
	healthTimeout = 5 * time.Second
	submitTimeout = 30 * time.Second
)

// HTTPClient talks to the remote sync endpoint over JSON/HTTP. The submit
// timeout is the de facto cancellation mechanism for in-flight batches;
// a timeout is reported like any other transport failure.
type HTTPClient struct {
	baseURL string
	token   string
	health  *http.Client
	submit  *http.Client
}

// NewHTTPClient returns a client for the remote collaborator at baseURL.
// token, when non-empty, is sent as a bearer token on submissions.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		health:  &http.Client{Timeout: healthTimeout},
		submit:  &http.Client{Timeout: submitTimeout},
	}
}

func (c *HTTPClient) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.health.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) SubmitBatch(ctx context.Context, sr *models.SyncRequest) (*models.SyncResponse, int, error) {
	body, err := json.Marshal(sr)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal sync request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sync", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.submit.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, fmt.Errorf("sync status %d: %s", resp.StatusCode, string(b))
	}

	var out models.SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode sync response: %w", err)
	}
	return &out, resp.StatusCode, nil
}

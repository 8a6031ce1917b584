// Package remote implements the contract-verified client for the remote
// graph store's add/search/process/status endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harun/memsync/internal/observability"
	"github.com/harun/memsync/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Status is the remote processing status of one collection
type Status string

const (
	StatusInitiated Status = "DATASET_PROCESSING_INITIATED"
	StatusStarted   Status = "DATASET_PROCESSING_STARTED"
	StatusCompleted Status = "DATASET_PROCESSING_COMPLETED"
	StatusErrored   Status = "DATASET_PROCESSING_ERRORED"
)

// Terminal reports whether the status is final
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusErrored
}

// Collection describes a remote collection
type Collection struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ItemCount int    `json:"itemCount"`
}

// AddOptions configures a content push
type AddOptions struct {
	CollectionID string
	NodeSet      []string

	// Verify blocks until the target collection is visible remotely,
	// failing with a VerificationTimeoutError after VerifyTimeout.
	Verify        bool
	VerifyTimeout time.Duration
}

// SearchOptions configures a search call
type SearchOptions struct {
	SearchType  string
	TopK        int
	Collections []string
}

// GraphStore is the remote knowledge store boundary. Alternative backends
// register a constructor in the registry; the sync engine only ever sees
// this interface.
type GraphStore interface {
	AddContent(ctx context.Context, content []string, collection string, opts AddOptions) error
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchItem, error)
	StartProcessing(ctx context.Context, collections []string, wait bool, timeout time.Duration) error
	GetStatus(ctx context.Context, collectionIDs []string) (map[string]Status, error)
	ListCollections(ctx context.Context) ([]Collection, error)
	HealthCheck(ctx context.Context) error
}

// Config holds client construction settings
type Config struct {
	Endpoint       string
	APIKey         string
	RequestTimeout time.Duration
	Retry          RetryPolicy

	// PollInterval spaces status and verification polls
	PollInterval time.Duration
}

// Client is the REST implementation of GraphStore
type Client struct {
	endpoint     string
	apiKey       string
	httpClient   *http.Client
	retry        RetryPolicy
	pollInterval time.Duration
	logger       zerolog.Logger
}

var _ GraphStore = (*Client)(nil)

// NewClient creates a REST graph store client
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("remote endpoint is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseDelay == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}

	return &Client{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		retry:        cfg.Retry,
		pollInterval: cfg.PollInterval,
		logger:       logger.With().Str("component", "remote-client").Logger(),
	}, nil
}

// AddContent pushes content into a collection
func (c *Client) AddContent(ctx context.Context, content []string, collection string, opts AddOptions) error {
	ctx, span := tracing.StartSpan(ctx, "remote", "add_content",
		attribute.String("collection", collection),
		attribute.Int("items", len(content)),
	)
	defer span.End()

	payload, err := buildAddPayload(content, collection, opts.CollectionID, opts.NodeSet)
	if err != nil {
		return err
	}

	if _, err := c.call(ctx, "add", http.MethodPost, "/api/v1/add", payload); err != nil {
		return err
	}

	if !opts.Verify {
		return nil
	}

	timeout := opts.VerifyTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return c.waitForCollection(ctx, collection, timeout)
}

// Search queries the remote store and normalizes whichever response shape
// arrives.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchItem, error) {
	ctx, span := tracing.StartSpan(ctx, "remote", "search",
		attribute.String("search_type", opts.SearchType),
	)
	defer span.End()

	payload, err := buildSearchPayload(query, opts.SearchType, opts.TopK, opts.Collections)
	if err != nil {
		return nil, err
	}

	body, err := c.call(ctx, "search", http.MethodPost, "/api/v1/search", payload)
	if err != nil {
		return nil, err
	}

	shape, items := DecodeSearchResponse(body)
	if shape == ShapeUnrecognized {
		c.logger.Warn().
			Int("body_bytes", len(body)).
			Msg("Unrecognized search response shape, treating as empty result")
	}

	return items, nil
}

// StartProcessing triggers relationship building for the given collections.
// With wait set it polls until every collection reaches a terminal status,
// failing on any errored result or when timeout elapses.
func (c *Client) StartProcessing(ctx context.Context, collections []string, wait bool, timeout time.Duration) error {
	ctx, span := tracing.StartSpan(ctx, "remote", "start_processing",
		attribute.Int("collections", len(collections)),
		attribute.Bool("wait", wait),
	)
	defer span.End()

	payload, err := buildProcessPayload(collections, !wait)
	if err != nil {
		return err
	}

	if _, err := c.call(ctx, "process", http.MethodPost, "/api/v1/process", payload); err != nil {
		return err
	}

	if !wait {
		return nil
	}

	ids, err := c.resolveCollectionIDs(ctx, collections)
	if err != nil {
		return err
	}

	return c.pollUntilTerminal(ctx, ids, timeout)
}

// GetStatus returns the processing status per collection id
func (c *Client) GetStatus(ctx context.Context, collectionIDs []string) (map[string]Status, error) {
	payload, err := buildStatusPayload(collectionIDs)
	if err != nil {
		return nil, err
	}

	body, err := c.call(ctx, "status", http.MethodPost, "/api/v1/process/status", payload)
	if err != nil {
		return nil, err
	}

	var statuses map[string]Status
	if err := json.Unmarshal(body, &statuses); err != nil {
		return nil, &RemoteError{Operation: "status", Err: fmt.Errorf("unparsable status response: %w", err)}
	}

	return statuses, nil
}

// ListCollections returns the collections currently present remotely
func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	body, err := c.call(ctx, "list_collections", http.MethodGet, "/api/v1/collections", nil)
	if err != nil {
		return nil, err
	}

	var collections []Collection
	if err := json.Unmarshal(body, &collections); err != nil {
		return nil, &RemoteError{Operation: "list_collections", Err: fmt.Errorf("unparsable collections response: %w", err)}
	}

	return collections, nil
}

// HealthCheck confirms the remote store is reachable with valid credentials
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.call(ctx, "health", http.MethodGet, "/api/v1/health", nil)
	return err
}

// call issues one HTTP request with auth, retries, and metrics. The returned
// body is the raw response for the caller to decode.
func (c *Client) call(ctx context.Context, operation, method, path string, payload []byte) ([]byte, error) {
	var body []byte

	err := withRetries(ctx, c.retry, operation, c.logger, func() error {
		start := time.Now()

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
		if err != nil {
			return &RemoteError{Operation: operation, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &RemoteError{Operation: operation, Err: err}
		}
		defer resp.Body.Close()

		observability.RecordRemoteCall(operation, time.Since(start))

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return &RemoteError{Operation: operation, StatusCode: resp.StatusCode, Err: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &RemoteError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Body:       truncate(string(respBody), 512),
			}
		}

		body = respBody
		return nil
	})
	if err != nil {
		observability.RecordRemoteError(operation, classify(err))
		return nil, err
	}

	return body, nil
}

// waitForCollection polls until the collection appears remotely
func (c *Client) waitForCollection(ctx context.Context, collection string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	interval := c.pollInterval
	if interval > 2*time.Second {
		interval = 2 * time.Second
	}

	for {
		collections, err := c.ListCollections(ctx)
		if err == nil {
			for _, col := range collections {
				if col.Name == collection {
					return nil
				}
			}
		} else {
			c.logger.Debug().Err(err).Msg("Verification poll failed, will retry")
		}

		if time.Now().After(deadline) {
			return &VerificationTimeoutError{Collection: collection, Timeout: timeout}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// resolveCollectionIDs maps collection names to remote ids
func (c *Client) resolveCollectionIDs(ctx context.Context, names []string) ([]string, error) {
	collections, err := c.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]string, len(collections))
	for _, col := range collections {
		byName[col.Name] = col.ID
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := byName[name]
		if !ok {
			return nil, &RemoteError{
				Operation: "process",
				Err:       fmt.Errorf("collection %q does not exist remotely", name),
			}
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// pollUntilTerminal polls processing status until every collection is
// terminal, failing on an errored collection or overall timeout.
func (c *Client) pollUntilTerminal(ctx context.Context, ids []string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	deadline := time.Now().Add(timeout)

	for {
		statuses, err := c.GetStatus(ctx, ids)
		if err != nil {
			return err
		}

		done := true
		for _, id := range ids {
			status := statuses[id]
			if status == StatusErrored {
				return &ProcessingError{CollectionID: id, Status: status}
			}
			if !status.Terminal() {
				done = false
			}
		}
		if done {
			return nil
		}

		if time.Now().After(deadline) {
			return &RemoteError{
				Operation: "process",
				Err:       fmt.Errorf("processing did not complete within %s", timeout),
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func classify(err error) string {
	switch {
	case IsContractError(err):
		return "contract"
	case IsRetryable(err):
		return "transient"
	default:
		return "permanent"
	}
}

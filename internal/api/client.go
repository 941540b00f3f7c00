package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scribeq/internal/queue"
)

// Client talks to a running scribeq daemon over its HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient creates a daemon API client for the given address. The address
// may be a bare host:port or a full http URL.
func NewClient(address, token string, opts ...Option) (*Client, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("daemon address required")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	client := &Client{
		baseURL:    strings.TrimRight(address, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// EnqueueUpload describes one recording upload.
type EnqueueUpload struct {
	OwnerID          string
	OrgID            string
	Filename         string
	MimeType         string
	Audio            io.Reader
	Priority         string
	ImmediateUrgency bool
	EmergencyVisit   bool
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var status DaemonStatus
	err := c.getJSON(ctx, "/api/status", nil, &status)
	return status, err
}

// List fetches queue items for a scope, optionally filtered by status.
func (c *Client) List(ctx context.Context, scope queue.Scope, statuses ...queue.Status) ([]QueueItem, error) {
	values := scopeValues(scope)
	for _, status := range statuses {
		values.Add("status", string(status))
	}
	var listing QueueListResponse
	if err := c.getJSON(ctx, "/api/queue", values, &listing); err != nil {
		return nil, err
	}
	return listing.Items, nil
}

// Describe fetches one queue item.
func (c *Client) Describe(ctx context.Context, id int64) (QueueItem, error) {
	var resp QueueItemResponse
	err := c.getJSON(ctx, "/api/queue/"+strconv.FormatInt(id, 10), nil, &resp)
	return resp.Item, err
}

// Enqueue uploads a recording as a multipart form.
func (c *Client) Enqueue(ctx context.Context, upload EnqueueUpload) (QueueItem, error) {
	var item QueueItem

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", upload.Filename)
	if err != nil {
		return item, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, upload.Audio); err != nil {
		return item, fmt.Errorf("read audio: %w", err)
	}
	fields := map[string]string{
		"owner":    upload.OwnerID,
		"org":      upload.OrgID,
		"priority": upload.Priority,
	}
	if upload.ImmediateUrgency {
		fields["urgent"] = "true"
	}
	if upload.EmergencyVisit {
		fields["emergency"] = "true"
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return item, fmt.Errorf("build upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return item, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/queue", &body)
	if err != nil {
		return item, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp QueueItemResponse
	if err := c.do(req, http.StatusCreated, &resp); err != nil {
		return item, err
	}
	return resp.Item, nil
}

// Process asks the daemon to run one item through transcription.
func (c *Client) Process(ctx context.Context, id int64, reqBody ProcessRequest) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/queue/%d/process", c.baseURL, id), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, http.StatusAccepted, nil)
}

// Retry re-queues a failed item.
func (c *Client) Retry(ctx context.Context, id int64) (QueueItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/queue/%d/retry", c.baseURL, id), nil)
	if err != nil {
		return QueueItem{}, err
	}
	var resp QueueItemResponse
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return QueueItem{}, err
	}
	return resp.Item, nil
}

// Cancel removes a pending item.
func (c *Client) Cancel(ctx context.Context, id int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/api/queue/%d", c.baseURL, id), nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusNoContent, nil)
}

// Stats fetches aggregate statistics for a scope.
func (c *Client) Stats(ctx context.Context, scope queue.Scope) (Stats, error) {
	var stats Stats
	err := c.getJSON(ctx, "/api/stats", scopeValues(scope), &stats)
	return stats, err
}

// Cleanup triggers a retention sweep. Zero days means the configured
// retention window.
func (c *Client) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	values := url.Values{}
	if retentionDays > 0 {
		values.Set("days", strconv.Itoa(retentionDays))
	}
	target := c.baseURL + "/api/cleanup"
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return 0, err
	}
	var resp CleanupResponse
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// Health fetches database diagnostics.
func (c *Client) Health(ctx context.Context) (DatabaseHealth, error) {
	var health DatabaseHealth
	err := c.getJSON(ctx, "/api/health", nil, &health)
	return health, err
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	target := c.baseURL + path
	if values != nil {
		if encoded := values.Encode(); encoded != "" {
			target += "?" + encoded
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, out)
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var envelope ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope); err == nil && envelope.Error != "" {
		return fmt.Errorf("daemon: %s", envelope.Error)
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}

func scopeValues(scope queue.Scope) url.Values {
	values := url.Values{}
	if scope.OwnerID != "" {
		values.Set("owner", scope.OwnerID)
	}
	if scope.OrgID != "" {
		values.Set("org", scope.OrgID)
	}
	return values
}

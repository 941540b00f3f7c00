package notes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scribeq/internal/services"
)

// Client talks to the note-creation HTTP API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Service = (*Client)(nil)

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

// New creates a notes client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "notes", "new", "base url required", nil)
	}
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// CreateNote persists a note drafted from a finished transcription.
func (c *Client) CreateNote(ctx context.Context, draft Draft) (Note, error) {
	var note Note
	if strings.TrimSpace(draft.Transcript) == "" {
		return note, services.Wrap(services.ErrValidation, "notes", "create", "transcript required", nil)
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return note, fmt.Errorf("marshal note draft: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/notes", bytes.NewReader(payload))
	if err != nil {
		return note, fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return note, services.Wrap(services.ErrTransient, "notes", "create", "request failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp, "create"); err != nil {
		return note, err
	}
	if err := json.NewDecoder(resp.Body).Decode(&note); err != nil {
		return note, fmt.Errorf("decode created note: %w", err)
	}
	return note, nil
}

// ListRecentNotes returns one page of the newest-first note listing.
func (c *Client) ListRecentNotes(ctx context.Context, page, limit int) ([]Note, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	endpoint := c.baseURL + "/v1/notes?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "notes", "list", "request failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp, "list"); err != nil {
		return nil, err
	}
	var listing struct {
		Notes []Note `json:"notes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode note listing: %w", err)
	}
	return listing.Notes, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func classifyStatus(resp *http.Response, operation string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "notes", operation,
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return services.Wrap(services.ErrTransient, "notes", operation,
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
}

package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scribeq/internal/services"
)

// Client talks to the speech-to-text HTTP API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Engine = (*Client)(nil)

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

// New creates a transcription client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcription", "new", "base url required", nil)
	}
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Submit uploads an audio payload. The engine either returns a job id to
// poll or, for very short recordings, an immediate result.
func (c *Client) Submit(ctx context.Context, sub Submission) (SubmitResponse, error) {
	var resp SubmitResponse
	if sub.Audio == nil {
		return resp, services.Wrap(services.ErrInvalidPayload, "transcription", "submit", "audio stream required", nil)
	}

	body, contentType, err := buildSubmitBody(sub)
	if err != nil {
		return resp, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transcriptions", body)
	if err != nil {
		return resp, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return resp, services.Wrap(services.ErrTransient, "transcription", "submit", "request failed", err)
	}
	defer httpResp.Body.Close()

	if err := classifyStatus(httpResp, "submit"); err != nil {
		return resp, err
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return resp, fmt.Errorf("decode submit response: %w", err)
	}
	if resp.JobID == "" && resp.Result == nil {
		return resp, services.Wrap(services.ErrTransient, "transcription", "submit", "response carried neither job id nor result", nil)
	}
	return resp, nil
}

// Poll fetches the current status of a job. A 404 means the job identity is
// unknown upstream and is fatal.
func (c *Client) Poll(ctx context.Context, jobID string) (PollResponse, error) {
	var resp PollResponse
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return resp, services.Wrap(services.ErrValidation, "transcription", "poll", "job id required", nil)
	}

	endpoint := c.baseURL + "/v1/transcriptions/" + url.PathEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return resp, fmt.Errorf("build poll request: %w", err)
	}
	c.authorize(req)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return resp, services.Wrap(services.ErrTransient, "transcription", "poll", "request failed", err)
	}
	defer httpResp.Body.Close()

	if err := classifyStatus(httpResp, "poll"); err != nil {
		return resp, err
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return resp, fmt.Errorf("decode poll response: %w", err)
	}
	switch resp.Status {
	case JobQueued, JobInProgress, JobCompleted, JobFailed:
	default:
		return resp, services.Wrap(services.ErrTransient, "transcription", "poll",
			fmt.Sprintf("unknown job status %q", resp.Status), nil)
	}
	return resp, nil
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
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrUnknownJob, "transcription", operation,
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "transcription", operation,
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return services.Wrap(services.ErrTransient, "transcription", operation,
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
}

func buildSubmitBody(sub Submission) (io.Reader, string, error) {
	var buf strings.Builder
	writer := multipart.NewWriter(&buf)

	filename := sub.Filename
	if filename == "" {
		filename = "recording"
	}
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := io.Copy(part, sub.Audio); err != nil {
		return nil, "", fmt.Errorf("copy audio payload: %w", err)
	}
	fields := map[string]string{
		"mime_type":    sub.MimeType,
		"patient_hint": sub.PatientHint,
		"language":     sub.Language,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finish multipart body: %w", err)
	}
	return strings.NewReader(buf.String()), writer.FormDataContentType(), nil
}

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mp4forge/internal/api"
	"mp4forge/internal/services"
)

// ErrAPIUnavailable reports that no daemon is reachable.
var ErrAPIUnavailable = errors.New("mp4forged API unavailable")

const defaultTimeout = 30 * time.Second

// Client issues requests against one daemon.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return e.Message
}

// Unwrap maps the status code back to the services marker the daemon
// derived it from.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusBadRequest:
		return services.ErrValidation
	case http.StatusConflict:
		return services.ErrConflict
	case http.StatusGatewayTimeout:
		return services.ErrTimeout
	default:
		return nil
	}
}

// New builds a client for bind, which may be host:port or a full URL.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("api bind address is required")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		http:  &http.Client{Timeout: defaultTimeout},
		token: strings.TrimSpace(token),
	}, nil
}

// BaseURL returns the daemon address requests go to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// AddJob submits a job.
func (c *Client) AddJob(ctx context.Context, req api.AddJobRequest) (api.Job, error) {
	var resp api.JobResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &resp)
	return resp.Job, err
}

// ListJobs returns jobs, filtered to status when it is set.
func (c *Client) ListJobs(ctx context.Context, status string) ([]api.Job, error) {
	query := url.Values{}
	if status = strings.TrimSpace(status); status != "" {
		query.Set("status", status)
	}
	var resp api.JobListResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", query, nil, &resp)
	return resp.Jobs, err
}

// GetJob returns one job.
func (c *Client) GetJob(ctx context.Context, id string) (api.Job, error) {
	var resp api.JobResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, nil, &resp)
	return resp.Job, err
}

// CancelJob cancels a queued or processing job.
func (c *Client) CancelJob(ctx context.Context, id string) (api.Job, error) {
	var resp api.JobResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, nil, &resp)
	return resp.Job, err
}

// RemoveJob deletes a job.
func (c *Client) RemoveJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil, nil)
}

// ClearCompleted removes finished jobs and reports how many went.
func (c *Client) ClearCompleted(ctx context.Context) (int, error) {
	var resp api.ClearResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/clear", nil, nil, &resp)
	return resp.Removed, err
}

// StartProcessing starts the queue processor.
func (c *Client) StartProcessing(ctx context.Context) (api.QueueStatus, error) {
	var resp api.QueueStatus
	err := c.do(ctx, http.MethodPost, "/api/queue/start", nil, nil, &resp)
	return resp, err
}

// StopProcessing stops the queue processor.
func (c *Client) StopProcessing(ctx context.Context) (api.QueueStatus, error) {
	var resp api.QueueStatus
	err := c.do(ctx, http.MethodPost, "/api/queue/stop", nil, nil, &resp)
	return resp, err
}

// QueueStatus returns queue counts.
func (c *Client) QueueStatus(ctx context.Context) (api.QueueStatus, error) {
	var resp api.QueueStatus
	err := c.do(ctx, http.MethodGet, "/api/queue/status", nil, nil, &resp)
	return resp, err
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var resp api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &resp)
	return resp, err
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, nil, &resp)
	return resp.Message, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload api.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
		apiErr.Message = payload.Error
	}
	return apiErr
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}

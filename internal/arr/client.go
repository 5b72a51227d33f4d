// Package arr implements thin API clients for Sonarr and Radarr v3,
// covering only the surface arrhook drives: queue inspection, command
// submission, and bulk queue removal.
package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/arrhook/arrhook/internal/httpclient"
)

const (
	apiBase       = "/api/v3"
	queuePageSize = 250
)

// StatusError is returned when an instance responds with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// CommandError is returned when a command submission comes back with a
// message, which the v3 API uses to report rejection.
type CommandError struct {
	Name    string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %s", e.Name, e.Message)
}

// Client is the shared HTTP layer under the Sonarr and Radarr clients.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	logger  *slog.Logger
}

// NewClient creates a client for one instance. The API key is sent via
// the X-Api-Key header on every request.
func NewClient(baseURL, apiKey string, hc *httpclient.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    hc,
		logger:  logger,
	}
}

// Queue fetches the complete activity queue, walking every page.
func (c *Client) Queue(ctx context.Context) ([]QueueRecord, error) {
	var records []QueueRecord
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", fmt.Sprint(page))
		query.Set("pageSize", fmt.Sprint(queuePageSize))

		var resp QueuePage
		if err := c.getJSON(ctx, "/queue", query, &resp); err != nil {
			return nil, fmt.Errorf("fetching queue page %d: %w", page, err)
		}
		records = append(records, resp.Records...)

		// An empty page guards against a server that under-reports
		// totalRecords or keeps paging forever.
		if len(resp.Records) == 0 || len(records) >= resp.TotalRecords {
			return records, nil
		}
	}
}

// RemoveQueueItems removes queue records in bulk without blocklisting,
// telling the download client to drop them as well.
func (c *Client) RemoveQueueItems(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := url.Values{}
	query.Set("removeFromClient", "true")
	query.Set("blocklist", "false")

	body := map[string]any{"ids": ids}
	if err := c.doJSON(ctx, http.MethodDelete, "/queue/bulk", query, body, nil); err != nil {
		return fmt.Errorf("removing queue items: %w", err)
	}

	c.logger.Info("removed queue items", slog.Int("count", len(ids)))
	return nil
}

// Command submits a command by name with extra body fields and returns
// the instance's response. A response carrying a message is treated as
// failure.
func (c *Client) Command(ctx context.Context, name string, fields map[string]any) (*CommandResponse, error) {
	body := map[string]any{"name": name}
	for k, v := range fields {
		body[k] = v
	}

	var resp CommandResponse
	if err := c.doJSON(ctx, http.MethodPost, "/command", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("submitting command %s: %w", name, err)
	}
	if resp.Message != "" {
		return &resp, &CommandError{Name: name, Message: resp.Message}
	}

	c.logger.Debug("command accepted",
		slog.String("command", name),
		slog.Int64("command_id", resp.ID),
	)
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

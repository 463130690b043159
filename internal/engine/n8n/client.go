package n8n

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
	"github.com/hashicorp/go-retryablehttp"
)

// WorkflowMeta is the engine's view of one workflow.
type WorkflowMeta struct {
	ExternalID   string     `json:"external_id"`
	Status       string     `json:"status"` // active, inactive
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
}

// ExecutionRecord is one countable engine run. Runs still in flight
// (running, waiting, canceled) are filtered out by the client and
// never reach the reconciler.
type ExecutionRecord struct {
	Date      time.Time `json:"date"`
	Succeeded bool      `json:"succeeded"`
}

// Client talks to one n8n deployment with one bearer credential. Build
// a fresh client per run through the Factory so credentials are read
// at point of use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(cfg config.EngineConfig, token string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	// Only transient faults retry at the transport. Auth errors and
	// rate limits must surface to the caller untouched.
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return resp.StatusCode >= 500, nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   token,
		http:    rc.StandardClient(),
	}
}

type remoteWorkflow struct {
	ID        string `json:"id"`
	Active    bool   `json:"active"`
	UpdatedAt string `json:"updatedAt"`
}

type remoteExecution struct {
	ID        json.Number `json:"id"`
	Status    string      `json:"status"`
	StartedAt string      `json:"startedAt"`
}

type executionPage struct {
	Data       []remoteExecution `json:"data"`
	NextCursor string            `json:"nextCursor"`
}

func (c *Client) GetWorkflow(ctx context.Context, externalID string) (*WorkflowMeta, error) {
	const op = "get workflow"

	var remote remoteWorkflow
	if err := c.get(ctx, op, "/api/v1/workflows/"+url.PathEscape(externalID), nil, &remote); err != nil {
		return nil, err
	}

	meta := &WorkflowMeta{ExternalID: externalID, Status: "inactive"}
	if remote.Active {
		meta.Status = "active"
	}
	if remote.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, remote.UpdatedAt); err == nil {
			ts = ts.UTC()
			meta.LastActiveAt = &ts
		}
	}
	return meta, nil
}

// ListExecutions fetches every countable run in [since, until] for one
// workflow, following the engine's cursor pagination.
func (c *Client) ListExecutions(ctx context.Context, externalID string, since, until time.Time) ([]ExecutionRecord, error) {
	const op = "list executions"

	var records []ExecutionRecord
	cursor := ""
	for {
		params := url.Values{}
		params.Set("since", since.UTC().Format(time.DateOnly))
		params.Set("until", until.UTC().Format(time.DateOnly))
		params.Set("limit", "250")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var page executionPage
		path := "/api/v1/workflows/" + url.PathEscape(externalID) + "/executions"
		if err := c.get(ctx, op, path, params, &page); err != nil {
			return nil, err
		}

		for _, re := range page.Data {
			rec, ok, err := mapExecution(re)
			if err != nil {
				return nil, &Error{Kind: KindUnreachable, Op: op, Err: err}
			}
			if ok {
				records = append(records, rec)
			}
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return records, nil
}

// mapExecution translates one remote run into a countable record.
// Terminal failures of any flavor count as errors; unknown statuses
// are treated as errors rather than silently dropped; in-flight and
// canceled runs are excluded.
func mapExecution(re remoteExecution) (ExecutionRecord, bool, error) {
	switch re.Status {
	case "running", "waiting", "canceled":
		return ExecutionRecord{}, false, nil
	}

	started, err := time.Parse(time.RFC3339, re.StartedAt)
	if err != nil {
		return ExecutionRecord{}, false, fmt.Errorf("execution %s: bad startedAt %q: %w", re.ID, re.StartedAt, err)
	}
	day := started.UTC().Truncate(24 * time.Hour)

	return ExecutionRecord{
		Date:      day,
		Succeeded: re.Status == "success",
	}, true, nil
}

func (c *Client) SetActive(ctx context.Context, externalID string, active bool) error {
	op := "deactivate workflow"
	action := "deactivate"
	if active {
		op = "activate workflow"
		action = "activate"
	}

	path := "/api/v1/workflows/" + url.PathEscape(externalID) + "/" + action
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return &Error{Kind: KindUnreachable, Op: op, Err: err}
	}
	return c.do(op, req, nil)
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &Error{Kind: KindUnreachable, Op: op, Err: err}
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindUnreachable, Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &Error{Kind: KindAuthFailed, Op: op, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Op: op, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Op: op, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &Error{Kind: KindUnreachable, Op: op, StatusCode: resp.StatusCode}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindUnreachable, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

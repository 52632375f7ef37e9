package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/observix/observix/pkg/models"
)

const pollTimeout = 10 * time.Second

// Client is the agent's HTTP client for the control plane. The only call an
// agent makes is the assignment poll; registration is a side effect of that
// call on the control-plane side.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the control plane at baseURL (no trailing
// slash).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: pollTimeout},
	}
}

// Assignments polls the assignment view for (agentID, region). When revision
// is the last-applied revision and the view is unchanged, the control plane
// answers 304 and notModified is true with a nil view.
func (c *Client) Assignments(ctx context.Context, agentID, region, revision string) (view *models.AssignmentView, notModified bool, err error) {
	pollURL := fmt.Sprintf("%s/v1/agents/%s/assignments?region=%s",
		c.baseURL, url.PathEscape(agentID), url.QueryEscape(region))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build assignments request: %w", err)
	}
	if revision != "" {
		req.Header.Set("If-None-Match", revision)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("assignments poll failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return nil, true, nil
	case resp.StatusCode == http.StatusOK:
		var v models.AssignmentView
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return nil, false, fmt.Errorf("failed to decode assignment view: %w", err)
		}
		return &v, false, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, fmt.Errorf("assignments poll returned status %d: %s", resp.StatusCode, body)
	}
}

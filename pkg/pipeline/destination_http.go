package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/observix/observix/pkg/models"
)

// httpDestination posts each batch as a JSON array of events, with bounded
// retries on failure. Delivery is all-or-nothing per batch.
type httpDestination struct {
	opts   models.HTTPDestinationOptions
	client *http.Client
	retry  RetryPolicy
}

func newHTTPDestination(opts models.HTTPDestinationOptions, retry RetryPolicy) *httpDestination {
	return &httpDestination{
		opts:   opts,
		client: &http.Client{Timeout: time.Duration(opts.TimeoutSeconds * float64(time.Second))},
		retry:  retry,
	}
}

func (d *httpDestination) sendBatch(batch []models.Event) (int, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return 0, fmt.Errorf("failed to encode batch: %w", err)
	}

	attempts := 0
	err = backoff.Retry(func() error {
		attempts++
		return d.post(body)
	}, d.retry.backOff())
	if err != nil {
		return 0, fmt.Errorf("giving up after %d attempts: %w", attempts, err)
	}
	return len(batch), nil
}

func (d *httpDestination) post(body []byte) error {
	req, err := http.NewRequest(http.MethodPost, d.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("destination returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *httpDestination) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/observix/observix/pkg/models"
)

// processor transforms a drained batch before the destination sees it. The
// returned slice may be empty when a failed batch is dropped by policy.
type processor interface {
	process(batch []models.Event) []models.Event
}

// rawProcessor forwards batches unchanged.
type rawProcessor struct{}

func (rawProcessor) process(batch []models.Event) []models.Event { return batch }

// indexedProcessor round-trips each batch through the indexer's normalize
// endpoint. Indexer failures become statistics, never retries: the batch is
// passed through raw or dropped per fallback_to_raw, and the next batch is a
// fresh attempt.
type indexedProcessor struct {
	opts   models.IndexedProcessorOptions
	url    string
	client *http.Client
	stats  *Stats
}

func newIndexedProcessor(opts models.IndexedProcessorOptions, stats *Stats) *indexedProcessor {
	return &indexedProcessor{
		opts:   opts,
		url:    opts.IndexerURL + "/v1/normalize",
		client: &http.Client{Timeout: time.Duration(opts.TimeoutSeconds * float64(time.Second))},
		stats:  stats,
	}
}

func (p *indexedProcessor) process(batch []models.Event) []models.Event {
	docs, err := p.normalize(batch)
	if err != nil {
		p.stats.recordBatchFailure(err)
		if p.opts.FallbackToRaw {
			return batch
		}
		return nil
	}
	return mergeDocs(batch, docs)
}

// normalize posts the whole batch and enforces the response contract: a docs
// array whose every entry carries a non-empty raw.
func (p *indexedProcessor) normalize(batch []models.Event) ([]models.Doc, error) {
	lines := make([]string, len(batch))
	for i, e := range batch {
		lines[i] = e.Raw
	}

	body, err := json.Marshal(map[string]any{"profile": p.opts.Profile, "raw": lines})
	if err != nil {
		return nil, fmt.Errorf("failed to encode normalize request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build normalize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, fmt.Errorf("indexer timeout after %gs: %w", p.opts.TimeoutSeconds, err)
		}
		return nil, fmt.Errorf("indexer unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("indexer returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Docs []models.Doc `json:"docs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("indexer response malformed: %w", err)
	}
	if parsed.Docs == nil {
		return nil, fmt.Errorf("indexer response malformed: missing docs")
	}
	for i, doc := range parsed.Docs {
		if _, err := doc.Raw(); err != nil {
			return nil, fmt.Errorf("indexer response malformed: doc %d: %w", i, err)
		}
	}
	return parsed.Docs, nil
}

// mergeDocs turns normalized documents back into events. When counts line up
// each event keeps its original timestamp and source address; otherwise
// fresh events are built from the documents alone.
func mergeDocs(batch []models.Event, docs []models.Doc) []models.Event {
	out := make([]models.Event, 0, len(docs))
	aligned := len(docs) == len(batch)
	for i, doc := range docs {
		base := models.Event{}
		if aligned {
			base = batch[i]
		}
		out = append(out, eventFromDoc(base, doc))
	}
	return out
}

func eventFromDoc(base models.Event, doc models.Doc) models.Event {
	e := base.Clone()
	// The contract check in normalize guarantees a non-empty raw.
	if raw, err := doc.Raw(); err == nil {
		e.Raw = raw
	}
	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}
	for k, v := range doc {
		if k == "raw" {
			continue
		}
		e.SetMeta(k, v)
	}
	return e
}

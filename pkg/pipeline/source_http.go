package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/observix/observix/pkg/models"
)

// httpListenerSource accepts events over HTTP. A plain-text body is one
// event; a JSON body may be a string, an array, or an object with a raw
// field plus structured metadata.
type httpListenerSource struct {
	path string
	emit emitFunc

	listener net.Listener
	server   *http.Server
	inflight sync.WaitGroup
	drained  chan struct{}
}

func newHTTPListenerSource(opts models.HTTPListenerSourceOptions, emit emitFunc) (*httpListenerSource, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind http listener %s:%d: %w", opts.Host, opts.Port, err)
	}

	s := &httpListenerSource{path: opts.Path, emit: emit, listener: ln, drained: make(chan struct{})}

	e := echo.New()
	e.POST(opts.Path, s.ingestHandler)
	s.server = &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Run serves until Close. It returns only once Close has finished its
// shutdown handshake, so the queue a handler emits into is never closed
// while a request is still in flight.
func (s *httpListenerSource) Run() {
	_ = s.server.Serve(s.listener)
	<-s.drained
}

func (s *httpListenerSource) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		// Shutdown deadline hit; drop the lingering connections so the
		// inflight wait below cannot hang on a stalled request body.
		_ = s.server.Close()
	}
	s.inflight.Wait()
	close(s.drained)
	return err
}

func (s *httpListenerSource) ingestHandler(c *echo.Context) error {
	s.inflight.Add(1)
	defer s.inflight.Done()

	req := c.Request()
	body, err := io.ReadAll(req.Body)
	if err != nil || len(body) == 0 {
		return c.String(http.StatusBadRequest, "empty body")
	}

	var events []models.Event
	if strings.Contains(strings.ToLower(req.Header.Get("Content-Type")), "application/json") {
		events, err = eventsFromJSON(body)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid json")
		}
	} else {
		raw := strings.TrimSpace(string(body))
		if raw != "" {
			events = append(events, models.NewEvent(raw))
		}
	}
	if len(events) == 0 {
		return c.String(http.StatusBadRequest, "empty body")
	}

	// Every event is offered to the queue; emit counts each one it
	// refuses, so a partially full queue never hides drops.
	accepted := 0
	for i := range events {
		events[i].SourceAddr = req.RemoteAddr
		if s.emit(events[i]) {
			accepted++
		}
	}
	if accepted == 0 {
		return c.String(http.StatusTooManyRequests, "queue full")
	}
	return c.String(http.StatusAccepted, fmt.Sprintf("accepted=%d", accepted))
}

func eventsFromJSON(body []byte) ([]models.Event, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	items, ok := payload.([]any)
	if !ok {
		items = []any{payload}
	}

	events := make([]models.Event, 0, len(items))
	for _, item := range items {
		if e, ok := eventFromJSONItem(item); ok {
			events = append(events, e)
		}
	}
	return events, nil
}

// eventFromJSONItem builds one event from a decoded JSON value. Objects keep
// an explicit raw field when present; otherwise their compact encoding
// becomes the raw line and every other key lands in Meta.
func eventFromJSONItem(item any) (models.Event, bool) {
	switch v := item.(type) {
	case string:
		raw := strings.TrimSpace(v)
		if raw == "" {
			return models.Event{}, false
		}
		return models.NewEvent(raw), true
	case map[string]any:
		e := models.NewEvent("")
		if s, ok := v["raw"].(string); ok && strings.TrimSpace(s) != "" {
			e.Raw = strings.TrimSpace(s)
		} else {
			b, err := json.Marshal(v)
			if err != nil {
				return models.Event{}, false
			}
			e.Raw = string(b)
		}
		for k, val := range v {
			if k == "raw" {
				continue
			}
			e.SetMeta(k, val)
		}
		return e, true
	case nil:
		return models.Event{}, false
	default:
		raw := strings.TrimSpace(fmt.Sprint(v))
		if raw == "" {
			return models.Event{}, false
		}
		return models.NewEvent(raw), true
	}
}

// Package models defines the wire-level types shared by the agent, control
// plane, indexer, and CLI: events, pipeline specifications, and the
// control-plane records exchanged over HTTP.
package models

import (
	"fmt"
	"time"
)

// Event is the unit of work transported through a pipeline. Raw is always
// populated; it carries the original line even after normalization so the
// payload survives an indexer failure downstream.
type Event struct {
	TS         time.Time      `json:"ts"`
	Raw        string         `json:"raw"`
	SourceAddr string         `json:"source_addr,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(raw string) Event {
	return Event{TS: time.Now().UTC(), Raw: raw}
}

// SetMeta assigns a metadata key, allocating the map on first use.
func (e *Event) SetMeta(key string, value any) {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
}

// Clone returns a copy whose Meta map is independent of the original.
func (e Event) Clone() Event {
	out := e
	if e.Meta != nil {
		out.Meta = make(map[string]any, len(e.Meta))
		for k, v := range e.Meta {
			out.Meta[k] = v
		}
	}
	return out
}

// Doc is a normalized document returned by the indexer. Extracted fields sit
// at the top level next to the mandatory "raw" key.
type Doc map[string]any

// Raw returns the document's raw line. Every well-formed document carries a
// non-empty one; anything else is a contract violation.
func (d Doc) Raw() (string, error) {
	v, ok := d["raw"]
	if !ok {
		return "", fmt.Errorf("document is missing the raw field")
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("document raw field is empty or not a string")
	}
	return s, nil
}

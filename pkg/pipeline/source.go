package pipeline

import (
	"fmt"

	"github.com/observix/observix/pkg/models"
)

// Source is one inbound event producer. Run blocks until Close; events flow
// through the emit callback handed to the constructor. Close unblocks Run
// and is safe to call more than once.
type Source interface {
	Run()
	Close() error
}

// emitFunc pushes an event toward the pipeline queue. It reports false when
// the event was dropped because the queue is full.
type emitFunc func(models.Event) bool

// newSource opens the source described by the spec. Listeners bind here, so
// a port conflict surfaces before any task starts.
func newSource(spec models.SourceSpec, emit emitFunc) (Source, error) {
	switch spec.Type {
	case models.SourceSyslogUDP:
		opts, err := spec.SyslogUDP()
		if err != nil {
			return nil, err
		}
		return newSyslogUDPSource(opts, emit)
	case models.SourceFileTail:
		opts, err := spec.FileTail()
		if err != nil {
			return nil, err
		}
		return newFileTailSource(opts, emit)
	case models.SourceHTTPListener:
		opts, err := spec.HTTPListener()
		if err != nil {
			return nil, err
		}
		return newHTTPListenerSource(opts, emit)
	default:
		return nil, fmt.Errorf("unknown source type: %q", spec.Type)
	}
}

// queueSize returns the bounded queue capacity for the source. Only
// listener-style sources carry the option; everything else takes the
// default.
func queueSize(spec models.SourceSpec) int {
	switch spec.Type {
	case models.SourceSyslogUDP:
		if opts, err := spec.SyslogUDP(); err == nil {
			return opts.MaxQueueSize
		}
	case models.SourceHTTPListener:
		if opts, err := spec.HTTPListener(); err == nil {
			return opts.MaxQueueSize
		}
	}
	return models.DefaultMaxQueueSize
}

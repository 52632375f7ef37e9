package pipeline

import (
	"fmt"

	"github.com/observix/observix/pkg/models"
)

// destination delivers a processed batch to its sink. sendBatch returns the
// number of events delivered; a non-nil error means at least one event
// failed after the rest were still attempted.
type destination interface {
	sendBatch(batch []models.Event) (int, error)
	Close() error
}

// newDestination opens the destination described by the spec. Sockets and
// files are acquired here, so an open failure surfaces before any task
// starts.
func newDestination(spec models.DestinationSpec) (destination, error) {
	switch spec.Type {
	case models.DestinationSyslogUDP:
		opts, err := spec.SyslogUDP()
		if err != nil {
			return nil, err
		}
		return newSyslogUDPDestination(opts)
	case models.DestinationFile:
		opts, err := spec.File()
		if err != nil {
			return nil, err
		}
		return newFileDestination(opts)
	case models.DestinationHTTP:
		opts, err := spec.HTTP()
		if err != nil {
			return nil, err
		}
		return newHTTPDestination(opts, DefaultRetryPolicy()), nil
	default:
		return nil, fmt.Errorf("unknown destination type: %q", spec.Type)
	}
}

package pipeline

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/observix/observix/pkg/models"
)

// syslogUDPDestination emits one RFC3164-style datagram per event:
// <PRI>TIMESTAMP HOST APPNAME: RAW.
type syslogUDPDestination struct {
	opts models.SyslogUDPDestinationOptions
	conn net.Conn
}

func newSyslogUDPDestination(opts models.SyslogUDPDestinationOptions) (*syslogUDPDestination, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to dial syslog %s:%d: %w", opts.Host, opts.Port, err)
	}
	return &syslogUDPDestination{opts: opts, conn: conn}, nil
}

func (d *syslogUDPDestination) sendBatch(batch []models.Event) (int, error) {
	delivered := 0
	var firstErr error
	for _, e := range batch {
		if _, err := d.conn.Write([]byte(d.formatLine(e))); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("syslog send failed: %w", err)
			}
			continue
		}
		delivered++
	}
	return delivered, firstErr
}

func (d *syslogUDPDestination) Close() error {
	return d.conn.Close()
}

// formatLine frames one event. The hostname falls back from the destination
// option to the event's agent_id meta to "observix"; embedded newlines are
// flattened so one event stays one datagram.
func (d *syslogUDPDestination) formatLine(e models.Event) string {
	ts := e.TS
	if ts.IsZero() {
		ts = time.Now()
	}

	host := d.opts.Hostname
	if host == "" {
		if v, ok := e.Meta["agent_id"].(string); ok && v != "" {
			host = v
		} else {
			host = "observix"
		}
	}

	msg := strings.TrimSpace(strings.ReplaceAll(e.Raw, "\n", " "))
	return fmt.Sprintf("<%d>%s %s %s: %s",
		d.opts.Pri, ts.UTC().Format(time.Stamp), host, d.opts.Appname, msg)
}

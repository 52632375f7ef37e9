package pipeline

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/observix/observix/pkg/models"
)

// syslogUDPSource receives syslog datagrams and emits one event per
// non-empty payload, with the sender as SourceAddr.
type syslogUDPSource struct {
	conn net.PacketConn
	emit emitFunc

	closeOnce sync.Once
}

func newSyslogUDPSource(opts models.SyslogUDPSourceOptions, emit emitFunc) (*syslogUDPSource, error) {
	conn, err := net.ListenPacket("udp", net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind udp %s:%d: %w", opts.Host, opts.Port, err)
	}
	return &syslogUDPSource{conn: conn, emit: emit}, nil
}

// Run reads datagrams until the socket is closed. The short read deadline
// keeps the loop responsive without spinning.
func (s *syslogUDPSource) Run() {
	buf := make([]byte, 65535)
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return
		}
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return
		}

		raw := strings.TrimSpace(strings.ToValidUTF8(string(buf[:n]), ""))
		if raw == "" {
			continue
		}
		e := models.NewEvent(raw)
		e.SourceAddr = addr.String()
		s.emit(e)
	}
}

func (s *syslogUDPSource) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}

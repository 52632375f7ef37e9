package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observix/observix/pkg/config"
	"github.com/observix/observix/pkg/models"
)

// fakeControlPlane serves the assignment poll endpoint from a mutable view.
type fakeControlPlane struct {
	server *httptest.Server

	mu       sync.Mutex
	view     models.AssignmentView
	fullGets atomic.Int64
}

func newFakeControlPlane(t *testing.T) *fakeControlPlane {
	t.Helper()

	cp := &fakeControlPlane{}
	cp.view.Revision = "rev-0"
	cp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cp.mu.Lock()
		view := cp.view
		cp.mu.Unlock()

		if r.Header.Get("If-None-Match") == view.Revision {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		cp.fullGets.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(view)
	}))
	t.Cleanup(cp.server.Close)
	return cp
}

func (cp *fakeControlPlane) setPipelines(revision string, pipelines ...models.AssignedPipeline) {
	cp.mu.Lock()
	cp.view = models.AssignmentView{Revision: revision, Pipelines: pipelines}
	cp.mu.Unlock()
}

// freeUDPPort reserves an ephemeral UDP port and releases it for the caller.
func freeUDPPort(t *testing.T) int {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, conn.Close())
	return port
}

// udpSink collects datagrams sent to a loopback port.
type udpSink struct {
	conn net.PacketConn

	mu    sync.Mutex
	lines []string
}

func newUDPSink(t *testing.T) *udpSink {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	s := &udpSink{conn: conn}
	go func() {
		buf := make([]byte, 65535)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			s.mu.Lock()
			s.lines = append(s.lines, string(buf[:n]))
			s.mu.Unlock()
		}
	}()
	return s
}

func (s *udpSink) port() int { return s.conn.LocalAddr().(*net.UDPAddr).Port }

func (s *udpSink) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func assignedSyslogPipeline(id string, version, sourcePort, sinkPort int) models.AssignedPipeline {
	return models.AssignedPipeline{
		PipelineID: id,
		Version:    version,
		Enabled:    true,
		Spec: models.PipelineSpec{
			Source: models.SourceSpec{
				Type:    models.SourceSyslogUDP,
				Options: map[string]any{"host": "127.0.0.1", "port": sourcePort},
			},
			Processor: models.ProcessorSpec{Mode: models.ProcessorRaw},
			Destination: models.DestinationSpec{
				Type:    models.DestinationSyslogUDP,
				Options: map[string]any{"host": "127.0.0.1", "port": sinkPort},
			},
			BatchMaxEvents:  10,
			BatchMaxSeconds: 0.05,
		},
	}
}

func testAgentConfig(t *testing.T, cpURL string) *config.AgentConfig {
	t.Helper()
	return &config.AgentConfig{
		AgentID:                 "agent-a",
		Region:                  "eu-west-1",
		ControlPlane:            config.ControlPlaneRef{URL: cpURL},
		PollIntervalSeconds:     0.05,
		ShutdownDeadlineSeconds: 2,
	}
}

func startManager(t *testing.T, m *Manager) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		m.Stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("manager run loop did not exit")
		}
	})
}

func sendUDP(t *testing.T, port int, payloads ...string) {
	t.Helper()

	conn, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer conn.Close()
	for _, p := range payloads {
		_, err := conn.Write([]byte(p))
		require.NoError(t, err)
	}
}

func TestManagerReconcileAddAndRemove(t *testing.T) {
	cp := newFakeControlPlane(t)
	sink := newUDPSink(t)
	portA := freeUDPPort(t)
	portB := freeUDPPort(t)

	cp.setPipelines("rev-1", assignedSyslogPipeline("pipe-a", 1, portA, sink.port()))

	m := NewManager(testAgentConfig(t, cp.server.URL))
	startManager(t, m)

	require.Eventually(t, func() bool { return m.Running("pipe-a") },
		2*time.Second, 10*time.Millisecond, "first pipeline should start within two poll intervals")

	// Second assignment appears: both pipelines run.
	cp.setPipelines("rev-2",
		assignedSyslogPipeline("pipe-a", 1, portA, sink.port()),
		assignedSyslogPipeline("pipe-b", 1, portB, sink.port()))

	require.Eventually(t, func() bool { return m.Running("pipe-a") && m.Running("pipe-b") },
		2*time.Second, 10*time.Millisecond)

	// First assignment removed: the agent converges to only the second.
	cp.setPipelines("rev-3", assignedSyslogPipeline("pipe-b", 1, portB, sink.port()))

	require.Eventually(t, func() bool { return !m.Running("pipe-a") && m.Running("pipe-b") },
		2*time.Second, 10*time.Millisecond)

	stats := m.Stats()
	_, hasA := stats["pipe-a"]
	assert.False(t, hasA, "removed pipeline should drop out of stats")
	_, hasB := stats["pipe-b"]
	assert.True(t, hasB)
}

func TestManagerDisabledPipelineIsStopped(t *testing.T) {
	cp := newFakeControlPlane(t)
	sink := newUDPSink(t)
	port := freeUDPPort(t)

	cp.setPipelines("rev-1", assignedSyslogPipeline("pipe-a", 1, port, sink.port()))

	m := NewManager(testAgentConfig(t, cp.server.URL))
	startManager(t, m)

	require.Eventually(t, func() bool { return m.Running("pipe-a") },
		2*time.Second, 10*time.Millisecond)

	disabled := assignedSyslogPipeline("pipe-a", 1, port, sink.port())
	disabled.Enabled = false
	cp.setPipelines("rev-2", disabled)

	require.Eventually(t, func() bool { return !m.Running("pipe-a") },
		2*time.Second, 10*time.Millisecond)
}

func TestManagerNotModifiedShortCircuits(t *testing.T) {
	cp := newFakeControlPlane(t)
	sink := newUDPSink(t)
	port := freeUDPPort(t)

	cp.setPipelines("rev-1", assignedSyslogPipeline("pipe-a", 1, port, sink.port()))

	m := NewManager(testAgentConfig(t, cp.server.URL))
	startManager(t, m)

	require.Eventually(t, func() bool { return m.Running("pipe-a") },
		2*time.Second, 10*time.Millisecond)

	// Let several polls land on an unchanged view; every one after the
	// first full response must come back 304.
	before := cp.fullGets.Load()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, before, cp.fullGets.Load(), "unchanged view should answer 304")
	assert.True(t, m.Running("pipe-a"))
}

func TestManagerVersionChangeRestartsPipeline(t *testing.T) {
	cp := newFakeControlPlane(t)
	sinkV1 := newUDPSink(t)
	sinkV2 := newUDPSink(t)
	port := freeUDPPort(t)

	cp.setPipelines("rev-1", assignedSyslogPipeline("pipe-a", 1, port, sinkV1.port()))

	m := NewManager(testAgentConfig(t, cp.server.URL))
	startManager(t, m)

	require.Eventually(t, func() bool { return m.Running("pipe-a") },
		2*time.Second, 10*time.Millisecond)

	// Version 2 points the destination at a different sink.
	cp.setPipelines("rev-2", assignedSyslogPipeline("pipe-a", 2, port, sinkV2.port()))

	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		r, ok := m.runners["pipe-a"]
		return ok && r.Version() == 2
	}, 2*time.Second, 10*time.Millisecond, "runner should be replaced with the new version")

	require.Eventually(t, func() bool { return m.Running("pipe-a") },
		2*time.Second, 10*time.Millisecond)

	sendUDP(t, port, "after-update")
	require.Eventually(t, func() bool { return len(sinkV2.received()) > 0 },
		2*time.Second, 10*time.Millisecond)
	assert.Contains(t, sinkV2.received()[0], "after-update")
}

func TestManagerSurvivesControlPlaneOutage(t *testing.T) {
	cp := newFakeControlPlane(t)
	sink := newUDPSink(t)
	port := freeUDPPort(t)

	cp.setPipelines("rev-1", assignedSyslogPipeline("pipe-a", 1, port, sink.port()))

	m := NewManager(testAgentConfig(t, cp.server.URL))
	startManager(t, m)

	require.Eventually(t, func() bool { return m.Running("pipe-a") },
		2*time.Second, 10*time.Millisecond)

	// The control plane goes away; the running pipeline keeps forwarding.
	cp.server.Close()
	time.Sleep(200 * time.Millisecond)

	assert.True(t, m.Running("pipe-a"))
	sendUDP(t, port, "still-forwarding")
	require.Eventually(t, func() bool { return len(sink.received()) > 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestManagerStopStopsAllRunners(t *testing.T) {
	cp := newFakeControlPlane(t)
	sink := newUDPSink(t)
	portA := freeUDPPort(t)
	portB := freeUDPPort(t)

	cp.setPipelines("rev-1",
		assignedSyslogPipeline("pipe-a", 1, portA, sink.port()),
		assignedSyslogPipeline("pipe-b", 1, portB, sink.port()))

	m := NewManager(testAgentConfig(t, cp.server.URL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, func() bool { return m.Running("pipe-a") && m.Running("pipe-b") },
		2*time.Second, 10*time.Millisecond)

	m.Stop()

	assert.Empty(t, m.Stats(), "no runners should remain after Stop")

	// Both source ports must be released.
	for _, port := range []int{portA, portB} {
		conn, err := net.ListenPacket("udp", fmt.Sprintf("127.0.0.1:%d", port))
		require.NoError(t, err, "source port should be free after Stop")
		_ = conn.Close()
	}
}

func TestPollIntervalJitterBounds(t *testing.T) {
	m := NewManager(testAgentConfig(t, "http://127.0.0.1:1"))
	base := m.cfg.PollInterval()

	for range 100 {
		d := m.pollInterval()
		assert.GreaterOrEqual(t, d, base-base/5)
		assert.LessOrEqual(t, d, base+base/5)
	}
}

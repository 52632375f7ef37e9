// Package agent hosts the edge agent runtime: a poll loop that reconciles
// the set of running pipelines against the control plane's assignment view.
package agent

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/observix/observix/pkg/config"
	"github.com/observix/observix/pkg/models"
	"github.com/observix/observix/pkg/pipeline"
)

// assignedEntry is one pipeline from the assignment view, reduced to what
// reconciliation compares.
type assignedEntry struct {
	version int
	enabled bool
	spec    models.PipelineSpec
}

// Manager runs the pipelines assigned to one agent. Every poll interval it
// fetches the assignment view and converges: removals first, then mutations
// (stop-then-start), then additions. Poll and apply errors are logged and
// retried next tick; they never take the agent down.
type Manager struct {
	cfg    *config.AgentConfig
	client *Client

	mu       sync.Mutex
	runners  map[string]*pipeline.Runner
	revision string

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager builds a manager from the agent configuration. Nothing runs
// until Run.
func NewManager(cfg *config.AgentConfig) *Manager {
	return &Manager{
		cfg:     cfg,
		client:  NewClient(cfg.ControlPlaneURL()),
		runners: make(map[string]*pipeline.Runner),
		stopCh:  make(chan struct{}),
	}
}

// Run polls and reconciles until ctx is cancelled or Stop is called. The
// first poll happens immediately so a freshly started agent converges
// without waiting a full interval.
func (m *Manager) Run(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	slog.Info("Agent started",
		"agent_id", m.cfg.AgentID,
		"region", m.cfg.Region,
		"control_plane_url", m.cfg.ControlPlaneURL())

	for {
		m.tick(ctx)

		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(m.pollInterval()):
		}
	}
}

// Stop halts polling, waits for the loop to exit, then stops every runner
// concurrently. Each stop honors the configured shutdown deadline.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()

	m.mu.Lock()
	runners := make([]*pipeline.Runner, 0, len(m.runners))
	for _, r := range m.runners {
		runners = append(runners, r)
	}
	m.runners = make(map[string]*pipeline.Runner)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func(r *pipeline.Runner) {
			defer wg.Done()
			m.stopRunner(r)
		}(r)
	}
	wg.Wait()

	for _, r := range runners {
		snap := r.Stats()
		slog.Info("Pipeline final stats",
			"pipeline_id", r.PipelineID(),
			"recv", snap.Recv,
			"sent_events", snap.SentEvents,
			"sent_batches", snap.SentBatches,
			"failed_batches", snap.FailedBatches,
			"dropped_queue_full", snap.DroppedQueueFull)
	}
	slog.Info("Agent stopped", "agent_id", m.cfg.AgentID)
}

// Stats returns a snapshot of every runner's counters keyed by pipeline id.
func (m *Manager) Stats() map[string]pipeline.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]pipeline.Snapshot, len(m.runners))
	for id, r := range m.runners {
		out[id] = r.Stats()
	}
	return out
}

// Running reports whether the pipeline is currently in the Running state.
func (m *Manager) Running(pipelineID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runners[pipelineID]
	return ok && r.State() == pipeline.StateRunning
}

// tick performs one poll-and-reconcile round.
func (m *Manager) tick(ctx context.Context) {
	m.mu.Lock()
	revision := m.revision
	m.mu.Unlock()

	view, notModified, err := m.client.Assignments(ctx, m.cfg.AgentID, m.cfg.Region, revision)
	if err != nil {
		slog.Warn("Assignment poll failed", "agent_id", m.cfg.AgentID, "error", err)
		return
	}
	if notModified {
		m.logStats(slog.LevelDebug)
		return
	}

	m.apply(view.Revision, view)
	m.logStats(slog.LevelDebug)
}

// apply converges the running set to the assignment view: removals, then
// mutations, then additions. The revision is stored after a fully attempted
// apply even if individual starts failed; a Failed runner stays in the map
// so it is retried only when its assigned version changes.
func (m *Manager) apply(revision string, view *models.AssignmentView) {
	assigned := make(map[string]assignedEntry, len(view.Pipelines))
	for _, p := range view.Pipelines {
		assigned[p.PipelineID] = assignedEntry{version: p.Version, enabled: p.Enabled, spec: p.Spec}
	}

	m.mu.Lock()
	var removals []*pipeline.Runner
	type startItem struct {
		id    string
		entry assignedEntry
		old   *pipeline.Runner
	}
	var starts []startItem

	for id, r := range m.runners {
		entry, ok := assigned[id]
		switch {
		case !ok, !entry.enabled:
			removals = append(removals, r)
			delete(m.runners, id)
		case entry.version != r.Version():
			starts = append(starts, startItem{id: id, entry: entry, old: r})
		}
	}
	for id, entry := range assigned {
		if !entry.enabled {
			continue
		}
		if _, ok := m.runners[id]; !ok {
			starts = append(starts, startItem{id: id, entry: entry})
		}
	}
	m.mu.Unlock()

	for _, r := range removals {
		slog.Info("Pipeline unassigned", "pipeline_id", r.PipelineID(), "version", r.Version())
		m.stopRunner(r)
	}

	for _, item := range starts {
		if item.old != nil {
			// Stop-then-start; a stop that misses the deadline abandons the
			// old instance and the new version starts regardless.
			slog.Info("Pipeline version changed",
				"pipeline_id", item.id, "old_version", item.old.Version(), "new_version", item.entry.version)
			m.stopRunner(item.old)
		}

		r := pipeline.NewRunner(pipeline.Config{
			PipelineID: item.id,
			Version:    item.entry.version,
			Spec:       item.entry.spec,
			AgentID:    m.cfg.AgentID,
			Region:     m.cfg.Region,
		})
		// A failed runner is kept so the same version is not retried every
		// tick; the version comparison above retries it on change.
		_ = r.Start()

		m.mu.Lock()
		m.runners[item.id] = r
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.revision = revision
	running := len(m.runners)
	m.mu.Unlock()

	slog.Info("Assignments applied",
		"agent_id", m.cfg.AgentID, "revision", revision, "pipelines", running)
}

func (m *Manager) stopRunner(r *pipeline.Runner) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ShutdownDeadline())
	defer cancel()
	r.Stop(ctx)
}

// pollInterval returns the poll duration jittered ±20% so agent fleets don't
// poll in lockstep.
func (m *Manager) pollInterval() time.Duration {
	base := m.cfg.PollInterval()
	jitter := base / 5
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (m *Manager) logStats(level slog.Level) {
	if !slog.Default().Enabled(context.Background(), level) {
		return
	}
	for id, snap := range m.Stats() {
		slog.Log(context.Background(), level, "Pipeline stats",
			"pipeline_id", id,
			"recv", snap.Recv,
			"buffer", snap.Buffer,
			"sent_events", snap.SentEvents,
			"sent_batches", snap.SentBatches,
			"failed_batches", snap.FailedBatches,
			"dropped_queue_full", snap.DroppedQueueFull)
	}
}

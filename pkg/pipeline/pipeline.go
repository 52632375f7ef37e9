// Package pipeline runs one assigned pipeline on an agent: a source feeding
// a bounded queue, a batcher with a size-or-age flush rule, an optional
// indexer round-trip, and a destination writer. Isolation between pipelines
// is structural; every Runner owns its own tasks, queue, and statistics.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/observix/observix/pkg/models"
)

// State is the runner lifecycle. Failed is terminal and reached only when
// Start fails; a failed pipeline is retried by reconciliation when its
// version changes.
type State int32

// Runner states.
const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config identifies the assignment a Runner executes.
type Config struct {
	PipelineID string
	Version    int
	Spec       models.PipelineSpec
	AgentID    string
	Region     string
}

// Runner executes one pipeline assignment as three cooperating tasks.
type Runner struct {
	pipelineID string
	version    int
	agentID    string
	region     string
	spec       models.PipelineSpec

	queue   chan models.Event
	batches chan []models.Event

	source Source
	proc   processor
	dest   destination

	stats Stats
	state atomic.Int32

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner builds a runner for one assigned pipeline. Nothing is bound or
// opened until Start.
func NewRunner(cfg Config) *Runner {
	r := &Runner{
		pipelineID: cfg.PipelineID,
		version:    cfg.Version,
		agentID:    cfg.AgentID,
		region:     cfg.Region,
		spec:       cfg.Spec,
	}
	r.state.Store(int32(StateStarting))
	return r
}

// PipelineID returns the assigned pipeline's identifier.
func (r *Runner) PipelineID() string { return r.pipelineID }

// Version returns the pipeline version this runner was built from.
func (r *Runner) Version() int { return r.version }

// State returns the runner's current lifecycle state.
func (r *Runner) State() State { return State(r.state.Load()) }

func (r *Runner) setState(s State) { r.state.Store(int32(s)) }

// Stats returns a point-in-time snapshot of the pipeline's counters.
func (r *Runner) Stats() Snapshot {
	depth := 0
	if r.queue != nil {
		depth = len(r.queue)
	}
	return r.stats.snapshot(depth)
}

// Start decodes the spec, binds the source, opens the destination, and
// launches the pipeline tasks. On any failure the runner transitions to
// StateFailed and no task is left running.
func (r *Runner) Start() error {
	if err := r.open(); err != nil {
		r.setState(StateFailed)
		slog.Error("Pipeline failed to start",
			"pipeline_id", r.pipelineID, "version", r.version, "error", err)
		return err
	}

	r.wg.Add(3)
	go r.runSource()
	go r.runBatcher()
	go r.runDestination()

	r.setState(StateRunning)
	slog.Info("Pipeline started", "pipeline_id", r.pipelineID, "version", r.version)
	return nil
}

func (r *Runner) open() error {
	spec := r.spec
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline spec: %w", err)
	}
	r.spec = spec

	r.queue = make(chan models.Event, queueSize(spec.Source))
	r.batches = make(chan []models.Event, 1)

	if spec.Processor.Mode == models.ProcessorIndexed {
		opts, err := spec.Processor.Indexed()
		if err != nil {
			return fmt.Errorf("processor: %w", err)
		}
		r.proc = newIndexedProcessor(opts, &r.stats)
	} else {
		r.proc = rawProcessor{}
	}

	dest, err := newDestination(spec.Destination)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	source, err := newSource(spec.Source, r.emit)
	if err != nil {
		_ = dest.Close()
		return fmt.Errorf("source: %w", err)
	}

	r.dest = dest
	r.source = source
	return nil
}

// Stop closes the source and waits for the tasks to drain through the
// destination. If ctx expires first the remaining tasks are abandoned with
// a warning; the runner still reports Stopped so reconciliation can replace
// it. Stopping a Failed runner is a no-op.
func (r *Runner) Stop(ctx context.Context) {
	switch r.State() {
	case StateFailed, StateStopped:
		return
	}
	r.setState(StateStopping)

	r.stopOnce.Do(func() {
		if r.source == nil {
			return
		}
		if err := r.source.Close(); err != nil {
			slog.Warn("Source close failed", "pipeline_id", r.pipelineID, "error", err)
		}
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Pipeline stopped", "pipeline_id", r.pipelineID, "version", r.version)
	case <-ctx.Done():
		slog.Warn("Pipeline tasks abandoned at shutdown",
			"pipeline_id", r.pipelineID, "version", r.version, "buffer", len(r.queue))
	}
	r.setState(StateStopped)
}

// emit pushes a source event toward the queue. The newest event is dropped
// when the queue is full so the receive loop never blocks.
func (r *Runner) emit(e models.Event) bool {
	select {
	case r.queue <- e:
		r.stats.recv.Add(1)
		return true
	default:
		r.stats.droppedQueueFull.Add(1)
		return false
	}
}

// runSource drives the source until Close, then closes the queue so the
// batcher can drain and finish.
func (r *Runner) runSource() {
	defer r.wg.Done()
	defer close(r.queue)
	r.source.Run()
}

// runBatcher drains the queue into a buffer and flushes whenever the buffer
// reaches batch_max_events or batch_max_seconds has elapsed since its first
// event. The flush timer is armed by the first buffered event, so empty
// ticks never produce batches.
func (r *Runner) runBatcher() {
	defer r.wg.Done()
	defer close(r.batches)

	maxEvents := r.spec.BatchMaxEvents
	maxAge := time.Duration(r.spec.BatchMaxSeconds * float64(time.Second))

	var (
		buf   []models.Event
		timer *time.Timer
	)
	timerC := func() <-chan time.Time {
		if timer == nil {
			return nil
		}
		return timer.C
	}
	flush := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
		if len(buf) == 0 {
			return
		}
		batch := r.proc.process(buf)
		buf = nil
		if len(batch) == 0 {
			return
		}
		r.enrich(batch)
		r.batches <- batch
	}

	for {
		select {
		case e, ok := <-r.queue:
			if !ok {
				flush()
				return
			}
			buf = append(buf, e)
			if len(buf) == 1 {
				timer = time.NewTimer(maxAge)
			}
			if len(buf) >= maxEvents {
				flush()
			}
		case <-timerC():
			timer = nil
			flush()
		}
	}
}

// runDestination delivers processed batches and keeps score.
func (r *Runner) runDestination() {
	defer r.wg.Done()
	defer func() {
		if err := r.dest.Close(); err != nil {
			slog.Warn("Destination close failed", "pipeline_id", r.pipelineID, "error", err)
		}
	}()

	for batch := range r.batches {
		delivered, err := r.dest.sendBatch(batch)
		r.stats.sentEvents.Add(int64(delivered))
		if err != nil {
			r.stats.recordBatchFailure(err)
			slog.Warn("Batch delivery failed",
				"pipeline_id", r.pipelineID, "delivered", delivered, "size", len(batch), "error", err)
			continue
		}
		r.stats.sentBatches.Add(1)
		r.stats.markOK()
	}
}

// enrich stamps agent and pipeline identity into event metadata before the
// destination sees the batch. The assignment view carries no pipeline name,
// so the pipeline label is the identifier.
func (r *Runner) enrich(batch []models.Event) {
	for i := range batch {
		batch[i].SetMeta("agent_id", r.agentID)
		batch[i].SetMeta("region", r.region)
		batch[i].SetMeta("pipeline", r.pipelineID)
		batch[i].SetMeta("pipeline_id", r.pipelineID)
	}
}

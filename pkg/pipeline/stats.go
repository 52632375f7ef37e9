package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time copy of one pipeline's statistics.
type Snapshot struct {
	Recv             int64      `json:"recv"`
	DroppedQueueFull int64      `json:"dropped_queue_full"`
	SentEvents       int64      `json:"sent_events"`
	SentBatches      int64      `json:"sent_batches"`
	FailedBatches    int64      `json:"failed_batches"`
	Buffer           int        `json:"buffer"`
	LastOK           *time.Time `json:"last_ok,omitempty"`
	LastErr          string     `json:"last_err,omitempty"`
	LastErrAt        *time.Time `json:"last_err_at,omitempty"`
}

// Stats tracks pipeline counters. Counters are atomic; the last_ok/last_err
// pair sits behind a mutex so a snapshot never tears.
type Stats struct {
	recv             atomic.Int64
	droppedQueueFull atomic.Int64
	sentEvents       atomic.Int64
	sentBatches      atomic.Int64
	failedBatches    atomic.Int64

	mu        sync.Mutex
	lastOK    time.Time
	lastErr   string
	lastErrAt time.Time
}

func (s *Stats) markOK() {
	s.mu.Lock()
	s.lastOK = time.Now().UTC()
	s.mu.Unlock()
}

// recordBatchFailure counts one failed batch and remembers its error.
func (s *Stats) recordBatchFailure(err error) {
	s.failedBatches.Add(1)
	s.mu.Lock()
	s.lastErr = err.Error()
	s.lastErrAt = time.Now().UTC()
	s.mu.Unlock()
}

func (s *Stats) snapshot(buffer int) Snapshot {
	s.mu.Lock()
	lastOK, lastErr, lastErrAt := s.lastOK, s.lastErr, s.lastErrAt
	s.mu.Unlock()

	snap := Snapshot{
		Recv:             s.recv.Load(),
		DroppedQueueFull: s.droppedQueueFull.Load(),
		SentEvents:       s.sentEvents.Load(),
		SentBatches:      s.sentBatches.Load(),
		FailedBatches:    s.failedBatches.Load(),
		Buffer:           buffer,
		LastErr:          lastErr,
	}
	if !lastOK.IsZero() {
		snap.LastOK = &lastOK
	}
	if !lastErrAt.IsZero() {
		snap.LastErrAt = &lastErrAt
	}
	return snap
}

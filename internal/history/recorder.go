package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/netpilot/internal/logger"
	"github.com/rileyhilliard/netpilot/internal/state"
)

const recorderBacklog = 64

// Recorder writes every statistics snapshot it is shown to a Store. Render
// calls only hand the batch to a writer goroutine, so the consumer never
// waits on disk.
type Recorder struct {
	store *Store
	log   logger.Logger

	batches chan []Sample
	done    chan struct{}
	once    sync.Once

	written atomic.Int64
	dropped atomic.Int64
}

// NewRecorder starts a recorder writing to store.
func NewRecorder(store *Store, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.Noop()
	}
	r := &Recorder{
		store:   store,
		log:     log,
		batches: make(chan []Sample, recorderBacklog),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// RenderStatistics queues the snapshot's statistics for writing.
func (r *Recorder) RenderStatistics(snap *state.Snapshot) {
	samples := Samples(snap)
	if len(samples) == 0 {
		return
	}
	select {
	case r.batches <- samples:
	default:
		r.dropped.Add(int64(len(samples)))
		r.log.Warn("history writer is behind, dropped %d samples", len(samples))
	}
}

// RenderAdapters is a no-op.
func (r *Recorder) RenderAdapters(*state.Snapshot) {}

// RenderConnections is a no-op.
func (r *Recorder) RenderConnections(*state.Snapshot) {}

// RenderDiagnostics is a no-op.
func (r *Recorder) RenderDiagnostics(*state.Snapshot) {}

// Written returns how many samples have been stored.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// Dropped returns how many samples were discarded because the writer was
// behind.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close flushes queued batches and stops the writer. It does not close the
// store.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.batches)
		<-r.done
	})
}

func (r *Recorder) loop() {
	defer close(r.done)
	for batch := range r.batches {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.store.Write(ctx, batch)
		cancel()
		if err != nil {
			r.log.Error("%v", err)
			continue
		}
		r.written.Add(int64(len(batch)))
	}
}

// Samples converts a snapshot's statistics and rates into rows.
func Samples(snap *state.Snapshot) []Sample {
	if snap == nil || !snap.Statistics.Loaded() || snap.Statistics.Err != "" {
		return nil
	}
	out := make([]Sample, 0, len(snap.Statistics.Items))
	for _, st := range snap.Statistics.Items {
		smp := Sample{
			AdapterID:     st.AdapterID,
			ReceivedBytes: st.ReceivedBytes,
			SentBytes:     st.SentBytes,
			SampledAt:     st.SampledAt,
		}
		if rate, ok := snap.RateFor(st.AdapterID); ok {
			smp.RxPerSec = rate.RxPerSec
			smp.TxPerSec = rate.TxPerSec
		}
		out = append(out, smp)
	}
	return out
}

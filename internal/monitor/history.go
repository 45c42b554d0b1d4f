package monitor

import (
	"sync"

	"github.com/rileyhilliard/netpilot/internal/state"
)

// DefaultHistorySize is the number of rate samples kept per adapter.
const DefaultHistorySize = 60

// History keeps recent throughput per adapter for sparklines.
type History struct {
	mu       sync.RWMutex
	size     int
	adapters map[string]*rateHistory
}

type rateHistory struct {
	rx *ringBuffer
	tx *ringBuffer
}

// ringBuffer is a fixed-size circular buffer for float64 values.
type ringBuffer struct {
	data  []float64
	head  int
	count int
	size  int
}

// NewHistory creates a history with the given buffer size.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		size:     size,
		adapters: make(map[string]*rateHistory),
	}
}

// Push records one rate sample for every adapter in rates. Adapters missing
// from rates are forgotten so a removed adapter doesn't linger.
func (h *History) Push(rates map[string]state.Rate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id := range h.adapters {
		if _, ok := rates[id]; !ok {
			delete(h.adapters, id)
		}
	}
	for id, r := range rates {
		hist, ok := h.adapters[id]
		if !ok {
			hist = &rateHistory{rx: newRingBuffer(h.size), tx: newRingBuffer(h.size)}
			h.adapters[id] = hist
		}
		hist.rx.push(r.RxPerSec)
		hist.tx.push(r.TxPerSec)
	}
}

// Rates returns up to count receive and send samples for an adapter, oldest
// first.
func (h *History) Rates(id string, count int) (rx, tx []float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hist, ok := h.adapters[id]
	if !ok {
		return nil, nil
	}
	return hist.rx.getLast(count), hist.tx.getLast(count)
}

// Count returns the number of samples stored for an adapter.
func (h *History) Count(id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hist, ok := h.adapters[id]
	if !ok {
		return 0
	}
	return hist.rx.count
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		data: make([]float64, size),
		size: size,
	}
}

func (r *ringBuffer) push(value float64) {
	r.data[r.head] = value
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// getLast returns the last count values in chronological order (oldest first).
func (r *ringBuffer) getLast(count int) []float64 {
	if count <= 0 || r.count == 0 {
		return nil
	}
	if count > r.count {
		count = r.count
	}

	result := make([]float64, count)
	// head is the next write position, so the newest value is at head-1.
	start := (r.head - count + r.size) % r.size
	for i := 0; i < count; i++ {
		result[i] = r.data[(start+i)%r.size]
	}
	return result
}

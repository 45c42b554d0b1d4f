package monitor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rileyhilliard/netpilot/internal/state"
)

func TestNewHistory(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		expected int
	}{
		{"default size", 0, DefaultHistorySize},
		{"negative size", -1, DefaultHistorySize},
		{"custom size", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistory(tt.size)
			assert.Equal(t, tt.expected, h.size)
			assert.NotNil(t, h.adapters)
		})
	}
}

func TestHistory_PushAndRates(t *testing.T) {
	h := NewHistory(10)

	for i := 1; i <= 3; i++ {
		h.Push(map[string]state.Rate{
			"eth0": {RxPerSec: float64(i * 100), TxPerSec: float64(i)},
		})
	}

	rx, tx := h.Rates("eth0", 10)
	assert.Equal(t, []float64{100, 200, 300}, rx)
	assert.Equal(t, []float64{1, 2, 3}, tx)
	assert.Equal(t, 3, h.Count("eth0"))

	rx, _ = h.Rates("eth0", 2)
	assert.Equal(t, []float64{200, 300}, rx)
}

func TestHistory_Wraparound(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Push(map[string]state.Rate{"eth0": {RxPerSec: float64(i)}})
	}

	rx, _ := h.Rates("eth0", 10)
	assert.Equal(t, []float64{3, 4, 5}, rx)
	assert.Equal(t, 3, h.Count("eth0"))
}

func TestHistory_ForgetsRemovedAdapters(t *testing.T) {
	h := NewHistory(10)
	h.Push(map[string]state.Rate{"eth0": {}, "wlan0": {}})
	h.Push(map[string]state.Rate{"eth0": {}})

	assert.Equal(t, 2, h.Count("eth0"))
	assert.Equal(t, 0, h.Count("wlan0"))
	rx, tx := h.Rates("wlan0", 5)
	assert.Nil(t, rx)
	assert.Nil(t, tx)
}

func TestHistory_Concurrent(t *testing.T) {
	h := NewHistory(20)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Push(map[string]state.Rate{"eth0": {RxPerSec: float64(j)}})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Rates("eth0", 10)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, h.Count("eth0"))
}

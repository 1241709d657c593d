package engine

import "sync"

// ProfitHistory keeps a bounded trailing window of selected profit rates.
// The adaptive threshold reads only this window, so retention is capped
// instead of growing for the lifetime of the process.
type ProfitHistory struct {
	mu       sync.Mutex
	rates    []float64
	capacity int
}

func NewProfitHistory(capacity int) *ProfitHistory {
	if capacity <= 0 {
		capacity = 10
	}
	return &ProfitHistory{capacity: capacity}
}

// Append records a rate, evicting the oldest entry at capacity.
func (h *ProfitHistory) Append(rate float64) {
	h.mu.Lock()
	h.rates = append(h.rates, rate)
	if len(h.rates) > h.capacity {
		h.rates = h.rates[len(h.rates)-h.capacity:]
	}
	h.mu.Unlock()
}

// Recent returns a copy of the retained window, oldest first.
func (h *ProfitHistory) Recent() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]float64, len(h.rates))
	copy(out, h.rates)
	return out
}

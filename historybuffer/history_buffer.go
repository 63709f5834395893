// Package historybuffer retains a rolling window of delivered samples on the
// consumer side, trimmed to a configured maximum, and converts it into
// age-relative series suitable for plotting with the newest sample at zero.
package historybuffer

import (
	"sync"

	"github.com/cyberinferno/datastream/sample"
)

// DefaultMaxPoints is the retained-history cap used when none is specified.
const DefaultMaxPoints = 1000

// History is a bounded rolling window of samples in arrival order. Appends
// evict the oldest samples once the cap is exceeded. Safe for concurrent
// use.
type History struct {
	mu        sync.Mutex
	samples   []sample.Sample
	maxPoints int
}

// New returns an empty History with the given cap. A maxPoints of zero or
// less falls back to DefaultMaxPoints.
func New(maxPoints int) *History {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	return &History{maxPoints: maxPoints}
}

// Append adds samples to the window in order, evicting the oldest entries
// once the cap is exceeded.
//
// Parameters:
//   - samples: The drained batch to retain; not modified or retained
func (h *History) Append(samples []sample.Sample) {
	if len(samples) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, samples...)
	h.trimLocked()
}

// SetMaxPoints changes the cap, evicting the oldest samples if the window
// currently holds more than the new cap. A value of zero or less falls back
// to DefaultMaxPoints.
func (h *History) SetMaxPoints(maxPoints int) {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.maxPoints = maxPoints
	h.trimLocked()
}

// Len returns the number of retained samples.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}

// Clear empties the window.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = nil
}

// Snapshot returns a copy of the retained samples in arrival order.
func (h *History) Snapshot() []sample.Sample {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) == 0 {
		return nil
	}

	out := make([]sample.Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

// AgeSeries converts the retained window into plot-ready series: for each
// sample, age relative to the newest sample's timestamp (newest at 0, older
// samples at increasing positive age), the value, and the channel. All three
// slices have equal length; they are nil when the window is empty.
//
// Returns:
//   - age: Age of each sample relative to the newest
//   - value: The sample values
//   - channel: The sample channels
func (h *History) AgeSeries() (age, value, channel []float32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) == 0 {
		return nil, nil, nil
	}

	latest := h.samples[len(h.samples)-1].Timestamp
	age = make([]float32, len(h.samples))
	value = make([]float32, len(h.samples))
	channel = make([]float32, len(h.samples))

	for i, s := range h.samples {
		age[i] = float32(latest - s.Timestamp)
		value[i] = s.Value
		channel[i] = float32(s.Channel)
	}

	return age, value, channel
}

// trimLocked evicts oldest samples until the window is within maxPoints.
// Caller must hold h.mu.
func (h *History) trimLocked() {
	if over := len(h.samples) - h.maxPoints; over > 0 {
		h.samples = append(h.samples[:0], h.samples[over:]...)
	}
}

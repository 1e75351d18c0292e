package observability

import (
	"math"
	"sort"
	"sync"

	"github.com/eapache/queue"
)

const (
	// DefaultMaxSamples caps the rolling overhead window.
	DefaultMaxSamples = 1000

	// DefaultOverheadBudgetMs is the maximum acceptable p95 latency
	// attributable to instrumentation itself.
	DefaultOverheadBudgetMs = 10.0

	// minSamplesForDecision gates the excessive-overhead decision so the
	// control loop does not flap on cold start.
	minSamplesForDecision = 100
)

// OverheadStats is a point-in-time view of the tracker's rolling window.
type OverheadStats struct {
	Average         float64
	Max             float64
	Min             float64
	P95             float64
	TotalOperations uint64
	WithinThreshold bool
}

// OverheadTracker keeps rolling statistics over the orchestrator's own
// per-operation cost. The window is capped: the oldest sample is evicted on
// overflow and a running sum keeps the average O(1). p95 is recomputed by
// sorting the window on each statistics request; the fixed cap bounds that
// cost.
type OverheadTracker struct {
	mu         sync.Mutex
	window     *queue.Queue
	maxSamples int
	budgetMs   float64
	sum        float64
	total      uint64
}

// NewOverheadTracker creates a tracker with the given window cap and p95
// budget in milliseconds. Non-positive arguments fall back to the defaults.
func NewOverheadTracker(maxSamples int, budgetMs float64) *OverheadTracker {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	if budgetMs <= 0 {
		budgetMs = DefaultOverheadBudgetMs
	}
	return &OverheadTracker{
		window:     queue.New(),
		maxSamples: maxSamples,
		budgetMs:   budgetMs,
	}
}

// Record appends one measured overhead duration in milliseconds.
func (t *OverheadTracker) Record(ms float64) {
	if ms < 0 {
		return
	}

	t.mu.Lock()
	t.window.Add(ms)
	t.sum += ms
	if t.window.Length() > t.maxSamples {
		evicted := t.window.Remove().(float64)
		t.sum -= evicted
	}
	t.total++
	t.mu.Unlock()
}

// BudgetMs returns the configured p95 budget.
func (t *OverheadTracker) BudgetMs() float64 {
	return t.budgetMs
}

// Statistics computes the current rolling statistics. WithinThreshold is
// p95 <= budget; an empty window reports zero statistics within threshold.
func (t *OverheadTracker) Statistics() OverheadStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.window.Length()
	if n == 0 {
		return OverheadStats{TotalOperations: t.total, WithinThreshold: true}
	}

	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		samples[i] = t.window.Get(i).(float64)
	}
	sort.Float64s(samples)

	p95 := samples[p95Index(n)]
	return OverheadStats{
		Average:         t.sum / float64(n),
		Max:             samples[n-1],
		Min:             samples[0],
		P95:             p95,
		TotalOperations: t.total,
		WithinThreshold: p95 <= t.budgetMs,
	}
}

// IsExcessive reports whether overhead has crossed the throttling
// threshold: p95 above three times the budget, with at least 100 samples
// recorded so a handful of slow cold-start operations cannot trigger the
// control loop.
func (t *OverheadTracker) IsExcessive() bool {
	t.mu.Lock()
	total := t.total
	t.mu.Unlock()

	if total < minSamplesForDecision {
		return false
	}
	return t.Statistics().P95 > 3*t.budgetMs
}

// nearest-rank on the ascending sort
func p95Index(n int) int {
	idx := int(math.Ceil(0.95*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}

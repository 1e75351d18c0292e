package observability

import (
	"context"
	"testing"
)

// BenchmarkTraceOperation measures the full per-operation instrumentation
// cost with a no-op tracer, the number the overhead budget is about.
func BenchmarkTraceOperation(b *testing.B) {
	cfg := DefaultConfig("bench")
	cfg.Metrics.EnableCollection = false

	m, err := NewManager(cfg, Dependencies{})
	if err != nil {
		b.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		b.Fatalf("start: %v", err)
	}
	defer m.Stop(ctx)

	fn := func(context.Context) (any, error) { return nil, nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.TraceOperation(ctx, "bench.op", fn)
	}
}

// BenchmarkOverheadTracker_Record measures one window append.
func BenchmarkOverheadTracker_Record(b *testing.B) {
	tracker := NewOverheadTracker(DefaultMaxSamples, DefaultOverheadBudgetMs)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tracker.Record(float64(i % 20))
	}
}

// BenchmarkOverheadTracker_Statistics measures the sort-based p95 over a
// full window.
func BenchmarkOverheadTracker_Statistics(b *testing.B) {
	tracker := NewOverheadTracker(DefaultMaxSamples, DefaultOverheadBudgetMs)
	for i := 0; i < DefaultMaxSamples; i++ {
		tracker.Record(float64(i % 50))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tracker.Statistics()
	}
}

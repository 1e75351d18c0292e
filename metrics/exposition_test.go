package metrics

import (
	"encoding/json"
	"strings"
	"testing"
)

// TestRenderPrometheus_Counters verifies the documented exposition for a
// counter recorded three times on one route and twice on another.
func TestRenderPrometheus_Counters(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < 3; i++ {
		agg.RecordCounter("requests_total", 1, map[string]string{"route": "/a"})
	}
	for i := 0; i < 2; i++ {
		agg.RecordCounter("requests_total", 1, map[string]string{"route": "/b"})
	}

	out := RenderPrometheus(agg.Snapshot())

	for _, want := range []string{
		"# TYPE requests_total counter",
		`requests_total{route="/a"} 3`,
		`requests_total{route="/b"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// TestRenderPrometheus_Gauges verifies gauge rendering with no labels.
func TestRenderPrometheus_Gauges(t *testing.T) {
	agg := NewAggregator()
	agg.RecordGauge("system_memory_used_bytes", 1048576, nil)

	out := RenderPrometheus(agg.Snapshot())
	if !strings.Contains(out, "# TYPE system_memory_used_bytes gauge\n") {
		t.Errorf("missing gauge TYPE line:\n%s", out)
	}
	if !strings.Contains(out, "system_memory_used_bytes 1048576\n") {
		t.Errorf("missing unlabeled gauge line:\n%s", out)
	}
}

// TestRenderPrometheus_Histogram verifies bucket, sum, and count expansion.
func TestRenderPrometheus_Histogram(t *testing.T) {
	agg := NewAggregator()
	labels := map[string]string{"op": "think"}
	agg.RecordHistogram("latency", 3, labels)
	agg.RecordHistogram("latency", 40, labels)

	out := RenderPrometheus(agg.Snapshot())

	for _, want := range []string{
		"# TYPE latency histogram",
		`latency_bucket{op="think",le="1"} 0`,
		`latency_bucket{op="think",le="5"} 1`,
		`latency_bucket{op="think",le="50"} 2`,
		`latency_bucket{op="think",le="+Inf"} 2`,
		`latency_sum{op="think"} 43`,
		`latency_count{op="think"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	// le must be the last label so the rendered series stays readable.
	if idx := strings.Index(out, `le="+Inf"`); idx == -1 {
		t.Error("missing +Inf bucket")
	}
}

// TestRenderPrometheus_Deterministic verifies two renders of the same state
// are byte identical.
func TestRenderPrometheus_Deterministic(t *testing.T) {
	agg := NewAggregator()
	agg.RecordCounter("c", 1, map[string]string{"z": "1", "a": "2"})
	agg.RecordCounter("c", 1, map[string]string{"b": "9"})
	agg.RecordGauge("g", 5, nil)
	agg.RecordHistogram("h", 1, nil)

	first := RenderPrometheus(agg.Snapshot())
	second := RenderPrometheus(agg.Snapshot())
	if first != second {
		t.Errorf("renders differ:\n%s\n---\n%s", first, second)
	}

	// Labels inside a series render sorted by key.
	if !strings.Contains(first, `c{a="2",z="1"} 1`) {
		t.Errorf("labels not sorted:\n%s", first)
	}
}

// TestRenderJSON verifies the snapshot survives a JSON round trip.
func TestRenderJSON(t *testing.T) {
	agg := NewAggregator()
	agg.RecordCounter("c", 2, map[string]string{"k": "v"})
	agg.RecordHistogram("h", 7, nil)

	out, err := RenderJSON(agg.Snapshot())
	if err != nil {
		t.Fatalf("render json: %v", err)
	}

	var decoded Snapshot
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Counters["c"][0].Value != 2 {
		t.Errorf("counter = %f, want 2", decoded.Counters["c"][0].Value)
	}
	if decoded.Histograms["h"][0].Count != 1 {
		t.Errorf("histogram count = %d, want 1", decoded.Histograms["h"][0].Count)
	}
}

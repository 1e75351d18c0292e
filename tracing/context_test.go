package tracing

import (
	"context"
	"testing"
)

// TestNewRootContext_Identity verifies fresh ids and default sampling.
func TestNewRootContext_Identity(t *testing.T) {
	tc := NewRootContext("agent.think", map[string]string{"tenant": "a"})

	if len(tc.TraceID) != 32 {
		t.Errorf("expected 32 hex chars of trace id, got %d (%q)", len(tc.TraceID), tc.TraceID)
	}
	if len(tc.SpanID) != 16 {
		t.Errorf("expected 16 hex chars of span id, got %d (%q)", len(tc.SpanID), tc.SpanID)
	}
	if tc.ParentSpanID != "" {
		t.Errorf("root context must have no parent, got %q", tc.ParentSpanID)
	}
	if !tc.Sampled {
		t.Error("root context must default to sampled")
	}
	if tc.Operation != "agent.think" {
		t.Errorf("expected operation 'agent.think', got %q", tc.Operation)
	}
	if tc.Baggage["tenant"] != "a" {
		t.Errorf("expected baggage tenant=a, got %q", tc.Baggage["tenant"])
	}
	if tc.StartTime.IsZero() {
		t.Error("start time must be set")
	}
}

// TestNewRootContext_UniqueIDs verifies distinct roots never collide.
func TestNewRootContext_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tc := NewRootContext("op", nil)
		if seen[tc.TraceID] {
			t.Fatalf("duplicate trace id %q", tc.TraceID)
		}
		seen[tc.TraceID] = true
	}
}

// TestNewChildContext_Linkage verifies trace id preservation and parent
// linkage.
func TestNewChildContext_Linkage(t *testing.T) {
	root := NewRootContext("root", nil)
	child := NewChildContext(root, "child", nil)

	if child.TraceID != root.TraceID {
		t.Errorf("child trace id %q does not match root %q", child.TraceID, root.TraceID)
	}
	if child.ParentSpanID != root.SpanID {
		t.Errorf("child parent span id %q does not match root span id %q", child.ParentSpanID, root.SpanID)
	}
	if child.SpanID == root.SpanID {
		t.Error("child must get a fresh span id")
	}
}

// TestNewChildContext_TreeFromOneRoot derives 1000 hops from one root and
// verifies they form a tree with exactly one root.
func TestNewChildContext_TreeFromOneRoot(t *testing.T) {
	root := NewRootContext("root", nil)
	nodes := []*TraceContext{root}

	for i := 0; i < 1000; i++ {
		parent := nodes[i%len(nodes)]
		nodes = append(nodes, NewChildContext(parent, "child", nil))
	}

	spans := make(map[string]*TraceContext, len(nodes))
	roots := 0
	for _, n := range nodes {
		if n.TraceID != root.TraceID {
			t.Fatalf("node escaped the trace: %q", n.TraceID)
		}
		if _, dup := spans[n.SpanID]; dup {
			t.Fatalf("duplicate span id %q", n.SpanID)
		}
		spans[n.SpanID] = n
		if n.ParentSpanID == "" {
			roots++
		}
	}
	if roots != 1 {
		t.Fatalf("expected exactly one root, got %d", roots)
	}

	// Every non-root must reach the root without a cycle.
	for _, n := range nodes {
		seen := make(map[string]bool)
		for cur := n; cur.ParentSpanID != ""; {
			if seen[cur.SpanID] {
				t.Fatalf("cycle at span %q", cur.SpanID)
			}
			seen[cur.SpanID] = true
			parent, ok := spans[cur.ParentSpanID]
			if !ok {
				t.Fatalf("span %q has unknown parent %q", cur.SpanID, cur.ParentSpanID)
			}
			cur = parent
		}
	}
}

// TestNewChildContext_BaggageMerge verifies child overrides parent on
// collision.
func TestNewChildContext_BaggageMerge(t *testing.T) {
	root := NewRootContext("root", map[string]string{"a": "1", "b": "2"})
	child := NewChildContext(root, "child", map[string]string{"b": "3", "c": "4"})

	want := map[string]string{"a": "1", "b": "3", "c": "4"}
	for k, v := range want {
		if child.Baggage[k] != v {
			t.Errorf("baggage[%q] = %q, want %q", k, child.Baggage[k], v)
		}
	}
	if root.Baggage["b"] != "2" {
		t.Error("merging must not mutate the parent's baggage")
	}
}

// TestNewChildContext_InheritsSampling verifies the sampling decision and
// flags flow down.
func TestNewChildContext_InheritsSampling(t *testing.T) {
	root := NewRootContext("root", nil)
	root.Sampled = false
	root.Flags = 3

	child := NewChildContext(root, "child", nil)
	if child.Sampled {
		t.Error("child must inherit sampled=false")
	}
	if child.Flags != 3 {
		t.Errorf("child flags = %d, want 3", child.Flags)
	}
}

// TestAnnotate verifies metadata annotations stick, including on a context
// built without a metadata map.
func TestAnnotate(t *testing.T) {
	tc := &TraceContext{TraceID: "t", SpanID: "s"}
	tc.Annotate("event.agent", "think")

	if tc.Metadata["event.agent"] != "think" {
		t.Errorf("annotation missing, metadata: %v", tc.Metadata)
	}
}

// TestShortID verifies cardinality collapsing keeps only a short suffix.
func TestShortID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"0123456789abcdef", "89abcdef"},
	}
	for _, tt := range tests {
		if got := ShortID(tt.in); got != tt.want {
			t.Errorf("ShortID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestContextCarrying verifies the context.Context round trip.
func TestContextCarrying(t *testing.T) {
	tc := NewRootContext("op", nil)
	ctx := ContextWith(context.Background(), tc)

	got, ok := FromContext(ctx)
	if !ok || got != tc {
		t.Fatal("trace context not carried by context")
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context must carry no trace context")
	}
}

package tracing

import "testing"

// TestInjectExtract_RoundTrip verifies a carrier survives the wire in both
// directions.
func TestInjectExtract_RoundTrip(t *testing.T) {
	root := NewRootContext("root", nil)
	child := NewChildContext(root, "child", nil)
	child.Flags = 1

	carrier := Inject(child)
	got, ok := Extract(carrier)
	if !ok {
		t.Fatal("extract failed on an injected carrier")
	}

	if got.TraceID != child.TraceID {
		t.Errorf("trace id = %q, want %q", got.TraceID, child.TraceID)
	}
	if got.SpanID != child.SpanID {
		t.Errorf("span id = %q, want %q", got.SpanID, child.SpanID)
	}
	if got.ParentSpanID != child.ParentSpanID {
		t.Errorf("parent span id = %q, want %q", got.ParentSpanID, child.ParentSpanID)
	}
	if got.Sampled != child.Sampled {
		t.Errorf("sampled = %v, want %v", got.Sampled, child.Sampled)
	}
	if got.Flags != child.Flags {
		t.Errorf("flags = %d, want %d", got.Flags, child.Flags)
	}
}

// TestInject_NoParentHeader verifies roots do not emit an empty parent
// header.
func TestInject_NoParentHeader(t *testing.T) {
	carrier := Inject(NewRootContext("root", nil))
	if _, ok := carrier[HeaderParentSpanID]; ok {
		t.Error("root carrier must not contain a parent span header")
	}
}

// TestInject_Nil verifies a nil context injects an empty carrier.
func TestInject_Nil(t *testing.T) {
	if got := Inject(nil); len(got) != 0 {
		t.Errorf("expected empty carrier, got %v", got)
	}
}

// TestExtract_CaseInsensitive verifies header casing does not matter.
func TestExtract_CaseInsensitive(t *testing.T) {
	carrier := map[string]string{
		"Trace-ID":       "abc123",
		"SPAN-ID":        "def456",
		"Parent-Span-Id": "0a0b",
		"Sampled":        "TRUE",
		"FLAGS":          "2",
	}

	tc, ok := Extract(carrier)
	if !ok {
		t.Fatal("extract failed on mixed-case headers")
	}
	if tc.TraceID != "abc123" || tc.SpanID != "def456" || tc.ParentSpanID != "0a0b" {
		t.Errorf("unexpected identity: %+v", tc)
	}
	if !tc.Sampled {
		t.Error("sampled=TRUE must parse as true")
	}
	if tc.Flags != 2 {
		t.Errorf("flags = %d, want 2", tc.Flags)
	}
}

// TestExtract_MissingIdentity verifies incomplete carriers yield no context.
func TestExtract_MissingIdentity(t *testing.T) {
	tests := []struct {
		name    string
		carrier map[string]string
	}{
		{"empty", map[string]string{}},
		{"no trace id", map[string]string{HeaderSpanID: "s"}},
		{"no span id", map[string]string{HeaderTraceID: "t"}},
		{"blank trace id", map[string]string{HeaderTraceID: "", HeaderSpanID: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tc, ok := Extract(tt.carrier); ok || tc != nil {
				t.Errorf("expected no context, got %+v", tc)
			}
		})
	}
}

// TestExtract_Defaults verifies optional headers get sane defaults.
func TestExtract_Defaults(t *testing.T) {
	tc, ok := Extract(map[string]string{
		HeaderTraceID: "t",
		HeaderSpanID:  "s",
	})
	if !ok {
		t.Fatal("extract failed")
	}
	if !tc.Sampled {
		t.Error("missing sampled header must default to true")
	}
	if tc.Flags != 0 {
		t.Errorf("flags = %d, want 0", tc.Flags)
	}
	if tc.ParentSpanID != "" {
		t.Errorf("parent span id = %q, want empty", tc.ParentSpanID)
	}
}

// TestExtract_MalformedOptional verifies bad optional values are ignored
// rather than rejected.
func TestExtract_MalformedOptional(t *testing.T) {
	tc, ok := Extract(map[string]string{
		HeaderTraceID: "t",
		HeaderSpanID:  "s",
		HeaderSampled: "banana",
		HeaderFlags:   "not-a-number",
	})
	if !ok {
		t.Fatal("extract failed")
	}
	if tc.Sampled {
		t.Error("unparseable sampled value must read as false")
	}
	if tc.Flags != 0 {
		t.Errorf("flags = %d, want 0", tc.Flags)
	}
}

package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// TraceContext is the identity and propagation record for one traced hop.
//
// Every span in one logical operation tree shares a TraceID; each hop gets a
// fresh SpanID. A TraceContext is read-only after creation except for
// metadata annotations added while the operation runs. It is never persisted
// by this subsystem.
type TraceContext struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Operation    string
	Sampled      bool
	Flags        int
	Baggage      map[string]string
	StartTime    time.Time
	Metadata     map[string]any
}

// NewRootContext creates the trace context for the root of a new operation
// tree. The trace id is 16 bytes and the span id 8 bytes, both hex encoded.
// Sampled defaults to true; an inherited decision arrives via Extract or
// NewChildContext instead.
func NewRootContext(operation string, baggage map[string]string) *TraceContext {
	return &TraceContext{
		TraceID:   newTraceID(),
		SpanID:    newSpanID(),
		Operation: operation,
		Sampled:   true,
		Baggage:   copyBaggage(baggage),
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// NewChildContext derives a child hop from parent: same TraceID, fresh
// SpanID, ParentSpanID linking back to the parent. Baggage entries are
// merged with the child overriding the parent on collision.
func NewChildContext(parent *TraceContext, operation string, baggage map[string]string) *TraceContext {
	merged := copyBaggage(parent.Baggage)
	for k, v := range baggage {
		merged[k] = v
	}

	return &TraceContext{
		TraceID:      parent.TraceID,
		SpanID:       newSpanID(),
		ParentSpanID: parent.SpanID,
		Operation:    operation,
		Sampled:      parent.Sampled,
		Flags:        parent.Flags,
		Baggage:      merged,
		StartTime:    time.Now(),
		Metadata:     make(map[string]any),
	}
}

// Annotate attaches a metadata entry to this hop. Metadata is the only
// mutable part of a TraceContext; annotating from the goroutine running the
// operation is safe because contexts are never shared across concurrent
// operations.
func (tc *TraceContext) Annotate(key string, value any) {
	if tc.Metadata == nil {
		tc.Metadata = make(map[string]any)
	}
	tc.Metadata[key] = value
}

// ShortID collapses a high-cardinality identifier to its trailing 8
// characters so it can be used as a metric label without unbounded
// cardinality.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

func newTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

func newSpanID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// uuid fragment rather than returning an empty id.
		id := uuid.New()
		copy(b[:], id[:8])
	}
	return hex.EncodeToString(b[:])
}

func copyBaggage(baggage map[string]string) map[string]string {
	out := make(map[string]string, len(baggage))
	for k, v := range baggage {
		out[k] = v
	}
	return out
}

type contextKey struct{}

// ContextWith returns a context carrying tc.
func ContextWith(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the TraceContext carried by ctx, if any.
func FromContext(ctx context.Context) (*TraceContext, bool) {
	tc, ok := ctx.Value(contextKey{}).(*TraceContext)
	return tc, ok
}

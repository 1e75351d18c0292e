package tracing

import (
	"strconv"
	"strings"
	"time"
)

// Propagation header names. Carrier lookups are case-insensitive.
const (
	HeaderTraceID      = "trace-id"
	HeaderSpanID       = "span-id"
	HeaderParentSpanID = "parent-span-id"
	HeaderSampled      = "sampled"
	HeaderFlags        = "flags"
)

// Inject renders tc into a propagation carrier. The result contains only
// the fixed identity headers; baggage and metadata do not cross process
// boundaries.
func Inject(tc *TraceContext) map[string]string {
	if tc == nil {
		return map[string]string{}
	}

	carrier := map[string]string{
		HeaderTraceID: tc.TraceID,
		HeaderSpanID:  tc.SpanID,
		HeaderSampled: strconv.FormatBool(tc.Sampled),
		HeaderFlags:   strconv.Itoa(tc.Flags),
	}
	if tc.ParentSpanID != "" {
		carrier[HeaderParentSpanID] = tc.ParentSpanID
	}
	return carrier
}

// Extract reads an inbound carrier and reconstructs the propagated trace
// context. A carrier missing the trace id or span id yields no context.
func Extract(carrier map[string]string) (*TraceContext, bool) {
	traceID, ok := lookup(carrier, HeaderTraceID)
	if !ok || traceID == "" {
		return nil, false
	}
	spanID, ok := lookup(carrier, HeaderSpanID)
	if !ok || spanID == "" {
		return nil, false
	}

	tc := &TraceContext{
		TraceID:   traceID,
		SpanID:    spanID,
		Sampled:   true,
		Baggage:   make(map[string]string),
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
	}

	if parent, ok := lookup(carrier, HeaderParentSpanID); ok {
		tc.ParentSpanID = parent
	}
	if sampled, ok := lookup(carrier, HeaderSampled); ok {
		tc.Sampled = strings.EqualFold(sampled, "true")
	}
	if flags, ok := lookup(carrier, HeaderFlags); ok {
		if n, err := strconv.Atoi(flags); err == nil {
			tc.Flags = n
		}
	}

	return tc, true
}

func lookup(carrier map[string]string, header string) (string, bool) {
	if v, ok := carrier[header]; ok {
		return v, true
	}
	for k, v := range carrier {
		if strings.EqualFold(k, header) {
			return v, true
		}
	}
	return "", false
}

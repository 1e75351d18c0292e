// Package observability is the orchestration layer of the instrumentation
// backbone: it owns configuration, wires tracing, metric aggregation, the
// middleware hook registry, and an overhead tracker, and degrades its own
// fidelity before it degrades the host system.
//
// The Manager exposes two ingress points. RecordEvent ingests domain
// events; TraceOperation wraps a function in a traced hop with ordered
// before/after/error hooks. Both record their own cost, and a p95-based
// control loop halves the tracing sample rate and widens the collection
// interval when that cost exceeds budget.
package observability

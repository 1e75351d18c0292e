// Package tracing provides trace identity, header propagation, and the
// tracing collaborator consumed by the observability manager.
//
// TraceContext is a pure data record: creating root and child hops and
// moving them across process boundaries via carrier headers involves no
// I/O. The OpenTelemetry-backed System turns those records into real spans
// and exposes a sample rate the overhead control loop can lower at runtime.
package tracing

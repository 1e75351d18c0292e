// Package metrics provides in-memory metric aggregation, event ingestion,
// and export for the observability layer.
//
// The Aggregator keeps counter, gauge, and histogram series keyed by name
// plus sorted label set: identical label sets always collapse to the same
// series regardless of insertion order. Snapshots are deep copies, so
// exporters never observe torn state. The Collector adds scheduled pull
// collection from an external performance source, per-kind dispatch of
// domain events, and Prometheus text or JSON export. An optional
// OpenTelemetry mirror forwards every write to otel instruments.
package metrics

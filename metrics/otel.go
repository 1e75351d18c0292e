package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMirror forwards every aggregator write to OpenTelemetry instruments,
// so deployments can export through the standard exporter matrix while the
// aggregator remains the source of truth for the text exposition.
//
// Instruments are created lazily per metric name. Creation failures are
// remembered and the name is skipped from then on; a mirror bug must not
// affect the aggregator.
type OTelMirror struct {
	meter metric.Meter

	mu       sync.Mutex
	counters map[string]metric.Float64Counter
	gauges   map[string]metric.Float64Gauge
	hists    map[string]metric.Float64Histogram
	failed   map[string]struct{}
}

// NewOTelMirror creates a mirror emitting through meter.
func NewOTelMirror(meter metric.Meter) *OTelMirror {
	return &OTelMirror{
		meter:    meter,
		counters: make(map[string]metric.Float64Counter),
		gauges:   make(map[string]metric.Float64Gauge),
		hists:    make(map[string]metric.Float64Histogram),
		failed:   make(map[string]struct{}),
	}
}

func (m *OTelMirror) OnCounter(name string, delta float64, labels map[string]string) {
	m.mu.Lock()
	inst, ok := m.counters[name]
	if !ok {
		if _, bad := m.failed[name]; bad {
			m.mu.Unlock()
			return
		}
		var err error
		inst, err = m.meter.Float64Counter(name)
		if err != nil {
			m.failed[name] = struct{}{}
			m.mu.Unlock()
			return
		}
		m.counters[name] = inst
	}
	m.mu.Unlock()

	inst.Add(context.Background(), delta, metric.WithAttributes(labelAttrs(labels)...))
}

func (m *OTelMirror) OnGauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	inst, ok := m.gauges[name]
	if !ok {
		if _, bad := m.failed[name]; bad {
			m.mu.Unlock()
			return
		}
		var err error
		inst, err = m.meter.Float64Gauge(name)
		if err != nil {
			m.failed[name] = struct{}{}
			m.mu.Unlock()
			return
		}
		m.gauges[name] = inst
	}
	m.mu.Unlock()

	inst.Record(context.Background(), value, metric.WithAttributes(labelAttrs(labels)...))
}

func (m *OTelMirror) OnHistogram(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	inst, ok := m.hists[name]
	if !ok {
		if _, bad := m.failed[name]; bad {
			m.mu.Unlock()
			return
		}
		var err error
		inst, err = m.meter.Float64Histogram(name,
			metric.WithExplicitBucketBoundaries(DefaultBuckets...),
			metric.WithUnit("ms"),
		)
		if err != nil {
			m.failed[name] = struct{}{}
			m.mu.Unlock()
			return
		}
		m.hists[name] = inst
	}
	m.mu.Unlock()

	inst.Record(context.Background(), value, metric.WithAttributes(labelAttrs(labels)...))
}

func labelAttrs(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

var _ Mirror = (*OTelMirror)(nil)

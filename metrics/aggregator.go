package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultBuckets are the fixed histogram boundaries in milliseconds. The
// implicit final bucket is +Inf.
var DefaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// CounterValue is one counter series in a snapshot.
type CounterValue struct {
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// GaugeValue is one gauge series in a snapshot.
type GaugeValue struct {
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// HistogramValue is one histogram series in a snapshot. Buckets holds
// cumulative counts aligned with DefaultBuckets plus a final +Inf bucket,
// so the last entry always equals Count.
type HistogramValue struct {
	Labels  map[string]string `json:"labels,omitempty"`
	Buckets []uint64          `json:"buckets"`
	Sum     float64           `json:"sum"`
	Count   uint64            `json:"count"`
}

// Snapshot is an immutable copy of every series in the aggregator. Series
// within one name are ordered by their label key, so two snapshots of the
// same state render identically.
type Snapshot struct {
	Counters    map[string][]CounterValue   `json:"counters"`
	Gauges      map[string][]GaugeValue     `json:"gauges"`
	Histograms  map[string][]HistogramValue `json:"histograms"`
	CollectedAt time.Time                   `json:"collected_at"`
}

// Mirror receives every aggregator write. The collector attaches an
// OpenTelemetry mirror here; a nil mirror costs nothing.
type Mirror interface {
	OnCounter(name string, delta float64, labels map[string]string)
	OnGauge(name string, value float64, labels map[string]string)
	OnHistogram(name string, value float64, labels map[string]string)
}

type counterSeries struct {
	labels map[string]string
	value  float64
}

type gaugeSeries struct {
	labels map[string]string
	value  float64
}

type histogramSeries struct {
	labels  map[string]string
	buckets []uint64 // len(DefaultBuckets)+1, cumulative
	sum     float64
	count   uint64
}

// Aggregator keeps in-memory counter, gauge, and histogram series keyed by
// name plus sorted label set. One mutex guards the whole table; recorded
// operations are microsecond scale so table-level granularity is acceptable.
type Aggregator struct {
	mu         sync.Mutex
	counters   map[string]map[string]*counterSeries
	gauges     map[string]map[string]*gaugeSeries
	histograms map[string]map[string]*histogramSeries
	mirror     Mirror
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		counters:   make(map[string]map[string]*counterSeries),
		gauges:     make(map[string]map[string]*gaugeSeries),
		histograms: make(map[string]map[string]*histogramSeries),
	}
}

// SetMirror attaches a mirror that observes every subsequent write.
func (a *Aggregator) SetMirror(m Mirror) {
	a.mu.Lock()
	a.mirror = m
	a.mu.Unlock()
}

// RecordCounter adds delta to the counter series for (name, labels).
// Counters are monotonic; a non-positive delta is ignored.
func (a *Aggregator) RecordCounter(name string, delta float64, labels map[string]string) {
	if delta <= 0 {
		return
	}
	key := labelKey(labels)

	a.mu.Lock()
	series, ok := a.counters[name]
	if !ok {
		series = make(map[string]*counterSeries)
		a.counters[name] = series
	}
	entry, ok := series[key]
	if !ok {
		entry = &counterSeries{labels: copyLabels(labels)}
		series[key] = entry
	}
	entry.value += delta
	mirror := a.mirror
	a.mu.Unlock()

	if mirror != nil {
		mirror.OnCounter(name, delta, labels)
	}
}

// RecordGauge sets the gauge series for (name, labels). Last write wins.
func (a *Aggregator) RecordGauge(name string, value float64, labels map[string]string) {
	key := labelKey(labels)

	a.mu.Lock()
	series, ok := a.gauges[name]
	if !ok {
		series = make(map[string]*gaugeSeries)
		a.gauges[name] = series
	}
	entry, ok := series[key]
	if !ok {
		entry = &gaugeSeries{labels: copyLabels(labels)}
		series[key] = entry
	}
	entry.value = value
	mirror := a.mirror
	a.mu.Unlock()

	if mirror != nil {
		mirror.OnGauge(name, value, labels)
	}
}

// RecordHistogram observes value on the histogram series for (name, labels).
// Buckets are cumulative: the observation increments every bucket whose
// boundary is >= value, plus the +Inf bucket.
func (a *Aggregator) RecordHistogram(name string, value float64, labels map[string]string) {
	key := labelKey(labels)

	a.mu.Lock()
	series, ok := a.histograms[name]
	if !ok {
		series = make(map[string]*histogramSeries)
		a.histograms[name] = series
	}
	entry, ok := series[key]
	if !ok {
		entry = &histogramSeries{
			labels:  copyLabels(labels),
			buckets: make([]uint64, len(DefaultBuckets)+1),
		}
		series[key] = entry
	}
	for i, bound := range DefaultBuckets {
		if value <= bound {
			entry.buckets[i]++
		}
	}
	entry.buckets[len(entry.buckets)-1]++ // +Inf
	entry.sum += value
	entry.count++
	mirror := a.mirror
	a.mu.Unlock()

	if mirror != nil {
		mirror.OnHistogram(name, value, labels)
	}
}

// RecordTiming records a duration as both a histogram on name_duration and
// a counter on name_total.
func (a *Aggregator) RecordTiming(name string, durationMs float64, labels map[string]string) {
	a.RecordHistogram(name+"_duration", durationMs, labels)
	a.RecordCounter(name+"_total", 1, labels)
}

// Snapshot returns a deep copy of every series. Concurrent exporters never
// see the live structures.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		Counters:    make(map[string][]CounterValue, len(a.counters)),
		Gauges:      make(map[string][]GaugeValue, len(a.gauges)),
		Histograms:  make(map[string][]HistogramValue, len(a.histograms)),
		CollectedAt: time.Now(),
	}

	for name, series := range a.counters {
		values := make([]CounterValue, 0, len(series))
		for _, key := range sortedKeys(series) {
			entry := series[key]
			values = append(values, CounterValue{Labels: copyLabels(entry.labels), Value: entry.value})
		}
		snap.Counters[name] = values
	}

	for name, series := range a.gauges {
		values := make([]GaugeValue, 0, len(series))
		for _, key := range sortedKeys(series) {
			entry := series[key]
			values = append(values, GaugeValue{Labels: copyLabels(entry.labels), Value: entry.value})
		}
		snap.Gauges[name] = values
	}

	for name, series := range a.histograms {
		values := make([]HistogramValue, 0, len(series))
		for _, key := range sortedKeys(series) {
			entry := series[key]
			buckets := make([]uint64, len(entry.buckets))
			copy(buckets, entry.buckets)
			values = append(values, HistogramValue{
				Labels:  copyLabels(entry.labels),
				Buckets: buckets,
				Sum:     entry.sum,
				Count:   entry.count,
			})
		}
		snap.Histograms[name] = values
	}

	return snap
}

// Reset clears all series. Explicit request only; nothing inside this
// package ever calls it.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.counters = make(map[string]map[string]*counterSeries)
	a.gauges = make(map[string]map[string]*gaugeSeries)
	a.histograms = make(map[string]map[string]*histogramSeries)
	a.mu.Unlock()
}

// labelKey builds the series key from labels sorted by key, so identical
// label sets collapse to the same series regardless of insertion order.
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](series map[string]V) []string {
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SYMBaiEX/SYMindX-sub014/logging"
)

// SystemMetrics is one reading from the external performance source.
type SystemMetrics struct {
	MemoryUsedBytes  float64 `json:"memory_used_bytes"`
	MemoryTotalBytes float64 `json:"memory_total_bytes"`
	CPUPercent       float64 `json:"cpu_percent"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	EventLoopDelayMs float64 `json:"event_loop_delay_ms"`
}

// MemoryPercent returns used memory as a fraction of total, or 0 when the
// total is unknown.
func (m SystemMetrics) MemoryPercent() float64 {
	if m.MemoryTotalBytes <= 0 {
		return 0
	}
	return m.MemoryUsedBytes / m.MemoryTotalBytes
}

// PerformanceSource is the external process sampler this subsystem pulls
// from. Implementations live outside this module.
type PerformanceSource interface {
	SystemMetrics(ctx context.Context) (SystemMetrics, error)
}

// GaugeFunc supplies the current value for a registered custom gauge.
type GaugeFunc func() float64

type customGauge struct {
	labels map[string]string
	fn     GaugeFunc
}

// CollectorConfig configures the metrics collector.
type CollectorConfig struct {
	// Interval between scheduled pull collections. Default: 10s.
	Interval time.Duration

	// EnableCollection turns the periodic pull loop on.
	EnableCollection bool
}

// Collector wraps the aggregator with scheduled pull collection, event
// ingestion, and export.
//
// Contract:
// - Concurrency: safe for concurrent use; the pull loop and request-path
//   writers share the aggregator, whose gauges are last-write-wins and
//   whose counters and histograms never lose concurrent updates.
// - Errors: ingestion failures are logged, never returned; only Export
//   returns an error, for an unsupported format.
type Collector struct {
	agg    *Aggregator
	source PerformanceSource
	log    logging.Logger

	agents  *EntityCollector
	portals *PortalCollector

	mu       sync.Mutex
	interval time.Duration
	enabled  bool
	gauges   map[string]customGauge
	running  bool
	done     chan struct{}
	stopped  chan struct{}
}

// NewCollector creates a collector over agg pulling from source. A nil
// source disables system gauge collection but leaves event ingestion and
// export fully functional.
func NewCollector(agg *Aggregator, source PerformanceSource, cfg CollectorConfig, log logging.Logger) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Collector{
		agg:      agg,
		source:   source,
		log:      log.WithComponent("metrics-collector"),
		agents:   NewEntityCollector(agg, "agent"),
		portals:  NewPortalCollector(agg),
		interval: cfg.Interval,
		enabled:  cfg.EnableCollection,
		gauges:   make(map[string]customGauge),
	}
}

// Aggregator exposes the underlying aggregator.
func (c *Collector) Aggregator() *Aggregator { return c.agg }

// Agents exposes the per-agent entity collector.
func (c *Collector) Agents() *EntityCollector { return c.agents }

// Portals exposes the per-portal entity collector.
func (c *Collector) Portals() *PortalCollector { return c.portals }

// RegisterGauge registers a custom gauge read on every scheduled collection.
// Registering an existing name replaces it.
func (c *Collector) RegisterGauge(name string, labels map[string]string, fn GaugeFunc) {
	c.mu.Lock()
	c.gauges[name] = customGauge{labels: copyLabels(labels), fn: fn}
	c.mu.Unlock()
}

// UnregisterGauge removes a custom gauge.
func (c *Collector) UnregisterGauge(name string) {
	c.mu.Lock()
	delete(c.gauges, name)
	c.mu.Unlock()
}

// SetInterval adjusts the pull interval. The running loop picks the new
// value up on its next tick.
func (c *Collector) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
}

// Interval returns the current pull interval.
func (c *Collector) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// SetEnabled flips the collection flag consulted by Start. It does not stop
// a running loop; callers pair it with Start or Stop.
func (c *Collector) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

// Start launches the periodic pull loop. Idempotent; a collector created
// with EnableCollection=false starts only event ingestion.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running || !c.enabled {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.done = make(chan struct{})
	c.stopped = make(chan struct{})
	done, stopped := c.done, c.stopped
	c.mu.Unlock()

	go c.loop(ctx, done, stopped)
}

// Stop terminates the pull loop and waits for it to exit. Idempotent.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	done, stopped := c.done, c.stopped
	c.mu.Unlock()

	close(done)
	<-stopped
}

func (c *Collector) loop(ctx context.Context, done, stopped chan struct{}) {
	defer close(stopped)

	timer := time.NewTimer(c.Interval())
	defer timer.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			c.CollectOnce(ctx)
			timer.Reset(c.Interval())
		}
	}
}

// CollectOnce performs one pull collection: system gauges from the
// performance source plus every registered custom gauge.
func (c *Collector) CollectOnce(ctx context.Context) {
	if c.source != nil {
		sys, err := c.source.SystemMetrics(ctx)
		if err != nil {
			c.log.Warn(ctx, "system metrics collection failed", logging.F("error", err.Error()))
		} else {
			c.agg.RecordGauge("system_memory_used_bytes", sys.MemoryUsedBytes, nil)
			c.agg.RecordGauge("system_memory_total_bytes", sys.MemoryTotalBytes, nil)
			c.agg.RecordGauge("system_cpu_percent", sys.CPUPercent, nil)
			c.agg.RecordGauge("system_uptime_seconds", sys.UptimeSeconds, nil)
			c.agg.RecordGauge("system_event_loop_delay_ms", sys.EventLoopDelayMs, nil)
		}
	}

	c.mu.Lock()
	gauges := make(map[string]customGauge, len(c.gauges))
	for name, g := range c.gauges {
		gauges[name] = g
	}
	c.mu.Unlock()

	for name, g := range gauges {
		c.agg.RecordGauge(name, g.fn(), g.labels)
	}
}

// RecordEvent dispatches one observability event to its per-kind handler.
// Every mapping records its own processing latency into a dedicated
// overhead histogram. Unknown kinds are counted and dropped.
func (c *Collector) RecordEvent(ctx context.Context, ev Event) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error(ctx, "event handler panicked",
				logging.F("kind", string(ev.Kind)),
				logging.F("panic", fmt.Sprint(r)))
		}
		ms := float64(time.Since(start)) / float64(time.Millisecond)
		c.agg.RecordHistogram("observability_event_processing_ms", ms,
			map[string]string{"kind": string(ev.Kind)})
	}()

	switch ev.Kind {
	case EventAgent:
		c.handleAgentEvent(ev)
	case EventPortal:
		c.handlePortalEvent(ev)
	case EventExtension:
		c.handleExtensionEvent(ev)
	case EventMemory:
		c.handleMemoryEvent(ev)
	case EventHealth:
		c.handleHealthEvent(ev)
	case EventSystem:
		c.handleSystemEvent(ev)
	default:
		c.agg.RecordCounter("observability_events_dropped_total", 1,
			map[string]string{"kind": string(ev.Kind)})
		c.log.Warn(ctx, "dropped event of unknown kind", logging.F("kind", string(ev.Kind)))
	}
}

func (c *Collector) handleAgentEvent(ev Event) {
	labels := map[string]string{"agent_id": ev.EntityID, "action": ev.Operation}

	c.agents.Increment(ev.EntityID)
	c.agg.RecordCounter("agent_actions_total", 1, labels)
	if ev.Failed() {
		c.agg.RecordCounter("agent_errors_total", 1, labels)
	}
	if ev.DurationMs > 0 {
		c.agg.RecordHistogram("agent_think_duration_ms", ev.DurationMs,
			map[string]string{"agent_id": ev.EntityID})
	}
}

func (c *Collector) handlePortalEvent(ev Event) {
	c.portals.Increment(ev.EntityID)
	c.portals.RecordRequest(ev.EntityID, ev.Model, ev.TokensUsed, ev.Failed())
	if ev.DurationMs > 0 {
		c.agg.RecordHistogram("portal_response_duration_ms", ev.DurationMs,
			map[string]string{"portal_id": ev.EntityID, "model": ev.Model})
	}
}

func (c *Collector) handleExtensionEvent(ev Event) {
	labels := map[string]string{"extension_id": ev.EntityID, "operation": ev.Operation}

	c.agg.RecordCounter("extension_events_total", 1, labels)
	if ev.Failed() {
		c.agg.RecordCounter("extension_errors_total", 1, labels)
	}
	if ev.DurationMs > 0 {
		c.agg.RecordHistogram("extension_duration_ms", ev.DurationMs, labels)
	}
}

func (c *Collector) handleMemoryEvent(ev Event) {
	labels := map[string]string{"provider": ev.EntityID, "operation": ev.Operation}

	c.agg.RecordCounter("memory_operations_total", 1, labels)
	if ev.Failed() {
		c.agg.RecordCounter("memory_errors_total", 1, labels)
	}
	if ev.DurationMs > 0 {
		c.agg.RecordHistogram("memory_operation_duration_ms", ev.DurationMs, labels)
	}
}

func (c *Collector) handleHealthEvent(ev Event) {
	labels := map[string]string{"component": ev.EntityID, "status": string(ev.Status)}

	c.agg.RecordCounter("health_checks_total", 1, labels)
	healthy := 1.0
	if ev.Failed() {
		healthy = 0
	}
	c.agg.RecordGauge("health_status", healthy, map[string]string{"component": ev.EntityID})
}

func (c *Collector) handleSystemEvent(ev Event) {
	labels := map[string]string{"operation": ev.Operation}

	c.agg.RecordCounter("system_events_total", 1, labels)
	if ev.Value != 0 {
		// Fixed metric name with the operation as a label; event data must
		// never mint new metric names.
		c.agg.RecordGauge("system_event_value", ev.Value, labels)
	}
}

// Export renders the current snapshot in the named format. Unknown formats
// are programmer errors and fail synchronously.
func (c *Collector) Export(format string) (string, error) {
	snap := c.agg.Snapshot()
	switch format {
	case FormatPrometheus:
		return RenderPrometheus(snap), nil
	case FormatJSON:
		return RenderJSON(snap)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Consolidated is the merged snapshot returned by GetMetrics: the series
// table plus externally supplied system and health data.
type Consolidated struct {
	Timestamp time.Time         `json:"timestamp"`
	Metrics   Snapshot          `json:"metrics"`
	System    *SystemMetrics    `json:"system,omitempty"`
	Health    map[string]string `json:"health,omitempty"`
}

// GetMetrics assembles a consolidated snapshot. The system and health
// arguments come from the manager's external collaborators; either may be
// nil.
func (c *Collector) GetMetrics(system *SystemMetrics, health map[string]string) Consolidated {
	return Consolidated{
		Timestamp: time.Now(),
		Metrics:   c.agg.Snapshot(),
		System:    system,
		Health:    health,
	}
}

package observability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SYMBaiEX/SYMindX-sub014/health"
	"github.com/SYMBaiEX/SYMindX-sub014/logging"
	"github.com/SYMBaiEX/SYMindX-sub014/metrics"
	"github.com/SYMBaiEX/SYMindX-sub014/tracing"
)

// Self-throttling policy: when overhead crosses the excessive threshold the
// sample rate halves and the collection interval grows by half, bounded so
// the loop converges instead of collapsing instrumentation entirely.
const (
	minSampleRate         = 0.01
	maxCollectionInterval = 30 * time.Second
	intervalGrowthFactor  = 1.5
	throttleCooldown      = 10 * time.Second
)

// Dependencies are the external collaborators wired into a Manager.
// Tracing defaults to a no-op system; the rest may be nil.
type Dependencies struct {
	Tracing  tracing.System
	Alerting AlertingSystem
	Health   health.Registry
	Source   metrics.PerformanceSource
	Mirror   metrics.Mirror
	Logger   logging.Logger
}

// HealthReporter is implemented by health registries that can summarize
// the components they track. The dashboard uses it when available.
type HealthReporter interface {
	Summary(ctx context.Context) HealthSummary
}

// ManagerStats is a snapshot of the manager's own state.
type ManagerStats struct {
	Running       bool
	UptimeSeconds float64
	EventsSeen    uint64
	Overhead      OverheadStats
	Tracing       tracing.Statistics
}

// Manager is the observability orchestrator: it owns configuration, wires
// the aggregator, collector, overhead tracker, and middleware registry, and
// exposes the two ingress points every subsystem uses.
//
// Construct one instance at the composition root and pass it by reference;
// tests build isolated instances the same way.
//
// Contract:
// - Concurrency: safe for concurrent use; no lock is held while a wrapped
//   operation runs, so operations may suspend indefinitely.
// - Errors: wrapped-operation errors always propagate unchanged after
//   bookkeeping. Instrumentation-internal failures are logged and contained.
type Manager struct {
	log        logging.Logger
	tracer     tracing.System
	alerting   AlertingSystem
	healthReg  health.Registry
	source     metrics.PerformanceSource
	agg        *metrics.Aggregator
	collector  *metrics.Collector
	tracker    *OverheadTracker
	middleware *MiddlewareManager

	running    atomic.Bool
	eventsSeen atomic.Uint64

	mu           sync.Mutex
	cfg          Config
	startedAt    time.Time
	lastThrottle time.Time
	eventSubs    []func(metrics.Event)
	configSubs   []func(Config)
}

// NewManager creates a stopped manager from cfg and deps.
func NewManager(cfg Config, deps Dependencies) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := deps.Logger
	if log == nil {
		log = logging.New(cfg.Logging.Level)
	}
	tracer := deps.Tracing
	if tracer == nil {
		tracer = tracing.NewNopSystem(cfg.Tracing.SampleRate)
	}
	tracer.SetSampleRate(cfg.Tracing.SampleRate)

	agg := metrics.NewAggregator()
	if deps.Mirror != nil {
		agg.SetMirror(deps.Mirror)
	}

	collector := metrics.NewCollector(agg, deps.Source, metrics.CollectorConfig{
		Interval:         cfg.Metrics.CollectionInterval,
		EnableCollection: cfg.Metrics.EnableCollection,
	}, log)

	return &Manager{
		log:        log.WithComponent("observability"),
		tracer:     tracer,
		alerting:   deps.Alerting,
		healthReg:  deps.Health,
		source:     deps.Source,
		agg:        agg,
		collector:  collector,
		tracker:    NewOverheadTracker(DefaultMaxSamples, cfg.OverheadBudgetMs),
		middleware: NewMiddlewareManager(log),
		cfg:        cfg,
	}, nil
}

// Middleware exposes the hook registry collaborators register against.
func (m *Manager) Middleware() *MiddlewareManager { return m.middleware }

// Collector exposes the metrics collector.
func (m *Manager) Collector() *metrics.Collector { return m.collector }

// Overhead exposes the overhead tracker.
func (m *Manager) Overhead() *OverheadTracker { return m.tracker }

// Config returns a copy of the current configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Running reports whether the manager is started.
func (m *Manager) Running() bool { return m.running.Load() }

// OnEvent registers a callback invoked for every recorded event. Callback
// failures are contained.
func (m *Manager) OnEvent(fn func(metrics.Event)) {
	m.mu.Lock()
	m.eventSubs = append(m.eventSubs, fn)
	m.mu.Unlock()
}

// OnConfigUpdate registers a callback invoked after each applied update.
func (m *Manager) OnConfigUpdate(fn func(Config)) {
	m.mu.Lock()
	m.configSubs = append(m.configSubs, fn)
	m.mu.Unlock()
}

// Start transitions stopped -> running. Idempotent.
func (m *Manager) Start(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return nil
	}

	m.mu.Lock()
	m.startedAt = time.Now()
	cfg := m.cfg
	m.mu.Unlock()

	if cfg.Enabled && cfg.Metrics.EnableCollection {
		m.collector.Start(ctx)
	}
	if m.alerting != nil {
		m.alerting.StartEvaluation()
	}
	if m.healthReg != nil && cfg.Health.EnableHealthChecks {
		m.registerOverheadProbe()
	}

	m.log.Info(ctx, "observability started",
		logging.F("sample_rate", m.tracer.SampleRate()),
		logging.F("collection_interval", m.collector.Interval().String()))
	return nil
}

// Stop transitions running -> stopped, flushing pending data first.
// Idempotent.
func (m *Manager) Stop(ctx context.Context) error {
	if !m.running.CompareAndSwap(true, false) {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.collector.Stop()
		return nil
	})
	if m.alerting != nil {
		g.Go(func() error {
			m.alerting.StopEvaluation()
			return nil
		})
	}
	if closer, ok := m.tracer.(interface{ Shutdown(context.Context) error }); ok {
		g.Go(func() error {
			if err := closer.Shutdown(ctx); err != nil {
				return fmt.Errorf("tracer shutdown: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	m.log.Info(ctx, "observability stopped")
	return err
}

// RecordEvent ingests one domain event: annotates the active trace,
// forwards to the metrics collector, notifies local subscribers, and
// records its own cost regardless of outcome.
func (m *Manager) RecordEvent(ctx context.Context, ev metrics.Event) {
	if !m.running.Load() || !m.enabled() {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.log.Error(ctx, "event ingestion panicked", logging.F("panic", fmt.Sprint(r)))
		}
		m.tracker.Record(float64(time.Since(start)) / float64(time.Millisecond))
		m.maybeThrottle(ctx)
	}()

	if tc, ok := tracing.FromContext(ctx); ok {
		tc.Annotate("event."+string(ev.Kind), ev.Operation)
	}

	m.eventsSeen.Add(1)
	m.collector.RecordEvent(ctx, ev)
	m.notifyEvent(ctx, ev)
}

// TraceOption adjusts one TraceOperation call.
type TraceOption func(*traceOptions)

type traceOptions struct {
	parent   *tracing.TraceContext
	metadata map[string]any
	baggage  map[string]string
}

// WithParent forces an explicit parent context instead of the one carried
// by ctx.
func WithParent(parent *tracing.TraceContext) TraceOption {
	return func(o *traceOptions) { o.parent = parent }
}

// WithMetadata annotates the span before the operation runs.
func WithMetadata(md map[string]any) TraceOption {
	return func(o *traceOptions) { o.metadata = md }
}

// WithBaggage adds baggage entries to the new hop.
func WithBaggage(baggage map[string]string) TraceOption {
	return func(o *traceOptions) { o.baggage = baggage }
}

// TraceOperation runs fn inside a traced hop: child of the parent carried
// by ctx (or an explicit WithParent), root otherwise. Before hooks run
// first; on success the span is marked ok and after hooks run; on failure
// the span is marked error and error hooks run. The span is always
// finished, exactly once, even when fn panics; the panic propagates to
// the caller after the span is closed. fn's error is returned unchanged.
// When the manager is stopped or disabled, fn runs bare.
func (m *Manager) TraceOperation(ctx context.Context, name string, fn func(context.Context) (any, error), opts ...TraceOption) (any, error) {
	if fn == nil {
		return nil, ErrNilOperation
	}
	if !m.running.Load() || !m.enabled() {
		return fn(ctx)
	}

	var o traceOptions
	for _, opt := range opts {
		opt(&o)
	}

	parent := o.parent
	if parent == nil {
		if tc, ok := tracing.FromContext(ctx); ok {
			parent = tc
		}
	}

	start := time.Now()
	var tc *tracing.TraceContext
	if parent != nil {
		tc = tracing.NewChildContext(parent, name, o.baggage)
		m.guard(ctx, "start child trace", func() { m.tracer.StartChildTrace(tc) })
	} else {
		tc = tracing.NewRootContext(name, o.baggage)
		m.guard(ctx, "start trace", func() { m.tracer.StartTrace(tc) })
	}
	for k, v := range o.metadata {
		tc.Annotate(k, v)
	}

	opCtx := tracing.ContextWith(ctx, tc)
	hc := &HookContext{Trace: tc, Operation: name, Metadata: o.metadata}
	m.middleware.RunBefore(opCtx, hc)

	fnStart := time.Now()
	var fnElapsed time.Duration
	completed := false

	// The span must finish and the overhead sample must land even when fn
	// panics; the defer runs on the unwind and the panic continues past us
	// untouched.
	defer func() {
		if !completed {
			if fnElapsed == 0 {
				fnElapsed = time.Since(fnStart)
			}
			m.guard(ctx, "set trace status", func() {
				m.tracer.SetTraceStatus(tc, tracing.SpanStatusError, "operation panicked")
			})
		}
		m.guard(ctx, "finish trace", func() { m.tracer.FinishTrace(tc) })

		overhead := time.Since(start) - fnElapsed
		m.tracker.Record(float64(overhead) / float64(time.Millisecond))
		m.maybeThrottle(ctx)
	}()

	result, err := fn(opCtx)
	fnElapsed = time.Since(fnStart)

	if err != nil {
		m.guard(ctx, "set trace status", func() {
			m.tracer.SetTraceStatus(tc, tracing.SpanStatusError, err.Error())
		})
		m.middleware.RunError(opCtx, hc, err)
	} else {
		m.guard(ctx, "set trace status", func() {
			m.tracer.SetTraceStatus(tc, tracing.SpanStatusOK, "")
		})
		m.middleware.RunAfter(opCtx, hc, result)
	}
	completed = true

	return result, err
}

// Wrap returns fn wrapped with TraceOperation, for application at
// composition sites.
func (m *Manager) Wrap(name string, fn func(context.Context) (any, error), opts ...TraceOption) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return m.TraceOperation(ctx, name, fn, opts...)
	}
}

// GetMetrics assembles the consolidated snapshot: the series table plus
// current system and health data from the external collaborators.
func (m *Manager) GetMetrics(ctx context.Context) metrics.Consolidated {
	return m.collector.GetMetrics(m.readSystem(ctx), m.healthComponents(ctx))
}

// DashboardData assembles metrics, alerts, health, overhead, and insights
// into one read-only structure.
func (m *Manager) DashboardData(ctx context.Context) DashboardData {
	system := m.readSystem(ctx)
	consolidated := m.collector.GetMetrics(system, m.healthComponents(ctx))

	var alerts []Alert
	if m.alerting != nil {
		alerts = m.alerting.ActiveAlerts()
	}

	summary := HealthSummary{Overall: "unknown"}
	if reporter, ok := m.healthReg.(HealthReporter); ok {
		summary = reporter.Summary(ctx)
	}

	overhead := m.tracker.Statistics()
	return DashboardData{
		Timestamp: time.Now(),
		Metrics:   consolidated,
		Alerts:    alerts,
		Health:    summary,
		Overhead:  overhead,
		Insights:  buildInsights(system, consolidated.Metrics, len(alerts), overhead),
	}
}

// Statistics returns the manager's own state snapshot.
func (m *Manager) Statistics() ManagerStats {
	m.mu.Lock()
	startedAt := m.startedAt
	m.mu.Unlock()

	var uptime float64
	if m.running.Load() && !startedAt.IsZero() {
		uptime = time.Since(startedAt).Seconds()
	}
	return ManagerStats{
		Running:       m.running.Load(),
		UptimeSeconds: uptime,
		EventsSeen:    m.eventsSeen.Load(),
		Overhead:      m.tracker.Statistics(),
		Tracing:       m.tracer.Statistics(),
	}
}

// UpdateConfig applies a new configuration to the running manager: sample
// rate, collection interval and enablement, and middleware enabled flags.
func (m *Manager) UpdateConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.cfg = cfg
	subs := make([]func(Config), len(m.configSubs))
	copy(subs, m.configSubs)
	m.mu.Unlock()

	m.tracer.SetSampleRate(cfg.Tracing.SampleRate)
	m.collector.SetInterval(cfg.Metrics.CollectionInterval)
	m.collector.SetEnabled(cfg.Metrics.EnableCollection)

	if m.running.Load() {
		if cfg.Enabled && cfg.Metrics.EnableCollection {
			m.collector.Start(ctx)
		} else {
			m.collector.Stop()
		}
	}

	for name, enabled := range cfg.Middleware {
		if err := m.middleware.SetEnabled(name, enabled); err != nil {
			m.log.Warn(ctx, "config names unknown middleware", logging.F("middleware", name))
		}
	}

	for _, fn := range subs {
		m.guard(ctx, "config subscriber", func() { fn(cfg) })
	}

	m.log.Info(ctx, "configuration updated",
		logging.F("enabled", cfg.Enabled),
		logging.F("sample_rate", cfg.Tracing.SampleRate),
		logging.F("collection_interval", cfg.Metrics.CollectionInterval.String()))
	return nil
}

// WatchConfig applies every snapshot published by provider until ctx ends.
func (m *Manager) WatchConfig(ctx context.Context, provider *FileProvider) {
	updates := provider.Subscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				if err := m.UpdateConfig(ctx, cfg); err != nil {
					m.log.Warn(ctx, "config update rejected", logging.F("error", err.Error()))
				}
			}
		}
	}()
}

func (m *Manager) enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Enabled
}

// maybeThrottle is the negative-feedback loop: when the tracker reports
// excessive overhead, trade fidelity for cost. Re-evaluated at most once
// per cooldown so a single burst cannot collapse the rate straight to the
// floor.
func (m *Manager) maybeThrottle(ctx context.Context) {
	m.mu.Lock()
	if time.Since(m.lastThrottle) < throttleCooldown {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if !m.tracker.IsExcessive() {
		return
	}

	m.mu.Lock()
	if time.Since(m.lastThrottle) < throttleCooldown {
		m.mu.Unlock()
		return
	}
	m.lastThrottle = time.Now()

	rate := m.tracer.SampleRate() / 2
	if rate < minSampleRate {
		rate = minSampleRate
	}
	interval := time.Duration(float64(m.collector.Interval()) * intervalGrowthFactor)
	if interval > maxCollectionInterval {
		interval = maxCollectionInterval
	}
	m.cfg.Tracing.SampleRate = rate
	m.cfg.Metrics.CollectionInterval = interval
	m.mu.Unlock()

	m.tracer.SetSampleRate(rate)
	m.collector.SetInterval(interval)

	stats := m.tracker.Statistics()
	m.log.Warn(ctx, "instrumentation overhead excessive, throttling",
		logging.F("p95_ms", stats.P95),
		logging.F("budget_ms", m.tracker.BudgetMs()),
		logging.F("sample_rate", rate),
		logging.F("collection_interval", interval.String()))
}

func (m *Manager) registerOverheadProbe() {
	err := m.healthReg.RegisterCheck(health.Descriptor{
		Name:        "observability-overhead",
		Description: "p95 cost of instrumentation bookkeeping against its budget",
		Interval:    30 * time.Second,
	}, func(ctx context.Context) health.Result {
		stats := m.tracker.Statistics()
		details := map[string]any{
			"p95_ms":     stats.P95,
			"average_ms": stats.Average,
			"budget_ms":  m.tracker.BudgetMs(),
		}
		switch {
		case m.tracker.IsExcessive():
			return health.Unhealthy("instrumentation overhead excessive").WithDetails(details)
		case !stats.WithinThreshold:
			return health.Degraded("instrumentation overhead above budget").WithDetails(details)
		default:
			return health.Healthy("instrumentation overhead within budget").WithDetails(details)
		}
	})
	if err != nil {
		m.log.Warn(context.Background(), "failed to register overhead probe", logging.F("error", err.Error()))
	}
}

func (m *Manager) readSystem(ctx context.Context) *metrics.SystemMetrics {
	if m.source == nil {
		return nil
	}
	sys, err := m.source.SystemMetrics(ctx)
	if err != nil {
		m.log.Warn(ctx, "performance source read failed", logging.F("error", err.Error()))
		return nil
	}
	return &sys
}

func (m *Manager) healthComponents(ctx context.Context) map[string]string {
	reporter, ok := m.healthReg.(HealthReporter)
	if !ok {
		return nil
	}
	return reporter.Summary(ctx).Components
}

func (m *Manager) notifyEvent(ctx context.Context, ev metrics.Event) {
	m.mu.Lock()
	subs := make([]func(metrics.Event), len(m.eventSubs))
	copy(subs, m.eventSubs)
	m.mu.Unlock()

	for _, fn := range subs {
		m.guard(ctx, "event subscriber", func() { fn(ev) })
	}
}

// guard contains instrumentation-internal panics: a bug in observability
// must not take down the thing it observes.
func (m *Manager) guard(ctx context.Context, op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error(ctx, "internal observability failure",
				logging.F("op", op),
				logging.F("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

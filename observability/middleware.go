package observability

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/SYMBaiEX/SYMindX-sub014/logging"
	"github.com/SYMBaiEX/SYMindX-sub014/tracing"
)

// HookContext is the per-operation view handed to middleware hooks.
type HookContext struct {
	Trace     *tracing.TraceContext
	Operation string
	Metadata  map[string]any
}

// BeforeHook runs before the traced operation.
type BeforeHook func(ctx context.Context, hc *HookContext) error

// AfterHook runs after a successful traced operation.
type AfterHook func(ctx context.Context, hc *HookContext, result any) error

// ErrorHook runs after a failed traced operation.
type ErrorHook func(ctx context.Context, hc *HookContext, opErr error) error

// Middleware is a named, prioritized set of hooks around every traced
// operation. Lower priority runs first. Any hook may be nil.
type Middleware struct {
	Name     string
	Priority int
	Enabled  bool

	Before  BeforeHook
	After   AfterHook
	OnError ErrorHook
}

type middlewareEntry struct {
	Middleware
	seq int // registration order, stable tie-break within one priority
}

// MiddlewareManager is the priority-ordered hook registry invoked around
// every traced operation.
//
// Contract:
// - Concurrency: safe for concurrent use; hooks run without the registry
//   lock held, so a hook may register or unregister middleware.
// - Errors: a failing or panicking hook is logged and skipped. Hook
//   failures never abort the surrounding operation or the remaining hooks;
//   instrumentation must neither amplify a business failure nor suppress
//   one.
type MiddlewareManager struct {
	log logging.Logger

	mu      sync.Mutex
	entries []*middlewareEntry
	nextSeq int
}

// NewMiddlewareManager creates an empty registry.
func NewMiddlewareManager(log logging.Logger) *MiddlewareManager {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &MiddlewareManager{log: log.WithComponent("middleware")}
}

// Register inserts mw and re-sorts the registry ascending by priority.
// Names are unique.
func (m *MiddlewareManager) Register(mw Middleware) error {
	if mw.Name == "" {
		return ErrMissingMiddlewareName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.entries {
		if entry.Name == mw.Name {
			return fmt.Errorf("%w: %q", ErrDuplicateMiddleware, mw.Name)
		}
	}

	m.entries = append(m.entries, &middlewareEntry{Middleware: mw, seq: m.nextSeq})
	m.nextSeq++
	sort.SliceStable(m.entries, func(i, j int) bool {
		if m.entries[i].Priority != m.entries[j].Priority {
			return m.entries[i].Priority < m.entries[j].Priority
		}
		return m.entries[i].seq < m.entries[j].seq
	})
	return nil
}

// Unregister removes the named middleware.
func (m *MiddlewareManager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, entry := range m.entries {
		if entry.Name == name {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrMiddlewareNotFound, name)
}

// SetEnabled flips the enabled flag of the named middleware. This is the
// only mutation the manager performs on registered middleware; everything
// else belongs to the registering collaborator.
func (m *MiddlewareManager) SetEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.entries {
		if entry.Name == name {
			entry.Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrMiddlewareNotFound, name)
}

// Names returns registered middleware names in execution order.
func (m *MiddlewareManager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.entries))
	for i, entry := range m.entries {
		names[i] = entry.Name
	}
	return names
}

// RunBefore invokes every enabled beforeOperation hook in priority order.
func (m *MiddlewareManager) RunBefore(ctx context.Context, hc *HookContext) {
	for _, entry := range m.snapshot() {
		if entry.Before == nil {
			continue
		}
		m.invoke(ctx, entry.Name, "before", func() error {
			return entry.Before(ctx, hc)
		})
	}
}

// RunAfter invokes every enabled afterOperation hook in priority order.
func (m *MiddlewareManager) RunAfter(ctx context.Context, hc *HookContext, result any) {
	for _, entry := range m.snapshot() {
		if entry.After == nil {
			continue
		}
		m.invoke(ctx, entry.Name, "after", func() error {
			return entry.After(ctx, hc, result)
		})
	}
}

// RunError invokes every enabled onError hook in priority order.
func (m *MiddlewareManager) RunError(ctx context.Context, hc *HookContext, opErr error) {
	for _, entry := range m.snapshot() {
		if entry.OnError == nil {
			continue
		}
		m.invoke(ctx, entry.Name, "error", func() error {
			return entry.OnError(ctx, hc, opErr)
		})
	}
}

// snapshot copies the enabled entries so hooks run without the lock held.
func (m *MiddlewareManager) snapshot() []*middlewareEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*middlewareEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		if entry.Enabled {
			out = append(out, entry)
		}
	}
	return out
}

func (m *MiddlewareManager) invoke(ctx context.Context, name, hook string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error(ctx, "middleware hook panicked",
				logging.F("middleware", name),
				logging.F("hook", hook),
				logging.F("panic", fmt.Sprint(r)))
		}
	}()

	if err := fn(); err != nil {
		m.log.Warn(ctx, "middleware hook failed",
			logging.F("middleware", name),
			logging.F("hook", hook),
			logging.F("error", err.Error()))
	}
}

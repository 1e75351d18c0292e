package metrics

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntityCollector turns per-entity domain events into aggregator calls and
// tracks in-flight operation timers. Timer bookkeeping must never crash the
// caller: ending an unknown or already-ended operation is a no-op.
type EntityCollector struct {
	agg    *Aggregator
	entity string // label name and metric prefix, e.g. "agent"

	mu     sync.Mutex
	timers map[string]operationTimer
	counts map[string]uint64
}

type operationTimer struct {
	operation string
	start     time.Time
}

// NewEntityCollector creates a collector for one entity family.
func NewEntityCollector(agg *Aggregator, entity string) *EntityCollector {
	return &EntityCollector{
		agg:    agg,
		entity: entity,
		timers: make(map[string]operationTimer),
		counts: make(map[string]uint64),
	}
}

// StartOperation begins timing one operation and returns its id. Each id
// pairs with exactly one EndOperation call.
func (c *EntityCollector) StartOperation(entityID, operation string) string {
	id := uuid.NewString()

	c.mu.Lock()
	c.timers[timerKey(entityID, id)] = operationTimer{operation: operation, start: time.Now()}
	c.mu.Unlock()

	return id
}

// EndOperation stops the timer, records the duration, and returns it in
// milliseconds. An unknown id, or a second call for the same id, returns 0.
func (c *EntityCollector) EndOperation(entityID, operationID string) float64 {
	key := timerKey(entityID, operationID)

	c.mu.Lock()
	timer, ok := c.timers[key]
	if ok {
		delete(c.timers, key)
	}
	c.mu.Unlock()

	if !ok {
		return 0
	}

	ms := float64(time.Since(timer.start)) / float64(time.Millisecond)
	c.agg.RecordTiming(c.entity+"_operation", ms, map[string]string{
		c.entity + "_id": entityID,
		"operation":      timer.operation,
	})
	return ms
}

// Increment bumps the monotonic per-entity event counter.
func (c *EntityCollector) Increment(entityID string) {
	c.mu.Lock()
	c.counts[entityID]++
	c.mu.Unlock()
}

// Count returns the per-entity event count.
func (c *EntityCollector) Count(entityID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[entityID]
}

// PendingOperations returns the number of started-but-not-ended timers.
func (c *EntityCollector) PendingOperations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func timerKey(entityID, operationID string) string {
	return entityID + ":" + operationID
}

// ModelStats accumulates per-model request statistics for one portal.
// Billing and latency analysis is per-model, not merely per-portal.
type ModelStats struct {
	Requests   uint64
	Errors     uint64
	TokensUsed uint64
}

// PortalCollector extends EntityCollector with per-model request, error,
// and token accounting.
type PortalCollector struct {
	*EntityCollector

	mu     sync.Mutex
	models map[string]*ModelStats
}

// NewPortalCollector creates a collector for portal entities.
func NewPortalCollector(agg *Aggregator) *PortalCollector {
	return &PortalCollector{
		EntityCollector: NewEntityCollector(agg, "portal"),
		models:          make(map[string]*ModelStats),
	}
}

// RecordRequest records one model request with its token usage and outcome.
func (c *PortalCollector) RecordRequest(portalID, model string, tokens int, failed bool) {
	c.mu.Lock()
	stats, ok := c.models[model]
	if !ok {
		stats = &ModelStats{}
		c.models[model] = stats
	}
	stats.Requests++
	if failed {
		stats.Errors++
	}
	if tokens > 0 {
		stats.TokensUsed += uint64(tokens)
	}
	c.mu.Unlock()

	labels := map[string]string{"portal_id": portalID, "model": model}
	c.agg.RecordCounter("portal_requests_total", 1, labels)
	if failed {
		c.agg.RecordCounter("portal_errors_total", 1, labels)
	}
	if tokens > 0 {
		c.agg.RecordCounter("portal_tokens_total", float64(tokens), labels)
	}
}

// Stats returns a copy of the accumulated statistics for one model.
func (c *PortalCollector) Stats(model string) ModelStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stats, ok := c.models[model]; ok {
		return *stats
	}
	return ModelStats{}
}

// Models returns the names of all models seen so far.
func (c *PortalCollector) Models() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	return names
}

package health

import (
	"context"
	"time"
)

// Status represents the health status of a component.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component is functioning but with issues.
	StatusDegraded
	// StatusUnhealthy indicates the component is not functioning properly.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result contains the outcome of a health check.
type Result struct {
	// Status is the health status.
	Status Status

	// Message provides additional context about the status.
	Message string

	// Details contains arbitrary metadata about the check.
	Details map[string]any

	// Timestamp is when the check was performed.
	Timestamp time.Time
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message, Timestamp: time.Now()}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string) Result {
	return Result{Status: StatusUnhealthy, Message: message, Timestamp: time.Now()}
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// CheckFunc performs one health check.
type CheckFunc func(ctx context.Context) Result

// Descriptor identifies a check registered with a Registry.
type Descriptor struct {
	// Name uniquely identifies the check.
	Name string

	// Description explains what the check probes.
	Description string

	// Interval is the suggested evaluation cadence; zero lets the
	// registry choose.
	Interval time.Duration
}

// Registry is the persistent health-check registry collaborator. The
// observability manager registers its overhead probe here at startup; the
// registry implementation lives outside this module.
type Registry interface {
	RegisterCheck(desc Descriptor, check CheckFunc) error
}

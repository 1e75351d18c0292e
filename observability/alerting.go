package observability

import "time"

// Alert is one active or resolved alert as reported by the alerting
// collaborator.
type Alert struct {
	ID          string
	Name        string
	Severity    string
	Message     string
	TriggeredAt time.Time
	Resolved    bool
}

// AlertingStats summarizes the alerting collaborator's counters.
type AlertingStats struct {
	TotalTriggered uint64
	TotalResolved  uint64
	ActiveCount    int
}

// AlertingSystem is the alert-rule evaluation engine collaborator. It
// consumes metrics and emits or resolves alerts; the engine itself lives
// outside this module.
type AlertingSystem interface {
	// StartEvaluation begins rule evaluation.
	StartEvaluation()

	// StopEvaluation halts rule evaluation.
	StopEvaluation()

	// ActiveAlerts returns the currently firing alerts.
	ActiveAlerts() []Alert

	// Statistics returns aggregate alerting counters.
	Statistics() AlertingStats

	// OnAlertTriggered registers a callback invoked when an alert fires.
	OnAlertTriggered(fn func(Alert))

	// OnAlertResolved registers a callback invoked when an alert resolves.
	OnAlertResolved(fn func(Alert))
}

package observability

import (
	"fmt"
	"time"

	"github.com/SYMBaiEX/SYMindX-sub014/metrics"
)

// Fixed insight thresholds.
const (
	memoryWarningFraction = 0.80
	agentErrorWarningMin  = 10
	activeAlertWarningMin = 5
)

// InsightKind classifies a dashboard insight.
type InsightKind string

const (
	InsightResource    InsightKind = "resource"
	InsightError       InsightKind = "error"
	InsightTrend       InsightKind = "trend"
	InsightPerformance InsightKind = "performance"
)

// Insight is one fixed-threshold observation surfaced on the dashboard.
type Insight struct {
	Kind     InsightKind `json:"kind"`
	Severity string      `json:"severity"`
	Message  string      `json:"message"`
}

// HealthSummary condenses the external health collaborator's view.
type HealthSummary struct {
	Overall    string            `json:"overall"`
	Components map[string]string `json:"components,omitempty"`
}

// DashboardData is the read-only structure assembled for dashboard
// consumers: current metrics, active alerts, health summary, overhead
// statistics, and threshold insights.
type DashboardData struct {
	Timestamp time.Time            `json:"timestamp"`
	Metrics   metrics.Consolidated `json:"metrics"`
	Alerts    []Alert              `json:"alerts"`
	Health    HealthSummary        `json:"health"`
	Overhead  OverheadStats        `json:"overhead"`
	Insights  []Insight            `json:"insights"`
}

// buildInsights evaluates the fixed thresholds against the assembled data.
func buildInsights(system *metrics.SystemMetrics, snap metrics.Snapshot, activeAlerts int, overhead OverheadStats) []Insight {
	var insights []Insight

	if system != nil && system.MemoryPercent() > memoryWarningFraction {
		insights = append(insights, Insight{
			Kind:     InsightResource,
			Severity: "warning",
			Message:  fmt.Sprintf("memory usage at %.0f%% of total", system.MemoryPercent()*100),
		})
	}

	if errs := sumCounter(snap, "agent_errors_total"); errs > agentErrorWarningMin {
		insights = append(insights, Insight{
			Kind:     InsightError,
			Severity: "warning",
			Message:  fmt.Sprintf("agent error count at %.0f", errs),
		})
	}

	if activeAlerts > activeAlertWarningMin {
		insights = append(insights, Insight{
			Kind:     InsightTrend,
			Severity: "warning",
			Message:  fmt.Sprintf("%d alerts active", activeAlerts),
		})
	}

	if !overhead.WithinThreshold {
		insights = append(insights, Insight{
			Kind:     InsightPerformance,
			Severity: "warning",
			Message:  fmt.Sprintf("instrumentation overhead p95 at %.2fms exceeds budget", overhead.P95),
		})
	}

	return insights
}

// sumCounter totals every series of one counter name in a snapshot.
func sumCounter(snap metrics.Snapshot, name string) float64 {
	var total float64
	for _, v := range snap.Counters[name] {
		total += v.Value
	}
	return total
}

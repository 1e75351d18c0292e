package health

import "testing"

// TestStatus_String verifies the status names.
func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

// TestResultConstructors verifies the constructors set status, message,
// and timestamp.
func TestResultConstructors(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		status Status
	}{
		{"healthy", Healthy("ok"), StatusHealthy},
		{"degraded", Degraded("slow"), StatusDegraded},
		{"unhealthy", Unhealthy("down"), StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.Status != tt.status {
				t.Errorf("status = %v, want %v", tt.result.Status, tt.status)
			}
			if tt.result.Message == "" {
				t.Error("message not set")
			}
			if tt.result.Timestamp.IsZero() {
				t.Error("timestamp not set")
			}
		})
	}
}

// TestResult_WithDetails verifies details attach without mutating the
// receiver.
func TestResult_WithDetails(t *testing.T) {
	base := Healthy("ok")
	detailed := base.WithDetails(map[string]any{"p95_ms": 2.5})

	if detailed.Details["p95_ms"] != 2.5 {
		t.Errorf("details = %v", detailed.Details)
	}
	if base.Details != nil {
		t.Error("WithDetails mutated the receiver")
	}
}

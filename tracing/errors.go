package tracing

import "errors"

var (
	// ErrInvalidSampleRate indicates a sample rate outside [0.0, 1.0].
	ErrInvalidSampleRate = errors.New("tracing: sample rate must be between 0.0 and 1.0")

	// ErrUnknownExporter indicates an unknown span exporter name.
	ErrUnknownExporter = errors.New("tracing: unknown exporter")

	// ErrEndpointNotConfigured indicates a required endpoint environment variable is not set.
	ErrEndpointNotConfigured = errors.New("tracing: endpoint not configured")
)

package metrics

import "errors"

var (
	// ErrUnsupportedFormat indicates an unknown export format name.
	ErrUnsupportedFormat = errors.New("metrics: unsupported export format")

	// ErrUnknownExporter indicates an unknown metrics exporter name.
	ErrUnknownExporter = errors.New("metrics: unknown exporter")

	// ErrEndpointNotConfigured indicates a required endpoint environment variable is not set.
	ErrEndpointNotConfigured = errors.New("metrics: endpoint not configured")
)

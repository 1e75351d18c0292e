package observability

import "errors"

// Configuration errors.
var (
	// ErrInvalidSampleRate indicates tracing.sampleRate is not in [0.0, 1.0].
	ErrInvalidSampleRate = errors.New("observability: sample rate must be between 0.0 and 1.0")

	// ErrInvalidInterval indicates a non-positive metrics collection interval.
	ErrInvalidInterval = errors.New("observability: collection interval must be positive")

	// ErrMissingServiceName indicates Config.ServiceName is empty.
	ErrMissingServiceName = errors.New("observability: service name is required")
)

// Middleware registry errors.
var (
	// ErrMissingMiddlewareName indicates Middleware.Name is empty.
	ErrMissingMiddlewareName = errors.New("observability: middleware name is required")

	// ErrDuplicateMiddleware indicates the name is already registered.
	ErrDuplicateMiddleware = errors.New("observability: middleware already registered")

	// ErrMiddlewareNotFound indicates no middleware with that name is registered.
	ErrMiddlewareNotFound = errors.New("observability: middleware not found")
)

// Runtime errors.
var (
	// ErrNilOperation indicates TraceOperation was called without a function.
	ErrNilOperation = errors.New("observability: operation function is nil")
)

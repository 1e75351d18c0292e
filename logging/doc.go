// Package logging provides the structured JSON logger shared by the
// instrumentation packages.
//
// It is intentionally small: level filtering, component scoping, and
// best-effort JSON output to an io.Writer. Log emission never returns an
// error and never panics.
package logging

// Package telemetry wires OpenTelemetry into the billing backend: an OTLP
// tracer and meter provider, span helpers for the application services,
// billing counters, and GORM query tracing and metrics.
//
// Both providers are optional. When disabled they fall back to the global
// no-op implementations so callers never branch on configuration.
package telemetry

// Package telemetry centralizes OpenTelemetry SDK setup: a single
// TracerProvider and MeterProvider, built once at startup. When
// telemetry is disabled, both fall back to noop implementations so no
// external connection is attempted.
package telemetry

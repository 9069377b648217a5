// Package observe provides observability primitives for cached function calls.
//
// It is a pure instrumentation library: it builds OpenTelemetry tracers and
// meters, a zerolog-backed structured Logger, and bundles them into an
// Instrumentation the cache package reports lookups, executions and
// reconciliations to.
package observe

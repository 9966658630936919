// Package metrics provides Prometheus instrumentation for the bridge:
// proxied request counts and latencies, upstream failures, stream chunk
// throughput, and tunnel lifecycle outcomes.
package metrics

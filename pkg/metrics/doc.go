// Package metrics exposes the agent's Prometheus metrics and a small
// component health registry served alongside /metrics.
//
// Counters and gauges are package-level vars registered at init, following
// the convention used throughout the rest of this module: call sites never
// need to know about the registry, they just Inc/Set/Observe the variable.
package metrics

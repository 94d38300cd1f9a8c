// Package metrics exposes Prometheus counters for channel fan-out, likes,
// snapshot saves and inbound updates.
//
// All recording methods are safe on a nil *Metrics, so components can be
// built without metrics in tests.
package metrics

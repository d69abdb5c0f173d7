// Package metric provides Prometheus metrics for tlsdir.
//
//   - prometheus.go: the Registry, its collectors and the exposition handler
//   - collector.go: a custom collector for the serving certificate's lifetime
//
// The registry is private to the process (not prometheus.DefaultRegisterer)
// and is exposed only on the optional metrics listener.
package metric

// Package prometheus exposes authcore engine metrics as a client_golang
// [prometheus.Collector].
//
// Values are read from Engine.MetricsSnapshot on every scrape; the collector
// keeps no state of its own.
package prometheus

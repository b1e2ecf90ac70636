// Package metrics holds the Prometheus instruments for the daemon.
//
// Instruments are registered on the default registry at init through
// promauto, and the status server exposes them at /metrics. Packages record
// through the helper functions (RecordJoin, RecordSave, SetMode, ...) rather
// than touching label values directly.
package metrics

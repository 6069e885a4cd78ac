// Package metrics exposes daemon activity counters.
//
// Components receive a Recorder through dependency injection. NoopRecorder is
// the default and does nothing; PrometheusRecorder is swapped in when a
// metrics address is configured and served through HTTPHandler.
package metrics

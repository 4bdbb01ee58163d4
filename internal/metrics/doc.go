// Package metrics records build observations.
//
// Components take a Recorder and default to NoopRecorder, so metrics are
// never a nil check at the call site. PrometheusRecorder is installed when
// metrics.enabled is set, and HTTPHandler serves its registry on /metrics
// in the development server.
package metrics

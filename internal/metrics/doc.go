// Package metrics provides build metrics for pxbuild.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics never need nil checks at call sites:
//
//	svc := build.NewService(builder, bundler, slot, sink).
//		WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// The preview server exposes the registry at /metrics through HTTPHandler.
package metrics

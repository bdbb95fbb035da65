// Package build runs one complete bundling pass for pxbuild.
//
// Service is the only entry point for building: the CLI, the preview server
// and tests all call Service.Run. A run configures the pass for the
// service's mode, bundles, checks that exactly one bundle was emitted,
// publishes the artifact to the cache slot and then persists it through the
// sink.
//
// Callers must serialize runs against the same output destination; Service
// does not lock.
package build

// Package preview serves the cached artifact over HTTP and rebuilds it when
// sources change.
//
// All builds, whether triggered by the watcher, by POST /build or at startup,
// run on a single worker goroutine, so the build service is never invoked
// concurrently.
package preview

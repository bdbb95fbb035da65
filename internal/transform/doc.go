// Package transform resolves the ordered set of transform units applied to a
// bundling pass.
//
// A unit is an opaque stage that configures the bundler: module resolution,
// module-interop normalization and exactly one language transform chosen by
// the build mode. Units are applied in order; later units see the options
// written by earlier ones. The JSX factory and fragment bindings are shared by
// every mode so development and production bundles call the same runtime.
package transform

package build

import "errors"

// Sentinel errors for bundling pass invariants. They are wrapped in an
// invariant PxBuildError at the call site.
var (
	ErrMultipleOutputs   = errors.New("pxbuild: bundling pass produced more than one output")
	ErrNoOutput          = errors.New("pxbuild: bundling pass produced no bundle")
	ErrSourceMapMismatch = errors.New("pxbuild: source map presence does not match build mode")
)

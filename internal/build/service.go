package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/pxbuild/internal/artifact"
	"git.home.luguber.info/inful/pxbuild/internal/config"
	"git.home.luguber.info/inful/pxbuild/internal/pipeline"
)

// PlanBuilder produces the pass configuration for a mode.
type PlanBuilder interface {
	Build(mode config.BuildMode) pipeline.Config
}

// Notifier announces finished builds, successful or not.
type Notifier interface {
	Notify(ctx context.Context, res *Result) error
}

// Ledger records every build attempt.
type Ledger interface {
	Record(ctx context.Context, res *Result) error
}

// RevisionFunc returns the source revision stamped on artifacts.
type RevisionFunc func(ctx context.Context) (string, error)

// Result contains the outcome of a build execution.
type Result struct {
	BuildID string           `json:"build_id"`
	Mode    config.BuildMode `json:"mode"`
	Status  Status           `json:"status"`

	// Artifact is the published artifact. It is set whenever publication
	// happened, which includes builds whose sink write failed afterwards.
	Artifact *artifact.Artifact `json:"-"`

	CodePath  string `json:"code_path,omitempty"`
	MapPath   string `json:"map_path,omitempty"`
	CodeBytes int    `json:"code_bytes"`
	MapBytes  int    `json:"map_bytes"`
	Revision  string `json:"revision,omitempty"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// Stage is where a failed build stopped.
	Stage         string `json:"stage,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	ErrorMessage  string `json:"error,omitempty"`
	Err           error  `json:"-"`
}

// Published reports whether the build replaced the cached artifact.
func (r *Result) Published() bool {
	return r != nil && r.Artifact != nil
}

// Status represents the outcome of a build execution.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// IsSuccess returns true if the build completed successfully.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// Stage names used in logs, metrics and results.
const (
	StageConfigure = "configure"
	StageBundle    = "bundle"
	StageExtract   = "extract"
	StagePublish   = "publish"
	StagePersist   = "persist"
)

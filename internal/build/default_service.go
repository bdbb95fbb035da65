package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/pxbuild/internal/artifact"
	"git.home.luguber.info/inful/pxbuild/internal/bundler"
	"git.home.luguber.info/inful/pxbuild/internal/config"
	pxerrors "git.home.luguber.info/inful/pxbuild/internal/errors"
	"git.home.luguber.info/inful/pxbuild/internal/logfields"
	"git.home.luguber.info/inful/pxbuild/internal/metrics"
	"git.home.luguber.info/inful/pxbuild/internal/observability"
	"git.home.luguber.info/inful/pxbuild/internal/pipeline"
	"git.home.luguber.info/inful/pxbuild/internal/sink"
)

type namedMirror struct {
	name   string
	mirror artifact.Mirror
}

// Service drives one full build pass per Run call.
type Service struct {
	plans     PlanBuilder
	bundler   bundler.Bundler
	publisher artifact.Publisher
	sink      sink.Sink
	mode      config.BuildMode

	recorder  metrics.Recorder
	mirrors   []namedMirror
	notifiers []Notifier
	ledger    Ledger
	revision  RevisionFunc
	now       func() time.Time
	newID     func() string
}

// NewService creates a Service building in development mode.
func NewService(plans PlanBuilder, b bundler.Bundler, publisher artifact.Publisher, s sink.Sink) *Service {
	return &Service{
		plans:     plans,
		bundler:   b,
		publisher: publisher,
		sink:      s,
		mode:      config.ModeDevelopment,
		recorder:  metrics.NoopRecorder{},
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithMode sets the mode every Run builds in.
func (s *Service) WithMode(mode config.BuildMode) *Service {
	s.mode = mode
	return s
}

// WithRecorder injects a metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
	return s
}

// WithMirror adds a secondary artifact store written after each publication.
func (s *Service) WithMirror(name string, m artifact.Mirror) *Service {
	s.mirrors = append(s.mirrors, namedMirror{name: name, mirror: m})
	return s
}

// WithNotifier adds a notifier called once per finished build.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifiers = append(s.notifiers, n)
	return s
}

// WithLedger sets the build history ledger.
func (s *Service) WithLedger(l Ledger) *Service {
	s.ledger = l
	return s
}

// WithRevision sets the source revision lookup.
func (s *Service) WithRevision(fn RevisionFunc) *Service {
	s.revision = fn
	return s
}

// WithClock replaces time.Now (for testing).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIDGenerator replaces the build ID generator (for testing).
func (s *Service) WithIDGenerator(fn func() string) *Service {
	s.newID = fn
	return s
}

// Mode returns the mode this service builds in.
func (s *Service) Mode() config.BuildMode {
	return s.mode
}

// Run executes one bundling pass. Bundling failures leave the publisher and
// the sink untouched. A sink failure is returned after the artifact has
// already been published.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	start := s.now()
	res := &Result{
		BuildID:   s.newID(),
		Mode:      s.mode,
		StartTime: start,
	}

	ctx = observability.WithBuildID(ctx, res.BuildID)
	ctx = observability.WithMode(ctx, s.mode.String())

	if err := ctx.Err(); err != nil {
		return s.cancel(ctx, res, StageConfigure, err)
	}

	res.Revision = s.lookupRevision(ctx)

	// Stage 1: configure
	stageStart := s.now()
	ctx = observability.WithStage(ctx, StageConfigure)
	cfg := s.plans.Build(s.mode)
	observability.DebugContext(ctx, "Pass configured",
		logfields.Entry(cfg.Input.EntryPath),
		logfields.Path(cfg.Output.DestinationPath),
		slog.Any("units", cfg.Input.Plugins.Names()),
		slog.Bool("source_map", cfg.Output.SourceMap))
	s.stageDone(StageConfigure, stageStart)

	// Stage 2: bundle
	stageStart = s.now()
	ctx = observability.WithStage(ctx, StageBundle)
	outputs, err := s.bundler.Bundle(ctx, cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return s.cancel(ctx, res, StageBundle, err)
		}
		return s.fail(ctx, res, StageBundle, err)
	}
	s.stageDone(StageBundle, stageStart)

	// Stage 3: extract
	stageStart = s.now()
	ctx = observability.WithStage(ctx, StageExtract)
	a, err := extract(cfg, outputs)
	if err != nil {
		return s.fail(ctx, res, StageExtract, err)
	}
	a.BuildID = res.BuildID
	a.Mode = s.mode
	a.Revision = res.Revision
	a.BuiltAt = s.now()
	s.stageDone(StageExtract, stageStart)

	// The pass cannot be interrupted, but a canceled caller does not get a
	// new artifact published on its behalf.
	if err := ctx.Err(); err != nil {
		return s.cancel(ctx, res, StagePublish, err)
	}

	// Stage 4: publish
	stageStart = s.now()
	ctx = observability.WithStage(ctx, StagePublish)
	s.publisher.Publish(a)
	res.Artifact = a
	s.mirror(ctx, a)
	s.stageDone(StagePublish, stageStart)

	// Stage 5: persist
	stageStart = s.now()
	ctx = observability.WithStage(ctx, StagePersist)
	if err := s.persist(ctx, cfg, a, res); err != nil {
		return s.fail(ctx, res, StagePersist, err)
	}
	s.stageDone(StagePersist, stageStart)

	s.finish(res, StatusSuccess)
	s.recorder.SetArtifactBytes("code", res.CodeBytes)
	s.recorder.SetArtifactBytes("map", res.MapBytes)
	observability.InfoContext(ctx, fmt.Sprintf("build success, cost %dms", res.Duration.Milliseconds()),
		logfields.Duration(res.Duration),
		logfields.Path(res.CodePath),
		logfields.Bytes(res.CodeBytes))
	s.report(ctx, res)
	return res, nil
}

// extract splits the pass outputs into exactly one bundle and at most one map.
func extract(cfg pipeline.Config, outputs []bundler.Output) (*artifact.Artifact, error) {
	var code, sourceMap []bundler.Output
	for _, o := range outputs {
		if strings.HasSuffix(o.Path, pipeline.MapSuffix) {
			sourceMap = append(sourceMap, o)
		} else {
			code = append(code, o)
		}
	}

	switch {
	case len(code) == 0:
		return nil, pxerrors.Wrap(ErrNoOutput, pxerrors.CategoryInvariant, pxerrors.SeverityFatal, "expected exactly one bundle")
	case len(code) > 1 || len(sourceMap) > 1:
		return nil, pxerrors.Wrap(ErrMultipleOutputs, pxerrors.CategoryInvariant, pxerrors.SeverityFatal, "expected exactly one bundle").
			WithContext("outputs", outputNames(outputs))
	case (len(sourceMap) == 1) != cfg.Output.SourceMap:
		return nil, pxerrors.Wrap(ErrSourceMapMismatch, pxerrors.CategoryInvariant, pxerrors.SeverityFatal, "unexpected source map output").
			WithContext("mode", string(cfg.Mode))
	}

	a := &artifact.Artifact{Code: string(code[0].Contents)}
	if len(sourceMap) == 1 {
		m, err := artifact.ParseSourceMap(sourceMap[0].Contents)
		if err != nil {
			return nil, pxerrors.InternalError("bundler emitted an unreadable source map", err)
		}
		a.SourceMap = m
	}
	return a, nil
}

func outputNames(outputs []bundler.Output) []string {
	names := make([]string, len(outputs))
	for i, o := range outputs {
		names[i] = filepath.Base(o.Path)
	}
	return names
}

func (s *Service) persist(ctx context.Context, cfg pipeline.Config, a *artifact.Artifact, res *Result) error {
	dest := cfg.Output.DestinationPath
	if err := s.sink.WriteText(ctx, dest, a.Code); err != nil {
		return err
	}
	res.CodePath = dest
	res.CodeBytes = len(a.Code)

	if !a.HasSourceMap() {
		return nil
	}
	mapJSON, err := a.SourceMap.JSON()
	if err != nil {
		return pxerrors.InternalError("serialize source map", err)
	}
	if err := s.sink.WriteText(ctx, cfg.MapPath(), mapJSON); err != nil {
		return err
	}
	res.MapPath = cfg.MapPath()
	res.MapBytes = len(mapJSON)
	return nil
}

func (s *Service) mirror(ctx context.Context, a *artifact.Artifact) {
	for _, m := range s.mirrors {
		if err := m.mirror.Mirror(ctx, a); err != nil {
			s.recorder.IncMirrorFailure(m.name)
			observability.WarnContext(ctx, "Artifact mirror failed",
				slog.String("mirror", m.name), logfields.Error(err))
		}
	}
}

func (s *Service) lookupRevision(ctx context.Context) string {
	if s.revision == nil {
		return ""
	}
	rev, err := s.revision(ctx)
	if err != nil {
		observability.DebugContext(ctx, "Source revision unavailable", logfields.Error(err))
		return ""
	}
	return rev
}

func (s *Service) stageDone(stage string, start time.Time) {
	s.recorder.ObserveStageDuration(stage, s.now().Sub(start))
	s.recorder.IncStageResult(stage, metrics.ResultSuccess)
}

func (s *Service) finish(res *Result, status Status) {
	res.Status = status
	res.EndTime = s.now()
	res.Duration = res.EndTime.Sub(res.StartTime)

	outcome := metrics.BuildOutcomeSuccess
	switch status {
	case StatusFailed:
		outcome = metrics.BuildOutcomeFailed
	case StatusCanceled:
		outcome = metrics.BuildOutcomeCanceled
	}
	s.recorder.IncBuildOutcome(res.Mode.String(), outcome)
	s.recorder.ObserveBuildDuration(res.Mode.String(), res.Duration)
}

func (s *Service) fail(ctx context.Context, res *Result, stage string, err error) (*Result, error) {
	res.Stage = stage
	res.Err = err
	res.ErrorMessage = err.Error()
	res.ErrorCategory = string(pxerrors.GetCategory(err))
	s.recorder.IncStageResult(stage, metrics.ResultFatal)
	s.finish(res, StatusFailed)

	observability.ErrorContext(ctx, "build failed",
		logfields.Category(res.ErrorCategory),
		logfields.Duration(res.Duration),
		logfields.Error(err),
		slog.Bool("published", res.Published()))
	s.report(ctx, res)
	return res, err
}

func (s *Service) cancel(ctx context.Context, res *Result, stage string, err error) (*Result, error) {
	res.Stage = stage
	res.Err = err
	res.ErrorMessage = err.Error()
	s.recorder.IncStageResult(stage, metrics.ResultCanceled)
	s.finish(res, StatusCanceled)
	observability.WarnContext(ctx, "build canceled", logfields.Error(err))
	// Reporting must not inherit the canceled context.
	s.report(context.WithoutCancel(ctx), res)
	return res, err
}

// report hands the result to the ledger and notifiers. Their failures are
// logged and never change the build outcome.
func (s *Service) report(ctx context.Context, res *Result) {
	if s.ledger != nil {
		if err := s.ledger.Record(ctx, res); err != nil {
			s.recorder.IncMirrorFailure("history")
			observability.WarnContext(ctx, "Failed to record build history", logfields.Error(err))
		}
	}
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, res); err != nil {
			s.recorder.IncMirrorFailure("notify")
			observability.WarnContext(ctx, "Build notification failed", logfields.Error(err))
		}
	}
}

// Package pipeline runs the full analysis of one repository: clone, a
// parallel wave of detectors, the judge, and the final aggregation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/clones"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/forensics"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/maturity"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/origin"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/quality"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/scan"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/security"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/stack"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/structure"
	"github.com/Sumatoshi-tech/repograde/internal/gitlib"
	"github.com/Sumatoshi-tech/repograde/internal/judge"
	"github.com/Sumatoshi-tech/repograde/internal/observability"
	"github.com/Sumatoshi-tech/repograde/internal/report"
)

// Stage names reported through the progress callback.
const (
	StageClone     = "clone"
	StageStack     = "stack"
	StageStructure = "structure"
	StageMaturity  = "maturity"
	StageForensics = "forensics"
	StageOrigin    = "origin"
	StageClones    = "clones"
	StageQuality   = "quality"
	StageSecurity  = "security"
	StageJudge     = "judge"
	StageAggregate = "aggregate"
)

// stagePercent maps each started stage to overall progress.
var stagePercent = map[string]int{
	StageClone:     10,
	StageStack:     20,
	StageStructure: 30,
	StageMaturity:  40,
	StageForensics: 50,
	StageOrigin:    60,
	StageClones:    70,
	StageQuality:   80,
	StageSecurity:  85,
	StageJudge:     90,
	StageAggregate: 95,
}

// Progress is one lifecycle update. Percent is monotonic per run.
type Progress struct {
	Stage   string
	Percent int
}

// ProgressFunc receives coalesced progress updates.
type ProgressFunc func(Progress)

// Cloner fetches a repository into a local directory.
type Cloner interface {
	Clone(ctx context.Context, url, dest string) (*gitlib.Repo, error)
}

// ClonerFunc adapts a function to the Cloner interface.
type ClonerFunc func(ctx context.Context, url, dest string) (*gitlib.Repo, error)

// Clone implements Cloner.
func (f ClonerFunc) Clone(ctx context.Context, url, dest string) (*gitlib.Repo, error) {
	return f(ctx, url, dest)
}

// Evaluator produces the product-level verdict. A nil Evaluator skips
// the judge stage.
type Evaluator interface {
	Evaluate(ctx context.Context, root string) (judge.Verdict, error)
}

// Config tunes one pipeline instance.
type Config struct {
	WorkDir         string
	CloneTimeout    time.Duration
	NodeTimeout     time.Duration
	MaxCommits      int
	MaxFileBytes    int64
	MaxCompareFiles int
	Security        security.Config
	Origin          origin.Config
}

// Pipeline analyzes repositories. Safe for concurrent Run calls.
type Pipeline struct {
	cfg     Config
	cloner  Cloner
	judge   Evaluator
	scorers []origin.Scorer
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.Metrics
}

// New builds a Pipeline. judge may be nil when no API key is configured;
// scorers extend the local AI-origin heuristic.
func New(cfg Config, judge Evaluator, scorers []origin.Scorer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		cfg:     cfg,
		cloner:  ClonerFunc(gitlib.Clone),
		judge:   judge,
		scorers: scorers,
		logger:  logger.With("component", "pipeline"),
		tracer:  otel.Tracer("repograde/pipeline"),
	}
}

// WithCloner replaces the clone implementation.
func (p *Pipeline) WithCloner(c Cloner) *Pipeline {
	p.cloner = c

	return p
}

// WithMetrics attaches per-stage duration instrumentation.
func (p *Pipeline) WithMetrics(metrics *observability.Metrics) *Pipeline {
	p.metrics = metrics

	return p
}

// observeStage records the wall time of one stage.
func (p *Pipeline) observeStage(stage string, start time.Time) {
	if p.metrics == nil {
		return
	}

	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// progressSink makes the caller's callback monotonic: a stage finishing
// out of order never moves the percentage backwards.
type progressSink struct {
	mu   sync.Mutex
	best int
	fn   ProgressFunc
}

func (s *progressSink) report(stage string) {
	if s.fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pct := stagePercent[stage]
	if pct < s.best {
		pct = s.best
	}

	s.best = pct
	s.fn(Progress{Stage: stage, Percent: pct})
}

// Run clones repoURL and executes every detector. A clone failure is
// fatal; any other detector failure degrades to an empty result.
func (p *Pipeline) Run(ctx context.Context, repoURL, teamName string, onProgress ProgressFunc) (*report.Report, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	sink := &progressSink{fn: onProgress}

	if p.cfg.WorkDir != "" {
		if mkErr := os.MkdirAll(p.cfg.WorkDir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("create work dir: %w", mkErr)
		}
	}

	workDir, err := os.MkdirTemp(p.cfg.WorkDir, "repograde-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			p.logger.Warn("work dir cleanup failed", "dir", workDir, "error", rmErr)
		}
	}()

	sink.report(StageClone)

	repo, cloneErr := p.clone(ctx, repoURL, workDir)
	if cloneErr != nil {
		return nil, cloneErr
	}

	root := repo.Path()

	files, filesErr := scan.SourceFiles(ctx, root, p.cfg.MaxFileBytes)
	if filesErr != nil {
		p.logger.Warn("source scan failed", "repo", repoURL, "error", filesErr)
	}

	rep := &report.Report{
		RepoURL:    repoURL,
		TeamName:   teamName,
		AnalyzedAt: time.Now().UTC(),
	}

	p.runDetectors(ctx, rep, repo, root, files, sink)

	sink.report(StageAggregate)
	rep.Aggregate()

	return rep, nil
}

func (p *Pipeline) clone(ctx context.Context, repoURL, workDir string) (*gitlib.Repo, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.clone")
	defer span.End()
	defer p.observeStage(StageClone, time.Now())

	if p.cfg.CloneTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.CloneTimeout)

		defer cancel()
	}

	repo, err := p.cloner.Clone(ctx, repoURL, workDir)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", repoURL, err)
	}

	return repo, nil
}

// runDetectors executes every analysis stage in parallel and fills rep.
// Each stage degrades to its zero result on failure.
func (p *Pipeline) runDetectors(ctx context.Context, rep *report.Report, repo *gitlib.Repo, root string, files []scan.File, sink *progressSink) {
	var g errgroup.Group

	p.node(&g, ctx, sink, StageStack, func(ctx context.Context) error {
		res, err := stack.Detect(ctx, root)
		rep.Stack = res

		return err
	})

	p.node(&g, ctx, sink, StageStructure, func(ctx context.Context) error {
		res, err := structure.Analyze(ctx, root)
		rep.Structure = res

		return err
	})

	p.node(&g, ctx, sink, StageMaturity, func(ctx context.Context) error {
		res, err := maturity.Scan(ctx, root, p.cfg.MaxFileBytes)
		rep.Maturity = res

		return err
	})

	p.node(&g, ctx, sink, StageForensics, func(ctx context.Context) error {
		res, err := forensics.Analyze(ctx, repo, p.cfg.MaxCommits)
		rep.Forensics = res

		return err
	})

	p.node(&g, ctx, sink, StageOrigin, func(ctx context.Context) error {
		res, err := origin.Detect(ctx, files, p.cfg.Origin, p.scorers...)
		rep.Origin = res

		return err
	})

	p.node(&g, ctx, sink, StageClones, func(ctx context.Context) error {
		res, err := clones.Detect(ctx, files, p.cfg.MaxCompareFiles)
		rep.Clones = res

		return err
	})

	p.node(&g, ctx, sink, StageQuality, func(ctx context.Context) error {
		res, err := quality.Analyze(ctx, files)
		rep.Quality = res

		return err
	})

	p.node(&g, ctx, sink, StageSecurity, func(ctx context.Context) error {
		res, err := security.Scan(ctx, root, p.cfg.MaxFileBytes, p.cfg.Security)
		rep.Security = res

		return err
	})

	p.node(&g, ctx, sink, StageJudge, func(ctx context.Context) error {
		if p.judge == nil {
			rep.Judge = judge.Skipped()

			return nil
		}

		verdict, err := p.judge.Evaluate(ctx, root)
		if err != nil {
			return err
		}

		rep.Judge = verdict

		return nil
	})

	// Detector failures were already absorbed inside node.
	_ = g.Wait()
}

// node schedules one detector: per-stage span and timeout, warn-and-degrade
// on failure, progress on entry.
func (p *Pipeline) node(g *errgroup.Group, ctx context.Context, sink *progressSink, stage string, fn func(context.Context) error) {
	g.Go(func() error {
		ctx, span := p.tracer.Start(ctx, "pipeline."+stage)
		defer span.End()
		defer p.observeStage(stage, time.Now())

		sink.report(stage)

		if p.cfg.NodeTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.cfg.NodeTimeout)

			defer cancel()
		}

		if err := fn(ctx); err != nil {
			p.logger.Warn("detector degraded", "stage", stage, "error", err)
		}

		return nil
	})
}

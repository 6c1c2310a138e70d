// Package jobs owns the asynchronous analysis lifecycle: one project per
// repo URL, queued jobs, a bounded worker pool and cache invalidation.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Sumatoshi-tech/repograde/internal/cache"
	"github.com/Sumatoshi-tech/repograde/internal/gitlib"
	"github.com/Sumatoshi-tech/repograde/internal/observability"
	"github.com/Sumatoshi-tech/repograde/internal/pipeline"
	"github.com/Sumatoshi-tech/repograde/internal/report"
	"github.com/Sumatoshi-tech/repograde/internal/store"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 2

// Sentinel errors.
var (
	// ErrConflict indicates the repo URL is already analyzing or completed.
	ErrConflict = errors.New("project already analyzing or completed")
	// ErrShuttingDown indicates the manager no longer accepts submissions.
	ErrShuttingDown = errors.New("job manager shutting down")
)

// Runner executes one full repository analysis.
type Runner interface {
	Run(ctx context.Context, repoURL, teamName string, onProgress pipeline.ProgressFunc) (*report.Report, error)
}

// Manager schedules analysis jobs over a bounded worker pool.
type Manager struct {
	store   *store.Store
	cache   *cache.Cache
	runner  Runner
	logger  *slog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewManager builds a Manager. cache may be nil.
func NewManager(st *store.Store, c *cache.Cache, runner Runner, workers int, logger *slog.Logger) *Manager {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		store:  st,
		cache:  c,
		runner: runner,
		logger: logger.With("component", "jobs"),
		ctx:    ctx,
		cancel: cancel,
		sem:    make(chan struct{}, workers),
	}
}

// WithMetrics attaches job counters.
func (m *Manager) WithMetrics(metrics *observability.Metrics) *Manager {
	m.metrics = metrics

	return m
}

// Submit queues an analysis of repoURL. Projects are keyed by URL: an
// analyzing or completed project conflicts, a pending or failed one is
// re-queued.
func (m *Manager) Submit(ctx context.Context, repoURL, teamName string) (store.Project, store.Job, error) {
	if err := gitlib.ValidateRepoURL(repoURL); err != nil {
		return store.Project{}, store.Job{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return store.Project{}, store.Job{}, ErrShuttingDown
	}

	project, err := m.store.GetProjectByURL(ctx, repoURL)

	switch {
	case err == nil:
		if project.Status == store.ProjectAnalyzing || project.Status == store.ProjectCompleted {
			return store.Project{}, store.Job{}, fmt.Errorf("%w: %s", ErrConflict, repoURL)
		}

		if statusErr := m.store.SetProjectStatus(ctx, project.ID, store.ProjectPending); statusErr != nil {
			return store.Project{}, store.Job{}, statusErr
		}

		project.Status = store.ProjectPending
	case errors.Is(err, store.ErrNotFound):
		project, err = m.store.CreateProject(ctx, repoURL, teamName)
		if err != nil {
			return store.Project{}, store.Job{}, err
		}
	default:
		return store.Project{}, store.Job{}, err
	}

	job, jobErr := m.store.CreateJob(ctx, project.ID)
	if jobErr != nil {
		return store.Project{}, store.Job{}, jobErr
	}

	if m.metrics != nil {
		m.metrics.JobsSubmitted.Inc()
	}

	m.wg.Add(1)

	go m.execute(project, job)

	return project, job, nil
}

// execute waits for a worker slot, runs the pipeline and records the
// terminal state.
func (m *Manager) execute(project store.Project, job store.Job) {
	defer m.wg.Done()

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-m.ctx.Done():
		m.finish(job.ID, project.ID, store.JobFailed, "shutdown before start")

		return
	}

	if err := m.store.SetProjectStatus(m.ctx, project.ID, store.ProjectAnalyzing); err != nil {
		m.logger.Warn("project status update failed", "project", project.ID, "error", err)
	}

	onProgress := func(p pipeline.Progress) {
		if err := m.store.UpdateJobProgress(m.ctx, job.ID, p.Stage, p.Percent); err != nil {
			m.logger.Warn("progress persist failed", "job", job.ID, "error", err)
		}
	}

	rep, runErr := m.runner.Run(m.ctx, project.RepoURL, project.TeamName, onProgress)

	// Terminal writes survive shutdown cancellation.
	persistCtx := context.WithoutCancel(m.ctx)

	if runErr != nil {
		m.logger.Warn("analysis failed", "repo", project.RepoURL, "error", runErr)
		m.finish(job.ID, project.ID, store.JobFailed, runErr.Error())

		return
	}

	if saveErr := m.store.SaveResult(persistCtx, project.ID, rep); saveErr != nil {
		m.logger.Error("result persist failed", "project", project.ID, "error", saveErr)
		m.finish(job.ID, project.ID, store.JobFailed, saveErr.Error())

		return
	}

	if err := m.store.FinishJob(persistCtx, job.ID, store.JobCompleted, ""); err != nil {
		m.logger.Warn("job completion persist failed", "job", job.ID, "error", err)
	}

	if m.metrics != nil {
		m.metrics.JobsCompleted.Inc()
	}

	m.invalidate(project.ID)
	m.logger.Info("analysis completed", "repo", project.RepoURL, "score", rep.Scores.Total)
}

// finish records a failed run on both the job and the project.
func (m *Manager) finish(jobID, projectID, status, msg string) {
	ctx := context.WithoutCancel(m.ctx)

	if err := m.store.FinishJob(ctx, jobID, status, msg); err != nil {
		m.logger.Warn("job finish persist failed", "job", jobID, "error", err)
	}

	if err := m.store.SetProjectStatus(ctx, projectID, store.ProjectFailed); err != nil {
		m.logger.Warn("project status update failed", "project", projectID, "error", err)
	}

	if m.metrics != nil {
		m.metrics.JobsFailed.Inc()
	}

	m.invalidate(projectID)
}

// invalidate drops the project detail key and every listing namespace.
func (m *Manager) invalidate(projectID string) {
	if m.cache == nil {
		return
	}

	m.cache.Delete(cache.NamespaceDetail + projectID)
	m.cache.InvalidatePrefix(cache.NamespaceProjects)
	m.cache.InvalidatePrefix(cache.NamespaceLeaderboard)
	m.cache.InvalidatePrefix(cache.NamespaceStats)
}

// Close stops accepting submissions and waits for running jobs.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

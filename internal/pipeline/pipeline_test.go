package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repograde/internal/gitlib"
	"github.com/Sumatoshi-tech/repograde/internal/judge"
	"github.com/Sumatoshi-tech/repograde/internal/observability"
	"github.com/Sumatoshi-tech/repograde/internal/pipeline"
)

// fixtureRepo builds a small committed repository on disk.
func fixtureRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	files := map[string]string{
		"manage.py":         "import django\n\nprint('manage')\n",
		"app/views.py":      "def index(request):\n    return 'ok'\n",
		"app/settings.py":   "password = \"hunter22\"\n",
		"tests/test_app.py": "def test_index():\n    assert True\n",
		"README.md":         "# Fixture\n",
	}

	for rel, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, wt.AddGlob("."))

	when := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err = wt.Commit("initial import", &git.CommitOptions{
		Author: &object.Signature{Name: "Alice", Email: "alice@example.com", When: when},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app", "models.py"), []byte("class Widget:\n    pass\n"), 0o600))
	require.NoError(t, wt.AddGlob("."))

	_, err = wt.Commit("add widget model", &git.CommitOptions{
		Author: &object.Signature{Name: "Alice", Email: "alice@example.com", When: when.Add(time.Hour)},
	})
	require.NoError(t, err)

	return dir
}

// openCloner ignores the destination and opens a local fixture.
func openCloner(dir string) pipeline.ClonerFunc {
	return func(_ context.Context, _, _ string) (*gitlib.Repo, error) {
		return gitlib.Open(dir)
	}
}

type stubJudge struct {
	verdict judge.Verdict
	err     error
}

func (s stubJudge) Evaluate(context.Context, string) (judge.Verdict, error) {
	return s.verdict, s.err
}

func TestRunProducesFullReport(t *testing.T) {
	t.Parallel()

	fixture := fixtureRepo(t)

	p := pipeline.New(pipeline.Config{WorkDir: t.TempDir()}, nil, nil, nil).
		WithCloner(openCloner(fixture))

	var updates []pipeline.Progress

	rep, err := p.Run(context.Background(), "https://github.com/acme/fixture", "acme", func(u pipeline.Progress) {
		updates = append(updates, u)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Forensics.TotalCommits)
	assert.Equal(t, 1, rep.Security.LeakCount)
	assert.True(t, rep.Maturity.HasTests)
	assert.True(t, rep.Judge.Skipped, "nil evaluator skips the judge")
	assert.Positive(t, rep.Scores.Total)

	require.NotEmpty(t, updates)
	assert.Equal(t, pipeline.StageClone, updates[0].Stage)
	assert.Equal(t, 10, updates[0].Percent)
	assert.Equal(t, pipeline.StageAggregate, updates[len(updates)-1].Stage)
	assert.Equal(t, 95, updates[len(updates)-1].Percent)
}

func TestRunProgressIsMonotonic(t *testing.T) {
	t.Parallel()

	fixture := fixtureRepo(t)

	p := pipeline.New(pipeline.Config{WorkDir: t.TempDir()}, nil, nil, nil).
		WithCloner(openCloner(fixture))

	last := -1

	_, err := p.Run(context.Background(), "https://github.com/acme/fixture", "", func(u pipeline.Progress) {
		assert.GreaterOrEqual(t, u.Percent, last)
		last = u.Percent
	})
	require.NoError(t, err)
}

func TestRunCloneFailureIsFatal(t *testing.T) {
	t.Parallel()

	cloneErr := errors.New("remote unreachable")

	p := pipeline.New(pipeline.Config{WorkDir: t.TempDir()}, nil, nil, nil).
		WithCloner(pipeline.ClonerFunc(func(context.Context, string, string) (*gitlib.Repo, error) {
			return nil, cloneErr
		}))

	var updates []pipeline.Progress

	_, err := p.Run(context.Background(), "https://github.com/acme/gone", "", func(u pipeline.Progress) {
		updates = append(updates, u)
	})
	require.ErrorIs(t, err, cloneErr)

	// The clone stage is announced before the fetch starts.
	require.Len(t, updates, 1)
	assert.Equal(t, pipeline.StageClone, updates[0].Stage)
}

func TestRunCreatesMissingWorkDir(t *testing.T) {
	t.Parallel()

	fixture := fixtureRepo(t)
	workDir := filepath.Join(t.TempDir(), "scratch", "repograde")

	p := pipeline.New(pipeline.Config{WorkDir: workDir}, nil, nil, nil).
		WithCloner(openCloner(fixture))

	_, err := p.Run(context.Background(), "https://github.com/acme/fixture", "", nil)
	require.NoError(t, err)

	info, statErr := os.Stat(workDir)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestRunObservesStageDurations(t *testing.T) {
	t.Parallel()

	fixture := fixtureRepo(t)
	metrics := observability.NewMetrics()

	p := pipeline.New(pipeline.Config{WorkDir: t.TempDir()}, nil, nil, nil).
		WithCloner(openCloner(fixture)).
		WithMetrics(metrics)

	_, err := p.Run(context.Background(), "https://github.com/acme/fixture", "", nil)
	require.NoError(t, err)

	// Clone plus the nine detector stages.
	assert.Equal(t, 10, testutil.CollectAndCount(metrics.StageDuration))
}

func TestRunJudgeVerdictLandsInReport(t *testing.T) {
	t.Parallel()

	fixture := fixtureRepo(t)

	j := stubJudge{verdict: judge.Verdict{
		ProjectName:         "fixture",
		ImplementationScore: 64,
		Verdict:             judge.VerdictPrototype,
	}}

	p := pipeline.New(pipeline.Config{WorkDir: t.TempDir()}, j, nil, nil).
		WithCloner(openCloner(fixture))

	rep, err := p.Run(context.Background(), "https://github.com/acme/fixture", "", nil)
	require.NoError(t, err)

	assert.InDelta(t, 64, rep.Judge.ImplementationScore, 1e-9)
	assert.False(t, rep.Judge.Skipped)
}

func TestRunJudgeFailureDegrades(t *testing.T) {
	t.Parallel()

	fixture := fixtureRepo(t)

	j := stubJudge{err: errors.New("model unavailable")}

	p := pipeline.New(pipeline.Config{WorkDir: t.TempDir()}, j, nil, nil).
		WithCloner(openCloner(fixture))

	rep, err := p.Run(context.Background(), "https://github.com/acme/fixture", "", nil)
	require.NoError(t, err)

	assert.Zero(t, rep.Judge.ImplementationScore)
}

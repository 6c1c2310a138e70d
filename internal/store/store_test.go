package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/clones"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/forensics"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/origin"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/quality"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/security"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/stack"
	"github.com/Sumatoshi-tech/repograde/internal/judge"
	"github.com/Sumatoshi-tech/repograde/internal/report"
	"github.com/Sumatoshi-tech/repograde/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func completedReport() *report.Report {
	rep := &report.Report{
		RepoURL: "https://github.com/acme/widgets",
		Stack: stack.Result{Entries: []stack.Entry{
			{Technology: "Python", Category: stack.CategoryLanguage},
			{Technology: "Django", Category: stack.CategoryFramework},
		}},
		Forensics: forensics.Result{
			TotalCommits: 4,
			AuthorStats: map[string]forensics.AuthorStats{
				"Alice": {Commits: 3},
				"Bob":   {Commits: 1},
			},
		},
		Security: security.Result{Score: 90, LeakCount: 1, Leaks: []security.Leak{
			{File: "settings.py", Path: "app/settings.py", Line: 3, Type: "Hardcoded Password", Snippet: "password = \"..."},
		}},
		Quality: quality.Result{MaintainabilityIndex: 72, DocumentationScore: 40, AnalyzedFiles: 5},
		Judge: judge.Verdict{
			Description:          "A widget service.",
			ImplementationScore:  60,
			PositiveFeedback:     "solid API",
			ConstructiveFeedback: "needs tests",
			Verdict:              judge.VerdictPrototype,
		},
	}

	rep.Aggregate()

	return rep
}

func TestProjectLifecycle(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "https://github.com/acme/widgets", "acme")
	require.NoError(t, err)
	assert.Equal(t, store.ProjectPending, p.Status)

	got, err := s.GetProjectByURL(ctx, "https://github.com/acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	require.NoError(t, s.SetProjectStatus(ctx, p.ID, store.ProjectAnalyzing))

	got, err = s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ProjectAnalyzing, got.Status)
}

func TestCreateProjectRejectsDuplicateURL(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	_, err := s.CreateProject(ctx, "https://github.com/acme/widgets", "")
	require.NoError(t, err)

	_, err = s.CreateProject(ctx, "https://github.com/acme/widgets", "")
	require.Error(t, err, "repo_url is unique")
}

func TestGetProjectNotFound(t *testing.T) {
	t.Parallel()

	s := newStore(t)

	_, err := s.GetProject(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "https://github.com/acme/widgets", "")
	require.NoError(t, err)

	j, err := s.CreateJob(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobQueued, j.Status)

	require.NoError(t, s.UpdateJobProgress(ctx, j.ID, "forensics", 50))

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobRunning, got.Status)
	assert.Equal(t, 50, got.Progress)
	assert.Equal(t, "forensics", got.Stage)

	require.NoError(t, s.FinishJob(ctx, j.ID, store.JobCompleted, ""))

	got, err = s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
}

func TestFinishJobFailureKeepsProgress(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "https://github.com/acme/widgets", "")
	require.NoError(t, err)

	j, err := s.CreateJob(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, s.UpdateJobProgress(ctx, j.ID, "clone", 10))
	require.NoError(t, s.FinishJob(ctx, j.ID, store.JobFailed, "clone failed"))

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobFailed, got.Status)
	assert.Equal(t, 10, got.Progress)
	assert.Equal(t, "clone failed", got.Error)
}

func TestSaveResultRoundTrip(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "https://github.com/acme/widgets", "acme")
	require.NoError(t, err)

	rep := completedReport()
	require.NoError(t, s.SaveResult(ctx, p.ID, rep))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ProjectCompleted, got.Status)
	assert.Equal(t, judge.VerdictPrototype, got.Verdict)
	assert.InDelta(t, rep.Scores.Total, got.TotalScore, 1e-9)
	assert.InDelta(t, rep.Scores.Originality, got.OriginalityScore, 1e-9)
	assert.InDelta(t, rep.Scores.Security, got.SecurityScore, 1e-9)
	assert.InDelta(t, rep.Scores.Documentation, got.DocumentationScore, 1e-9)
	assert.Equal(t, 4, got.TotalCommits)
	assert.False(t, got.AnalyzedAt.IsZero())

	loaded, err := s.GetResult(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.RepoURL, loaded.RepoURL)
	assert.Equal(t, 4, loaded.Forensics.TotalCommits)

	tech, err := s.ProjectTech(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, tech, 2)

	members, err := s.ProjectMembers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Alice", members[0].Name)
	assert.InDelta(t, 75.0, members[0].ContributionPct, 1e-9)

	issues, err := s.ProjectIssues(ctx, p.ID)
	require.NoError(t, err)
	require.NotEmpty(t, issues)
	assert.Equal(t, store.IssueSecurity, issues[0].Type)
	assert.Equal(t, store.SeverityHigh, issues[0].Severity)
}

func TestDeleteProjectCascades(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "https://github.com/acme/widgets", "")
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(ctx, p.ID, completedReport()))

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err = s.GetProject(ctx, p.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	tech, err := s.ProjectTech(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, tech)
}

func TestListProjectsFilters(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	p1, err := s.CreateProject(ctx, "https://github.com/acme/widgets", "acme")
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(ctx, p1.ID, completedReport()))

	_, err = s.CreateProject(ctx, "https://github.com/beta/gadgets", "beta")
	require.NoError(t, err)

	completed, err := s.ListProjects(ctx, store.Filter{Status: store.ProjectCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, p1.ID, completed[0].ID)

	byTech, err := s.ListProjects(ctx, store.Filter{Tech: "django"})
	require.NoError(t, err)
	require.Len(t, byTech, 1)
	assert.Equal(t, p1.ID, byTech[0].ID)

	bySearch, err := s.ListProjects(ctx, store.Filter{Search: "gadgets"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, "beta", bySearch[0].TeamName)
}

func TestLeaderboardOrdersByScore(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	low := completedReport()
	low.Judge.ImplementationScore = 10
	low.Aggregate()

	p1, err := s.CreateProject(ctx, "https://github.com/acme/low", "")
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(ctx, p1.ID, low))

	high := completedReport()
	high.Judge.ImplementationScore = 95
	high.Aggregate()

	p2, err := s.CreateProject(ctx, "https://github.com/acme/high", "")
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(ctx, p2.ID, high))

	board, err := s.Leaderboard(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, p2.ID, board[0].ID)
}

func TestLeaderboardSortsByComponentScore(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	insecure := completedReport()
	insecure.Security.Score = 20
	insecure.Judge.ImplementationScore = 95
	insecure.Aggregate()

	p1, err := s.CreateProject(ctx, "https://github.com/acme/insecure", "")
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(ctx, p1.ID, insecure))

	secure := completedReport()
	secure.Security.Score = 100
	secure.Judge.ImplementationScore = 10
	secure.Aggregate()

	p2, err := s.CreateProject(ctx, "https://github.com/acme/secure", "")
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(ctx, p2.ID, secure))

	bySecurity, err := s.Leaderboard(ctx, 10, "security")
	require.NoError(t, err)
	require.Len(t, bySecurity, 2)
	assert.Equal(t, p2.ID, bySecurity[0].ID)

	// Unknown keys fall back to the total, never into the SQL.
	byTotal, err := s.Leaderboard(ctx, 10, "'; DROP TABLE projects; --")
	require.NoError(t, err)
	require.Len(t, byTotal, 2)
	assert.Equal(t, p1.ID, byTotal[0].ID)
}

func TestStatsCountsAndVerdicts(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	p1, err := s.CreateProject(ctx, "https://github.com/acme/one", "")
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(ctx, p1.ID, completedReport()))

	p2, err := s.CreateProject(ctx, "https://github.com/acme/two", "")
	require.NoError(t, err)
	require.NoError(t, s.SetProjectStatus(ctx, p2.ID, store.ProjectAnalyzing))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalProjects)
	assert.Equal(t, 1, stats.CompletedProjects)
	assert.Equal(t, 1, stats.InProgressProjects)
	assert.Positive(t, stats.AverageScore)
	assert.Equal(t, 1, stats.Verdicts[judge.VerdictPrototype])
}

func TestTechStacksAggregates(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	for _, url := range []string{"https://github.com/a/r1", "https://github.com/a/r2"} {
		p, err := s.CreateProject(ctx, url, "")
		require.NoError(t, err)
		require.NoError(t, s.SaveResult(ctx, p.ID, completedReport()))
	}

	counts, err := s.TechStacks(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, 2, counts[0].Count)
}

func TestDeriveIssuesFromRiskTable(t *testing.T) {
	t.Parallel()

	rep := &report.Report{
		Origin: origin.Result{Files: []origin.FileScore{{Path: "gen.py", Score: 0.9}}, Max: 0.9},
		Clones: clones.Result{Files: []clones.FileMatch{{Path: "copy.py", BestMatch: "gen.py", Score: 0.7}}},
	}
	rep.Aggregate()

	issues := store.DeriveIssues(rep)

	byType := map[string][]store.Issue{}
	for _, i := range issues {
		byType[i.Type] = append(byType[i.Type], i)
	}

	require.Len(t, byType[store.IssueAIGenerated], 1)
	assert.Equal(t, store.SeverityHigh, byType[store.IssueAIGenerated][0].Severity)
	require.NotNil(t, byType[store.IssueAIGenerated][0].AIProbability)
	assert.InDelta(t, 90.0, *byType[store.IssueAIGenerated][0].AIProbability, 1e-9)

	require.Len(t, byType[store.IssueSimilarCode], 1)
	assert.Equal(t, "gen.py", byType[store.IssueSimilarCode][0].Description[len(byType[store.IssueSimilarCode][0].Description)-len("gen.py"):])
	require.NotNil(t, byType[store.IssueSimilarCode][0].PlagiarismScore)
	assert.InDelta(t, 70.0, *byType[store.IssueSimilarCode][0].PlagiarismScore, 1e-9)
}

func TestProjectIssuesKeepProbabilities(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "https://github.com/acme/risky", "")
	require.NoError(t, err)

	rep := &report.Report{
		RepoURL: "https://github.com/acme/risky",
		Origin:  origin.Result{Files: []origin.FileScore{{Path: "gen.py", Score: 0.9}}, Max: 0.9},
	}
	rep.Aggregate()
	require.NoError(t, s.SaveResult(ctx, p.ID, rep))

	issues, err := s.ProjectIssues(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	require.NotNil(t, issues[0].AIProbability)
	assert.InDelta(t, 90.0, *issues[0].AIProbability, 1e-9)
	assert.Nil(t, issues[0].PlagiarismScore, "plagiarism stays NULL for AI issues")
}

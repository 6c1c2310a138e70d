package commands

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/forensics"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/maturity"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/quality"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/security"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/stack"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/structure"
	"github.com/Sumatoshi-tech/repograde/internal/config"
	"github.com/Sumatoshi-tech/repograde/internal/judge"
	"github.com/Sumatoshi-tech/repograde/internal/report"
)

func sampleAnalyzedReport() *report.Report {
	rep := &report.Report{
		RepoURL:  "https://github.com/acme/widgets",
		TeamName: "acme",
		Stack:    stack.Result{PrimaryLanguage: "Python"},
		Structure: structure.Result{
			Score: 80,
		},
		Maturity: maturity.Result{Score: 60},
		Forensics: forensics.Result{
			TotalCommits: 1234,
			BranchCount:  3,
		},
		Quality:  quality.Result{MaintainabilityIndex: 70, DocumentationScore: 40, AnalyzedFiles: 5},
		Security: security.Result{Score: 90, LeakCount: 1},
		Judge: judge.Verdict{
			ImplementationScore: 65,
			Description:         "A small inventory tool.",
			Verdict:             judge.VerdictPrototype,
		},
	}
	rep.Aggregate()

	return rep
}

func TestPrintReport(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer

	printReport(&buf, sampleAnalyzedReport())

	out := buf.String()
	assert.Contains(t, out, "https://github.com/acme/widgets")
	assert.Contains(t, out, "Python")
	assert.Contains(t, out, "1,234")
	assert.Contains(t, out, "Originality")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, judge.VerdictPrototype)
	assert.Contains(t, out, "A small inventory tool.")
}

func TestPrintReportSkippedJudge(t *testing.T) {
	color.NoColor = true

	rep := sampleAnalyzedReport()
	rep.Judge = judge.Skipped()
	rep.Aggregate()

	var buf bytes.Buffer

	printReport(&buf, rep)

	assert.Contains(t, buf.String(), "skipped (no API key)")
}

func TestColoredVerdictKnownValues(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		name    string
		verdict string
	}{
		{name: "production ready", verdict: judge.VerdictProductionReady},
		{name: "prototype", verdict: judge.VerdictPrototype},
		{name: "broken", verdict: judge.VerdictBroken},
		{name: "unknown passes through", verdict: "Unrated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := coloredVerdict(judge.Verdict{Verdict: tt.verdict})
			assert.Equal(t, tt.verdict, got)
		})
	}
}

func TestBuildPipelineWithoutAPIKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.Analysis.MaxCommits = 100
	cfg.Analysis.MaxFileBytes = 1 << 20
	cfg.Analysis.MaxCompareFiles = 50

	pipe, err := buildPipeline(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	require.NotNil(t, pipe)
}

func TestAnalyzeCommandFlags(t *testing.T) {
	cmd := NewAnalyzeCommand()

	require.NotNil(t, cmd.Flags().Lookup("config"))
	require.NotNil(t, cmd.Flags().Lookup("team"))
	require.NotNil(t, cmd.Flags().Lookup("html"))
	require.NotNil(t, cmd.Flags().Lookup("json"))

	assert.Error(t, cmd.Args(cmd, []string{}))
	assert.NoError(t, cmd.Args(cmd, []string{"https://github.com/acme/widgets"}))
}

package judge_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repograde/internal/judge"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestBuildSummarySections(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "README.md", "# Widget Service\nDoes widget things.\n")
	writeFile(t, root, "package.json", `{"name":"widgets"}`)
	writeFile(t, root, "src/server.js", "const http = require('http');\n")

	summary, err := judge.BuildSummary(context.Background(), root, 0)
	require.NoError(t, err)

	assert.Contains(t, summary, "=== DIRECTORY STRUCTURE ===")
	assert.Contains(t, summary, "=== CRITICAL CONFIGURATION ===")
	assert.Contains(t, summary, "--- README.md ---")
	assert.Contains(t, summary, "# Widget Service")
	assert.Contains(t, summary, "--- FILE: src/server.js ---")
}

func TestBuildSummaryTruncatesLongFolders(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for i := range 20 {
		writeFile(t, root, fmt.Sprintf("data/item%02d.js", i), "x\n")
	}

	summary, err := judge.BuildSummary(context.Background(), root, 0)
	require.NoError(t, err)

	assert.Contains(t, summary, "... (5 more files)")
}

func TestBuildSummaryHonorsLimit(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "big.py", strings.Repeat("x = 1\n", 2000))

	summary, err := judge.BuildSummary(context.Background(), root, 500)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(summary), 500)
}

func TestParseVerdictValid(t *testing.T) {
	t.Parallel()

	schema, err := judge.NewSchema()
	require.NoError(t, err)

	reply := `{
		"project_name": "widgets",
		"description": "A widget service.",
		"features": ["create widgets"],
		"tech_stack_observed": ["express"],
		"implementation_score": 72,
		"positive_feedback": "clean API",
		"constructive_feedback": "needs tests",
		"verdict": "Prototype"
	}`

	verdict, err := judge.ParseVerdict(schema, reply)
	require.NoError(t, err)

	assert.Equal(t, "widgets", verdict.ProjectName)
	assert.InDelta(t, 72, verdict.ImplementationScore, 1e-9)
	assert.Equal(t, judge.VerdictPrototype, verdict.Verdict)
	assert.False(t, verdict.Skipped)
}

func TestParseVerdictRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	schema, err := judge.NewSchema()
	require.NoError(t, err)

	tests := []struct {
		name  string
		reply string
	}{
		{name: "missing required fields", reply: `{"project_name": "x"}`},
		{name: "score out of range", reply: `{"project_name":"x","description":"d","implementation_score":140,"verdict":"Prototype"}`},
		{name: "unknown verdict", reply: `{"project_name":"x","description":"d","implementation_score":50,"verdict":"Excellent"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, parseErr := judge.ParseVerdict(schema, tc.reply)
			require.ErrorIs(t, parseErr, judge.ErrInvalidVerdict)
		})
	}
}

func TestSkippedVerdict(t *testing.T) {
	t.Parallel()

	verdict := judge.Skipped()

	assert.True(t, verdict.Skipped)
	assert.Zero(t, verdict.ImplementationScore)
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := judge.New(context.Background(), "", "", 0, nil)
	require.ErrorIs(t, err, judge.ErrMissingAPIKey)
}

package maturity_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/maturity"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestScanFullStackRepo(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "Dockerfile", "FROM alpine\n")
	writeFile(t, root, ".github/workflows/ci.yml", "on: push\n")
	writeFile(t, root, ".eslintrc", "{}\n")
	writeFile(t, root, "vercel.json", "{}\n")
	writeFile(t, root, "tests/test_app.py", "def test_ok():\n    assert True\n")
	writeFile(t, root, "tests/test_api.py", "def test_api():\n    assert 1 == 1\n")

	res, err := maturity.Scan(context.Background(), root, 0)
	require.NoError(t, err)

	// 20 docker + 20 cloud + 20 ci + 10 lint + 2*6 tests.
	assert.Equal(t, 82, res.Score)
	assert.Equal(t, 2, res.TestFiles)
	assert.True(t, res.HasTests)
	assert.True(t, res.IsDeployable)
	assert.Contains(t, res.DevOpsTools, maturity.ToolDocker)
	assert.Contains(t, res.DevOpsTools, maturity.ToolCI)
}

func TestScanTestScoreCapped(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		writeFile(t, root, "tests/test_"+name+".py", "assert True\n")
	}

	res, err := maturity.Scan(context.Background(), root, 0)
	require.NoError(t, err)

	assert.Equal(t, 30, res.Score, "test contribution capped at 30")
	assert.Equal(t, 7, res.TestFiles)
}

func TestScanIgnoresTestFilesWithoutAssertions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "tests/test_fixture.py", "data = [1, 2, 3]\n")

	res, err := maturity.Scan(context.Background(), root, 0)
	require.NoError(t, err)

	assert.Zero(t, res.TestFiles)
	assert.False(t, res.HasTests)
}

func TestScanEmptyRepo(t *testing.T) {
	t.Parallel()

	res, err := maturity.Scan(context.Background(), t.TempDir(), 0)
	require.NoError(t, err)

	assert.Zero(t, res.Score)
	assert.False(t, res.IsDeployable)
	assert.Empty(t, res.DevOpsTools)
}

func TestGoTestFilesCount(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "pkg/sum_test.go", "package pkg\n\nimport \"testing\"\n\nfunc TestSum(t *testing.T) {}\n")

	res, err := maturity.Scan(context.Background(), root, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, res.TestFiles)
	assert.Equal(t, 6, res.Score)
}

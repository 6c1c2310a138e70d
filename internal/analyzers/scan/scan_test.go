package scan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/scan"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestSourceFilesSkipsVendoredTrees(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "app.py", "print('hi')\n")
	writeFile(t, root, "node_modules/lib/index.js", "module.exports = 1\n")
	writeFile(t, root, ".git/hooks/sample.py", "print('no')\n")
	writeFile(t, root, "README.md", "# readme\n")

	files, err := scan.SourceFiles(context.Background(), root, 0)
	require.NoError(t, err)

	rels := make([]string, 0, len(files))
	for _, f := range files {
		rels = append(rels, f.Rel)
	}

	assert.ElementsMatch(t, []string{"main.go", "app.py"}, rels)
}

func TestSourceFilesHonorsSizeCap(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "small.go", "package main\n")
	writeFile(t, root, "big.go", string(make([]byte, 4096)))

	files, err := scan.SourceFiles(context.Background(), root, 1024)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "small.go", files[0].Rel)
}

func TestLanguageDetection(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Go", scan.File{Path: "a/b.go"}.Language())
	assert.Equal(t, "Python", scan.File{Path: "x.PY"}.Language())
	assert.Empty(t, scan.File{Path: "notes.md"}.Language())
}

func TestWalkHonorsCancellation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := scan.Walk(ctx, root, func(scan.File) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

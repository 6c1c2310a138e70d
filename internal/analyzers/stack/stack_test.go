package stack_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/stack"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func techNames(r stack.Result) []string {
	names := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		names = append(names, e.Technology)
	}

	return names
}

func TestDetectPythonDjangoRepo(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "manage.py", "import django\n")
	writeFile(t, root, "app/views.py", "def index(request):\n    return None\n")
	writeFile(t, root, "requirements.txt", "django==4.2\npsycopg2\nredis\n")

	res, err := stack.Detect(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, "Python", res.PrimaryLanguage)
	names := techNames(res)
	assert.Contains(t, names, "Django")
	assert.Contains(t, names, "Redis")
}

func TestDetectNodeDockerRepo(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "index.js", "const express = require('express')\n")
	writeFile(t, root, "package.json", `{"dependencies":{"express":"^4","mongoose":"^7"}}`)
	writeFile(t, root, "Dockerfile", "FROM node:20\n")
	writeFile(t, root, ".github/workflows/ci.yml", "on: push\n")

	res, err := stack.Detect(context.Background(), root)
	require.NoError(t, err)

	names := techNames(res)
	assert.Contains(t, names, "Express")
	assert.Contains(t, names, "MongoDB")
	assert.Contains(t, names, "Docker")
	assert.Contains(t, names, "GitHub Actions")
}

func TestDetectEmptyTree(t *testing.T) {
	t.Parallel()

	res, err := stack.Detect(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Empty(t, res.PrimaryLanguage)
	assert.Empty(t, res.Languages)
}

func TestEntriesDeduplicated(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "docker-compose.yml", "services:\n  db:\n    image: postgres\n")
	writeFile(t, root, "Dockerfile", "FROM alpine\n")

	res, err := stack.Detect(context.Background(), root)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, e := range res.Entries {
		seen[e.Technology]++
	}

	for tech, n := range seen {
		assert.Equal(t, 1, n, "technology %s duplicated", tech)
	}

	assert.Contains(t, techNames(res), "PostgreSQL")
}

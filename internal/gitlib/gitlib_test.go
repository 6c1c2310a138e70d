package gitlib

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedRepo creates a repository with n commits by the given author,
// one file change per commit, spaced one minute apart.
func seedRepo(t *testing.T, n int, author string) *Repo {
	t.Helper()

	dir := t.TempDir()

	repo, err := Init(dir)
	require.NoError(t, err)

	wt, err := repo.repo.Worktree()
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range n {
		name := filepath.Join(dir, "file.txt")
		require.NoError(t, os.WriteFile(name, []byte(time.Duration(i).String()+"\n"), 0o600))

		_, addErr := wt.Add("file.txt")
		require.NoError(t, addErr)

		_, commitErr := wt.Commit("change "+time.Duration(i).String(), &git.CommitOptions{
			Author: &object.Signature{
				Name:  author,
				Email: author + "@example.com",
				When:  base.Add(time.Duration(i) * time.Minute),
			},
			Committer: &object.Signature{
				Name:  author,
				Email: author + "@example.com",
				When:  base.Add(time.Duration(i) * time.Minute),
			},
		})
		require.NoError(t, commitErr)
	}

	return repo
}

func TestValidateRepoURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		ok   bool
		name string
	}{
		{url: "https://github.com/acme/widgets", ok: true, name: "https github"},
		{url: "http://github.com/acme/widgets", ok: true, name: "http github"},
		{url: "https://GitHub.com/Acme/Widgets", ok: true, name: "case insensitive"},
		{url: "git@github.com:acme/widgets.git", ok: false, name: "ssh scheme"},
		{url: "https://gitlab.com/acme/widgets", ok: false, name: "not github"},
		{url: "", ok: false, name: "empty"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateRepoURL(tc.url)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidRepoURL)
			}
		})
	}
}

func TestCommitsSortedOldestFirst(t *testing.T) {
	t.Parallel()

	repo := seedRepo(t, 5, "alice")

	commits, err := repo.Commits(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, commits, 5)

	for i := 1; i < len(commits); i++ {
		assert.False(t, commits[i].When.Before(commits[i-1].When),
			"commit order must be oldest first")
	}

	assert.Equal(t, "alice", commits[0].Author)
	assert.Len(t, commits[0].ShortHash(), 7)
	assert.Positive(t, commits[0].Additions, "first commit adds a line")
}

func TestCommitsHonorsLimit(t *testing.T) {
	t.Parallel()

	repo := seedRepo(t, 6, "bob")

	commits, err := repo.Commits(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, commits, 3)
}

func TestBranchAuthors(t *testing.T) {
	t.Parallel()

	repo := seedRepo(t, 4, "carol")

	authors, err := repo.BranchAuthors(context.Background(), 100)
	require.NoError(t, err)
	require.NotEmpty(t, authors)

	var total int
	for _, counts := range authors {
		total += counts["carol"]
	}

	assert.Equal(t, 4, total)
}

func TestCloneRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := Clone(context.Background(), "ftp://example.com/repo", t.TempDir())
	require.ErrorIs(t, err, ErrInvalidRepoURL)
}

func TestClassifyCloneError(t *testing.T) {
	t.Parallel()

	auth := classifyCloneError("https://github.com/x/y", assert.AnError)
	require.Error(t, auth)

	notFound := classifyCloneError("https://github.com/x/y",
		git.ErrRepositoryNotExists)
	assert.ErrorIs(t, notFound, ErrCloneNotFound)
}

func TestCloneWithCLI(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not installed")
	}

	src := seedRepo(t, 2, "dave")
	dest := filepath.Join(t.TempDir(), "copy")

	// A partial directory from a failed pure-Go attempt gets cleared.
	require.NoError(t, os.MkdirAll(dest, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "stale"), []byte("x"), 0o600))

	require.NoError(t, cloneWithCLI(context.Background(), src.Path(), dest))

	repo, err := Open(dest)
	require.NoError(t, err)

	commits, err := repo.Commits(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, commits, 2)
}

// Package gitlib wraps go-git with the repository operations the analysis
// pipeline needs: validated clones, bounded commit history with diff stats,
// and per-branch author counts.
package gitlib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Sentinel errors for clone failure classification.
var (
	// ErrInvalidRepoURL indicates the URL is not an http(s) GitHub URL.
	ErrInvalidRepoURL = errors.New("repository URL must be an http(s) github.com URL")
	// ErrCloneAuth indicates the remote rejected authentication.
	ErrCloneAuth = errors.New("clone authentication failed")
	// ErrCloneNotFound indicates the repository does not exist.
	ErrCloneNotFound = errors.New("repository not found")
	// ErrCloneTimeout indicates the clone hit a network timeout.
	ErrCloneTimeout = errors.New("clone timed out")
)

// Commit is one history entry with diff stats against its first parent.
type Commit struct {
	Hash      string
	Author    string
	Email     string
	Message   string
	When      time.Time
	Additions int
	Deletions int
	// FileExts counts changed files per extension (without the dot);
	// extensionless files count under "no_ext".
	FileExts map[string]int
}

// ShortHash returns the abbreviated commit hash.
func (c Commit) ShortHash() string {
	const short = 7
	if len(c.Hash) < short {
		return c.Hash
	}

	return c.Hash[:short]
}

// Repo is an opened working copy.
type Repo struct {
	repo *git.Repository
	path string
}

// ValidateRepoURL checks that url is an http(s) URL pointing at github.com.
func ValidateRepoURL(url string) error {
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ErrInvalidRepoURL
	}

	if !strings.Contains(lower, "github.com") {
		return ErrInvalidRepoURL
	}

	return nil
}

// Clone clones url into dest and returns the opened repository.
// The full history is fetched; forensics needs every commit. When the
// pure-Go clone fails on a transient error the system git binary gets
// one try: it copes with redirects and protocol quirks go-git does not.
func Clone(ctx context.Context, url, dest string) (*Repo, error) {
	if err := ValidateRepoURL(url); err != nil {
		return nil, err
	}

	repository, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{URL: url})
	if err == nil {
		return &Repo{repo: repository, path: dest}, nil
	}

	classified := classifyCloneError(url, err)

	// Auth and missing-repo failures are permanent; retrying them only
	// burns another network round trip.
	if errors.Is(classified, ErrCloneAuth) || errors.Is(classified, ErrCloneNotFound) {
		return nil, classified
	}

	if cliErr := cloneWithCLI(ctx, url, dest); cliErr != nil {
		return nil, classified
	}

	return Open(dest)
}

// cloneWithCLI shells out to the system git binary, clearing whatever
// the failed clone left behind first.
func cloneWithCLI(ctx context.Context, url, dest string) error {
	gitPath, lookErr := exec.LookPath("git")
	if lookErr != nil {
		return fmt.Errorf("locate git binary: %w", lookErr)
	}

	if rmErr := os.RemoveAll(dest); rmErr != nil {
		return fmt.Errorf("clear clone destination: %w", rmErr)
	}

	cmd := exec.CommandContext(ctx, gitPath, "clone", "--", url, dest)

	if out, runErr := cmd.CombinedOutput(); runErr != nil {
		return fmt.Errorf("git clone %s: %w: %s", url, runErr, strings.TrimSpace(string(out)))
	}

	return nil
}

// Open opens an existing working copy at path.
func Open(path string) (*Repo, error) {
	repository, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	return &Repo{repo: repository, path: path}, nil
}

// Init creates a new repository at path. Used by tests and local analysis.
func Init(path string) (*Repo, error) {
	repository, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repository %s: %w", path, err)
	}

	return &Repo{repo: repository, path: path}, nil
}

// Path returns the working copy root.
func (r *Repo) Path() string { return r.path }

// classifyCloneError wraps go-git errors into typed failures so callers
// can branch without string parsing.
func classifyCloneError(url string, err error) error {
	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "authentication") || strings.Contains(lower, "auth fail") ||
		strings.Contains(lower, "invalid username or password"):
		return fmt.Errorf("clone %s: %w: %v", url, ErrCloneAuth, err)
	case strings.Contains(lower, "not found") || strings.Contains(lower, "repository does not exist"):
		return fmt.Errorf("clone %s: %w: %v", url, ErrCloneNotFound, err)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "i/o timeout") ||
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("clone %s: %w: %v", url, ErrCloneTimeout, err)
	default:
		return fmt.Errorf("clone %s: %w", url, err)
	}
}

// Commits returns up to limit commits reachable from any ref, deduplicated
// by hash and sorted oldest first by committer time. Diff stats that cannot
// be computed (root commits on some backends, corrupt objects) degrade to 0/0.
func (r *Repo) Commits(ctx context.Context, limit int) ([]Commit, error) {
	seen := make(map[plumbing.Hash]struct{})

	var commits []Commit

	heads, err := r.refHeads()
	if err != nil {
		return nil, err
	}

	for _, head := range heads {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		iter, logErr := r.repo.Log(&git.LogOptions{From: head})
		if logErr != nil {
			continue
		}

		iterErr := iter.ForEach(func(c *object.Commit) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if _, ok := seen[c.Hash]; ok {
				return nil
			}

			seen[c.Hash] = struct{}{}
			commits = append(commits, toCommit(c))

			if limit > 0 && len(commits) >= limit {
				return errStopIteration
			}

			return nil
		})
		iter.Close()

		if iterErr != nil && !errors.Is(iterErr, errStopIteration) {
			return nil, fmt.Errorf("walk commits: %w", iterErr)
		}

		if limit > 0 && len(commits) >= limit {
			break
		}
	}

	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].When.Before(commits[j].When)
	})

	return commits, nil
}

// errStopIteration terminates a commit walk early.
var errStopIteration = errors.New("stop iteration")

// refHeads lists the tip hashes of all local and remote branch refs,
// falling back to HEAD when the repository has no branches.
func (r *Repo) refHeads() ([]plumbing.Hash, error) {
	refs, err := r.repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}

	var heads []plumbing.Hash

	_ = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}

		name := ref.Name()
		if name.IsBranch() || name.IsRemote() {
			heads = append(heads, ref.Hash())
		}

		return nil
	})

	if len(heads) == 0 {
		head, headErr := r.repo.Head()
		if headErr != nil {
			return nil, fmt.Errorf("resolve HEAD: %w", headErr)
		}

		heads = append(heads, head.Hash())
	}

	return heads, nil
}

// toCommit converts a go-git commit into a Commit with diff stats.
func toCommit(c *object.Commit) Commit {
	commit := Commit{
		Hash:    c.Hash.String(),
		Author:  c.Author.Name,
		Email:   c.Author.Email,
		Message: c.Message,
		When:    c.Committer.When,
	}

	stats, err := c.Stats()
	if err != nil {
		// Unreadable diff counts as an empty change.
		return commit
	}

	commit.FileExts = make(map[string]int, len(stats))

	for _, fs := range stats {
		commit.Additions += fs.Addition
		commit.Deletions += fs.Deletion
		commit.FileExts[fileExt(fs.Name)]++
	}

	return commit
}

// fileExt returns the extension of name without the leading dot, or
// "no_ext" when the name has none.
func fileExt(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return "no_ext"
	}

	return name[idx+1:]
}

// BranchAuthors returns commit counts per author for each branch ref.
// At most limit commits are scanned per branch.
func (r *Repo) BranchAuthors(ctx context.Context, limit int) (map[string]map[string]int, error) {
	refs, err := r.repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}

	result := make(map[string]map[string]int)

	forEachErr := refs.ForEach(func(ref *plumbing.Reference) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := ref.Name()
		if ref.Type() != plumbing.HashReference || (!name.IsBranch() && !name.IsRemote()) {
			return nil
		}

		iter, logErr := r.repo.Log(&git.LogOptions{From: ref.Hash()})
		if logErr != nil {
			return nil
		}
		defer iter.Close()

		counts := make(map[string]int)
		scanned := 0

		_ = iter.ForEach(func(c *object.Commit) error {
			counts[c.Author.Name]++
			scanned++

			if limit > 0 && scanned >= limit {
				return errStopIteration
			}

			return nil
		})

		result[name.Short()] = counts

		return nil
	})
	if forEachErr != nil {
		return nil, forEachErr
	}

	return result, nil
}

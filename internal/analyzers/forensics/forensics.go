// Package forensics analyzes commit history: contributor statistics,
// activity periods, branch breakdowns and suspicious commit detection.
package forensics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/repograde/internal/gitlib"
)

// History limits.
const (
	// DefaultMaxCommits caps the scanned history.
	DefaultMaxCommits = 5000
	// branchCommitLimit caps per-branch author scans.
	branchCommitLimit = 100
	// topFileTypes is how many file extensions are reported per author.
	topFileTypes = 3
)

// Suspicious commit checks.
const (
	// repeatWindowSeconds flags same-message commits closer than this.
	repeatWindowSeconds = 300
	// superhumanSeconds flags consecutive commits closer than this.
	superhumanSeconds = 10
	// messagePreviewLen truncates suspicious commit messages.
	messagePreviewLen = 30
)

// Suspicious commit reasons.
const (
	ReasonEmptyCommit     = "Empty/Dummy Commit"
	ReasonRepeatedCommit  = "Repeated Commit (Spam)"
	ReasonSuperhumanSpeed = "Superhuman Speed (<10s)"
)

// SuspiciousCommit is one flagged history entry.
type SuspiciousCommit struct {
	Hash    string   `json:"hash"`
	Author  string   `json:"author"`
	Message string   `json:"msg"`
	Reasons []string `json:"reasons"`
}

// AuthorStats aggregates one contributor's activity.
type AuthorStats struct {
	Commits      int    `json:"commits"`
	LinesChanged int    `json:"lines_changed"`
	ActiveDays   int    `json:"active_days_count"`
	TopFileTypes string `json:"top_file_types"`
}

// ConsistencyStats names the dominant contributor per period granularity.
type ConsistencyStats struct {
	TopDaily   string `json:"top_daily"`
	TopWeekly  string `json:"top_weekly"`
	TopMonthly string `json:"top_monthly"`
}

// Result is the forensics output.
type Result struct {
	TotalCommits   int                       `json:"total_commits"`
	BranchCount    int                       `json:"branch_count"`
	BranchActivity map[string]map[string]int `json:"branch_activity"`
	AuthorStats    map[string]AuthorStats    `json:"author_stats"`
	DummyCommits   int                       `json:"dummy_commits"`
	Suspicious     []SuspiciousCommit        `json:"suspicious_list"`
	Consistency    ConsistencyStats          `json:"consistency_stats"`
}

// historySource is the slice of gitlib the analyzer needs.
type historySource interface {
	Commits(ctx context.Context, limit int) ([]gitlib.Commit, error)
	BranchAuthors(ctx context.Context, limit int) (map[string]map[string]int, error)
}

// Analyze runs commit forensics over the repository history.
func Analyze(ctx context.Context, repo historySource, maxCommits int) (Result, error) {
	if maxCommits <= 0 {
		maxCommits = DefaultMaxCommits
	}

	commits, err := repo.Commits(ctx, maxCommits)
	if err != nil {
		return Result{}, fmt.Errorf("read history: %w", err)
	}

	branchActivity, branchErr := repo.BranchAuthors(ctx, branchCommitLimit)
	if branchErr != nil {
		// Branch breakdown is best effort; the timeline still stands.
		branchActivity = map[string]map[string]int{}
	}

	result := Result{
		TotalCommits:   len(commits),
		BranchCount:    len(branchActivity),
		BranchActivity: branchActivity,
		AuthorStats:    make(map[string]AuthorStats),
	}

	type authorAccum struct {
		commits    int
		lines      int
		activeDays map[string]struct{}
		fileTypes  map[string]int
	}

	authors := make(map[string]*authorAccum)

	daily := make(map[string]map[string]int)
	weekly := make(map[string]map[string]int)
	monthly := make(map[string]map[string]int)

	bump := func(buckets map[string]map[string]int, key, author string) {
		if buckets[key] == nil {
			buckets[key] = make(map[string]int)
		}

		buckets[key][author]++
	}

	var prev *gitlib.Commit

	for i := range commits {
		c := &commits[i]
		author := c.Author
		msg := strings.TrimSpace(c.Message)

		dayKey := c.When.Format("2006-01-02")
		year, week := c.When.ISOWeek()
		weekKey := fmt.Sprintf("%d-W%02d", year, week)
		monthKey := c.When.Format("2006-01")

		bump(daily, dayKey, author)
		bump(weekly, weekKey, author)
		bump(monthly, monthKey, author)

		acc := authors[author]
		if acc == nil {
			acc = &authorAccum{
				activeDays: make(map[string]struct{}),
				fileTypes:  make(map[string]int),
			}
			authors[author] = acc
		}

		acc.commits++
		acc.lines += c.Additions + c.Deletions
		acc.activeDays[dayKey] = struct{}{}

		for ext, n := range c.FileExts {
			acc.fileTypes[ext] += n
		}

		var reasons []string

		if c.Additions == 0 && c.Deletions == 0 {
			reasons = append(reasons, ReasonEmptyCommit)
			result.DummyCommits++
		}

		if prev != nil {
			delta := c.When.Sub(prev.When).Seconds()

			if msg == strings.TrimSpace(prev.Message) && delta < repeatWindowSeconds {
				reasons = append(reasons, ReasonRepeatedCommit)
			}

			if delta < superhumanSeconds {
				reasons = append(reasons, ReasonSuperhumanSpeed)
			}
		}

		if len(reasons) > 0 {
			result.Suspicious = append(result.Suspicious, SuspiciousCommit{
				Hash:    c.ShortHash(),
				Author:  author,
				Message: truncate(msg, messagePreviewLen),
				Reasons: reasons,
			})
		}

		prev = c
	}

	for author, acc := range authors {
		result.AuthorStats[author] = AuthorStats{
			Commits:      acc.commits,
			LinesChanged: acc.lines,
			ActiveDays:   len(acc.activeDays),
			TopFileTypes: formatTopTypes(acc.fileTypes),
		}
	}

	result.Consistency = ConsistencyStats{
		TopDaily:   winnerLabel(daily, "days"),
		TopWeekly:  winnerLabel(weekly, "weeks"),
		TopMonthly: winnerLabel(monthly, "months"),
	}

	return result, nil
}

// winnerLabel finds the author who led the most periods and formats the
// "Name (Led N <unit>)" label.
func winnerLabel(buckets map[string]map[string]int, unit string) string {
	wins := make(map[string]int)

	for _, counts := range buckets {
		top := ""
		best := 0

		// Deterministic tie break on author name.
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}

		sort.Strings(names)

		for _, name := range names {
			if counts[name] > best {
				best = counts[name]
				top = name
			}
		}

		if top != "" {
			wins[top]++
		}
	}

	winner := "None"
	best := 0

	names := make([]string, 0, len(wins))
	for name := range wins {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if wins[name] > best {
			best = wins[name]
			winner = name
		}
	}

	return fmt.Sprintf("%s (Led %d %s)", winner, best, unit)
}

// formatTopTypes renders the top modified extensions as "ext (count)" pairs.
func formatTopTypes(types map[string]int) string {
	type pair struct {
		ext string
		n   int
	}

	pairs := make([]pair, 0, len(types))

	for ext, n := range types {
		if n == 0 {
			continue
		}

		pairs = append(pairs, pair{ext: ext, n: n})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].n != pairs[j].n {
			return pairs[i].n > pairs[j].n
		}

		return pairs[i].ext < pairs[j].ext
	})

	if len(pairs) > topFileTypes {
		pairs = pairs[:topFileTypes]
	}

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s (%d)", p.ext, p.n))
	}

	return strings.Join(parts, ", ")
}

// truncate shortens s to at most n characters.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}

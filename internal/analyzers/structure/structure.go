// Package structure classifies the architecture of a working tree from its
// folder layout and scores its organization.
package structure

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/scan"
)

// Scoring constants.
const (
	// baseScore is the starting organization score.
	baseScore = 100
	// flatPenalty is applied when the root is a flat pile of files.
	flatPenalty = 40
	// depthPenalty is applied when nesting exceeds maxHealthyDepth.
	depthPenalty = 20
	// maxHealthyDepth is the deepest nesting considered maintainable.
	maxHealthyDepth = 6
	// flatRootFiles is the root file count that marks a flat layout.
	flatRootFiles = 15
	// flatMinFolders is the folder count below which a big root is flat.
	flatMinFolders = 3
	// emptyRootFiles is the root file count below which a folderless
	// repo counts as empty.
	emptyRootFiles = 5
)

// Pattern names.
const (
	PatternEmpty      = "Empty / Minimal"
	PatternFlat       = "Flat Spaghetti Code"
	PatternMonolithic = "Monolithic / Unstructured"
)

// Result is the structure classification output.
type Result struct {
	Pattern  string   `json:"pattern"`
	Score    int      `json:"score"`
	Findings []string `json:"findings"`
	MaxDepth int      `json:"max_depth"`
}

// rule is one architecture pattern: the layout names that suggest it and
// how many must be present.
type rule struct {
	name      string
	markers   []string
	threshold int
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{name: "MVC", markers: []string{"models", "views", "controllers", "templates"}, threshold: 2},
	{name: "Clean Architecture", markers: []string{"domain", "usecases", "adapters", "infrastructure", "entities"}, threshold: 2},
	{name: "Microservices", markers: []string{"services", "gateway", "docker-compose.yml", "k8s"}, threshold: 2},
	{name: "Modern React/Next", markers: []string{"src", "components", "pages", "public", "package.json"}, threshold: 3},
	{name: "Django", markers: []string{"manage.py", "apps", "templates", "static", "settings.py"}, threshold: 3},
	{name: "Standard Go", markers: []string{"cmd", "internal", "pkg", "api"}, threshold: 2},
	{name: "Flutter/Mobile", markers: []string{"lib", "android", "ios", "pubspec.yaml"}, threshold: 3},
}

// layout is what the tree walk gathers for classification.
type layout struct {
	// folders holds every directory name in the tree, lowercased.
	folders map[string]struct{}
	// topLevel holds the lowercased root entry names, files included.
	topLevel map[string]struct{}
	// folderCount counts every directory occurrence, not distinct names.
	folderCount int
	rootFiles   int
	maxDepth    int
}

// matches reports whether a marker is present: as a root entry (file
// markers like manage.py) or as a substring of any folder name anywhere
// in the tree, so backend/models still counts as models.
func (l layout) matches(marker string) bool {
	if _, ok := l.topLevel[marker]; ok {
		return true
	}

	for name := range l.folders {
		if strings.Contains(name, marker) {
			return true
		}
	}

	return false
}

// Analyze classifies the working tree at root.
func Analyze(ctx context.Context, root string) (Result, error) {
	lay, err := collectLayout(ctx, root)
	if err != nil {
		return Result{}, err
	}

	result := Result{Pattern: PatternMonolithic, Score: baseScore, MaxDepth: lay.maxDepth}

	for _, r := range rules {
		hits := 0

		for _, m := range r.markers {
			if lay.matches(m) {
				hits++
			}
		}

		if hits >= r.threshold {
			result.Pattern = r.name

			break
		}
	}

	// The flat-root penalty applies even when an architecture matched.
	if lay.rootFiles > flatRootFiles && lay.folderCount < flatMinFolders {
		result.Score -= flatPenalty
		result.Findings = append(result.Findings, "too many files in the repository root")

		if result.Pattern == PatternMonolithic {
			result.Pattern = PatternFlat
		}
	}

	if lay.maxDepth > maxHealthyDepth {
		result.Score -= depthPenalty
		result.Findings = append(result.Findings, "directory nesting deeper than 6 levels")
	}

	if lay.folderCount == 0 && lay.rootFiles < emptyRootFiles {
		return Result{Pattern: PatternEmpty, MaxDepth: lay.maxDepth}, nil
	}

	if result.Score < 0 {
		result.Score = 0
	}

	return result, nil
}

// collectLayout walks the whole tree gathering folder names, root
// counts and the deepest nesting level. Hidden entries and excluded
// directories are ignored.
func collectLayout(ctx context.Context, root string) (layout, error) {
	lay := layout{
		folders:  make(map[string]struct{}),
		topLevel: make(map[string]struct{}),
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if path == root {
			return nil
		}

		name := strings.ToLower(d.Name())
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		depth := strings.Count(filepath.ToSlash(rel), "/") + 1

		if d.IsDir() {
			if strings.HasPrefix(name, ".") || scan.SkipDir(d.Name()) {
				return filepath.SkipDir
			}

			lay.folders[name] = struct{}{}
			lay.folderCount++

			if depth > lay.maxDepth {
				lay.maxDepth = depth
			}

			if depth == 1 {
				lay.topLevel[name] = struct{}{}
			}

			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		if depth == 1 {
			lay.topLevel[name] = struct{}{}
			lay.rootFiles++
		}

		return nil
	})
	if walkErr != nil {
		return layout{}, walkErr
	}

	return lay, nil
}

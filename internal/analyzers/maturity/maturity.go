// Package maturity scores engineering maturity from deployment, CI, lint
// and test infrastructure found in the working tree.
package maturity

import (
	"context"
	"path"
	"strings"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/scan"
)

// Scoring constants.
const (
	// dockerPoints is awarded for container tooling.
	dockerPoints = 20
	// cloudPoints is awarded for cloud/deployment configuration.
	cloudPoints = 20
	// ciPoints is awarded for CI configuration.
	ciPoints = 20
	// lintPoints is awarded for linter configuration.
	lintPoints = 10
	// testPointsPerFile is awarded per confirmed test file.
	testPointsPerFile = 6
	// testPointsCap bounds the test contribution.
	testPointsCap = 30
	// scoreCap bounds the overall maturity score.
	scoreCap = 100
)

// DevOps tool categories.
const (
	ToolDocker = "Docker"
	ToolCI     = "CI/CD"
	ToolCloud  = "Cloud"
	ToolLint   = "Linting"
)

// testPathPatterns mark a file as a test candidate when found in its
// lowercased name or directory path.
var testPathPatterns = []string{
	"test_", "_test.py", ".spec.js", ".test.js",
	"src/test", "tests/", "__tests__", "_test.go",
}

// toolMarkers maps a category to filename fragments that indicate it.
var toolMarkers = map[string][]string{
	ToolDocker: {"dockerfile", "docker-compose.yml", ".dockerignore"},
	ToolCI:     {".gitlab-ci.yml", "azure-pipelines.yml", "circleci.config.yml"},
	ToolCloud:  {"vercel.json", "netlify.toml", "app.yaml", "serverless.yml", "procfile"},
	ToolLint:   {".eslintrc", ".pylintrc", "pyproject.toml", ".prettierrc", ".golangci"},
}

// testContentMarkers confirm that a test candidate actually contains tests.
var testContentMarkers = []string{"assert", "expect(", "testing"}

// skippedTestExtensions are candidate names never counted as tests.
var skippedTestExtensions = []string{".png", ".xml", ".json"}

// Result is the maturity scan output.
type Result struct {
	Score        int      `json:"score"`
	TestFiles    int      `json:"test_files"`
	TestLines    int      `json:"test_lines"`
	DevOpsTools  []string `json:"devops_tools"`
	HasTests     bool     `json:"has_tests"`
	IsDeployable bool     `json:"is_deployable"`
}

// Scan walks the tree at root and scores its engineering maturity.
func Scan(ctx context.Context, root string, maxFileBytes int64) (Result, error) {
	var result Result

	tools := make(map[string]struct{})

	walkErr := scan.Walk(ctx, root, func(f scan.File) error {
		rel := strings.ToLower(f.Rel)
		base := path.Base(rel)

		if strings.Contains(rel, ".github/") {
			tools[ToolCI] = struct{}{}
		}

		for category, markers := range toolMarkers {
			for _, m := range markers {
				if strings.Contains(base, m) {
					tools[category] = struct{}{}
				}
			}
		}

		if !isTestCandidate(rel, base) {
			return nil
		}

		if maxFileBytes > 0 && f.Size > maxFileBytes {
			return nil
		}

		data, readErr := scan.ReadFile(f)
		if readErr != nil {
			return nil
		}

		content := string(data)
		if !containsAny(content, testContentMarkers) {
			return nil
		}

		result.TestFiles++
		result.TestLines += strings.Count(content, "\n")

		return nil
	})
	if walkErr != nil {
		return Result{}, walkErr
	}

	score := 0

	if _, ok := tools[ToolDocker]; ok {
		score += dockerPoints
	}

	if _, ok := tools[ToolCloud]; ok {
		score += cloudPoints
	}

	if _, ok := tools[ToolCI]; ok {
		score += ciPoints
	}

	if _, ok := tools[ToolLint]; ok {
		score += lintPoints
	}

	score += min(testPointsCap, result.TestFiles*testPointsPerFile)

	result.Score = min(scoreCap, score)
	result.HasTests = result.TestFiles > 0

	_, docker := tools[ToolDocker]
	_, cloud := tools[ToolCloud]
	result.IsDeployable = docker || cloud

	for _, category := range []string{ToolDocker, ToolCI, ToolCloud, ToolLint} {
		if _, ok := tools[category]; ok {
			result.DevOpsTools = append(result.DevOpsTools, category)
		}
	}

	return result, nil
}

// isTestCandidate reports whether the path or name matches a test pattern
// and is not an asset file.
func isTestCandidate(rel, base string) bool {
	for _, ext := range skippedTestExtensions {
		if strings.HasSuffix(base, ext) {
			return false
		}
	}

	for _, p := range testPathPatterns {
		if strings.Contains(rel, p) {
			return true
		}
	}

	return false
}

// containsAny reports whether s contains any of the markers.
func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}

	return false
}

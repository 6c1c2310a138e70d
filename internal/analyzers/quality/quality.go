// Package quality measures code health: average cyclomatic complexity,
// a maintainability index and comment coverage across supported languages.
package quality

import (
	"context"
	"math"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/scan"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/token"
)

// Neutral defaults applied when no supported files exist, so repos in
// other languages are not penalized.
const (
	// NeutralComplexity is the assumed average complexity.
	NeutralComplexity = 5
	// NeutralMaintainability is the assumed maintainability index.
	NeutralMaintainability = 60
	// NeutralDocScore is the assumed documentation score.
	NeutralDocScore = 40
)

// idealCommentRatio is the comment-to-code ratio that earns full
// documentation marks.
const idealCommentRatio = 0.15

// langSupport holds the tree-sitter grammar and the node types that count
// as decision points and function blocks for one language.
type langSupport struct {
	grammar   *sitter.Language
	functions map[string]struct{}
	decisions map[string]struct{}
}

var languages = map[string]langSupport{
	"Go": {
		grammar: golang.GetLanguage(),
		functions: set("function_declaration", "method_declaration", "func_literal"),
		decisions: set("if_statement", "for_statement", "expression_case", "type_case",
			"communication_case", "select_statement"),
	},
	"Python": {
		grammar:   python.GetLanguage(),
		functions: set("function_definition"),
		decisions: set("if_statement", "elif_clause", "for_statement", "while_statement",
			"except_clause", "boolean_operator", "conditional_expression"),
	},
	"JavaScript": {
		grammar: javascript.GetLanguage(),
		functions: set("function_declaration", "function_expression", "arrow_function",
			"method_definition"),
		decisions: set("if_statement", "for_statement", "for_in_statement", "while_statement",
			"switch_case", "catch_clause", "ternary_expression"),
	},
}

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}

	return m
}

// Result is the quality analysis output.
type Result struct {
	AvgComplexity        float64 `json:"avg_complexity"`
	MaintainabilityIndex float64 `json:"maintainability_index"`
	DocumentationScore   float64 `json:"documentation_score"`
	AnalyzedFiles        int     `json:"analyzed_files"`
}

// fileMetrics are the raw counts extracted from one file.
type fileMetrics struct {
	complexity float64
	mi         float64
	loc        int
	comments   int
}

// Analyze measures every supported file and averages the results.
// With no supported files the neutral defaults apply.
func Analyze(ctx context.Context, files []scan.File) (Result, error) {
	var (
		totalComplexity float64
		totalMI         float64
		totalLOC        int
		totalComments   int
		analyzed        int
	)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		support, ok := languages[f.Language()]
		if !ok {
			continue
		}

		data, readErr := scan.ReadFile(f)
		if readErr != nil || len(strings.TrimSpace(string(data))) == 0 {
			continue
		}

		metrics, parseOK := measure(ctx, support, data)
		if !parseOK {
			continue
		}

		totalComplexity += metrics.complexity
		totalMI += metrics.mi
		totalLOC += metrics.loc
		totalComments += metrics.comments
		analyzed++
	}

	result := Result{AnalyzedFiles: analyzed}

	if analyzed > 0 {
		result.AvgComplexity = round2(totalComplexity / float64(analyzed))
		result.MaintainabilityIndex = round2(totalMI / float64(analyzed))
	} else {
		result.AvgComplexity = NeutralComplexity
		result.MaintainabilityIndex = NeutralMaintainability
	}

	if totalLOC > 0 {
		ratio := float64(totalComments) / float64(totalLOC)
		result.DocumentationScore = round2(math.Min(1, ratio/idealCommentRatio) * 100)
	} else {
		result.DocumentationScore = NeutralDocScore
	}

	return result, nil
}

// measure parses one file and derives its metrics.
func measure(ctx context.Context, support langSupport, data []byte) (fileMetrics, bool) {
	parser := sitter.NewParser()
	parser.SetLanguage(support.grammar)

	tree, err := parser.ParseCtx(ctx, nil, data)
	if err != nil || tree == nil {
		return fileMetrics{}, false
	}
	defer tree.Close()

	functions := 0
	decisions := 0
	comments := 0

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}

		nodeType := n.Type()

		if _, ok := support.functions[nodeType]; ok {
			functions++
		}

		if _, ok := support.decisions[nodeType]; ok {
			decisions++
		}

		if nodeType == "comment" {
			comments++
		}

		for i := range int(n.ChildCount()) {
			walk(n.Child(i))
		}
	}

	walk(tree.RootNode())

	metrics := fileMetrics{
		comments: comments,
		loc:      countLOC(data),
	}

	// Average block complexity: each function starts at 1, decision
	// points add one each. Files without blocks carry base complexity.
	if functions > 0 {
		metrics.complexity = float64(functions+decisions) / float64(functions)
	} else {
		metrics.complexity = 1
	}

	metrics.mi = maintainabilityIndex(string(data), metrics.complexity, metrics.loc, comments)

	return metrics, true
}

// countLOC counts non-blank lines.
func countLOC(data []byte) int {
	loc := 0

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			loc++
		}
	}

	return loc
}

// maintainabilityIndex computes the classic 0-100 normalized index from
// an approximate Halstead volume, complexity, size and comment share.
func maintainabilityIndex(content string, complexity float64, loc, comments int) float64 {
	if loc == 0 {
		return 0
	}

	tokens := token.Tokenize(content)

	distinct := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		distinct[tok] = struct{}{}
	}

	volume := 0.0
	if len(distinct) > 1 {
		volume = float64(len(tokens)) * math.Log2(float64(len(distinct)))
	}

	commentShare := float64(comments) / float64(loc)

	raw := 171 -
		5.2*math.Log(math.Max(1, volume)) -
		0.23*complexity -
		16.2*math.Log(float64(loc)) +
		50*math.Sin(math.Sqrt(2.4*commentShare))

	normalized := raw * 100 / 171

	return math.Max(0, math.Min(100, normalized))
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

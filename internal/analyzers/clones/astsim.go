package clones

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// maxASTNodes caps the node-type sequence length; the LCS below is
// quadratic and similarity converges long before this bound.
const maxASTNodes = 2000

// astLanguages maps the structural-similarity whitelist to grammars.
// Files outside the whitelist fall back to token similarity alone.
var astLanguages = map[string]*sitter.Language{
	"Go":         golang.GetLanguage(),
	"Python":     python.GetLanguage(),
	"JavaScript": javascript.GetLanguage(),
}

// ASTSupported reports whether lang participates in structural similarity.
func ASTSupported(lang string) bool {
	_, ok := astLanguages[lang]

	return ok
}

// NodeTypes parses src and returns the preorder node-type sequence,
// truncated to maxASTNodes. Parse failures yield an empty sequence.
func NodeTypes(ctx context.Context, lang string, src []byte) []string {
	grammar, ok := astLanguages[lang]
	if !ok {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	var types []string

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || len(types) >= maxASTNodes {
			return
		}

		types = append(types, n.Type())

		for i := range int(n.ChildCount()) {
			walk(n.Child(i))
		}
	}

	walk(tree.RootNode())

	return types
}

// ASTSimilarity compares two node-type sequences: LCS length normalized
// by the mean sequence length. Empty sequences compare as 0.0.
func ASTSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	lcs := lcsLength(a, b)
	denom := float64(len(a)+len(b)) / 2

	return float64(lcs) / denom
}

// lcsLength is the classic two-row LCS dynamic program.
func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				curr[j] = 1 + prev[j+1]
			} else {
				curr[j] = max(prev[j], curr[j+1])
			}
		}

		prev, curr = curr, prev
	}

	return prev[0]
}

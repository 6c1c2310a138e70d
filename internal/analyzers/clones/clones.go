// Package clones detects near-duplicate source files inside a working tree.
// Token-level similarity uses winnowed k-gram fingerprints; files in the
// structural whitelist additionally compare AST node-type sequences.
package clones

import (
	"context"
	"sort"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/scan"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/token"
)

// Combination weights when both files support structural comparison.
const (
	// astWeight scales the AST similarity share.
	astWeight = 0.6
	// tokenWeight scales the token similarity share.
	tokenWeight = 0.4
)

// Comparison pool bounds. The pairwise pass is quadratic, so the pool
// stays small and keeps only files large enough to carry signal.
const (
	// DefaultMaxFiles caps the pairwise comparison set.
	DefaultMaxFiles = 20
	// minFileBytes drops trivially small files from the pool.
	minFileBytes = 100
)

// FileMatch is the strongest similarity found for one file.
type FileMatch struct {
	Path            string  `json:"path"`
	BestMatch       string  `json:"best_match"`
	TokenSimilarity float64 `json:"token_similarity"`
	ASTSimilarity   float64 `json:"ast_similarity"`
	Score           float64 `json:"score"`
}

// Result is the clone detection output.
type Result struct {
	Files    []FileMatch `json:"files"`
	Max      float64     `json:"max"`
	Mean     float64     `json:"mean"`
	Compared int         `json:"compared"`
}

// fileDoc is the precomputed comparison state of one file.
type fileDoc struct {
	file        scan.File
	fingerprint Fingerprint
	nodeTypes   []string
	structural  bool
}

// Detect compares every file pair and keeps each file's best match.
// At most maxFiles files participate; the largest files are kept since
// they carry the most signal.
func Detect(ctx context.Context, files []scan.File, maxFiles int) (Result, error) {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	pool := make([]scan.File, 0, len(files))

	for _, f := range files {
		if f.Size >= minFileBytes {
			pool = append(pool, f)
		}
	}

	sort.Slice(pool, func(i, j int) bool { return pool[i].Size > pool[j].Size })

	if len(pool) > maxFiles {
		pool = pool[:maxFiles]
	}

	files = pool

	docs := make([]fileDoc, 0, len(files))

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		data, readErr := scan.ReadFile(f)
		if readErr != nil {
			continue
		}

		doc := fileDoc{
			file:        f,
			fingerprint: Winnow(token.Tokenize(string(data)), DefaultShingleSize, DefaultWindowSize),
			structural:  ASTSupported(f.Language()),
		}

		if doc.structural {
			doc.nodeTypes = NodeTypes(ctx, f.Language(), data)
		}

		docs = append(docs, doc)
	}

	result := Result{Compared: len(docs)}

	best := make([]FileMatch, len(docs))
	for i := range docs {
		best[i] = FileMatch{Path: docs[i].file.Rel}
	}

	for i := 0; i < len(docs); i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		for j := i + 1; j < len(docs); j++ {
			tokenSim := Jaccard(docs[i].fingerprint, docs[j].fingerprint)

			astSim := 0.0
			combined := tokenSim

			if docs[i].structural && docs[j].structural {
				astSim = ASTSimilarity(docs[i].nodeTypes, docs[j].nodeTypes)
				combined = astWeight*astSim + tokenWeight*tokenSim
			}

			record(&best[i], docs[j].file.Rel, tokenSim, astSim, combined)
			record(&best[j], docs[i].file.Rel, tokenSim, astSim, combined)
		}
	}

	var sum float64

	for _, m := range best {
		if m.BestMatch == "" {
			continue
		}

		result.Files = append(result.Files, m)
		sum += m.Score

		if m.Score > result.Max {
			result.Max = m.Score
		}
	}

	if len(result.Files) > 0 {
		result.Mean = sum / float64(len(result.Files))
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Score > result.Files[j].Score
	})

	return result, nil
}

// record keeps the strongest match seen for a file.
func record(m *FileMatch, other string, tokenSim, astSim, combined float64) {
	if m.BestMatch != "" && combined <= m.Score {
		return
	}

	m.BestMatch = other
	m.TokenSimilarity = tokenSim
	m.ASTSimilarity = astSim
	m.Score = combined
}

// Package origin estimates the likelihood that source files were machine
// generated. A local entropy heuristic always contributes; optional remote
// scorers join an unweighted ensemble per file.
package origin

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/scan"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/token"
)

// ErrMissingAPIKey indicates a remote scorer was requested without credentials.
var ErrMissingAPIKey = errors.New("missing API key")

// Heuristic constants.
const (
	// DefaultEntropyMid is the sigmoid midpoint: token entropy at which
	// the heuristic is undecided.
	DefaultEntropyMid = 6.0
	// DefaultTokenNorm is the token count at which the length factor
	// saturates.
	DefaultTokenNorm = 2000
	// DefaultMaxFiles caps how many files are scored; the largest carry
	// the most signal and every file costs one call per remote scorer.
	DefaultMaxFiles = 15
	// minFileBytes drops trivially small files from the sample.
	minFileBytes = 100
	// remoteContentLimit caps the content sent to remote scorers.
	remoteContentLimit = 20000
	// localProvider names the entropy heuristic in traces.
	localProvider = "local_heuristic"
)

// Config tunes the heuristic.
type Config struct {
	EntropyMid float64
	TokenNorm  int
	MaxFiles   int
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.EntropyMid == 0 {
		c.EntropyMid = DefaultEntropyMid
	}

	if c.TokenNorm == 0 {
		c.TokenNorm = DefaultTokenNorm
	}

	if c.MaxFiles == 0 {
		c.MaxFiles = DefaultMaxFiles
	}

	return c
}

// sampleLargest keeps the biggest files above the size floor.
func sampleLargest(files []scan.File, limit int) []scan.File {
	kept := make([]scan.File, 0, len(files))

	for _, f := range files {
		if f.Size >= minFileBytes {
			kept = append(kept, f)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Size > kept[j].Size })

	if len(kept) > limit {
		kept = kept[:limit]
	}

	return kept
}

// Scorer is a remote AI-likelihood provider.
type Scorer interface {
	// Name identifies the provider in traces.
	Name() string
	// Score returns a likelihood in [0, 1] for the given content.
	Score(ctx context.Context, content string) (float64, error)
}

// Trace records one provider's contribution to a file score.
type Trace struct {
	Provider string  `json:"provider"`
	Score    float64 `json:"score"`
	OK       bool    `json:"ok"`
	Error    string  `json:"error,omitempty"`
}

// FileScore is the per-file ensemble result.
type FileScore struct {
	Path   string  `json:"path"`
	Score  float64 `json:"score"`
	Tokens int     `json:"tokens"`
	Traces []Trace `json:"traces,omitempty"`
}

// Result is the AI-origin detection output.
type Result struct {
	Files []FileScore `json:"files"`
	// Max is the highest per-file probability in [0, 1].
	Max float64 `json:"max"`
	// Mean is the average per-file probability in [0, 1].
	Mean float64 `json:"mean"`
}

// Entropy returns the Shannon entropy of the token distribution in bits.
func Entropy(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}

	total := float64(len(tokens))
	entropy := 0.0

	for _, n := range counts {
		p := float64(n) / total
		entropy -= p * math.Log2(p)
	}

	return entropy
}

// HeuristicScore computes the local entropy score for a token stream.
// Low-entropy, repetitive token distributions push the sigmoid toward 1;
// short files are discounted by the length factor.
func HeuristicScore(tokens []string, cfg Config) float64 {
	cfg = cfg.withDefaults()

	if len(tokens) == 0 {
		return 0
	}

	entropy := Entropy(tokens)
	score := 1 / (1 + math.Exp(entropy-cfg.EntropyMid))
	lengthFactor := math.Min(1, float64(len(tokens))/float64(cfg.TokenNorm))

	return score * lengthFactor
}

// Detect scores the sampled files and aggregates repo-level max and mean.
func Detect(ctx context.Context, files []scan.File, cfg Config, scorers ...Scorer) (Result, error) {
	cfg = cfg.withDefaults()

	var result Result

	for _, f := range sampleLargest(files, cfg.MaxFiles) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		data, readErr := scan.ReadFile(f)
		if readErr != nil {
			continue
		}

		content := string(data)
		tokens := token.Tokenize(content)
		local := HeuristicScore(tokens, cfg)

		traces := []Trace{{Provider: localProvider, Score: local, OK: true}}
		sum := local
		n := 1

		if len(content) > remoteContentLimit {
			content = content[:remoteContentLimit]
		}

		for _, s := range scorers {
			remote, scoreErr := s.Score(ctx, content)
			if scoreErr != nil {
				traces = append(traces, Trace{Provider: s.Name(), Error: scoreErr.Error()})

				continue
			}

			traces = append(traces, Trace{Provider: s.Name(), Score: remote, OK: true})
			sum += remote
			n++
		}

		result.Files = append(result.Files, FileScore{
			Path:   f.Rel,
			Score:  sum / float64(n),
			Tokens: len(tokens),
			Traces: traces,
		})
	}

	if len(result.Files) == 0 {
		return result, nil
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Score > result.Files[j].Score
	})

	var sum float64
	for _, f := range result.Files {
		sum += f.Score
	}

	result.Max = result.Files[0].Score
	result.Mean = sum / float64(len(result.Files))

	return result, nil
}

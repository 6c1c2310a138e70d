package clones_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/clones"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/token"
)

// sampleTokens yields a realistic token stream long enough to winnow.
func sampleTokens(t *testing.T) []string {
	t.Helper()

	src := `
func sum(values []int) int {
	total := 0
	for _, value := range values {
		total += value
	}
	return total
}
`
	tokens := token.Tokenize(src)
	require.NotEmpty(t, tokens)

	return tokens
}

func TestWinnowDeterministic(t *testing.T) {
	t.Parallel()

	tokens := sampleTokens(t)

	first := clones.Winnow(tokens, 0, 0)
	second := clones.Winnow(tokens, 0, 0)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestWinnowShortStreams(t *testing.T) {
	t.Parallel()

	// Below the k-gram size: no fingerprint.
	assert.Empty(t, clones.Winnow([]string{"aa", "bb"}, 5, 4))

	// At least one k-gram but fewer than a full window: the overall
	// minimum is still selected.
	tokens := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"}
	fp := clones.Winnow(tokens, 5, 4)
	assert.Len(t, fp, 1)
}

func TestJaccardSelfSimilarity(t *testing.T) {
	t.Parallel()

	fp := clones.Winnow(sampleTokens(t), 0, 0)

	assert.InEpsilon(t, 1.0, clones.Jaccard(fp, fp), 1e-9)
}

func TestJaccardSymmetry(t *testing.T) {
	t.Parallel()

	a := clones.Winnow(sampleTokens(t), 0, 0)
	b := clones.Winnow(token.Tokenize("let total = rows.reduce((acc, row) => acc + row.count, 0);"), 0, 0)

	assert.Equal(t, clones.Jaccard(a, b), clones.Jaccard(b, a))
}

func TestJaccardBothEmpty(t *testing.T) {
	t.Parallel()

	assert.Zero(t, clones.Jaccard(clones.Fingerprint{}, clones.Fingerprint{}))
}

func TestJaccardDisjoint(t *testing.T) {
	t.Parallel()

	a := clones.Fingerprint{1: {}, 2: {}}
	b := clones.Fingerprint{3: {}, 4: {}}

	assert.Zero(t, clones.Jaccard(a, b))
	assert.InEpsilon(t, 1.0/3.0, clones.Jaccard(clones.Fingerprint{1: {}, 2: {}}, clones.Fingerprint{2: {}, 3: {}}), 1e-9)
}

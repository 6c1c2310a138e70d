package clones

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
)

// Winnowing parameters.
const (
	// DefaultShingleSize is the k-gram length in tokens.
	DefaultShingleSize = 5
	// DefaultWindowSize is the winnowing window in k-grams.
	DefaultWindowSize = 4
	// hashHexDigits is the SHA-1 prefix length kept per k-gram.
	hashHexDigits = 16
)

// Fingerprint is the winnowed hash set of one file.
type Fingerprint map[uint64]struct{}

// kgramHash hashes a k-gram to the first 64 bits of its SHA-1 digest.
func kgramHash(kgram string) uint64 {
	sum := sha1.Sum([]byte(kgram))
	hexDigest := hex.EncodeToString(sum[:])

	// The prefix always parses: it is 16 hex digits.
	value, err := strconv.ParseUint(hexDigest[:hashHexDigits], 16, 64)
	if err != nil {
		panic("clones: sha1 hex prefix failed to parse: " + err.Error())
	}

	return value
}

// Winnow selects the fingerprint of a token stream: for every window of w
// consecutive k-gram hashes the minimum is kept, preferring the rightmost
// occurrence on ties. Streams shorter than one window contribute their
// overall minimum so that small files still fingerprint.
func Winnow(tokens []string, k, w int) Fingerprint {
	if k <= 0 {
		k = DefaultShingleSize
	}

	if w <= 0 {
		w = DefaultWindowSize
	}

	if len(tokens) < k {
		return Fingerprint{}
	}

	hashes := make([]uint64, 0, len(tokens)-k+1)
	for i := 0; i+k <= len(tokens); i++ {
		hashes = append(hashes, kgramHash(strings.Join(tokens[i:i+k], " ")))
	}

	selected := make(Fingerprint)

	if len(hashes) < w {
		selected[minRightmost(hashes)] = struct{}{}

		return selected
	}

	for i := 0; i+w <= len(hashes); i++ {
		selected[minRightmost(hashes[i:i+w])] = struct{}{}
	}

	return selected
}

// minRightmost returns the smallest hash, preferring the rightmost
// occurrence when equal.
func minRightmost(window []uint64) uint64 {
	best := window[0]

	for _, h := range window[1:] {
		if h <= best {
			best = h
		}
	}

	return best
}

// Jaccard computes set similarity of two fingerprints. Two empty
// fingerprints compare as 0.0, not 1.0.
func Jaccard(a, b Fingerprint) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0.0
	}

	inter := 0

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	for h := range small {
		if _, ok := large[h]; ok {
			inter++
		}
	}

	union := len(a) + len(b) - inter
	if union == 0 {
		return 0.0
	}

	return float64(inter) / float64(union)
}

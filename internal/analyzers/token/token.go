// Package token provides the shared source tokenizer used by the
// fingerprinting and AI-origin detectors.
package token

import "regexp"

// pattern matches identifiers, numbers, two-character comparison
// operators and single-character punctuation, in that precedence.
var pattern = regexp.MustCompile(`[A-Za-z_]\w+|\d+|==|!=|<=|>=|[{}()\[\];,.<>+\-*/%=]`)

// Tokenize splits source text into lexical tokens. Whitespace and
// anything outside the token pattern is dropped.
func Tokenize(src string) []string {
	return pattern.FindAllString(src, -1)
}

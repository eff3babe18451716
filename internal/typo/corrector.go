// Package typo implements the fuzzy input corrector that runs over every
// free-text submission before it is dispatched downstream.
//
// The algorithm is a nearest-neighbor lookup under Levenshtein edit distance
// against a small fixed domain dictionary:
//
//  1. The input is split on single spaces; token count and order are always
//     preserved — the corrector never inserts or removes tokens.
//  2. Tokens shorter than the minimum length pass through unchanged; they are
//     too short to correct reliably and substituting them would corrupt valid
//     short words.
//  3. Every other token is compared (case-insensitively) against each
//     dictionary entry in declaration order. A substitution is accepted only
//     when the minimum distance is strictly below the acceptance threshold,
//     so exact and single-edit matches are corrected while anything two or
//     more edits away is left alone.
//
// Ties are broken by declaration order: the first entry reaching the minimum
// distance wins. The dictionary is read-only after construction, so a
// Corrector is safe for concurrent use.
package typo

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	// defaultMinTokenLength is the minimum token length (in runes) considered
	// for correction.
	defaultMinTokenLength = 4

	// defaultMaxDistance is the exclusive acceptance threshold: a dictionary
	// entry replaces a token only when its edit distance is strictly below
	// this value.
	defaultMaxDistance = 2
)

// DefaultDictionary is the built-in domain vocabulary for the college
// assistant. Order matters: earlier entries win distance ties.
var DefaultDictionary = []string{
	"admission", "document", "fee", "structure", "ragging", "policy",
	"placement", "timing", "college", "semester", "exam", "timetable",
	"notice", "circular", "event", "information",
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithMinTokenLength sets the minimum token length (in runes) a token must
// have to be considered for correction. Default: 4.
func WithMinTokenLength(n int) Option {
	return func(c *Corrector) {
		c.minTokenLen = n
	}
}

// WithMaxDistance sets the exclusive edit-distance acceptance threshold.
// Default: 2 (distance 0 or 1 triggers replacement).
func WithMaxDistance(n int) Option {
	return func(c *Corrector) {
		c.maxDistance = n
	}
}

// Corrector replaces likely typos with their nearest dictionary match.
// It is read-only after construction and safe for concurrent use.
type Corrector struct {
	dict        []string
	minTokenLen int
	maxDistance int
}

// New returns a [Corrector] over the given dictionary. The slice is copied
// and every entry lowercased; comparison is case-insensitive. A nil or empty
// dictionary yields a corrector that passes all input through unchanged.
func New(dictionary []string, opts ...Option) *Corrector {
	c := &Corrector{
		dict:        make([]string, len(dictionary)),
		minTokenLen: defaultMinTokenLength,
		maxDistance: defaultMaxDistance,
	}
	for i, entry := range dictionary {
		c.dict[i] = strings.ToLower(entry)
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct returns text with every correctable token replaced by its nearest
// dictionary entry. Tokenisation splits on single spaces so that the output
// always has the same token count and order as the input.
func (c *Corrector) Correct(text string) string {
	if text == "" {
		return text
	}
	tokens := strings.Split(text, " ")
	for i, tok := range tokens {
		tokens[i] = c.correctToken(tok)
	}
	return strings.Join(tokens, " ")
}

// correctToken resolves a single token. Tokens below the minimum length are
// returned unchanged; otherwise the first dictionary entry achieving the
// minimum distance below the threshold replaces the token.
func (c *Corrector) correctToken(tok string) string {
	if utf8.RuneCountInString(tok) < c.minTokenLen {
		return tok
	}
	lower := strings.ToLower(tok)

	best := tok
	bestDist := c.maxDistance
	for _, entry := range c.dict {
		if d := Distance(lower, entry); d < bestDist {
			bestDist = d
			best = entry
		}
	}
	return best
}

// Distance returns the Levenshtein edit distance between a and b: the minimum
// number of single-character insertions, deletions, and substitutions needed
// to transform one into the other. Comparison is case-sensitive; callers that
// need case-insensitive behaviour lowercase both sides first.
func Distance(a, b string) int {
	return matchr.Levenshtein(a, b)
}

// Package delimiter implements the pattern-based chunker described in
// spec.md §4.4: per-language-family delimiter tables, two-phase matching
// (explicit start/end pairs, then keyword-to-structural-character
// bindings), and deterministic boundary conflict resolution.
package delimiter

import "regexp"

// Kind enumerates the delimiter categories from spec §4.4.
type Kind string

const (
	KindBlock   Kind = "BLOCK"
	KindFunc    Kind = "FUNCTION"
	KindClass   Kind = "CLASS"
	KindComment Kind = "COMMENT"
)

// Delimiter describes one pattern-matched region. An empty End means "bind
// to the next structural delimiter" (spec §4.4 phase 2): the region runs
// from the Start keyword match to the next recognized structural character
// at paren-depth 0.
type Delimiter struct {
	Name           string
	Start          *regexp.Regexp
	End            *regexp.Regexp // nil for keyword-bound delimiters
	Kind           Kind
	Priority       int
	Inclusive      bool
	TakeWholeLines bool
	Nestable       bool
}

// structuralChars names the structural delimiters "{", ":", "=>", "do" and
// "then". Nothing in the package reads it: phase 2's bindToStructural
// recognizes only "{", ":" and "=>", not "do" or "then".
var structuralChars = []string{"{", ":", "=>", "do", "then"}

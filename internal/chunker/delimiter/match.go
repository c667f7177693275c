package delimiter

import (
	"sort"
	"strings"
)

// boundary is one matched region before conflict resolution, in byte
// offsets into the original content.
type boundary struct {
	start, end int
	kind       Kind
	priority   int
	name       string
	nesting    int
	inclusive  bool
	wholeLines bool
}

// explicitPairs runs phase 1 (spec §4.4): delimiters with a non-nil End
// regex are matched as start/end pairs. Nestable delimiters (e.g. braces)
// use a depth-tracking scan so inner pairs nest correctly; non-nestable
// delimiters bind each start to its nearest following end.
func explicitPairs(content string, f *family) []boundary {
	var out []boundary
	for _, d := range f.delimiters {
		if d.End == nil {
			continue
		}
		if d.Nestable {
			out = append(out, matchNestable(content, d)...)
		} else {
			out = append(out, matchNonNestable(content, d)...)
		}
	}
	return out
}

func matchNestable(content string, d Delimiter) []boundary {
	starts := d.Start.FindAllStringIndex(content, -1)
	ends := d.End.FindAllStringIndex(content, -1)
	if len(starts) == 0 || len(ends) == 0 {
		return nil
	}
	type tok struct {
		pos   int
		end   int
		open  bool
	}
	toks := make([]tok, 0, len(starts)+len(ends))
	for _, s := range starts {
		toks = append(toks, tok{pos: s[0], end: s[1], open: true})
	}
	for _, e := range ends {
		toks = append(toks, tok{pos: e[0], end: e[1], open: false})
	}
	sort.Slice(toks, func(i, j int) bool { return toks[i].pos < toks[j].pos })

	var stack []tok
	var out []boundary
	for _, t := range toks {
		if t.open {
			stack = append(stack, t)
			continue
		}
		if len(stack) == 0 {
			continue
		}
		open := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, boundary{
			start: open.pos, end: t.end, kind: d.Kind, priority: d.Priority,
			name: d.Name, nesting: len(stack), inclusive: d.Inclusive, wholeLines: d.TakeWholeLines,
		})
	}
	return out
}

func matchNonNestable(content string, d Delimiter) []boundary {
	starts := d.Start.FindAllStringIndex(content, -1)
	var out []boundary
	for _, s := range starts {
		loc := d.End.FindStringIndex(content[s[1]:])
		end := s[1]
		if loc != nil {
			end = s[1] + loc[1]
		} else {
			end = len(content)
		}
		out = append(out, boundary{
			start: s[0], end: end, kind: d.Kind, priority: d.Priority,
			name: d.Name, inclusive: d.Inclusive, wholeLines: d.TakeWholeLines,
		})
	}
	return out
}

// keywordBindings runs phase 2 (spec §4.4): delimiters with a nil End bind
// from their Start match to the next structural character ("{", ":" or
// "=>") at paren-depth 0, skipping over quoted string literals. Comments
// are not skipped, and "do"/"then" are not recognized as structurals.
func keywordBindings(content string, f *family) []boundary {
	var out []boundary
	for _, d := range f.delimiters {
		if d.End != nil {
			continue
		}
		starts := d.Start.FindAllStringIndex(content, -1)
		for _, s := range starts {
			from := s[1]
			if from > s[0] {
				from-- // scan from the match's last byte so a Start ending on "{" or ":" binds to that character
			}
			end := bindToStructural(content, from)
			out = append(out, boundary{
				start: s[0], end: end, kind: d.Kind, priority: d.Priority,
				name: d.Name, inclusive: d.Inclusive, wholeLines: d.TakeWholeLines,
			})
		}
	}
	return out
}

// bindToStructural scans forward from pos for the next structural
// character at paren-depth 0, skipping quoted strings, and returns the
// byte offset just past it. If the delimiter is itself a brace-opener
// ("{"), the matching close is located by depth-tracking so the whole
// block is captured, not just the opening brace.
func bindToStructural(content string, pos int) int {
	depth := 0
	var quote byte
	i := pos
	for i < len(content) {
		c := content[i]
		if quote != 0 {
			if c == '\\' {
				i += 2
				continue
			}
			if c == quote {
				quote = 0
			}
			i++
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '{':
			if depth == 0 {
				return matchBrace(content, i)
			}
		case ':':
			if depth == 0 {
				return i + 1
			}
		}
		if depth == 0 && strings.HasPrefix(content[i:], "=>") {
			return i + 2
		}
		i++
	}
	return len(content)
}

// matchBrace returns the offset just past the brace matching the opener
// at openPos.
func matchBrace(content string, openPos int) int {
	depth := 0
	for i := openPos; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(content)
}

// resolveConflicts implements phase 3 (spec §4.4): sort candidates by
// (-priority, -length, start) and greedily accept non-overlapping
// boundaries, highest priority and longest span winning ties.
func resolveConflicts(boundaries []boundary) []boundary {
	sort.SliceStable(boundaries, func(i, j int) bool {
		bi, bj := boundaries[i], boundaries[j]
		if bi.priority != bj.priority {
			return bi.priority > bj.priority
		}
		li, lj := bi.end-bi.start, bj.end-bj.start
		if li != lj {
			return li > lj
		}
		return bi.start < bj.start
	})

	var accepted []boundary
	for _, b := range boundaries {
		overlaps := false
		for _, a := range accepted {
			if b.start < a.end && a.start < b.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, b)
		}
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })
	return accepted
}

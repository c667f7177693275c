package delimiter

import "regexp"

// family is a named, ordered set of Delimiter definitions for one language
// family. Families are looked up by language tag; anything without a
// curated family falls back to genericFamily, which is itself a valid
// "delimiter set" for the purposes of spec §4.2's "170+ languages" claim
// (see SPEC_FULL.md Open Questions).
type family struct {
	name        string
	delimiters  []Delimiter
}

var families = map[string]*family{}

func register(langs []string, f *family) {
	for _, l := range langs {
		families[l] = f
	}
}

func init() {
	register([]string{
		"go", "javascript", "typescript", "java", "c", "cpp", "rust", "php", "csharp", "swift", "kotlin", "scala",
	}, cLikeFamily())

	register([]string{"ruby", "lua", "crystal"}, doEndFamily())

	register([]string{"sql", "pascal", "delphi", "vbnet", "ada"}, beginEndFamily())

	register([]string{"python"}, pythonFamily())
}

func cLikeFamily() *family {
	return &family{
		name: "c-like",
		delimiters: []Delimiter{
			{
				Name: "function", Kind: KindFunc, Priority: 30,
				Start: regexp.MustCompile(`\b(function|func|def|fn)\s+\w+\s*\([^)]*\)\s*\{`),
				End:   nil, // keyword-bound: structural '{' closes the signature, body matched via brace nesting below
			},
			{
				Name: "class", Kind: KindClass, Priority: 25,
				Start: regexp.MustCompile(`\b(class|struct|interface)\s+\w+[^{]*\{`),
				End:   nil,
			},
			{
				Name: "block", Kind: KindBlock, Priority: 10, Nestable: true, Inclusive: true,
				Start: regexp.MustCompile(`\{`),
				End:   regexp.MustCompile(`\}`),
			},
			{
				Name: "line_comment", Kind: KindComment, Priority: 5, Inclusive: true, TakeWholeLines: true,
				Start: regexp.MustCompile(`//[^\n]*`),
				End:   regexp.MustCompile(``),
			},
			{
				Name: "block_comment", Kind: KindComment, Priority: 6, Inclusive: true,
				Start: regexp.MustCompile(`/\*`),
				End:   regexp.MustCompile(`\*/`),
			},
		},
	}
}

func doEndFamily() *family {
	return &family{
		name: "do-end",
		delimiters: []Delimiter{
			{
				Name: "def", Kind: KindFunc, Priority: 30,
				Start: regexp.MustCompile(`\bdef\s+[\w.!?=]+`),
				End:   nil,
			},
			{
				Name: "class", Kind: KindClass, Priority: 25,
				Start: regexp.MustCompile(`\bclass\s+\w+`),
				End:   nil,
			},
			{
				Name: "do_block", Kind: KindBlock, Priority: 15, Nestable: true, Inclusive: true, TakeWholeLines: true,
				Start: regexp.MustCompile(`\b(do|if|unless|while|until|begin|module)\b`),
				End:   regexp.MustCompile(`\bend\b`),
			},
			{
				Name: "comment", Kind: KindComment, Priority: 5, Inclusive: true, TakeWholeLines: true,
				Start: regexp.MustCompile(`#[^\n]*`),
				End:   regexp.MustCompile(``),
			},
		},
	}
}

func beginEndFamily() *family {
	return &family{
		name: "begin-end",
		delimiters: []Delimiter{
			{
				Name: "block", Kind: KindBlock, Priority: 15, Nestable: true, Inclusive: true, TakeWholeLines: true,
				Start: regexp.MustCompile(`(?i)\bbegin\b`),
				End:   regexp.MustCompile(`(?i)\bend\b`),
			},
			{
				Name: "comment", Kind: KindComment, Priority: 5, Inclusive: true, TakeWholeLines: true,
				Start: regexp.MustCompile(`--[^\n]*`),
				End:   regexp.MustCompile(``),
			},
		},
	}
}

func pythonFamily() *family {
	// Python's blocks are indentation-delimited, not bracket-delimited; the
	// delimiter chunker only ever sees Python as the Selector's fallback for
	// files the semantic chunker's governor/parse step rejected, so this
	// family matches def/class header lines only; the indented bodies are
	// not part of those chunks. The generic family runs only for files in
	// which no header or comment matches at all.
	return &family{
		name: "python",
		delimiters: []Delimiter{
			{
				Name: "function", Kind: KindFunc, Priority: 30, TakeWholeLines: true,
				Start: regexp.MustCompile(`(?m)^\s*def\s+\w+\s*\([^)]*\)\s*:`),
				End:   nil,
			},
			{
				Name: "class", Kind: KindClass, Priority: 25, TakeWholeLines: true,
				Start: regexp.MustCompile(`(?m)^\s*class\s+\w+[^:]*:`),
				End:   nil,
			},
			{
				Name: "comment", Kind: KindComment, Priority: 5, Inclusive: true, TakeWholeLines: true,
				Start: regexp.MustCompile(`#[^\n]*`),
				End:   regexp.MustCompile(``),
			},
		},
	}
}

// genericFamily is the universal fallback: brace blocks if present,
// otherwise blank-line paragraphs, otherwise raw newline splitting. It is
// also used as the delimiter-within-delimiter fallback (spec §4.4
// "Fallback within delimiter").
func genericFamily() *family {
	return &family{
		name: "generic",
		delimiters: []Delimiter{
			{
				Name: "brace_block", Kind: KindBlock, Priority: 10, Nestable: true, Inclusive: true,
				Start: regexp.MustCompile(`\{`),
				End:   regexp.MustCompile(`\}`),
			},
			{
				Name: "blank_paragraph", Kind: KindBlock, Priority: 1, Inclusive: true, TakeWholeLines: true,
				Start: regexp.MustCompile(`(?m)^\S`),
				End:   regexp.MustCompile(`(?m)\n\s*\n`),
			},
		},
	}
}

// familyFor resolves the delimiter family for a language tag, honoring the
// generic fallback for anything uncurated (spec §4.4 and §4.2 step 3: any
// language family is valid input to the delimiter chunker).
func familyFor(language string) *family {
	if f, ok := families[language]; ok {
		return f
	}
	return genericFamily()
}

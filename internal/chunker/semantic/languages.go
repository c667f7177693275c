// Package semantic implements the AST-based chunker described in spec.md
// §4.3: parse a file with tree-sitter, walk the tree, and emit chunks for
// nodes whose classification and importance clear a configurable
// threshold.
package semantic

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// languageSpec pairs a tree-sitter grammar with the node-classification
// table used to select chunkable nodes for that language.
type languageSpec struct {
	name     string
	language *sitter.Language
	classify func(nodeKind string) (Classification, bool)
}

var languageRegistry = map[string]*languageSpec{}

var extensionToLanguage = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyw":   "python",
	".java":  "java",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".c":     "c",
	".h":     "c",
	".php":   "php",
	".rb":    "ruby",
	".rs":    "rust",
}

func init() {
	register("go", sitter.NewLanguage(golang.Language()), classifyGo)
	register("python", sitter.NewLanguage(python.Language()), classifyPython)
	register("java", sitter.NewLanguage(java.Language()), classifyJava)
	register("javascript", sitter.NewLanguage(javascript.Language()), classifyJavaScript)
	register("typescript", sitter.NewLanguage(typescript.LanguageTypescript()), classifyJavaScript)
	register("c", sitter.NewLanguage(c.Language()), classifyC)
	register("php", sitter.NewLanguage(php.LanguagePHP()), classifyPHP)
	register("ruby", sitter.NewLanguage(ruby.Language()), classifyRuby)
	register("rust", sitter.NewLanguage(rust.Language()), classifyRust)
}

func register(name string, lang *sitter.Language, classify func(string) (Classification, bool)) {
	languageRegistry[name] = &languageSpec{name: name, language: lang, classify: classify}
}

// LanguageForExtension maps a file extension (including the leading dot) to
// a canonical language tag, or "" if unsupported.
func LanguageForExtension(ext string) string {
	return extensionToLanguage[strings.ToLower(ext)]
}

// Supported reports whether the given language tag has a registered
// tree-sitter grammar (the "≈26 tree-sitter-supported" set from spec §4.2,
// see SPEC_FULL.md's Open Questions for which subset is wired here).
func Supported(language string) bool {
	_, ok := languageRegistry[language]
	return ok
}

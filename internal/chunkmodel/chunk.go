// Package chunkmodel defines CodeChunk, Batch, and the bounded stores used
// for content-hash deduplication across the chunking pipeline.
package chunkmodel

import (
	"time"

	"github.com/google/uuid"
)

// ChunkSource records which chunker produced a chunk, including the
// last-resort fallback and the edge-case path (empty/whitespace/single-line
// files handled before any real parsing happens).
type ChunkSource string

const (
	SourceSemantic  ChunkSource = "semantic"
	SourceDelimiter ChunkSource = "delimiter"
	SourceFallback  ChunkSource = "fallback"
	SourceEdgeCase  ChunkSource = "edge_case"
)

// EdgeCaseKind tags the specific edge case that produced a SourceEdgeCase
// chunk (whitespace-only or single-line content, handled before parsing).
type EdgeCaseKind string

const (
	EdgeCaseNone           EdgeCaseKind = ""
	EdgeCaseWhitespaceOnly EdgeCaseKind = "whitespace_only"
	EdgeCaseSingleLine     EdgeCaseKind = "single_line"
)

// ImportanceTask indexes the per-task importance vector described in spec
// §3/§4.3: discovery, comprehension, modification, debugging, documentation.
type ImportanceTask int

const (
	TaskDiscovery ImportanceTask = iota
	TaskComprehension
	TaskModification
	TaskDebugging
	TaskDocumentation
	numImportanceTasks
)

// Importance is a fixed-size vector of per-task scores in [0,1].
type Importance [numImportanceTasks]float64

// Max returns the highest score across all tasks, used against the
// semantic-chunker's importance threshold (spec §4.3 step 3).
func (imp Importance) Max() float64 {
	max := 0.0
	for _, v := range imp {
		if v > max {
			max = v
		}
	}
	return max
}

// SemanticMetadata carries tree-sitter/AST-derived metadata, present only
// for chunks with Source == SourceSemantic (or descendants delegated to the
// delimiter chunker from a semantic node, spec §4.3 step 4).
type SemanticMetadata struct {
	Classification     string     // e.g. "FUNCTION", "CLASS"
	NodeKind           string     // raw tree-sitter node kind
	PrimaryCategory    string     // dominant Category name, see arena.go
	Importance         Importance
	IsComposite        bool
	NestingLevel       int
	ParentID           string // id of the enclosing chunk, if any
	ParentSemanticNode string // set when delegated to the delimiter chunker mid-recursion (spec §4.3 step 4)
}

// DelimiterMetadata carries delimiter-chunker provenance, present only for
// chunks with Source == SourceDelimiter.
type DelimiterMetadata struct {
	Kind     string // BLOCK, FUNCTION, CLASS, COMMENT, ...
	Priority int
	Nesting  int
}

// CodeChunk is the single retrievable unit produced by the chunking
// pipeline. See spec.md §3 for the full invariant list.
type CodeChunk struct {
	ID           string
	Content      string
	FilePath     string
	Language     string
	LineStart    int
	LineEnd      int
	Source       ChunkSource
	EdgeCase     EdgeCaseKind
	DisplayName  string
	ContentHash  string // sha256 hex digest of the whitespace-normalized content, see hash.go
	BatchID      string
	CreatedAt    time.Time
	Semantic     *SemanticMetadata  // non-nil for Source == SourceSemantic and for delimiter chunks delegated from a semantic node
	Delimiter    *DelimiterMetadata // non-nil only for Source == SourceDelimiter or delegated children
	FallbackInfo *FallbackInfo      // non-nil only for Source == SourceFallback
}

// FallbackInfo records why the last-resort fallback path was taken (spec
// §4.3 step 5: "emit a single chunk for the block with source=fallback and
// an errors list; do not raise").
type FallbackInfo struct {
	Reason string
	Errors []string
}

// NewChunkID returns a time-sortable chunk id (UUID v7).
func NewChunkID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the system random source is broken;
		// fall back to a random v4 rather than panicking mid-chunking.
		return uuid.NewString()
	}
	return id.String()
}

// Valid reports whether the chunk satisfies the spec's structural
// invariants (line_start <= line_end; content non-empty unless
// edge_case=whitespace_only).
func (c *CodeChunk) Valid() bool {
	if c.LineStart > c.LineEnd {
		return false
	}
	if c.Content == "" && c.EdgeCase != EdgeCaseWhitespaceOnly {
		return false
	}
	return true
}

// Classification returns the node classification regardless of which
// chunker produced this chunk (semantic's AST classification, delimiter's
// structural kind, or "" for fallback/edge-case chunks), for callers like
// find_code that report one label without caring about provenance.
func (c *CodeChunk) Classification() string {
	switch {
	case c.Semantic != nil:
		return c.Semantic.Classification
	case c.Delimiter != nil:
		return c.Delimiter.Kind
	default:
		return ""
	}
}

// ImportanceScore returns this chunk's importance for the given task, or 0
// for chunks with no semantic metadata (delimiter/fallback/edge-case
// chunks carry no per-task importance vector).
func (c *CodeChunk) ImportanceScore(task ImportanceTask) float64 {
	if c.Semantic == nil {
		return 0
	}
	return c.Semantic.Importance[task]
}

package delimiter

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/knitli/codeweaver/internal/chunker/chunkapi"
	"github.com/knitli/codeweaver/internal/chunkmodel"
)

// Chunker implements chunkapi.Chunker using the family-table, pattern-based
// algorithm described in spec §4.4.
type Chunker struct {
	// Language, when set, pins the family lookup instead of inferring it
	// from the file extension (used by the Selector when it already knows
	// the language, and by the semantic chunker's delegation path).
	Language string
}

// lineIndex precomputes the byte-offset of the start of each line so chunk
// boundaries can be converted to 1-based line numbers in O(log n).
type lineIndex struct {
	starts []int
}

func newLineIndex(content string) *lineIndex {
	starts := []int{0}
	for i, c := range content {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts}
}

func (li *lineIndex) lineOf(offset int) int {
	lo, hi := 0, len(li.starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if li.starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1 // 1-based
}

func (li *lineIndex) lineBounds(content string, start, end int) (int, int) {
	return li.lineOf(start), li.lineOf(maxInt(start, end-1))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// trimRange narrows [start, end) past leading and trailing whitespace
// without allocating a trimmed copy, so callers keep working in absolute
// content offsets (needed for accurate line numbers and further splitting).
func trimRange(content string, start, end int) (int, int) {
	for start < end && isSpaceByte(content[start]) {
		start++
	}
	for end > start && isSpaceByte(content[end-1]) {
		end--
	}
	return start, end
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// splitRange breaks [start, end) into consecutive sub-ranges that each stay
// within maxChars, so a single oversize boundary still honors
// opts.ChunkTokenLimit (spec §8 invariant 1) instead of being emitted
// verbatim. Split points back up to the nearest preceding newline within
// the window when one exists, so sub-chunks don't sever mid-line. A
// maxChars of 0 means "unlimited" and returns the range unsplit.
func splitRange(content string, start, end, maxChars int) [][2]int {
	if maxChars <= 0 || end-start <= maxChars {
		return [][2]int{{start, end}}
	}
	var ranges [][2]int
	for start < end {
		limit := start + maxChars
		if limit >= end {
			ranges = append(ranges, [2]int{start, end})
			break
		}
		split := limit
		if nl := strings.LastIndexByte(content[start:limit], '\n'); nl > 0 {
			split = start + nl + 1
		}
		ranges = append(ranges, [2]int{start, split})
		start = split
	}
	return ranges
}

// Chunk implements chunkapi.Chunker.
func (c *Chunker) Chunk(ctx context.Context, path, content string, opts chunkapi.Options) (chunkapi.Result, error) {
	// Reached directly for languages with no tree-sitter grammar, so binary
	// detection can't rely on the semantic chunker having run first (spec
	// §4.3 step 1, §7).
	if bytes.ContainsRune([]byte(content), 0) {
		return chunkapi.Result{}, &chunkapi.BinaryFileError{Path: path}
	}
	if content == "" {
		return chunkapi.Result{}, nil
	}

	lang := c.Language
	if lang == "" {
		lang = languageFromPath(path)
	}
	f := familyFor(lang)

	boundaries := append(explicitPairs(content, f), keywordBindings(content, f)...)
	boundaries = resolveConflicts(boundaries)

	if len(boundaries) == 0 && f.name != "generic" {
		g := genericFamily()
		boundaries = resolveConflicts(append(explicitPairs(content, g), keywordBindings(content, g)...))
	}

	if len(boundaries) == 0 {
		return c.fallbackChunk(path, content, opts, "no delimiter matches found"), nil
	}

	li := newLineIndex(content)
	batchID := chunkmodel.NewBatchID()
	maxChars := chunkapi.MaxChars(opts.ChunkTokenLimit)
	var chunks []*chunkmodel.CodeChunk
	var prevContent string

	for _, b := range boundaries {
		select {
		case <-ctx.Done():
			return chunkapi.Result{}, ctx.Err()
		default:
		}

		start, end := b.start, b.end
		if b.wholeLines {
			lineStart, lineEnd := li.lineBounds(content, start, end)
			start = li.starts[lineStart-1]
			if lineEnd < len(li.starts) {
				end = li.starts[lineEnd]
			} else {
				end = len(content)
			}
		}
		if !b.inclusive {
			start, end = trimRange(content, start, end)
		}

		for _, part := range splitRange(content, start, end, maxChars) {
			if opts.Governor != nil {
				if err := opts.Governor.CheckTimeout(); err != nil {
					return chunkapi.Result{}, err
				}
				if err := opts.Governor.RegisterChunk(); err != nil {
					return chunkapi.Result{}, err
				}
			}

			pStart, pEnd := part[0], part[1]
			lineStart, lineEnd := li.lineBounds(content, pStart, pEnd)
			text := content[pStart:pEnd]

			chunkText := text
			if opts.SimpleOverlap > 0 && prevContent != "" {
				prefix := overlapPrefix(prevContent, opts.SimpleOverlap)
				// Shorten the prefix so piece plus prefix stays within maxChars.
				if maxChars > 0 && len(prefix)+len(text) > maxChars {
					prefix = prefix[len(prefix)+len(text)-maxChars:]
				}
				chunkText = prefix + chunkText
			}
			prevContent = text

			chunk := &chunkmodel.CodeChunk{
				ID:          chunkmodel.NewChunkID(),
				Content:     chunkText,
				FilePath:    path,
				Language:    lang,
				LineStart:   lineStart,
				LineEnd:     lineEnd,
				Source:      chunkmodel.SourceDelimiter,
				DisplayName: b.name,
				ContentHash: chunkmodel.ContentHash(text),
				BatchID:     batchID,
				CreatedAt:   nowOrZero(),
				Delimiter: &chunkmodel.DelimiterMetadata{
					Kind:     string(b.kind),
					Priority: b.priority,
					Nesting:  b.nesting,
				},
			}
			if !chunk.Valid() {
				continue
			}
			if opts.ContentHashStore != nil {
				if _, seen := opts.ContentHashStore.SeenOrInsert(chunk.ContentHash, batchID); seen {
					continue
				}
			}
			chunks = append(chunks, chunk)
		}
	}

	if len(chunks) == 0 {
		return c.fallbackChunk(path, content, opts, "all boundaries deduplicated or invalid"), nil
	}

	if opts.BatchStore != nil {
		ids := make([]string, len(chunks))
		for i, ch := range chunks {
			ids[i] = ch.ID
		}
		opts.BatchStore.Put(&chunkmodel.Batch{
			ID:        batchID,
			FilePath:  path,
			ChunkIDs:  ids,
			CreatedAt: nowOrZero(),
		})
	}

	return chunkapi.Result{Chunks: chunks, BatchID: batchID}, nil
}

// fallbackChunk implements the delimiter chunker's own last resort (spec
// §4.4 "fallback within delimiter"): when no family pattern matches
// anything in the file, emit the whole file as a single chunk rather than
// producing nothing.
func (c *Chunker) fallbackChunk(path, content string, opts chunkapi.Options, reason string) chunkapi.Result {
	batchID := chunkmodel.NewBatchID()
	li := newLineIndex(content)
	lineEnd := li.lineOf(maxInt(0, len(content)-1))
	chunk := &chunkmodel.CodeChunk{
		ID:          chunkmodel.NewChunkID(),
		Content:     content,
		FilePath:    path,
		Language:    c.Language,
		LineStart:   1,
		LineEnd:     lineEnd,
		Source:      chunkmodel.SourceFallback,
		ContentHash: chunkmodel.ContentHash(content),
		BatchID:     batchID,
		CreatedAt:   nowOrZero(),
		FallbackInfo: &chunkmodel.FallbackInfo{
			Reason: reason,
		},
	}
	if opts.BatchStore != nil {
		opts.BatchStore.Put(&chunkmodel.Batch{
			ID:        batchID,
			FilePath:  path,
			ChunkIDs:  []string{chunk.ID},
			CreatedAt: nowOrZero(),
		})
	}
	return chunkapi.Result{Chunks: []*chunkmodel.CodeChunk{chunk}, BatchID: batchID}
}

// overlapPrefix returns up to n trailing characters of prev, used to give
// each chunk a small amount of leading context (spec §9 simple_overlap).
func overlapPrefix(prev string, n int) string {
	if len(prev) <= n {
		return prev
	}
	return prev[len(prev)-n:]
}

func languageFromPath(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	ext := strings.ToLower(path[idx:])
	switch ext {
	case ".go":
		return "go"
	case ".py", ".pyw":
		return "python"
	case ".java":
		return "java"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	case ".php":
		return "php"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	case ".lua":
		return "lua"
	case ".sql":
		return "sql"
	}
	return ""
}

// nowOrZero wraps time.Now so the package's single call site is easy to
// find; it is never stubbed since chunk timestamps are informational only.
func nowOrZero() time.Time {
	return time.Now()
}

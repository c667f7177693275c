package semantic

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/knitli/codeweaver/internal/chunker/chunkapi"
	"github.com/knitli/codeweaver/internal/chunker/delimiter"
	"github.com/knitli/codeweaver/internal/chunkmodel"
)

// Chunker implements chunkapi.Chunker using tree-sitter AST traversal, per
// spec §4.3's seven-step algorithm.
type Chunker struct {
	Language string
}

// Chunk implements chunkapi.Chunker.
func (c *Chunker) Chunk(ctx context.Context, path, content string, opts chunkapi.Options) (result chunkapi.Result, err error) {
	// Step 1: edge cases, handled before any parsing is attempted. Binary
	// content is a hard failure, not a chunkable edge case (spec §4.3 step
	// 1, §7): it must not reach the parser or be indexed as a chunk.
	if bytes.ContainsRune([]byte(content), 0) {
		return chunkapi.Result{}, &chunkapi.BinaryFileError{Path: path}
	}
	if edge, ok := edgeCaseChunk(path, c.Language, content); ok {
		return chunkapi.Result{Chunks: []*chunkmodel.CodeChunk{edge}, BatchID: edge.BatchID}, nil
	}

	spec, ok := languageRegistry[c.Language]
	if !ok {
		return chunkapi.Result{}, fmt.Errorf("semantic chunker: unsupported language %q", c.Language)
	}

	source := []byte(content)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(spec.language)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return c.fallback(path, content, opts, "parser returned no tree"), nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return c.fallback(path, content, opts, "parse produced a syntax error"), nil
	}

	if opts.Governor != nil {
		if err := opts.Governor.CheckTimeout(); err != nil {
			return chunkapi.Result{}, err
		}
	}

	w := &walker{
		spec:    spec,
		source:  source,
		path:    path,
		opts:    opts,
		batchID: chunkmodel.NewBatchID(),
	}
	w.visit(ctx, root, 0, nil, 0)
	if w.err != nil {
		return chunkapi.Result{}, w.err
	}

	if len(w.chunks) == 0 {
		return c.fallback(path, content, opts, "no chunkable nodes found"), nil
	}

	if opts.BatchStore != nil {
		ids := make([]string, len(w.chunks))
		for i, ch := range w.chunks {
			ids[i] = ch.ID
		}
		opts.BatchStore.Put(&chunkmodel.Batch{ID: w.batchID, FilePath: path, ChunkIDs: ids})
	}

	return chunkapi.Result{Chunks: w.chunks, BatchID: w.batchID}, nil
}

// walker carries traversal state across the recursive visit (spec §4.3
// step 3: "traverse the AST, selecting chunkable nodes").
type walker struct {
	spec    *languageSpec
	source  []byte
	path    string
	opts    chunkapi.Options
	batchID string
	chunks  []*chunkmodel.CodeChunk
	err     error
}

// visit walks node and its children, emitting a chunk for each selected
// node. parentID/nestingLevel track the enclosing chunk for
// SemanticMetadata.ParentID (spec §3).
func (w *walker) visit(ctx context.Context, node *sitter.Node, depth int, parentID *string, nestingLevel int) {
	if w.err != nil || node == nil {
		return
	}
	select {
	case <-ctx.Done():
		w.err = ctx.Err()
		return
	default:
	}
	if w.opts.Governor != nil {
		if err := w.opts.Governor.CheckDepth(depth); err != nil {
			w.err = err
			return
		}
		if err := w.opts.Governor.CheckTimeout(); err != nil {
			w.err = err
			return
		}
	}

	cls, chunkable := w.spec.classify(node.Kind())
	if chunkable {
		imp := adjustForSize(baseImportance(cls), int(node.EndByte()-node.StartByte()))
		if imp.Max() >= w.opts.ImportanceThreshold {
			newParent, fits := w.emit(node, cls, imp, parentID, nestingLevel)
			if fits {
				// Spec §4.3 tie-break: a node that fits and was emitted as
				// its own chunk wins over its nested chunkable members, so
				// stop descending. Only pass through into children when
				// the parent itself wasn't emitted as a normal fit (it was
				// skipped, deduped, or delegated as oversize).
				return
			}
			parentID = &newParent
			nestingLevel++
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		w.visit(ctx, node.Child(uint(i)), depth+1, parentID, nestingLevel)
	}
}

// emit materializes one chunk for node, recursing into the delimiter
// chunker when the node's text exceeds the configured token limit (spec
// §4.3 step 4: "delegate oversize leaf chunks to the delimiter chunker").
// It returns the new chunk's id for use as the ParentID of nested chunks,
// and fits, which is true only when node was emitted as its own normally
// sized chunk. Callers use fits to decide whether to keep descending into
// node's chunkable descendants (spec §4.3's "prefer the outer (parent) when
// it fits" tie-break): an oversize node that was delegated, or a node that
// was deduped, governor-blocked, or invalid, reports fits=false so its
// descendants still get a chance to be chunked.
func (w *walker) emit(node *sitter.Node, cls Classification, imp chunkmodel.Importance, parentID *string, nestingLevel int) (id string, fits bool) {
	text := string(w.source[node.StartByte():node.EndByte()])
	tokens := chunkapi.EstimateTokens(text)

	if w.opts.ChunkTokenLimit > 0 && tokens > w.opts.ChunkTokenLimit {
		return w.delegateToDelimiter(node, text, parentID, nestingLevel), false
	}

	if w.opts.Governor != nil {
		if err := w.opts.Governor.RegisterChunk(); err != nil {
			w.err = err
			return "", false
		}
	}

	hash := chunkmodel.ContentHash(text)
	if w.opts.ContentHashStore != nil {
		if _, seen := w.opts.ContentHashStore.SeenOrInsert(hash, w.batchID); seen {
			return "", false
		}
	}

	chunk := &chunkmodel.CodeChunk{
		ID:          chunkmodel.NewChunkID(),
		Content:     text,
		FilePath:    w.path,
		Language:    w.spec.name,
		LineStart:   int(node.StartPosition().Row) + 1,
		LineEnd:     int(node.EndPosition().Row) + 1,
		Source:      chunkmodel.SourceSemantic,
		DisplayName: displayName(node, w.source, string(cls)),
		ContentHash: hash,
		BatchID:     w.batchID,
		Semantic: &chunkmodel.SemanticMetadata{
			Classification: string(cls),
			NodeKind:       node.Kind(),
			Importance:     imp,
			IsComposite:    int(node.ChildCount()) > 0,
			NestingLevel:   nestingLevel,
		},
	}
	if parentID != nil {
		chunk.Semantic.ParentID = *parentID
	}
	if !chunk.Valid() {
		return "", false
	}
	w.chunks = append(w.chunks, chunk)
	return chunk.ID, true
}

// delegateToDelimiter hands an oversize node's raw text to the delimiter
// chunker, tagging the resulting chunks with the node that produced them
// (spec §4.3 step 4).
func (w *walker) delegateToDelimiter(node *sitter.Node, text string, parentID *string, nestingLevel int) string {
	dc := &delimiter.Chunker{Language: w.spec.name}
	res, err := dc.Chunk(context.Background(), w.path, text, w.opts)
	if err != nil {
		w.err = err
		return ""
	}
	lineOffset := int(node.StartPosition().Row)
	for _, ch := range res.Chunks {
		ch.LineStart += lineOffset
		ch.LineEnd += lineOffset
		ch.BatchID = w.batchID
		meta := &chunkmodel.SemanticMetadata{
			NodeKind:           node.Kind(),
			NestingLevel:       nestingLevel,
			ParentSemanticNode: node.Kind(),
		}
		if parentID != nil {
			meta.ParentID = *parentID
		}
		ch.Semantic = meta
		w.chunks = append(w.chunks, ch)
	}
	if len(res.Chunks) > 0 {
		return res.Chunks[0].ID
	}
	return ""
}

// fallback implements spec §4.3 step 5: when parsing fails or nothing
// chunkable is found, emit the whole file as a single chunk rather than
// raising.
func (c *Chunker) fallback(path, content string, opts chunkapi.Options, reason string) chunkapi.Result {
	batchID := chunkmodel.NewBatchID()
	lineEnd := strings.Count(content, "\n") + 1
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
		FallbackInfo: &chunkmodel.FallbackInfo{
			Reason: reason,
		},
	}
	if opts.BatchStore != nil {
		opts.BatchStore.Put(&chunkmodel.Batch{ID: batchID, FilePath: path, ChunkIDs: []string{chunk.ID}})
	}
	return chunkapi.Result{Chunks: []*chunkmodel.CodeChunk{chunk}, BatchID: batchID}
}

// edgeCaseChunk handles spec §4.3 step 1's chunkable edge cases: empty,
// whitespace-only, and single-line content never reach the parser. Binary
// content is handled earlier, in Chunk, as a BinaryFileError rather than a
// chunk.
func edgeCaseChunk(path, language, content string) (*chunkmodel.CodeChunk, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return buildEdge(path, language, content, chunkmodel.EdgeCaseWhitespaceOnly, "whitespace-only file"), true
	}
	if !strings.Contains(trimmed, "\n") {
		return buildEdge(path, language, content, chunkmodel.EdgeCaseSingleLine, "single-line file"), true
	}
	return nil, false
}

func buildEdge(path, language, content string, kind chunkmodel.EdgeCaseKind, reason string) *chunkmodel.CodeChunk {
	batchID := chunkmodel.NewBatchID()
	lineEnd := strings.Count(content, "\n") + 1
	return &chunkmodel.CodeChunk{
		ID:          chunkmodel.NewChunkID(),
		Content:     content,
		FilePath:    path,
		Language:    language,
		LineStart:   1,
		LineEnd:     lineEnd,
		Source:      chunkmodel.SourceEdgeCase,
		EdgeCase:    kind,
		ContentHash: chunkmodel.ContentHash(content),
		BatchID:     batchID,
		FallbackInfo: &chunkmodel.FallbackInfo{
			Reason: reason,
		},
	}
}

// adjustForSize scales the discovery-task importance score by 0.85 for
// nodes larger than 4000 bytes (smaller nodes are left unchanged), a coarse correction so a
// thousand-line class doesn't dominate ranking purely by virtue of size.
func adjustForSize(imp chunkmodel.Importance, byteSize int) chunkmodel.Importance {
	if byteSize > 4000 {
		imp[chunkmodel.TaskDiscovery] *= 0.85
	}
	return imp
}

// displayName derives a human-readable label from the node's "name" field
// child, falling back to "<classification> @<line>" when absent.
func displayName(node *sitter.Node, source []byte, cls string) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return string(source[name.StartByte():name.EndByte()])
	}
	return cls + " @" + strconv.Itoa(int(node.StartPosition().Row)+1)
}

// Package backup implements the local backup vector store (spec §4.6):
// durable storage via sqlite-vec (mattn/go-sqlite3 + asg017/sqlite-vec),
// mirrored into an in-memory chromem-go collection for the fast serving
// path once the failover manager activates it.
package backup

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/philippgille/chromem-go"

	"github.com/knitli/codeweaver/internal/chunkmodel"
	"github.com/knitli/codeweaver/internal/vectorstore"
)

func init() {
	sqlite_vec.Auto()
}

// Store is the chromem-go + sqlite-vec backed backup implementation of
// vectorstore.Store.
type Store struct {
	db        *sql.DB
	chromemDB *chromem.DB

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	dimensions  map[string]int
	metadata    map[string]chunkmodel.CollectionMetadata
}

// Open opens (creating if absent) the sqlite-vec backing file at dbPath
// and an in-memory chromem-go database for serving queries.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("backup store: open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("backup store: enable foreign keys: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{
		db:          db,
		chromemDB:   chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		dimensions:  make(map[string]int),
		metadata:    make(map[string]chunkmodel.CollectionMetadata),
	}, nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collection_metadata (
			collection TEXT PRIMARY KEY,
			provider TEXT,
			model TEXT,
			dimension INTEGER,
			sparse_model TEXT,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS backup_chunks (
			collection TEXT NOT NULL,
			chunk_id TEXT NOT NULL,
			file_path TEXT,
			language TEXT,
			content TEXT,
			line_start INTEGER,
			line_end INTEGER,
			display_name TEXT,
			classification TEXT,
			embedding BLOB,
			created_at TIMESTAMP,
			PRIMARY KEY (collection, chunk_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("backup store: create schema: %w", err)
		}
	}
	return nil
}

// OpenCollection implements vectorstore.Store: it reads any persisted
// metadata, gates the open via vectorstore.GateOpen, persists the
// (possibly unchanged) metadata, and loads prior chunks from SQLite into
// a fresh in-memory chromem collection (spec §4.6 "sync from durable
// store on open" — mirrors the teacher's ReadAllChunks/chromem-load
// pattern in internal/storage/chunk_reader.go and internal/mcp/chromem_searcher.go).
func (s *Store) OpenCollection(ctx context.Context, name string, meta chunkmodel.CollectionMetadata) error {
	stored, err := s.readMetadata(name)
	if err != nil {
		return err
	}
	resolved, err := vectorstore.GateOpen(stored, meta)
	if err != nil {
		return err
	}
	if err := s.writeMetadata(name, resolved); err != nil {
		return err
	}

	collection, err := s.chromemDB.CreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("backup store: create chromem collection: %w", err)
	}

	rows, err := sq.Select("chunk_id", "content", "embedding").
		From("backup_chunks").
		Where(sq.Eq{"collection": name}).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return fmt.Errorf("backup store: load persisted chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, content string
		var embBytes []byte
		if err := rows.Scan(&id, &content, &embBytes); err != nil {
			return fmt.Errorf("backup store: scan persisted chunk: %w", err)
		}
		doc := chromem.Document{ID: id, Content: content, Embedding: deserializeFloat32(embBytes)}
		if err := collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("backup store: load chunk %s into chromem: %w", id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("backup store: iterate persisted chunks: %w", err)
	}

	s.mu.Lock()
	s.collections[name] = collection
	s.dimensions[name] = resolved.Dimension
	s.metadata[name] = resolved
	s.mu.Unlock()
	return nil
}

func (s *Store) readMetadata(name string) (*chunkmodel.CollectionMetadata, error) {
	var m chunkmodel.CollectionMetadata
	var sparseModel sql.NullString
	var createdAt time.Time
	err := sq.Select("provider", "model", "dimension", "sparse_model", "created_at").
		From("collection_metadata").
		Where(sq.Eq{"collection": name}).
		RunWith(s.db).
		QueryRow().
		Scan(&m.Provider, &m.Model, &m.Dimension, &sparseModel, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backup store: read collection metadata: %w", err)
	}
	m.SparseModel = sparseModel.String
	m.CreatedAt = createdAt
	return &m, nil
}

func (s *Store) writeMetadata(name string, m chunkmodel.CollectionMetadata) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := sq.Insert("collection_metadata").
		Columns("collection", "provider", "model", "dimension", "sparse_model", "created_at").
		Values(name, m.Provider, m.Model, m.Dimension, m.SparseModel, m.CreatedAt).
		Suffix("ON CONFLICT(collection) DO UPDATE SET provider=excluded.provider, model=excluded.model, dimension=excluded.dimension, sparse_model=excluded.sparse_model").
		RunWith(s.db).
		Exec()
	if err != nil {
		return fmt.Errorf("backup store: write collection metadata: %w", err)
	}
	return nil
}

// Upsert implements vectorstore.Store: writes each chunk's content and
// dense embedding to the durable sqlite table and mirrors it into the
// in-memory chromem collection.
func (s *Store) Upsert(ctx context.Context, collectionName string, chunks []*chunkmodel.CodeChunk, vectors []vectorstore.Vector) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("backup store: upsert: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	s.mu.RLock()
	collection := s.collections[collectionName]
	s.mu.RUnlock()
	if collection == nil {
		return fmt.Errorf("backup store: collection %q not open", collectionName)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("backup store: begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	for i, chunk := range chunks {
		embBytes, err := serializeFloat32(vectors[i].Dense)
		if err != nil {
			return fmt.Errorf("backup store: serialize embedding for %s: %w", chunk.ID, err)
		}
		_, err = sq.Insert("backup_chunks").
			Columns("collection", "chunk_id", "file_path", "language", "content", "line_start", "line_end", "display_name", "classification", "embedding", "created_at").
			Values(collectionName, chunk.ID, chunk.FilePath, chunk.Language, chunk.Content, chunk.LineStart, chunk.LineEnd, chunk.DisplayName, chunk.Classification(), embBytes, time.Now()).
			Suffix("ON CONFLICT(collection, chunk_id) DO UPDATE SET file_path=excluded.file_path, language=excluded.language, content=excluded.content, line_start=excluded.line_start, line_end=excluded.line_end, display_name=excluded.display_name, classification=excluded.classification, embedding=excluded.embedding").
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("backup store: persist chunk %s: %w", chunk.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("backup store: commit upsert: %w", err)
	}

	for i, chunk := range chunks {
		doc := chromem.Document{ID: chunk.ID, Content: chunk.Content, Embedding: vectors[i].Dense}
		if err := collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("backup store: mirror chunk %s into chromem: %w", chunk.ID, err)
		}
	}
	return nil
}

// Delete implements vectorstore.Store.
func (s *Store) Delete(ctx context.Context, collectionName string, chunkIDs []string) error {
	s.mu.RLock()
	collection := s.collections[collectionName]
	s.mu.RUnlock()

	_, err := sq.Delete("backup_chunks").
		Where(sq.Eq{"collection": collectionName, "chunk_id": chunkIDs}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("backup store: delete chunks: %w", err)
	}
	if collection != nil {
		for _, id := range chunkIDs {
			_ = collection.Delete(ctx, nil, nil, id)
		}
	}
	return nil
}

// Search implements vectorstore.Store using chromem-go's in-memory KNN.
func (s *Store) Search(ctx context.Context, collectionName string, queryVector []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchHit, error) {
	s.mu.RLock()
	collection := s.collections[collectionName]
	s.mu.RUnlock()
	if collection == nil {
		return nil, fmt.Errorf("backup store: collection %q not open", collectionName)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 15
	}
	docs, err := collection.QueryEmbedding(ctx, queryVector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("backup store: query: %w", err)
	}

	hits := make([]vectorstore.SearchHit, len(docs))
	for i, doc := range docs {
		hits[i] = vectorstore.SearchHit{ChunkID: doc.ID, Score: float64(doc.Similarity)}
	}
	return hits, nil
}

// SearchSparse implements vectorstore.Store. chromem-go has no sparse
// vector support, and the backup's embedding profile treats sparse as
// optional (spec §4.6), so this returns an empty result rather than an
// error.
func (s *Store) SearchSparse(ctx context.Context, collectionName string, sparse map[uint32]float32, limit int) ([]vectorstore.SearchHit, error) {
	return nil, nil
}

// ChunkIDs implements vectorstore.Store, reading from the durable sqlite
// table (the source of truth) rather than the in-memory mirror.
func (s *Store) ChunkIDs(ctx context.Context, collectionName string) ([]string, error) {
	rows, err := sq.Select("chunk_id").
		From("backup_chunks").
		Where(sq.Eq{"collection": collectionName}).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup store: list chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("backup store: scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FetchContent implements vectorstore.Store, reading payload only (no
// embedding column) from the durable table.
func (s *Store) FetchContent(ctx context.Context, collectionName string, chunkIDs []string) (map[string]*chunkmodel.CodeChunk, error) {
	rows, err := sq.Select("chunk_id", "file_path", "language", "content", "line_start", "line_end", "display_name", "classification").
		From("backup_chunks").
		Where(sq.Eq{"collection": collectionName, "chunk_id": chunkIDs}).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup store: fetch content: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*chunkmodel.CodeChunk, len(chunkIDs))
	for rows.Next() {
		var id, filePath, language, content, displayName, classification string
		var lineStart, lineEnd int
		if err := rows.Scan(&id, &filePath, &language, &content, &lineStart, &lineEnd, &displayName, &classification); err != nil {
			return nil, fmt.Errorf("backup store: scan content row: %w", err)
		}
		chunk := &chunkmodel.CodeChunk{
			ID: id, FilePath: filePath, Language: language, Content: content,
			LineStart: lineStart, LineEnd: lineEnd, DisplayName: displayName,
		}
		if classification != "" {
			chunk.Semantic = &chunkmodel.SemanticMetadata{Classification: classification}
		}
		out[id] = chunk
	}
	return out, rows.Err()
}

// Healthy implements vectorstore.Store: the backup is healthy whenever
// its sqlite connection responds, which is effectively always true for a
// local file-backed store (it exists precisely so queries never need the
// network).
func (s *Store) Healthy(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements vectorstore.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func serializeFloat32(v []float32) ([]byte, error) {
	return sqlite_vec.SerializeFloat32(v)
}

func deserializeFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

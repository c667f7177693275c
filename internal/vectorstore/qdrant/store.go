// Package qdrant implements the primary vector store backend (spec §4.6)
// against a real qdrant server via github.com/qdrant/go-client.
//
// The example pack's own qdrant-backed caller
// (rajajisai-bot-go/internal/service/vector/code_chunk_service.go) only
// consumes a VectorDatabase interface — its implementing file was never
// retrieved into the pack. This file is therefore written from the
// published qdrant/go-client v1.15.2 API rather than adapted from a
// specific pack source; see DESIGN.md.
package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/knitli/codeweaver/internal/chunkmodel"
	"github.com/knitli/codeweaver/internal/vectorstore"
)

// Store is the qdrant-backed primary implementation of vectorstore.Store.
type Store struct {
	client *qdrant.Client
}

// Config names the qdrant server to dial.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Dial opens a gRPC connection to a qdrant server.
func Dial(cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant store: dial: %w", err)
	}
	return &Store{client: client}, nil
}

// OpenCollection implements vectorstore.Store: creates the collection if
// absent (sized to meta.Dimension, cosine distance) and otherwise gates the
// open against the metadata payload carried on a sentinel point, per spec
// §3's Collection Metadata invariants.
func (s *Store) OpenCollection(ctx context.Context, name string, meta chunkmodel.CollectionMetadata) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant store: check collection exists: %w", err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(meta.Dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrant store: create collection: %w", err)
		}
		return s.writeMetadataPoint(ctx, name, meta)
	}

	stored, err := s.readMetadataPoint(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant store: read collection metadata: %w", err)
	}
	resolved, err := vectorstore.GateOpen(stored, meta)
	if err != nil {
		return err
	}
	return s.writeMetadataPoint(ctx, name, resolved)
}

const metadataPointID = "00000000-0000-0000-0000-000000000000"

func (s *Store) writeMetadataPoint(ctx context.Context, collection string, meta chunkmodel.CollectionMetadata) error {
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(metadataPointID),
				Vectors: qdrant.NewVectorsDense(make([]float32, meta.Dimension)),
				Payload: qdrant.NewValueMap(map[string]any{
					"__collection_metadata": true,
					"provider":              meta.Provider,
					"model":                 meta.Model,
					"dimension":             meta.Dimension,
					"sparse_model":          meta.SparseModel,
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant store: write metadata point: %w", err)
	}
	return nil
}

func (s *Store) readMetadataPoint(ctx context.Context, collection string) (*chunkmodel.CollectionMetadata, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(metadataPointID)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}
	payload := points[0].Payload
	m := &chunkmodel.CollectionMetadata{
		Provider:    payload["provider"].GetStringValue(),
		Model:       payload["model"].GetStringValue(),
		Dimension:   int(payload["dimension"].GetIntegerValue()),
		SparseModel: payload["sparse_model"].GetStringValue(),
	}
	return m, nil
}

// Upsert implements vectorstore.Store.
func (s *Store) Upsert(ctx context.Context, collection string, chunks []*chunkmodel.CodeChunk, vectors []vectorstore.Vector) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("qdrant store: upsert: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ID),
			Vectors: qdrant.NewVectorsDense(vectors[i].Dense),
			Payload: qdrant.NewValueMap(map[string]any{
				"file_path":      chunk.FilePath,
				"content":        chunk.Content,
				"language":       chunk.Language,
				"line_start":     chunk.LineStart,
				"line_end":       chunk.LineEnd,
				"display_name":   chunk.DisplayName,
				"classification": chunk.Classification(),
			}),
		}
	}
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: collection, Points: points}); err != nil {
		return fmt.Errorf("qdrant store: upsert points: %w", err)
	}
	return nil
}

// Delete implements vectorstore.Store.
func (s *Store) Delete(ctx context.Context, collection string, chunkIDs []string) error {
	ids := make([]*qdrant.PointId, len(chunkIDs))
	for i, id := range chunkIDs {
		ids[i] = qdrant.NewID(id)
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(ids...),
	})
	if err != nil {
		return fmt.Errorf("qdrant store: delete points: %w", err)
	}
	return nil
}

// Search implements vectorstore.Store.
func (s *Store) Search(ctx context.Context, collection string, queryVector []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchHit, error) {
	limit := uint64(opts.Limit)
	if limit == 0 {
		limit = 15
	}
	result, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(queryVector),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant store: query: %w", err)
	}

	hits := make([]vectorstore.SearchHit, 0, len(result))
	for _, point := range result {
		id := point.Id.GetUuid()
		if id == "" {
			id = fmt.Sprintf("%d", point.Id.GetNum())
		}
		if id == metadataPointID {
			continue
		}
		hits = append(hits, vectorstore.SearchHit{ChunkID: id, Score: float64(point.Score)})
	}
	return hits, nil
}

// SearchSparse implements vectorstore.Store using qdrant's named sparse
// vector query support, returned as its own rank list for the
// orchestrator's RRF fusion (spec §4.7 step 3).
func (s *Store) SearchSparse(ctx context.Context, collection string, sparse map[uint32]float32, limit int) ([]vectorstore.SearchHit, error) {
	if len(sparse) == 0 {
		return nil, nil
	}
	indices := make([]uint32, 0, len(sparse))
	values := make([]float32, 0, len(sparse))
	for idx, val := range sparse {
		indices = append(indices, idx)
		values = append(values, val)
	}

	lim := uint64(limit)
	if lim == 0 {
		lim = 15
	}
	usingName := sparseVectorName
	result, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuerySparse(indices, values),
		Using:          &usingName,
		Limit:          &lim,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant store: sparse query: %w", err)
	}

	hits := make([]vectorstore.SearchHit, 0, len(result))
	for _, point := range result {
		id := point.Id.GetUuid()
		if id == "" {
			id = fmt.Sprintf("%d", point.Id.GetNum())
		}
		if id == metadataPointID {
			continue
		}
		hits = append(hits, vectorstore.SearchHit{ChunkID: id, Score: float64(point.Score)})
	}
	return hits, nil
}

const sparseVectorName = "sparse"

// ChunkIDs implements vectorstore.Store by scrolling the full point set.
func (s *Store) ChunkIDs(ctx context.Context, collection string) ([]string, error) {
	var ids []string
	var offset *qdrant.PointId
	for {
		resp, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(false),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant store: scroll: %w", err)
		}
		if offset != nil && len(resp) > 0 {
			resp = resp[1:] // the scroll offset is inclusive: skip the previous page's last point
		}
		if len(resp) == 0 {
			break
		}
		for _, point := range resp {
			id := point.Id.GetUuid()
			if id == "" {
				id = fmt.Sprintf("%d", point.Id.GetNum())
			}
			if id == metadataPointID {
				continue
			}
			ids = append(ids, id)
		}
		offset = resp[len(resp)-1].Id
	}
	return ids, nil
}

// FetchContent implements vectorstore.Store by reading back payload only
// (file path, content, language, line span, display name, classification),
// never vectors -- the sync-back path always re-embeds from source text
// rather than copying a vector across stores.
func (s *Store) FetchContent(ctx context.Context, collection string, chunkIDs []string) (map[string]*chunkmodel.CodeChunk, error) {
	ids := make([]*qdrant.PointId, len(chunkIDs))
	for i, id := range chunkIDs {
		ids[i] = qdrant.NewID(id)
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant store: fetch content: %w", err)
	}

	out := make(map[string]*chunkmodel.CodeChunk, len(points))
	for _, point := range points {
		id := point.Id.GetUuid()
		if id == "" {
			id = fmt.Sprintf("%d", point.Id.GetNum())
		}
		chunk := &chunkmodel.CodeChunk{
			ID:          id,
			FilePath:    point.Payload["file_path"].GetStringValue(),
			Content:     point.Payload["content"].GetStringValue(),
			Language:    point.Payload["language"].GetStringValue(),
			LineStart:   int(point.Payload["line_start"].GetIntegerValue()),
			LineEnd:     int(point.Payload["line_end"].GetIntegerValue()),
			DisplayName: point.Payload["display_name"].GetStringValue(),
		}
		if classification := point.Payload["classification"].GetStringValue(); classification != "" {
			chunk.Semantic = &chunkmodel.SemanticMetadata{Classification: classification}
		}
		out[id] = chunk
	}
	return out, nil
}

// Healthy implements vectorstore.Store using qdrant's cluster health RPC.
func (s *Store) Healthy(ctx context.Context) error {
	_, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("qdrant store: health check: %w", err)
	}
	return nil
}

// Close implements vectorstore.Store.
func (s *Store) Close() error {
	return s.client.Close()
}

package vectorstore

import "github.com/knitli/codeweaver/internal/chunkmodel"

// GateOpen enforces the Collection Metadata invariants from spec §3 for
// both backends: a brand-new collection (stored == nil) is always
// accepted and its metadata persisted as-is; an existing collection is
// checked for model/dimension/provider compatibility via
// chunkmodel.CheckCompatibility. Returns the metadata each store should
// persist (unchanged on a pure open, current on first create).
func GateOpen(stored *chunkmodel.CollectionMetadata, current chunkmodel.CollectionMetadata) (chunkmodel.CollectionMetadata, error) {
	if stored == nil {
		return current, nil
	}
	if err := chunkmodel.CheckCompatibility(*stored, current.Provider, current.Model, current.Dimension); err != nil {
		return *stored, err
	}
	return *stored, nil
}

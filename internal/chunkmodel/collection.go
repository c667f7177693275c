package chunkmodel

import (
	"errors"
	"fmt"
	"time"
)

// CollectionMetadata is persisted with each vector-store collection (spec
// §3 "Collection Metadata"). Model == "" means either "legacy collection,
// created before metadata was tracked" or "provider has no notion of named
// models" -- both are accepted for backwards compatibility per spec §4.6.
type CollectionMetadata struct {
	Provider        string
	Model           string
	Dimension       int
	SparseModel     string // optional
	CreatedAt       time.Time
}

// IsLegacy reports whether this metadata predates model tracking.
func (m CollectionMetadata) IsLegacy() bool {
	return m.Model == "" && m.Dimension == 0
}

// ModelSwitchError is fatal to opening an existing collection when the
// stored embedding model differs from the currently configured one (spec
// §3, §4.6, §7, and scenario S4).
type ModelSwitchError struct {
	StoredModel  string
	CurrentModel string
}

func (e *ModelSwitchError) Error() string {
	return fmt.Sprintf("collection was created with embedding model %q, current configuration uses %q", e.StoredModel, e.CurrentModel)
}

// Remediations lists the operator remediation options from spec scenario S4.
func (e *ModelSwitchError) Remediations() []string {
	return []string{"reindex", "revert", "delete", "rename"}
}

// DimensionMismatchError is fatal to opening an existing collection when the
// stored embedding dimension differs from the currently configured one.
type DimensionMismatchError struct {
	StoredDimension  int
	CurrentDimension int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("collection dimension %d does not match current provider dimension %d", e.StoredDimension, e.CurrentDimension)
}

// ErrProviderChanged is not fatal: returned alongside a successful open to
// signal a provider-only change that the caller should log as a warning and
// recommend a reindex for (spec §3/§4.6: "provider-only changes log a
// warning (recommend reindex) but do not block").
var ErrProviderChanged = errors.New("vector store provider changed since collection was created; reindex recommended")

// CheckCompatibility implements the collection-compatibility gate described
// in spec §4.6, run on every open of an existing collection. It returns a
// fatal error (*ModelSwitchError or *DimensionMismatchError) when opening
// must be blocked, ErrProviderChanged when the open may proceed but a
// warning should be logged, or nil when fully compatible.
func CheckCompatibility(stored CollectionMetadata, currentProvider, currentModel string, currentDimension int) error {
	if stored.IsLegacy() {
		return nil
	}
	if stored.Model != "" && stored.Model != currentModel {
		return &ModelSwitchError{StoredModel: stored.Model, CurrentModel: currentModel}
	}
	if stored.Dimension != 0 && stored.Dimension != currentDimension {
		return &DimensionMismatchError{StoredDimension: stored.Dimension, CurrentDimension: currentDimension}
	}
	if stored.Provider != "" && stored.Provider != currentProvider {
		return ErrProviderChanged
	}
	return nil
}

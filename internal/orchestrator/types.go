// Package orchestrator implements find_code (spec §4.7), the single
// agent-facing operation: it composes the embedding, sparse, vector-store,
// and reranker providers behind the provider registry into one pure,
// idempotent query.
package orchestrator

import (
	"github.com/knitli/codeweaver/internal/chunkmodel"
)

// Intent tags the caller's purpose, used to weight a chunk's per-task
// importance score during assembly (spec §3/§4.3).
type Intent string

const (
	IntentNone          Intent = ""
	IntentDiscovery     Intent = "discovery"
	IntentComprehension Intent = "comprehension"
	IntentModification  Intent = "modification"
	IntentDebugging     Intent = "debugging"
	IntentDocumentation Intent = "documentation"
)

func (i Intent) importanceTask() (chunkmodel.ImportanceTask, bool) {
	switch i {
	case IntentDiscovery:
		return chunkmodel.TaskDiscovery, true
	case IntentComprehension:
		return chunkmodel.TaskComprehension, true
	case IntentModification:
		return chunkmodel.TaskModification, true
	case IntentDebugging:
		return chunkmodel.TaskDebugging, true
	case IntentDocumentation:
		return chunkmodel.TaskDocumentation, true
	default:
		return 0, false
	}
}

// DefaultTokenLimit is find_code's token_limit default (spec §4.7).
const DefaultTokenLimit = 30000

// Request is find_code's input contract.
type Request struct {
	Query          string
	Intent         Intent
	TokenLimit     int      // 0 means DefaultTokenLimit
	FocusLanguages []string // empty means no language filter
}

func (r Request) tokenLimit() int {
	if r.TokenLimit <= 0 {
		return DefaultTokenLimit
	}
	return r.TokenLimit
}

func (r Request) languageSet() map[string]struct{} {
	if len(r.FocusLanguages) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(r.FocusLanguages))
	for _, lang := range r.FocusLanguages {
		set[lang] = struct{}{}
	}
	return set
}

// ResultItem is one ranked code span in find_code's response.
type ResultItem struct {
	File           string  `json:"file"`
	LineStart      int     `json:"line_start"`
	LineEnd        int     `json:"line_end"`
	Language       string  `json:"language"`
	Snippet        string  `json:"snippet"`
	Classification string  `json:"classification,omitempty"`
	DisplayName    string  `json:"display_name,omitempty"`
	Importance     float64 `json:"importance,omitempty"`
}

// FailoverMetadata mirrors vectorstore.FailoverInfo in find_code's response
// shape (spec §4.7 step 6).
type FailoverMetadata struct {
	Enabled bool `json:"enabled"`
	Active  bool `json:"active"` // true when the backup store is currently serving
}

// Metadata is find_code's response metadata block.
type Metadata struct {
	Intent     Intent           `json:"intent,omitempty"`
	Filters    []string         `json:"filters,omitempty"`
	Failover   FailoverMetadata `json:"failover"`
	StatusCode string           `json:"status_code,omitempty"` // set only on structured errors, e.g. "ServiceUnavailable"
	Error      string           `json:"error,omitempty"`
}

// Result is find_code's full return value, always returned rather than an
// error -- spec §7: "User-visible errors from find_code are structured
// values, never exceptions crossing the agent boundary."
type Result struct {
	Results []ResultItem `json:"results"`
	Total   int          `json:"total"`
	TookMs  int64         `json:"took_ms"`
	Metadata Metadata    `json:"metadata"`
}

func serviceUnavailable(intent Intent, failover FailoverMetadata, reason string) Result {
	return Result{
		Results: []ResultItem{},
		Total:   0,
		Metadata: Metadata{
			Intent:     intent,
			Failover:   failover,
			StatusCode: "ServiceUnavailable",
			Error:      reason,
		},
	}
}

func queryFailure(intent Intent, failover FailoverMetadata, reason string) Result {
	return Result{
		Results: []ResultItem{},
		Total:   0,
		Metadata: Metadata{
			Intent:     intent,
			Failover:   failover,
			StatusCode: "QueryFailure",
			Error:      reason,
		},
	}
}

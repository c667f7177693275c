package mgmt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/knitli/codeweaver/internal/config"
	"github.com/knitli/codeweaver/internal/indexer"
	"github.com/knitli/codeweaver/internal/vectorstore"
)

type fakeProvider struct {
	healthErr error
	stats     indexer.Stats
	failover  vectorstore.FailoverInfo
	state     string
	cfg       *config.Config
}

func (f *fakeProvider) Healthy(ctx context.Context) error             { return f.healthErr }
func (f *fakeProvider) LastIndexStats() indexer.Stats                 { return f.stats }
func (f *fakeProvider) FailoverStatus() vectorstore.FailoverInfo       { return f.failover }
func (f *fakeProvider) ManagerState() string                          { return f.state }
func (f *fakeProvider) Settings() *config.Config                      { return f.cfg }

func newTestServer(p *fakeProvider) http.Handler {
	s := New("127.0.0.1:0", p, zap.NewNop())
	return s.httpServer.Handler
}

func TestHandleHealth_HealthyReturns200(t *testing.T) {
	t.Parallel()
	handler := newTestServer(&fakeProvider{})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleHealth_UnhealthyReturns503(t *testing.T) {
	t.Parallel()
	handler := newTestServer(&fakeProvider{healthErr: errors.New("primary unreachable")})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleStatus_ReportsStateAndFailover(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{
		state:    "primary_only",
		failover: vectorstore.FailoverInfo{Enabled: true, Active: "primary"},
		stats:    indexer.Stats{Indexed: 5, TotalChunks: 42},
	}
	handler := newTestServer(p)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "primary_only", body["state"])
}

func TestHandleMetrics_ReportsCounts(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{stats: indexer.Stats{Indexed: 3, Failed: 1, TotalChunks: 10}}
	handler := newTestServer(p)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["indexed_files_total"])
	assert.Equal(t, float64(1), body["failed_files_total"])
}

func TestHandleVersion_ReportsConfiguredVersion(t *testing.T) {
	t.Parallel()
	Version = "test-build"
	handler := newTestServer(&fakeProvider{})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Contains(t, rr.Body.String(), "test-build")
}

func TestHandleSettings_ReturnsConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	p := &fakeProvider{cfg: cfg}
	handler := newTestServer(p)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/settings", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "\"Port\"")
}

func TestHandleState_ReportsFailoverDetail(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{state: "backup_active", failover: vectorstore.FailoverInfo{Enabled: true, Active: "backup", Degraded: true}}
	handler := newTestServer(p)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "backup_active")
}

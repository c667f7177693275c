package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/knitli/codeweaver/internal/chunkmodel"
	"github.com/knitli/codeweaver/internal/providerregistry"
)

// State names the failover manager's position in the spec §4.6 state
// machine (PrimaryOnly -> BackupActive -> Restoring -> PrimaryOnly, with
// Degraded modeled as a PrimaryOnly sub-state rather than a fourth value).
type State int

const (
	StatePrimaryOnly State = iota
	StateBackupActive
	StateRestoring
)

func (s State) String() string {
	switch s {
	case StatePrimaryOnly:
		return "primary_only"
	case StateBackupActive:
		return "backup_active"
	case StateRestoring:
		return "restoring"
	default:
		return "unknown"
	}
}

// ManagerConfig tunes the failover manager's transition thresholds.
type ManagerConfig struct {
	Collection string

	// ConsecutiveFailuresToTrip is the number of consecutive primary health
	// or write failures that trips PrimaryOnly -> BackupActive.
	ConsecutiveFailuresToTrip int
	// ConsecutiveSuccessesToRestore is the number of consecutive primary
	// health successes that triggers BackupActive -> Restoring.
	ConsecutiveSuccessesToRestore int
	// ProbeInterval is how often Run polls primary health.
	ProbeInterval time.Duration

	// DegradedTolerance bounds how many per-chunk sync-back failures are
	// tolerated before Restoring still switches to PrimaryOnly (marking the
	// failed ids Degraded/pending re-sync) rather than aborting back to
	// BackupActive. See DESIGN.md's "Restoration partial-failure tolerance"
	// entry for why this is a configurable Open Question resolution whose
	// default of 0 keeps the strict all-or-nothing reading.
	DegradedTolerance int

	// FailoverEnabled gates whether PrimaryOnly may ever trip to
	// BackupActive. When false, a primary outage surfaces as a plain error
	// to callers instead of a seamless switch (spec §4.7 "Error
	// conditions": "if disabled, return a structured ServiceUnavailable
	// result").
	FailoverEnabled bool
}

// DefaultManagerConfig returns sane defaults: failover enabled, 3
// consecutive failures trips failover, 3 consecutive successes triggers
// restoration (spec §4.6's "three successive successes"), probing every 10
// seconds, zero tolerated sync-back failures.
func DefaultManagerConfig(collection string) ManagerConfig {
	return ManagerConfig{
		Collection:                    collection,
		ConsecutiveFailuresToTrip:     3,
		ConsecutiveSuccessesToRestore: 3,
		ProbeInterval:                 10 * time.Second,
		DegradedTolerance:             0,
		FailoverEnabled:               true,
	}
}

// Manager implements the spec §4.6 failover state machine over a primary
// and backup Store. It is the single entry point the indexer and the
// find_code orchestrator use for reads and writes; callers never address
// primary or backup directly, so a failover mid-flight is invisible to any
// single in-flight request (spec invariant "active store never changes
// mid-request").
type Manager struct {
	primary Store
	backup  Store
	cfg     ManagerConfig
	logger  *zap.Logger

	embedder providerregistry.DenseEmbedder
	sparse   providerregistry.SparseEmbedder // nil when no sparse provider configured

	mu                   sync.RWMutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	snapshot             map[string]struct{} // BackupSnapshotSet
	pendingResync        map[string]struct{} // Degraded sub-state bookkeeping

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewManager constructs a manager in the initial PrimaryOnly state.
func NewManager(primary, backup Store, cfg ManagerConfig, embedder providerregistry.DenseEmbedder, sparse providerregistry.SparseEmbedder, logger *zap.Logger) *Manager {
	return &Manager{
		primary:       primary,
		backup:        backup,
		cfg:           cfg,
		logger:        logger,
		embedder:      embedder,
		sparse:        sparse,
		state:         StatePrimaryOnly,
		pendingResync: make(map[string]struct{}),
		stop:          make(chan struct{}),
	}
}

// State reports the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Degraded reports whether PrimaryOnly is currently in its Degraded
// sub-state (chunks pending background re-sync from an earlier partial
// restoration).
func (m *Manager) Degraded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StatePrimaryOnly && len(m.pendingResync) > 0
}

// PendingResync returns the chunk ids awaiting background re-sync, for the
// indexer's next pass to pick up.
func (m *Manager) PendingResync() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.pendingResync))
	for id := range m.pendingResync {
		ids = append(ids, id)
	}
	return ids
}

// MarkResynced removes ids from the pending-resync set once the indexer has
// successfully re-embedded and upserted them to the primary outside of a
// restoration cycle.
func (m *Manager) MarkResynced(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.pendingResync, id)
	}
}

// active returns the store that should currently serve reads and writes.
// Restoring still routes to the backup until the Switch sub-step completes,
// so only PrimaryOnly (including Degraded) reads the primary.
func (m *Manager) active() Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StatePrimaryOnly {
		return m.primary
	}
	return m.backup
}

// OpenCollection opens the configured collection on both stores so either
// is ready to become active without a first-use delay.
func (m *Manager) OpenCollection(ctx context.Context, primaryMeta, backupMeta chunkmodel.CollectionMetadata) error {
	if err := m.primary.OpenCollection(ctx, m.cfg.Collection, primaryMeta); err != nil {
		return fmt.Errorf("failover manager: open primary collection: %w", err)
	}
	if err := m.backup.OpenCollection(ctx, m.cfg.Collection, backupMeta); err != nil {
		return fmt.Errorf("failover manager: open backup collection: %w", err)
	}
	return nil
}

// Upsert writes to whichever store is currently active.
func (m *Manager) Upsert(ctx context.Context, chunks []*chunkmodel.CodeChunk, vectors []Vector) error {
	store := m.active()
	if err := store.Upsert(ctx, m.cfg.Collection, chunks, vectors); err != nil {
		m.recordFailure(ctx)
		return err
	}
	return nil
}

// Delete deletes from whichever store is currently active.
func (m *Manager) Delete(ctx context.Context, chunkIDs []string) error {
	return m.active().Delete(ctx, m.cfg.Collection, chunkIDs)
}

// Search queries whichever store is currently active. The returned
// SearchHit.ChunkID set is always internally consistent (spec invariant:
// "a request sees exactly one active store for its entire lifetime")
// because active() is resolved once, up front, for this call.
func (m *Manager) Search(ctx context.Context, queryVector []float32, opts SearchOptions) ([]SearchHit, error) {
	return m.active().Search(ctx, m.cfg.Collection, queryVector, opts)
}

// SearchSparse queries whichever store is currently active with a
// sparse-only vector, for the orchestrator's RRF fusion step.
func (m *Manager) SearchSparse(ctx context.Context, sparse map[uint32]float32, limit int) ([]SearchHit, error) {
	return m.active().SearchSparse(ctx, m.cfg.Collection, sparse, limit)
}

// FetchContent reads back chunk payload from whichever store is currently
// active, used by the find_code orchestrator to assemble snippets and
// metadata for its final ranked results.
func (m *Manager) FetchContent(ctx context.Context, chunkIDs []string) (map[string]*chunkmodel.CodeChunk, error) {
	return m.active().FetchContent(ctx, m.cfg.Collection, chunkIDs)
}

// ActiveName reports which backend ("primary" or "backup") is currently
// serving, for the /state management endpoint and find_code's
// metadata.failover block.
func (m *Manager) ActiveName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StatePrimaryOnly {
		return "primary"
	}
	return "backup"
}

// FailoverInfo is the summary find_code's metadata.failover block and the
// /state management endpoint report (spec §4.7 step 6, §6).
type FailoverInfo struct {
	Enabled  bool
	Active   string // "primary" or "backup"
	Degraded bool
}

// FailoverInfo reports the manager's current failover status.
func (m *Manager) FailoverInfo() FailoverInfo {
	return FailoverInfo{
		Enabled:  m.cfg.FailoverEnabled,
		Active:   m.ActiveName(),
		Degraded: m.Degraded(),
	}
}

// Run starts the background health prober. It blocks until ctx is
// cancelled or Stop is called.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()
	m.wg.Add(1)
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.probeOnce(ctx)
		}
	}
}

// Stop halts the background prober started by Run.
func (m *Manager) Stop() {
	close(m.stop)
	m.wg.Wait()
}

func (m *Manager) probeOnce(ctx context.Context) {
	err := m.primary.Healthy(ctx)
	if err != nil {
		m.recordFailure(ctx)
		return
	}
	m.recordSuccess(ctx)
}

func (m *Manager) recordFailure(ctx context.Context) {
	m.mu.Lock()
	m.consecutiveFailures++
	m.consecutiveSuccesses = 0
	trip := m.cfg.FailoverEnabled && m.state == StatePrimaryOnly && m.consecutiveFailures >= m.cfg.ConsecutiveFailuresToTrip
	m.mu.Unlock()

	if trip {
		m.enterBackupActive(ctx)
	}
}

func (m *Manager) recordSuccess(ctx context.Context) {
	m.mu.Lock()
	m.consecutiveSuccesses++
	m.consecutiveFailures = 0
	shouldRestore := m.state == StateBackupActive && m.consecutiveSuccesses >= m.cfg.ConsecutiveSuccessesToRestore
	m.mu.Unlock()

	if shouldRestore {
		m.attemptRestore(ctx)
	}
}

// enterBackupActive captures the Backup Snapshot Set and switches active
// reads/writes to the backup (spec §4.6 BackupActive entry steps a and c;
// step b, restoring a prior on-disk snapshot, is the backup store's own
// concern at OpenCollection time).
func (m *Manager) enterBackupActive(ctx context.Context) {
	ids, err := m.backup.ChunkIDs(ctx, m.cfg.Collection)
	snapshot := make(map[string]struct{}, len(ids))
	if err != nil {
		m.logger.Warn("failover: could not capture backup snapshot set, proceeding with an empty one",
			zap.Error(err))
	} else {
		for _, id := range ids {
			snapshot[id] = struct{}{}
		}
	}

	m.mu.Lock()
	m.state = StateBackupActive
	m.snapshot = snapshot
	m.consecutiveFailures = 0
	m.mu.Unlock()

	m.logger.Warn("failover: primary unhealthy, switched to backup store",
		zap.Int("backup_snapshot_size", len(snapshot)))
}

// attemptRestore runs the Restoring state's sync-back/verify/switch steps,
// aborting back to BackupActive on failure (spec §4.6).
func (m *Manager) attemptRestore(ctx context.Context) {
	m.mu.Lock()
	m.state = StateRestoring
	snapshot := m.snapshot
	m.mu.Unlock()

	m.logger.Info("failover: primary recovered, attempting restoration")

	failedIDs, err := m.syncBack(ctx, snapshot)
	if err != nil {
		m.logger.Warn("failover: sync-back aborted, remaining on backup", zap.Error(err))
		m.abortToBackupActive()
		return
	}

	if len(failedIDs) > m.cfg.DegradedTolerance {
		m.logger.Warn("failover: sync-back had too many failures, remaining on backup",
			zap.Int("failed", len(failedIDs)), zap.Int("tolerance", m.cfg.DegradedTolerance))
		m.abortToBackupActive()
		return
	}

	if err := m.primary.Healthy(ctx); err != nil {
		m.logger.Warn("failover: primary health re-verification failed, remaining on backup", zap.Error(err))
		m.abortToBackupActive()
		return
	}

	m.mu.Lock()
	m.state = StatePrimaryOnly
	m.snapshot = nil
	m.consecutiveSuccesses = 0
	for _, id := range failedIDs {
		m.pendingResync[id] = struct{}{}
	}
	degraded := len(m.pendingResync) > 0
	m.mu.Unlock()

	if degraded {
		m.logger.Warn("failover: restoration complete but degraded; chunks pending re-sync",
			zap.Int("pending", len(failedIDs)))
	} else {
		m.logger.Info("failover: restoration complete, primary active")
	}
}

func (m *Manager) abortToBackupActive() {
	m.mu.Lock()
	m.state = StateBackupActive
	m.consecutiveSuccesses = 0
	m.mu.Unlock()
}

// syncBack re-embeds and upserts every chunk added to the backup since the
// snapshot was captured, using the primary's own embedding provider --
// vectors are never copied between stores (spec §4.6). It returns the ids
// that could not be synced after retrying.
func (m *Manager) syncBack(ctx context.Context, snapshot map[string]struct{}) (failedIDs []string, err error) {
	currentIDs, err := m.backup.ChunkIDs(ctx, m.cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("failover manager: list backup chunk ids: %w", err)
	}

	var newIDs []string
	for _, id := range currentIDs {
		if _, seen := snapshot[id]; !seen {
			newIDs = append(newIDs, id)
		}
	}
	if len(newIDs) == 0 {
		return nil, nil
	}

	contents, err := m.backup.FetchContent(ctx, m.cfg.Collection, newIDs)
	if err != nil {
		return nil, fmt.Errorf("failover manager: fetch backup content: %w", err)
	}

	synced := 0
	for _, id := range newIDs {
		chunk, ok := contents[id]
		if !ok {
			failedIDs = append(failedIDs, id)
			continue
		}
		if err := m.syncOneChunk(ctx, chunk); err != nil {
			m.logger.Warn("failover: sync-back failed for chunk", zap.String("chunk_id", id), zap.Error(err))
			failedIDs = append(failedIDs, id)
			continue
		}
		synced++
		if synced%100 == 0 {
			m.logger.Info("failover: sync-back progress", zap.Int("synced", synced), zap.Int("total", len(newIDs)))
		}
	}
	return failedIDs, nil
}

func (m *Manager) syncOneChunk(ctx context.Context, chunk *chunkmodel.CodeChunk) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		dense, embErr := m.embedder.Embed(ctx, []string{chunk.Content}, providerregistry.EmbedModePassage)
		if embErr != nil {
			return struct{}{}, fmt.Errorf("re-embed: %w", embErr)
		}
		if len(dense) != 1 {
			return struct{}{}, fmt.Errorf("re-embed: expected 1 vector, got %d", len(dense))
		}
		vector := Vector{ChunkID: chunk.ID, Dense: dense[0]}
		if m.sparse != nil {
			sv, sparseErr := m.sparse.EmbedSparse(ctx, []string{chunk.Content})
			if sparseErr != nil {
				return struct{}{}, fmt.Errorf("re-embed sparse: %w", sparseErr)
			}
			if len(sv) != 1 {
				return struct{}{}, fmt.Errorf("re-embed sparse: expected 1 vector, got %d", len(sv))
			}
			vector.Sparse = sparseToMap(sv[0])
		}
		if upErr := m.primary.Upsert(ctx, m.cfg.Collection, []*chunkmodel.CodeChunk{chunk}, []Vector{vector}); upErr != nil {
			return struct{}{}, fmt.Errorf("upsert to primary: %w", upErr)
		}
		return struct{}{}, nil
	}, backoff.WithMaxTries(3), backoff.WithBackOff(backoff.NewExponentialBackOff()))
	return err
}

func sparseToMap(sv providerregistry.SparseVector) map[uint32]float32 {
	out := make(map[uint32]float32, len(sv.Indices))
	for i, idx := range sv.Indices {
		out[idx] = sv.Values[i]
	}
	return out
}

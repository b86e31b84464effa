// Package reconcile keeps the monitor's cached position state aligned
// with on-chain truth. AccountState tracks per-position sync status, and
// Reconciler drives both scheduled full sweeps and push-driven incremental
// updates delivered by an AccountListener.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clmmstrat/internal/clmmerr"
	"clmmstrat/internal/collab"
	"clmmstrat/pkg/types"
)

// AccountState is the per-position sync status the reconciler tracks.
type AccountState string

const (
	StateInSync      AccountState = "in_sync"
	StateNeedsUpdate AccountState = "needs_update"
	StateUpdating    AccountState = "updating"
	StateFailed      AccountState = "failed"
)

// Config tunes the periodic sweep's staleness window and failure
// tolerance.
type Config struct {
	MaxAge      time.Duration
	MaxFailures uint32
}

// DefaultConfig mirrors the grounding original's defaults (60s staleness
// window, 3 failures before an account is marked Failed).
func DefaultConfig() Config {
	return Config{MaxAge: 60 * time.Second, MaxFailures: 3}
}

// ProgramDecoder decodes raw on-chain account blobs into the core's
// typed position/pool views. The wire layout of any specific chain
// program's account data is outside the core's concern; decoding is
// delegated to the chain-specific collaborator.
type ProgramDecoder interface {
	DecodePosition(data []byte) (types.Position, error)
	DecodePool(data []byte) (types.PoolState, error)
}

// ReconcileResult reports the outcome of one periodic sweep.
type ReconcileResult struct {
	CurrentSlot uint64
	InSync      uint32
	Reconciled  uint32
	Failed      uint32
}

type positionEntry struct {
	state        AccountState
	position     types.Position
	lastSlot     uint64
	lastUpdate   time.Time
	failureCount uint32
	lastErr      error
}

// Reconciler refreshes cached Position state from the chain, on demand
// (RefreshPositions, satisfying internal/monitor.Reconciler), via a
// periodic sweep (Reconcile), or via push notifications (Apply) from an
// AccountListener.
type Reconciler struct {
	rpc     collab.ChainRPC
	decoder ProgramDecoder
	cfg     Config
	logger  *slog.Logger

	mu       sync.Mutex
	accounts map[string]*positionEntry // keyed by position ID / account pubkey
}

// New creates a Reconciler against a chain RPC collaborator and a
// program-specific account decoder, using cfg's staleness window and
// failure threshold for the periodic sweep.
func New(rpc collab.ChainRPC, decoder ProgramDecoder, cfg Config, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		rpc:      rpc,
		decoder:  decoder,
		cfg:      cfg,
		logger:   logger.With("component", "reconciler"),
		accounts: make(map[string]*positionEntry),
	}
}

// Track registers a position ID for reconciliation, initially needing an
// update.
func (r *Reconciler) Track(positionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[positionID]; !ok {
		r.accounts[positionID] = &positionEntry{state: StateNeedsUpdate, lastUpdate: time.Now()}
	}
}

// Untrack drops a position from reconciliation (e.g. after it closes).
func (r *Reconciler) Untrack(positionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, positionID)
}

// RefreshPositions fetches and decodes on-chain state for every requested
// position ID, marking each Updating while the fetch is outstanding. A
// success marks the ID In Sync; a failure counts toward Config.MaxFailures
// exactly as in Reconcile, leaving the ID NeedsUpdate until that threshold
// is reached and Failed from then on. A failure on one ID does not prevent
// the others from refreshing; failed IDs are simply omitted from the
// returned map. An error is returned only when every requested ID failed,
// and it wraps the first failure.
func (r *Reconciler) RefreshPositions(ctx context.Context, positionIDs []string) (map[string]types.Position, error) {
	result := make(map[string]types.Position, len(positionIDs))
	var firstErr error

	for _, id := range positionIDs {
		r.setUpdating(id)

		account, err := r.rpc.GetAccount(ctx, id)
		if err != nil {
			r.recordFailure(id, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		pos, err := r.decoder.DecodePosition(account.Data)
		if err != nil {
			r.recordFailure(id, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		r.recordSuccess(id, pos, 0)
		result[id] = pos
	}

	if len(result) == 0 && len(positionIDs) > 0 {
		return result, clmmerr.New("reconcile.refresh_positions", clmmerr.Unavailable, fmt.Errorf("all %d position refreshes failed, first error: %w", len(positionIDs), firstErr))
	}
	return result, nil
}

// PoolState fetches and decodes the current on-chain state of a pool
// account. Pool accounts are not part of the tracked-account staleness
// machinery below; each call is a direct RPC round trip, matching the
// collaborator contract in spec §4.M (the core fetches a pool's state as
// needed, it does not maintain a separate pool-sync state machine).
func (r *Reconciler) PoolState(ctx context.Context, pool string) (types.PoolState, error) {
	account, err := r.rpc.GetAccount(ctx, pool)
	if err != nil {
		return types.PoolState{}, clmmerr.New("reconcile.pool_state", clmmerr.Unavailable, fmt.Errorf("fetch pool account %s: %w", pool, err))
	}
	state, err := r.decoder.DecodePool(account.Data)
	if err != nil {
		return types.PoolState{}, clmmerr.New("reconcile.pool_state", clmmerr.Unavailable, fmt.Errorf("decode pool account %s: %w", pool, err))
	}
	return state, nil
}

// Reconcile runs one periodic sweep over every tracked account: any
// account stale past Config.MaxAge, or not currently InSync, is
// re-fetched over RPC. Failures increment a per-account counter and only
// flip the account to Failed once it reaches Config.MaxFailures; a
// single transient failure instead leaves the account NeedsUpdate so the
// next sweep retries it.
func (r *Reconciler) Reconcile(ctx context.Context) ReconcileResult {
	slot, err := r.rpc.GetSlot(ctx)
	if err != nil {
		r.logger.Warn("failed to fetch current slot", "error", err)
	}

	r.mu.Lock()
	ids := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	result := ReconcileResult{CurrentSlot: slot}
	now := time.Now()

	for _, id := range ids {
		if !r.needsReconcile(id, now) {
			result.InSync++
			continue
		}

		r.setUpdating(id)

		account, err := r.rpc.GetAccount(ctx, id)
		if err != nil {
			r.logger.Warn("reconcile sweep fetch failed", "position", id, "error", err)
			r.recordFailure(id, err)
			result.Failed++
			continue
		}

		pos, err := r.decoder.DecodePosition(account.Data)
		if err != nil {
			r.logger.Warn("reconcile sweep decode failed", "position", id, "error", err)
			r.recordFailure(id, err)
			result.Failed++
			continue
		}

		r.recordSuccess(id, pos, slot)
		result.Reconciled++
	}

	return result
}

func (r *Reconciler) needsReconcile(positionID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.accounts[positionID]
	if !ok {
		return false
	}
	return now.Sub(e.lastUpdate) > r.cfg.MaxAge || e.state != StateInSync
}

// Apply folds a push-delivered position update into the cache directly,
// bypassing an RPC round trip. Used by AccountListener when the chain's
// account-subscription feed delivers fresh state.
func (r *Reconciler) Apply(positionID string, pos types.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[positionID] = &positionEntry{state: StateInSync, position: pos, lastUpdate: time.Now()}
}

// State reports the current sync status of a tracked position.
func (r *Reconciler) State(positionID string) (AccountState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.accounts[positionID]
	if !ok {
		return "", false
	}
	return e.state, true
}

func (r *Reconciler) setUpdating(positionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.accounts[positionID]
	if !ok {
		e = &positionEntry{}
		r.accounts[positionID] = e
	}
	e.state = StateUpdating
}

func (r *Reconciler) recordSuccess(positionID string, pos types.Position, slot uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.accounts[positionID]
	if !ok {
		e = &positionEntry{}
		r.accounts[positionID] = e
	}
	e.state = StateInSync
	e.position = pos
	e.lastSlot = slot
	e.lastUpdate = time.Now()
	e.failureCount = 0
	e.lastErr = nil
}

func (r *Reconciler) recordFailure(positionID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.accounts[positionID]
	if !ok {
		e = &positionEntry{}
		r.accounts[positionID] = e
	}
	e.lastErr = err
	e.failureCount++
	if e.failureCount >= r.cfg.MaxFailures {
		e.state = StateFailed
	} else {
		e.state = StateNeedsUpdate
	}
}

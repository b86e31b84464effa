// Package monitor holds the live set of watched LP positions and derives
// per-position and portfolio PnL. Monitor is a process-wide singleton:
// Refresh is atomic from the caller's perspective (either the previous
// snapshot or a new coherent one, never a mix), and GetPositions reads
// under a shared lock.
//
// Lock shape: an RWMutex over a per-position map, with reads copying under
// the shared lock and Refresh computing its updates outside the lock and
// applying them under a single write lock.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/clmath"
	"clmmstrat/internal/lifecycle"
	"clmmstrat/pkg/types"
)

// Reconciler is the subset of internal/reconcile.Reconciler the monitor
// needs: refresh cached on-chain position state, and fetch a pool's
// current price, for a set of tracked positions.
type Reconciler interface {
	RefreshPositions(ctx context.Context, positionIDs []string) (map[string]types.Position, error)
	PoolState(ctx context.Context, pool string) (types.PoolState, error)
}

// MonitoredPosition is the monitor's live view of a tracked position.
type MonitoredPosition struct {
	Address      string
	Pool         string
	Snapshot     types.Position
	InRange      bool
	DepositedUSD decimal.Decimal
	CurrentUSD   decimal.Decimal
	PnLUSD       decimal.Decimal
	PnLPct       decimal.Decimal
	ILPct        decimal.Decimal
	LastUpdated  time.Time
}

// PortfolioMetrics are simple reductions over all monitored positions.
type PortfolioMetrics struct {
	TotalDepositedUSD  decimal.Decimal
	TotalCurrentUSD    decimal.Decimal
	TotalFeesUSD       decimal.Decimal
	TotalUnrealizedPnL decimal.Decimal
	WeightedILPct      decimal.Decimal
}

// Monitor holds the set of tracked positions keyed by position ID.
type Monitor struct {
	reconciler Reconciler
	tracker    *lifecycle.Tracker

	mu        sync.RWMutex
	positions map[string]MonitoredPosition
}

// New creates an empty Monitor backed by the given Reconciler and the
// shared lifecycle Tracker, which it reads a position's recorded entry
// price from (the PositionOpened event's EntryPrice) when computing IL.
func New(reconciler Reconciler, tracker *lifecycle.Tracker) *Monitor {
	return &Monitor{
		reconciler: reconciler,
		tracker:    tracker,
		positions:  make(map[string]MonitoredPosition),
	}
}

// Track adds a position to the monitored set, idempotently.
func (m *Monitor) Track(positionID string, pos types.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.positions[positionID]; ok {
		return
	}
	// Valued at the range midpoint until the first Refresh brings in a real
	// pool price; InRange/PnL/IL are placeholders until then.
	midpoint := pos.Range.Midpoint()
	m.positions[positionID] = MonitoredPosition{
		Address:      pos.Owner,
		Pool:         pos.Pool,
		Snapshot:     pos,
		InRange:      pos.Status == types.PositionOpen,
		DepositedUSD: pos.DepositedAmount0.ToDecimal().Mul(midpoint).Add(pos.DepositedAmount1.ToDecimal()),
		CurrentUSD:   pos.CurrentAmount0.ToDecimal().Mul(midpoint).Add(pos.CurrentAmount1.ToDecimal()),
		LastUpdated:  time.Now(),
	}
}

// Untrack removes a position from the monitored set.
func (m *Monitor) Untrack(positionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, positionID)
}

// Refresh asks the Reconciler for fresh on-chain snapshots of every
// tracked position and recomputes PnL. The updated entries are built
// outside the lock and written into the map under a single write lock, so
// concurrent readers see either none or all of this refresh's updates.
// Positions the Reconciler did not return keep their previous entry.
func (m *Monitor) Refresh(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.positions))
	for id := range m.positions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	if len(ids) == 0 {
		return nil
	}

	fresh, err := m.reconciler.RefreshPositions(ctx, ids)
	if err != nil {
		return err
	}

	poolPrices := make(map[string]decimal.Decimal, len(fresh))
	next := make(map[string]MonitoredPosition, len(fresh))
	for id, pos := range fresh {
		currentPrice, ok := poolPrices[pos.Pool]
		if !ok {
			if pool, err := m.reconciler.PoolState(ctx, pos.Pool); err == nil {
				currentPrice = pool.CurrentPrice.Value
			} else {
				currentPrice = pos.Range.Midpoint()
			}
			poolPrices[pos.Pool] = currentPrice
		}
		next[id] = m.buildMonitoredPosition(id, pos, currentPrice)
	}

	m.mu.Lock()
	for id, mp := range next {
		m.positions[id] = mp
	}
	m.mu.Unlock()
	return nil
}

// entryPrice returns the entry price recorded in a position's opening
// lifecycle event, or ok=false if the position has no such event yet (for
// example a position picked up for monitoring before its open was ever
// recorded by this process).
func (m *Monitor) entryPrice(positionID string) (decimal.Decimal, bool) {
	if m.tracker == nil {
		return decimal.Decimal{}, false
	}
	for _, ev := range m.tracker.Events(positionID) {
		if ev.Kind == types.EventPositionOpened {
			if data, ok := ev.Payload.(types.PositionOpenedData); ok {
				return data.EntryPrice, true
			}
		}
	}
	return decimal.Decimal{}, false
}

func (m *Monitor) buildMonitoredPosition(positionID string, pos types.Position, currentPrice decimal.Decimal) MonitoredPosition {
	inRange := pos.Range.Contains(types.NewPrice(currentPrice))

	var il decimal.Decimal
	if entry, ok := m.entryPrice(positionID); ok {
		computed, err := clmath.ILConcentrated(entry, currentPrice, pos.Range.Lower.Value, pos.Range.Upper.Value)
		if err == nil {
			il = computed
		}
	}

	depositedUSD := pos.DepositedAmount0.ToDecimal().Mul(currentPrice).Add(pos.DepositedAmount1.ToDecimal())
	currentUSD := pos.CurrentAmount0.ToDecimal().Mul(currentPrice).Add(pos.CurrentAmount1.ToDecimal())
	pnlUSD := currentUSD.Sub(depositedUSD)
	pnlPct := decimal.Zero
	if !depositedUSD.IsZero() {
		pnlPct = pnlUSD.DivRound(depositedUSD, 28)
	}

	return MonitoredPosition{
		Address:      pos.Owner,
		Pool:         pos.Pool,
		Snapshot:     pos,
		InRange:      inRange,
		DepositedUSD: depositedUSD,
		CurrentUSD:   currentUSD,
		PnLUSD:       pnlUSD,
		PnLPct:       pnlPct,
		ILPct:        il,
		LastUpdated:  time.Now(),
	}
}

// GetPositions returns a consistent snapshot of all monitored positions,
// read under a shared lock so the caller never observes a torn read.
func (m *Monitor) GetPositions() map[string]MonitoredPosition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]MonitoredPosition, len(m.positions))
	for id, mp := range m.positions {
		out[id] = mp
	}
	return out
}

// Get returns a single monitored position.
func (m *Monitor) Get(positionID string) (MonitoredPosition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mp, ok := m.positions[positionID]
	return mp, ok
}

// Portfolio reduces all monitored positions into portfolio-wide metrics.
func (m *Monitor) Portfolio() PortfolioMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := PortfolioMetrics{
		TotalDepositedUSD:  decimal.Zero,
		TotalCurrentUSD:    decimal.Zero,
		TotalFeesUSD:       decimal.Zero,
		TotalUnrealizedPnL: decimal.Zero,
		WeightedILPct:      decimal.Zero,
	}

	var weightSum decimal.Decimal
	for _, mp := range m.positions {
		// Unclaimed fees are accrued in pool fee-bearing tokens and have no
		// current price attached to the snapshot; summed in raw token units
		// like the rest of the per-side amount fields in pkg/types.
		fees := mp.Snapshot.UnclaimedFees0.ToDecimal().Add(mp.Snapshot.UnclaimedFees1.ToDecimal())

		metrics.TotalDepositedUSD = metrics.TotalDepositedUSD.Add(mp.DepositedUSD)
		metrics.TotalCurrentUSD = metrics.TotalCurrentUSD.Add(mp.CurrentUSD)
		metrics.TotalFeesUSD = metrics.TotalFeesUSD.Add(fees)
		metrics.TotalUnrealizedPnL = metrics.TotalUnrealizedPnL.Add(mp.PnLUSD)

		metrics.WeightedILPct = metrics.WeightedILPct.Add(mp.ILPct.Mul(mp.DepositedUSD))
		weightSum = weightSum.Add(mp.DepositedUSD)
	}
	if !weightSum.IsZero() {
		metrics.WeightedILPct = metrics.WeightedILPct.DivRound(weightSum, 28)
	}
	return metrics
}

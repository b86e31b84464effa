// Package lifecycle maintains the append-only per-position event log and
// its derived summaries. The Tracker is a process-wide singleton: the
// live monitor reads from it, the rebalance executor writes to it, and
// the two are wired with one-way writes (executor → tracker, monitor ←
// tracker) to avoid a cyclic dependency.
//
// Persistence idiom (atomic write, one JSON document per position) follows
// internal/store.Store; this package owns only the in-memory log and
// summary derivation, durable persistence is delegated to internal/store.
package lifecycle

import (
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"clmmstrat/pkg/types"
)

// Tracker holds, per position ID, a totally-ordered append-only event log
// and incrementally maintains a derived PositionSummary. All appends are
// serialized through a single mutex.
type Tracker struct {
	mu      sync.Mutex
	events  map[string][]types.LifecycleEvent
	summary map[string]*types.PositionSummary
	nextSeq uint64
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		events:  make(map[string][]types.LifecycleEvent),
		summary: make(map[string]*types.PositionSummary),
	}
}

// Record appends an event to its position's log and updates the derived
// summary incrementally. It assigns the event an ID if one was not already
// set, and stamps Timestamp if the zero value was supplied.
func (t *Tracker) Record(ev types.LifecycleEvent) types.LifecycleEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.ID == "" {
		t.nextSeq++
		ev.ID = genID(ev.PositionID, t.nextSeq)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	t.events[ev.PositionID] = append(t.events[ev.PositionID], ev)
	t.applyLocked(ev)
	return ev
}

func genID(positionID string, seq uint64) string {
	return positionID + "-" + strconv.FormatUint(seq, 10)
}

// Events returns a copy of the event log for a position, in append order.
func (t *Tracker) Events(positionID string) []types.LifecycleEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	src := t.events[positionID]
	out := make([]types.LifecycleEvent, len(src))
	copy(out, src)
	return out
}

// Summary returns the current derived summary for a position, and whether
// any events have been recorded for it.
func (t *Tracker) Summary(positionID string) (types.PositionSummary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.summary[positionID]
	if !ok {
		return types.PositionSummary{}, false
	}
	return *s, true
}

// AggregateStats reduces all tracked position summaries into a single
// portfolio-wide statistics record.
func (t *Tracker) AggregateStats() types.AggregateStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	var agg types.AggregateStats
	agg.TotalFeesUSD = decimal.Zero
	agg.TotalPnLUSD = decimal.Zero
	agg.AvgPnLPct = decimal.Zero
	agg.TotalTxCosts = decimal.Zero

	var pnlPctSum decimal.Decimal
	for _, s := range t.summary {
		agg.TotalPositions++
		if s.IsOpen {
			agg.OpenPositions++
		} else {
			agg.ClosedPositions++
		}
		agg.TotalFeesUSD = agg.TotalFeesUSD.Add(s.TotalFeesUSD)
		agg.TotalPnLUSD = agg.TotalPnLUSD.Add(s.NetPnLUSD)
		agg.TotalRebalances += s.RebalanceCount
		agg.TotalTxCosts = agg.TotalTxCosts.Add(s.TotalTxCosts)
		pnlPctSum = pnlPctSum.Add(s.NetPnLPct)
	}
	if agg.TotalPositions > 0 {
		agg.AvgPnLPct = pnlPctSum.DivRound(decimal.NewFromInt(int64(agg.TotalPositions)), 28)
	}
	return agg
}

// Replay discards all in-memory state and rebuilds the event logs and
// summaries from a serialized event list. Replaying a position's full log
// must reproduce the same summary the live tracker derived incrementally.
func (t *Tracker) Replay(events []types.LifecycleEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.events = make(map[string][]types.LifecycleEvent)
	t.summary = make(map[string]*types.PositionSummary)

	for _, ev := range events {
		t.events[ev.PositionID] = append(t.events[ev.PositionID], ev)
		t.applyLocked(ev)
	}
}

// applyLocked updates the derived summary for ev.PositionID from a single
// event. Must be called with t.mu held. This is the sole place deriving
// statistics from events, so Replay and Record can never diverge.
func (t *Tracker) applyLocked(ev types.LifecycleEvent) {
	s, ok := t.summary[ev.PositionID]
	if !ok {
		s = &types.PositionSummary{
			PositionID:   ev.PositionID,
			PoolID:       ev.PoolID,
			TotalFeesUSD: decimal.Zero,
			TotalTxCosts: decimal.Zero,
			NetPnLUSD:    decimal.Zero,
			NetPnLPct:    decimal.Zero,
			IsOpen:       true,
		}
		t.summary[ev.PositionID] = s
	}

	switch ev.Kind {
	case types.EventPositionOpened:
		data, _ := ev.Payload.(types.PositionOpenedData)
		s.OpenedAt = ev.Timestamp
		s.EntryValueUSD = data.EntryValueUSD
		s.CurrentValueUSD = data.EntryValueUSD
		s.IsOpen = true

	case types.EventLiquidityIncreased, types.EventLiquidityDecreased:
		// Liquidity changes don't by themselves move USD PnL; they're
		// recorded for the audit trail and position-size history.

	case types.EventRebalanced:
		data, _ := ev.Payload.(types.RebalanceData)
		s.RebalanceCount++
		s.TotalTxCosts = s.TotalTxCosts.Add(data.TxCost)
		s.TotalILPct = data.ILAtRebalance

	case types.EventFeesCollected:
		data, _ := ev.Payload.(types.FeesCollectedData)
		s.TotalFeesUSD = s.TotalFeesUSD.Add(data.FeesUSD)

	case types.EventPositionClosed:
		data, _ := ev.Payload.(types.PositionClosedData)
		closedAt := ev.Timestamp
		s.ClosedAt = &closedAt
		s.TotalILPct = data.TotalILPct
		s.NetPnLUSD = data.FinalPnLUSD
		s.NetPnLPct = data.FinalPnLPct
		s.IsOpen = false
	}
}

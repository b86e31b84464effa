package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LifecycleEventKind is the closed set of recordable position events.
type LifecycleEventKind string

const (
	EventPositionOpened     LifecycleEventKind = "position_opened"
	EventLiquidityIncreased LifecycleEventKind = "liquidity_increased"
	EventLiquidityDecreased LifecycleEventKind = "liquidity_decreased"
	EventRebalanced         LifecycleEventKind = "rebalanced"
	EventFeesCollected      LifecycleEventKind = "fees_collected"
	EventPositionClosed     LifecycleEventKind = "position_closed"
)

// RebalanceReason is the closed set of reasons a strategy or decision
// engine cites for a Rebalance or Close action.
type RebalanceReason string

const (
	ReasonPeriodic       RebalanceReason = "periodic"
	ReasonPriceThreshold RebalanceReason = "price_threshold"
	ReasonOutOfRange     RebalanceReason = "out_of_range"
	ReasonILThreshold    RebalanceReason = "il_threshold"
	ReasonManual         RebalanceReason = "manual"
)

// LifecycleEvent is a single append-only record in a position's history.
// Payload is one of the *Data structs below depending on Kind; UnmarshalJSON
// dispatches on the Kind tag so a serialized event decodes back to the same
// concrete payload type, keeping replay from persisted logs identical to the
// live derivation.
type LifecycleEvent struct {
	ID         string
	Kind       LifecycleEventKind
	PositionID string
	PoolID     string
	ChainRef   *string
	Timestamp  time.Time
	Payload    any
}

// UnmarshalJSON decodes Payload into the concrete *Data struct matching
// Kind. Without this, Payload would decode to a map and the tracker's
// summary derivation would see every type assertion fail.
func (e *LifecycleEvent) UnmarshalJSON(data []byte) error {
	type alias LifecycleEvent
	aux := struct {
		*alias
		Payload json.RawMessage
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.Payload) == 0 || string(aux.Payload) == "null" {
		e.Payload = nil
		return nil
	}

	switch e.Kind {
	case EventPositionOpened:
		var p PositionOpenedData
		if err := json.Unmarshal(aux.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
		e.Payload = p
	case EventLiquidityIncreased, EventLiquidityDecreased:
		var p LiquidityChangeData
		if err := json.Unmarshal(aux.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
		e.Payload = p
	case EventRebalanced:
		var p RebalanceData
		if err := json.Unmarshal(aux.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
		e.Payload = p
	case EventFeesCollected:
		var p FeesCollectedData
		if err := json.Unmarshal(aux.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
		e.Payload = p
	case EventPositionClosed:
		var p PositionClosedData
		if err := json.Unmarshal(aux.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
		e.Payload = p
	default:
		return fmt.Errorf("unknown lifecycle event kind %q", e.Kind)
	}
	return nil
}

// PositionOpenedData is the payload for EventPositionOpened.
type PositionOpenedData struct {
	TickLower     int32
	TickUpper     int32
	Liquidity     string // decimal string view of the 128-bit liquidity
	Amount0       decimal.Decimal
	Amount1       decimal.Decimal
	EntryPrice    decimal.Decimal
	EntryValueUSD decimal.Decimal
}

// LiquidityChangeData is the payload for EventLiquidityIncreased/Decreased.
type LiquidityChangeData struct {
	IsIncrease     bool
	LiquidityDelta string
	Amount0        decimal.Decimal
	Amount1        decimal.Decimal
	NewTotal       string
}

// RebalanceData is the payload for EventRebalanced.
type RebalanceData struct {
	OldTickLower  int32
	OldTickUpper  int32
	NewTickLower  int32
	NewTickUpper  int32
	OldLiquidity  string
	NewLiquidity  string
	TxCost        decimal.Decimal
	ILAtRebalance decimal.Decimal
	Reason        RebalanceReason
}

// FeesCollectedData is the payload for EventFeesCollected.
type FeesCollectedData struct {
	Fees0   decimal.Decimal
	Fees1   decimal.Decimal
	FeesUSD decimal.Decimal
}

// PositionClosedData is the payload for EventPositionClosed.
type PositionClosedData struct {
	LiquidityRemoved string
	Amount0Received  decimal.Decimal
	Amount1Received  decimal.Decimal
	LifetimeFees0    decimal.Decimal
	LifetimeFees1    decimal.Decimal
	FinalPnLUSD      decimal.Decimal
	FinalPnLPct      decimal.Decimal
	TotalILPct       decimal.Decimal
	DurationHours    float64
	Reason           RebalanceReason
}

// PositionSummary is the derived, read-only aggregate over a position's
// event list. Reapplying the event list from scratch must reproduce this
// structure bit-identically.
type PositionSummary struct {
	PositionID      string
	PoolID          string
	OpenedAt        time.Time
	ClosedAt        *time.Time
	EntryValueUSD   decimal.Decimal
	CurrentValueUSD decimal.Decimal
	TotalFeesUSD    decimal.Decimal
	RebalanceCount  uint32
	TotalTxCosts    decimal.Decimal
	TotalILPct      decimal.Decimal
	NetPnLUSD       decimal.Decimal
	NetPnLPct       decimal.Decimal
	IsOpen          bool
}

// AggregateStats are portfolio-wide statistics over all tracked positions.
type AggregateStats struct {
	TotalPositions  uint32
	OpenPositions   uint32
	ClosedPositions uint32
	TotalFeesUSD    decimal.Decimal
	TotalPnLUSD     decimal.Decimal
	AvgPnLPct       decimal.Decimal
	TotalRebalances uint32
	TotalTxCosts    decimal.Decimal
}

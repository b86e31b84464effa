// Package emergency implements the last-resort teardown path: closing one
// or all tracked positions regardless of profitability, bypassing the
// RebalanceExecutor's profitability gate. A single atomic in-progress flag
// guards against overlapping sweeps, and each step's outcome is reported
// individually rather than aborting the whole sweep on one failure.
package emergency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"clmmstrat/internal/collab"
	"clmmstrat/internal/lifecycle"
	"clmmstrat/pkg/types"
)

// StepResult reports the outcome of tearing down a single position.
type StepResult struct {
	PositionID string
	OK         bool
	Err        error
}

// Report is the outcome of an ExitAll or ExitPosition call.
type Report struct {
	Steps []StepResult
}

// Succeeded reports whether every step in the report succeeded.
func (r Report) Succeeded() bool {
	for _, s := range r.Steps {
		if !s.OK {
			return false
		}
	}
	return true
}

// Exit drives emergency teardown of one or all positions through the
// CLMMProgram collaborator. Only one exit can run at a time; a call while
// one is in progress returns the last completed result set rather than
// interleaving a second sweep.
type Exit struct {
	program collab.CLMMProgram
	tracker *lifecycle.Tracker
	logger  *slog.Logger

	inProgress atomic.Bool
	mu         sync.Mutex

	lastMu     sync.Mutex
	lastStep   StepResult
	lastReport Report
}

// New creates an Exit against a CLMMProgram collaborator and the shared
// lifecycle tracker.
func New(program collab.CLMMProgram, tracker *lifecycle.Tracker, logger *slog.Logger) *Exit {
	return &Exit{
		program: program,
		tracker: tracker,
		logger:  logger.With("component", "emergency_exit"),
	}
}

// InProgress reports whether an exit is currently running.
func (e *Exit) InProgress() bool { return e.inProgress.Load() }

// ExitPosition tears down a single position: collect fees, decrease all
// liquidity, then close. A fee-collection failure is logged and the
// teardown continues; a failure to decrease liquidity or to close ends the
// teardown of that position and is reported in the returned StepResult.
func (e *Exit) ExitPosition(ctx context.Context, position types.Position) StepResult {
	if !e.inProgress.CompareAndSwap(false, true) {
		e.logger.Warn("exit already in progress, returning last result", "position", position.ID)
		e.lastMu.Lock()
		defer e.lastMu.Unlock()
		return e.lastStep
	}
	defer e.inProgress.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.exitOne(ctx, position)

	e.lastMu.Lock()
	e.lastStep = res
	e.lastMu.Unlock()
	return res
}

// ExitAll tears down every supplied position, one at a time, continuing
// past individual failures and returning a per-position report.
func (e *Exit) ExitAll(ctx context.Context, positions []types.Position) Report {
	if !e.inProgress.CompareAndSwap(false, true) {
		e.logger.Warn("exit already in progress, returning last result set")
		e.lastMu.Lock()
		defer e.lastMu.Unlock()
		return e.lastReport
	}
	defer e.inProgress.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()

	report := Report{Steps: make([]StepResult, 0, len(positions))}
	for _, pos := range positions {
		report.Steps = append(report.Steps, e.exitOne(ctx, pos))
	}

	e.lastMu.Lock()
	e.lastReport = report
	e.lastMu.Unlock()
	return report
}

func (e *Exit) exitOne(ctx context.Context, position types.Position) StepResult {
	if _, err := e.program.CollectFees(ctx, collab.CollectFeesParams{PositionID: position.ID}); err != nil {
		e.logger.Warn("emergency fee collection failed, continuing to decrease liquidity", "position", position.ID, "error", err)
	}

	if _, err := e.program.DecreaseLiquidity(ctx, collab.DecreaseLiquidityParams{PositionID: position.ID}); err != nil {
		e.logger.Error("emergency decrease liquidity failed", "position", position.ID, "error", err)
		return StepResult{PositionID: position.ID, OK: false, Err: fmt.Errorf("decrease liquidity: %w", err)}
	}

	if _, err := e.program.ClosePosition(ctx, collab.ClosePositionParams{PositionID: position.ID}); err != nil {
		e.logger.Error("emergency close failed", "position", position.ID, "error", err)
		return StepResult{PositionID: position.ID, OK: false, Err: fmt.Errorf("close position: %w", err)}
	}

	e.tracker.Record(types.LifecycleEvent{
		Kind:       types.EventPositionClosed,
		PositionID: position.ID,
		PoolID:     position.Pool,
		Payload:    types.PositionClosedData{Reason: types.ReasonManual},
	})

	return StepResult{PositionID: position.ID, OK: true}
}

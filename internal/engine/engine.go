// Package engine is the central orchestrator of the live CLMM
// rebalancing bot.
//
// It wires together all subsystems:
//
//  1. chainclient.Client/Program/WalletSigner talk to the chain over
//     JSON-RPC and sign/submit instructions.
//  2. reconcile.Reconciler/AccountListener keep on-chain position state in
//     sync, pushed over a WS account feed and pulled on a refresh tick.
//  3. monitor.Monitor derives per-position and portfolio PnL from the
//     reconciled state.
//  4. executor.DecisionEngine evaluates monitored positions against the
//     configured strategy and, when due, executor.RebalanceExecutor or
//     emergency.Exit carry the decision out through the CLMM program.
//  5. circuitbreaker.Breaker gates every action; lifecycle.Tracker records
//     position openings, collected fees, completed rebalances and closes;
//     store.Store persists the event log.
//  6. scheduler.Scheduler drives the periodic refresh/evaluate cadence.
//
// Lifecycle: New() → Start() → [runs until cancelled] → Stop(), using a
// goroutine-per-loop/shared-wg/ctx/cancel shape throughout.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/chainclient"
	"clmmstrat/internal/circuitbreaker"
	"clmmstrat/internal/clmath"
	"clmmstrat/internal/collab"
	"clmmstrat/internal/config"
	"clmmstrat/internal/emergency"
	"clmmstrat/internal/executor"
	"clmmstrat/internal/lifecycle"
	"clmmstrat/internal/monitor"
	"clmmstrat/internal/reconcile"
	"clmmstrat/internal/scheduler"
	"clmmstrat/internal/store"
	"clmmstrat/pkg/types"
)

const (
	taskMonitorRefresh = "monitor_refresh"
	taskStrategyEval   = "strategy_eval"
	taskReconcileSweep = "reconcile_sweep"
)

// Engine orchestrates all components of the live rebalancing system.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger

	chainClient *chainclient.Client
	program     *chainclient.Program
	signer      *chainclient.WalletSigner
	reconciler  *reconcile.Reconciler
	listener    *reconcile.AccountListener
	monitor     *monitor.Monitor
	decision    *executor.DecisionEngine
	rebalancer  *executor.RebalanceExecutor
	exit        *emergency.Exit
	breaker     *circuitbreaker.Breaker
	tracker     *lifecycle.Tracker
	sched       *scheduler.Scheduler
	store       *store.Store

	positionsMu sync.RWMutex
	positions   map[string]types.Position

	lastRebalanceMu sync.Mutex
	lastRebalanceAt map[string]time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and wires all engine components from cfg. It restores any
// previously persisted lifecycle events so the tracker's derived summaries
// survive a restart.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	signer, err := chainclient.NewWalletSigner(cfg.Wallet.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("create wallet signer: %w", err)
	}

	chainClient := chainclient.NewClient(cfg.Chain.RPCURL, cfg.DryRun, logger)
	program := chainclient.NewProgram(chainClient, signer, cfg.Chain.ProgramID, logger)
	decoder := chainclient.NewPositionDecoder()

	tracker := lifecycle.New()
	reconciler := reconcile.New(chainClient, decoder, reconcile.DefaultConfig(), logger)
	listener := reconcile.NewAccountListener(cfg.Chain.WSURL, reconciler, decoder, logger)
	mon := monitor.New(reconciler, tracker)

	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	allEvents, err := st.LoadAllEvents()
	if err != nil {
		return nil, fmt.Errorf("load persisted events: %w", err)
	}
	// Replay discards the tracker's state on every call, so every position's
	// log is replayed in one call.
	var persisted []types.LifecycleEvent
	for _, events := range allEvents {
		persisted = append(persisted, events...)
	}
	tracker.Replay(persisted)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		MaxFailures:      cfg.Breaker.MaxFailures,
		MaxLossPct:       decimal.NewFromFloat(cfg.Breaker.MaxLossPct),
		MaxPriorityFee:   decimal.NewFromFloat(cfg.Breaker.MaxPriorityFee),
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
	}, logger)

	decision := executor.NewDecisionEngine(executor.DecisionConfig{
		RebalanceOnOutOfRange:     cfg.Strategy.RebalanceOnOutOfRange,
		ILThresholdPct:            decimal.NewFromFloat(cfg.Executor.ILThresholdPct),
		MinHoursBetweenRebalances: cfg.Executor.MinHoursBetweenRebalances,
		TargetHalfWidthPct:        decimal.NewFromFloat(cfg.Strategy.RangeWidthPct / 2),
	})

	rebalancer := executor.NewRebalanceExecutor(program, tracker, executor.RebalanceConfig{
		MinProfitMultiplier: decimal.NewFromFloat(cfg.Rebalance.MinProfitMultiplier),
		CollectFeesFirst:    cfg.Rebalance.CollectFeesFirst,
		DryRun:              cfg.DryRun,
		EstimatedTxCostUSD:  decimal.NewFromFloat(cfg.Rebalance.EstimatedTxCostUSD),
	}, feeAccrualBenefit, logger)

	exit := emergency.New(program, tracker, logger)
	sched := scheduler.New(logger, 32)

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:             cfg,
		logger:          logger.With("component", "engine"),
		chainClient:     chainClient,
		program:         program,
		signer:          signer,
		reconciler:      reconciler,
		listener:        listener,
		monitor:         mon,
		decision:        decision,
		rebalancer:      rebalancer,
		exit:            exit,
		breaker:         breaker,
		tracker:         tracker,
		sched:           sched,
		store:           st,
		positions:       make(map[string]types.Position),
		lastRebalanceAt: make(map[string]time.Time),
		ctx:             ctx,
		cancel:          cancel,
	}, nil
}

// feeAccrualBenefit is the default ExpectedBenefitFn: a conservative
// estimate that the position earns its pool's fee rate once on its
// deposited value (deposited amounts times fee rate). It intentionally
// ignores price-path effects; callers wanting a sharper estimate inject a
// Monte-Carlo-backed function instead.
func feeAccrualBenefit(p executor.RebalanceParams) decimal.Decimal {
	deposited := p.Position.DepositedAmount0.ToDecimal().Add(p.Position.DepositedAmount1.ToDecimal())
	return deposited.Mul(p.Pool.FeeRate)
}

// TrackPosition begins monitoring and reconciling a position. The first
// time a given position ID is tracked, its opening is recorded to the
// lifecycle tracker so Monitor can later derive impermanent loss against
// a real entry price instead of a placeholder.
func (e *Engine) TrackPosition(pos types.Position) {
	e.positionsMu.Lock()
	e.positions[pos.ID] = pos
	e.positionsMu.Unlock()

	if _, ok := e.tracker.Summary(pos.ID); !ok {
		e.recordPositionOpened(pos)
	}

	e.monitor.Track(pos.ID, pos)
	e.reconciler.Track(pos.ID)
	e.listener.Subscribe([]string{pos.ID})
}

// recordPositionOpened derives the position's entry price from the pool's
// current on-chain price, falling back to the range midpoint if the chain
// fetch fails, and logs the position's opening to the lifecycle tracker.
func (e *Engine) recordPositionOpened(pos types.Position) {
	entryPrice := pos.Range.Midpoint()
	if pool, err := e.reconciler.PoolState(e.ctx, pos.Pool); err == nil {
		entryPrice = pool.CurrentPrice.Value
	} else {
		e.logger.Warn("failed to fetch pool price for position open, using range midpoint", "position", pos.ID, "error", err)
	}

	lowerTick, _ := clmath.PriceToTick(pos.Range.Lower.Value)
	upperTick, _ := clmath.PriceToTick(pos.Range.Upper.Value)
	amount0 := pos.DepositedAmount0.ToDecimal()
	amount1 := pos.DepositedAmount1.ToDecimal()

	// Seed positions from config carry no liquidity until the first refresh.
	liquidity := "0"
	if pos.Liquidity != nil {
		liquidity = pos.Liquidity.Dec()
	}

	e.tracker.Record(types.LifecycleEvent{
		Kind:       types.EventPositionOpened,
		PositionID: pos.ID,
		PoolID:     pos.Pool,
		Timestamp:  time.Now(),
		Payload: types.PositionOpenedData{
			TickLower:     lowerTick,
			TickUpper:     upperTick,
			Liquidity:     liquidity,
			Amount0:       amount0,
			Amount1:       amount1,
			EntryPrice:    entryPrice,
			EntryValueUSD: amount0.Mul(entryPrice).Add(amount1),
		},
	})
}

// UntrackPosition stops monitoring and reconciling a position.
func (e *Engine) UntrackPosition(positionID string) {
	e.positionsMu.Lock()
	delete(e.positions, positionID)
	e.positionsMu.Unlock()

	e.monitor.Untrack(positionID)
	e.reconciler.Untrack(positionID)
}

// Start launches all background goroutines: the account listener, the
// scheduler's dispatch loop, and the refresh/evaluate task handlers.
func (e *Engine) Start() error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.listener.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("account listener error", "error", err)
		}
	}()

	e.sched.Add(scheduler.ScheduledTask{
		Name:     taskMonitorRefresh,
		Schedule: scheduler.Schedule{Kind: scheduler.ScheduleInterval, Interval: e.cfg.Monitor.RefreshInterval},
	})
	e.sched.Add(scheduler.ScheduledTask{
		Name:     taskStrategyEval,
		Schedule: scheduler.Schedule{Kind: scheduler.ScheduleInterval, Interval: e.cfg.Strategy.EvalInterval},
	})
	e.sched.Add(scheduler.ScheduledTask{
		Name:     taskReconcileSweep,
		Schedule: scheduler.Schedule{Kind: scheduler.ScheduleInterval, Interval: e.cfg.Monitor.ReconcileInterval},
	})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchScheduledTasks()
	}()

	return nil
}

// Stop gracefully shuts down: stops the scheduler, cancels all contexts,
// persists every tracked position's lifecycle events, waits for
// goroutines, and closes resources.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")

	e.sched.Stop()
	e.cancel()

	e.positionsMu.RLock()
	for id := range e.positions {
		if err := e.store.SaveEvents(id, e.tracker.Events(id)); err != nil {
			e.logger.Error("failed to persist lifecycle events", "position", id, "error", err)
		}
	}
	e.positionsMu.RUnlock()

	e.wg.Wait()

	if err := e.listener.Close(); err != nil {
		e.logger.Warn("account listener close error", "error", err)
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn("store close error", "error", err)
	}

	e.logger.Info("shutdown complete")
}

// dispatchScheduledTasks is the main engine loop: it reacts to scheduler
// fires by refreshing monitored state or evaluating the strategy.
func (e *Engine) dispatchScheduledTasks() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case event := <-e.sched.Events():
			switch event.TaskName {
			case taskMonitorRefresh:
				e.refresh()
			case taskStrategyEval:
				e.evaluate()
			case taskReconcileSweep:
				e.reconcileSweep()
			}
		}
	}
}

func (e *Engine) refresh() {
	if err := e.monitor.Refresh(e.ctx); err != nil {
		e.logger.Error("monitor refresh failed", "error", err)
	}
}

// reconcileSweep runs the reconciler's periodic staleness sweep, logging a
// summary of the result; accounts it marks Failed surface through
// Reconciler.State on the next evaluate/refresh pass.
func (e *Engine) reconcileSweep() {
	result := e.reconciler.Reconcile(e.ctx)
	if result.Failed > 0 {
		e.logger.Warn("reconcile sweep completed with failures", "in_sync", result.InSync, "reconciled", result.Reconciled, "failed", result.Failed, "slot", result.CurrentSlot)
		return
	}
	e.logger.Debug("reconcile sweep completed", "in_sync", result.InSync, "reconciled", result.Reconciled, "slot", result.CurrentSlot)
}

// evaluate runs the decision engine over every tracked position and acts
// on any non-Hold decision, gated by the circuit breaker.
func (e *Engine) evaluate() {
	if !e.breaker.IsAllowed() {
		e.logger.Warn("circuit breaker open, skipping evaluation")
		return
	}

	e.positionsMu.RLock()
	ids := make([]string, 0, len(e.positions))
	for id := range e.positions {
		ids = append(ids, id)
	}
	e.positionsMu.RUnlock()

	for _, id := range ids {
		e.evaluatePosition(id)
	}
}

func (e *Engine) evaluatePosition(positionID string) {
	mp, ok := e.monitor.Get(positionID)
	if !ok {
		return
	}

	account, err := e.chainClient.GetAccount(e.ctx, mp.Pool)
	if err != nil {
		e.logger.Error("fetch pool state failed", "pool", mp.Pool, "error", err)
		return
	}
	pool, err := chainclient.NewPositionDecoder().DecodePool(account.Data)
	if err != nil {
		e.logger.Error("decode pool state failed", "pool", mp.Pool, "error", err)
		return
	}

	hours := e.hoursSinceLastRebalance(positionID)
	d := e.decision.Decide(mp, pool, hours)
	if d.Kind == executor.DecisionHold {
		return
	}
	if !e.cfg.Executor.AutoExecute {
		e.logger.Info("decision requires manual confirmation", "position", positionID, "decision", d.Kind)
		return
	}

	e.act(positionID, mp, pool, d)
}

func (e *Engine) hoursSinceLastRebalance(positionID string) uint64 {
	e.lastRebalanceMu.Lock()
	defer e.lastRebalanceMu.Unlock()
	last, ok := e.lastRebalanceAt[positionID]
	if !ok {
		return ^uint64(0)
	}
	return uint64(time.Since(last).Hours())
}

func (e *Engine) act(positionID string, mp monitor.MonitoredPosition, pool types.PoolState, d executor.Decision) {
	switch d.Kind {
	case executor.DecisionRebalance:
		lowerVal, err := clmath.TickToPrice(d.NewTickLower)
		if err != nil {
			e.logger.Error("invalid rebalance tick", "position", positionID, "error", err)
			return
		}
		upperVal, err := clmath.TickToPrice(d.NewTickUpper)
		if err != nil {
			e.logger.Error("invalid rebalance tick", "position", positionID, "error", err)
			return
		}
		newRange, err := types.NewPriceRange(types.NewPrice(lowerVal), types.NewPrice(upperVal))
		if err != nil {
			e.logger.Error("invalid rebalance range", "position", positionID, "error", err)
			return
		}

		currentLiquidity := decimal.Zero
		if mp.Snapshot.Liquidity != nil {
			currentLiquidity = decimal.NewFromBigInt(mp.Snapshot.Liquidity.ToBig(), 0)
		}
		outcome := e.rebalancer.Execute(e.ctx, executor.RebalanceParams{
			Position:         mp.Snapshot,
			Pool:             pool,
			OldRange:         mp.Snapshot.Range,
			NewRange:         newRange,
			CurrentLiquidity: currentLiquidity,
			Reason:           types.ReasonILThreshold,
			CurrentIL:        mp.ILPct,
		})
		e.recordOutcome(positionID, outcome.Err)

	case executor.DecisionCollectFees:
		_, err := e.program.CollectFees(e.ctx, collab.CollectFeesParams{PositionID: positionID})
		e.recordOutcome(positionID, err)

	case executor.DecisionIncreaseLiquidity:
		_, err := e.program.IncreaseLiquidity(e.ctx, collab.IncreaseLiquidityParams{PositionID: positionID})
		e.recordOutcome(positionID, err)

	case executor.DecisionDecreaseLiquidity:
		_, err := e.program.DecreaseLiquidity(e.ctx, collab.DecreaseLiquidityParams{PositionID: positionID})
		e.recordOutcome(positionID, err)

	case executor.DecisionClose:
		result := e.exit.ExitPosition(e.ctx, mp.Snapshot)
		e.recordOutcome(positionID, result.Err)
	}
}

func (e *Engine) recordOutcome(positionID string, err error) {
	if err != nil {
		e.breaker.RecordFailure()
		e.logger.Error("action failed", "position", positionID, "error", err)
		return
	}
	e.breaker.RecordSuccess()
	e.lastRebalanceMu.Lock()
	e.lastRebalanceAt[positionID] = time.Now()
	e.lastRebalanceMu.Unlock()
}

// EmergencyExitAll force-closes every tracked position, bypassing the
// normal evaluation cadence. Intended for operator-triggered shutdowns.
func (e *Engine) EmergencyExitAll(ctx context.Context) emergency.Report {
	e.positionsMu.RLock()
	positions := make([]types.Position, 0, len(e.positions))
	for _, pos := range e.positions {
		positions = append(positions, pos)
	}
	e.positionsMu.RUnlock()

	return e.exit.ExitAll(ctx, positions)
}

// Portfolio returns current portfolio-wide PnL metrics.
func (e *Engine) Portfolio() monitor.PortfolioMetrics {
	return e.monitor.Portfolio()
}

// Positions returns a snapshot of all currently monitored positions.
func (e *Engine) Positions() map[string]monitor.MonitoredPosition {
	return e.monitor.GetPositions()
}

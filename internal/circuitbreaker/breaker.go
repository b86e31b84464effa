// Package circuitbreaker implements the global kill-switch the live
// executor consults before any action that requires a transaction. It is
// a process-wide singleton; callers share a single *Breaker by reference
// rather than cloning it into background tasks.
//
// Lock shape and cooldown/reset bookkeeping: a single mutex guarding
// small, short critical sections, never held across I/O.
package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// State is the breaker's current posture.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config tunes trip and recovery behavior.
type Config struct {
	MaxFailures      int
	MaxLossPct       decimal.Decimal
	MaxPriorityFee   decimal.Decimal
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// Breaker is the live kill-switch: Closed allows actions, Open blocks them
// until RecoveryTimeout elapses, HalfOpen probes for SuccessThreshold
// consecutive successes before returning to Closed. A manual trip is a
// sticky flag independent of State.
type Breaker struct {
	cfg    Config
	logger *slog.Logger

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
	manualTrip   bool
}

// New creates a breaker in the Closed state.
func New(cfg Config, logger *slog.Logger) *Breaker {
	return &Breaker{
		cfg:    cfg,
		logger: logger.With("component", "circuit_breaker"),
		state:  Closed,
	}
}

// IsAllowed is a point-in-time check; callers must treat a true result as
// non-binding until they actually perform the operation. It also performs
// the Open→HalfOpen transition when the recovery timeout has elapsed.
func (b *Breaker) IsAllowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.manualTrip {
		return false
	}

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.cfg.RecoveryTimeout {
			b.state = HalfOpen
			b.successCount = 0
			b.logger.Info("circuit breaker entering half-open")
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess is a successful-action report. In HalfOpen it accumulates
// toward SuccessThreshold before closing; in Closed it is a no-op.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != HalfOpen {
		return
	}
	b.successCount++
	if b.successCount >= b.cfg.SuccessThreshold {
		b.state = Closed
		b.failureCount = 0
		b.successCount = 0
		b.logger.Info("circuit breaker closed after recovery")
	}
}

// RecordFailure is a failed-action report. In Closed it accumulates toward
// MaxFailures before tripping; in HalfOpen any failure immediately reopens.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tripLocked("consecutive failures")
}

func (b *Breaker) tripLocked(reason string) {
	switch b.state {
	case HalfOpen:
		b.openLocked(reason)
	case Closed:
		b.failureCount++
		if b.failureCount >= b.cfg.MaxFailures {
			b.openLocked(reason)
		}
	}
}

func (b *Breaker) openLocked(reason string) {
	b.state = Open
	b.openedAt = time.Now()
	b.failureCount = 0
	b.successCount = 0
	b.logger.Error("circuit breaker open", "reason", reason)
}

// CheckLoss trips the breaker open when the observed loss percentage
// exceeds MaxLossPct, returning false in that case.
func (b *Breaker) CheckLoss(lossPct decimal.Decimal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if lossPct.Abs().GreaterThan(b.cfg.MaxLossPct) {
		b.openLocked("max loss pct exceeded")
		return false
	}
	return true
}

// CheckPriorityFee trips the breaker open when the observed priority fee
// exceeds MaxPriorityFee, returning false in that case.
func (b *Breaker) CheckPriorityFee(fee decimal.Decimal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if fee.GreaterThan(b.cfg.MaxPriorityFee) {
		b.openLocked("max priority fee exceeded")
		return false
	}
	return true
}

// ManualTrip sets the sticky manual-trip flag; IsAllowed returns false
// while it is set regardless of State.
func (b *Breaker) ManualTrip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.manualTrip = true
	b.logger.Warn("circuit breaker manually tripped")
}

// ResetManualTrip clears only the manual-trip flag, leaving State alone.
func (b *Breaker) ResetManualTrip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.manualTrip = false
}

// Reset clears all counters, State, and the manual-trip flag.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failureCount = 0
	b.successCount = 0
	b.manualTrip = false
	b.openedAt = time.Time{}
}

// Snapshot reports the breaker's current state and counters, for
// diagnostics and the live status surface.
type Snapshot struct {
	State        State
	FailureCount int
	SuccessCount int
	ManualTrip   bool
	OpenedAt     time.Time
}

// Snapshot returns a read-only snapshot of the breaker's current posture.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:        b.state,
		FailureCount: b.failureCount,
		SuccessCount: b.successCount,
		ManualTrip:   b.manualTrip,
		OpenedAt:     b.openedAt,
	}
}

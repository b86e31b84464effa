package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/collab"
	"clmmstrat/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRPC struct {
	accounts map[string]collab.Account
	failIDs  map[string]bool
}

func (f *fakeRPC) LatestBlockhash(ctx context.Context) (string, error) { return "hash", nil }
func (f *fakeRPC) GetAccount(ctx context.Context, pubkey string) (collab.Account, error) {
	if f.failIDs[pubkey] {
		return collab.Account{}, errors.New("rpc unavailable")
	}
	a, ok := f.accounts[pubkey]
	if !ok {
		return collab.Account{}, errors.New("not found")
	}
	return a, nil
}
func (f *fakeRPC) GetSlot(ctx context.Context) (uint64, error) { return 1, nil }
func (f *fakeRPC) SimulateTransaction(ctx context.Context, tx []byte) (collab.SimResult, error) {
	return collab.SimResult{}, nil
}
func (f *fakeRPC) SendAndConfirmTransaction(ctx context.Context, tx []byte) (string, error) {
	return "sig", nil
}

type fakeDecoder struct {
	positions map[string]types.Position
}

func (d *fakeDecoder) DecodePosition(data []byte) (types.Position, error) {
	id := string(data)
	p, ok := d.positions[id]
	if !ok {
		return types.Position{}, errors.New("decode failed")
	}
	return p, nil
}

func (d *fakeDecoder) DecodePool(data []byte) (types.PoolState, error) {
	return types.PoolState{}, errors.New("not used in these tests")
}

func TestRefreshPositionsSucceedsIndependently(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{
		accounts: map[string]collab.Account{
			"pos-1": {Pubkey: "pos-1", Data: []byte("pos-1")},
			"pos-2": {Pubkey: "pos-2", Data: []byte("pos-2")},
		},
		failIDs: map[string]bool{"pos-3": true},
	}
	decoder := &fakeDecoder{positions: map[string]types.Position{
		"pos-1": {ID: "pos-1", Status: types.PositionOpen},
		"pos-2": {ID: "pos-2", Status: types.PositionOpen},
	}}

	r := New(rpc, decoder, DefaultConfig(), testLogger())
	result, err := r.RefreshPositions(context.Background(), []string{"pos-1", "pos-2", "pos-3"})
	if err != nil {
		t.Fatalf("expected partial success, got error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("len(result) = %d, want 2", len(result))
	}

	// A single failed refresh is below DefaultConfig's MaxFailures (3), so
	// pos-3 is left NeedsUpdate for a later retry rather than marked Failed.
	state, ok := r.State("pos-3")
	if !ok || state != StateNeedsUpdate {
		t.Errorf("pos-3 state = %v, want NeedsUpdate", state)
	}
	state, ok = r.State("pos-1")
	if !ok || state != StateInSync {
		t.Errorf("pos-1 state = %v, want InSync", state)
	}
}

func TestRefreshPositionsAllFailReturnsError(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{failIDs: map[string]bool{"pos-1": true}}
	decoder := &fakeDecoder{positions: map[string]types.Position{}}

	r := New(rpc, decoder, DefaultConfig(), testLogger())
	_, err := r.RefreshPositions(context.Background(), []string{"pos-1"})
	if err == nil {
		t.Fatal("expected error when all refreshes fail")
	}
}

func TestApplyBypassesRPC(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{}
	decoder := &fakeDecoder{}
	r := New(rpc, decoder, DefaultConfig(), testLogger())

	r.Apply("pos-1", types.Position{ID: "pos-1", Status: types.PositionOpen})

	state, ok := r.State("pos-1")
	if !ok || state != StateInSync {
		t.Errorf("state = %v, want InSync", state)
	}
}

func TestTrackAndUntrack(t *testing.T) {
	t.Parallel()

	r := New(&fakeRPC{}, &fakeDecoder{}, DefaultConfig(), testLogger())
	r.Track("pos-1")
	if state, ok := r.State("pos-1"); !ok || state != StateNeedsUpdate {
		t.Errorf("state after Track = %v, want NeedsUpdate", state)
	}
	r.Untrack("pos-1")
	if _, ok := r.State("pos-1"); ok {
		t.Error("expected pos-1 to be untracked")
	}
}

func TestReconcileSweepFetchesNeedsUpdateAccounts(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{accounts: map[string]collab.Account{
		"pos-1": {Pubkey: "pos-1", Data: []byte("pos-1")},
	}}
	decoder := &fakeDecoder{positions: map[string]types.Position{
		"pos-1": {ID: "pos-1", Status: types.PositionOpen},
	}}

	r := New(rpc, decoder, DefaultConfig(), testLogger())
	r.Track("pos-1")

	result := r.Reconcile(context.Background())
	if result.Reconciled != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v, want Reconciled=1 Failed=0", result)
	}
	if result.CurrentSlot != 1 {
		t.Errorf("CurrentSlot = %d, want 1", result.CurrentSlot)
	}
	if state, _ := r.State("pos-1"); state != StateInSync {
		t.Errorf("state = %v, want InSync", state)
	}

	// A second sweep immediately after finds the account already in sync
	// and fresh, so it isn't re-fetched.
	result2 := r.Reconcile(context.Background())
	if result2.InSync != 1 || result2.Reconciled != 0 {
		t.Fatalf("result2 = %+v, want InSync=1 Reconciled=0", result2)
	}
}

func TestReconcileSweepCountsFailuresBeforeMarkingFailed(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{failIDs: map[string]bool{"pos-1": true}}
	decoder := &fakeDecoder{positions: map[string]types.Position{}}

	r := New(rpc, decoder, Config{MaxAge: time.Minute, MaxFailures: 2}, testLogger())
	r.Track("pos-1")

	result := r.Reconcile(context.Background())
	if result.Failed != 1 {
		t.Fatalf("result = %+v, want Failed=1", result)
	}
	if state, _ := r.State("pos-1"); state != StateNeedsUpdate {
		t.Errorf("state after 1st failure = %v, want NeedsUpdate (below MaxFailures)", state)
	}

	result = r.Reconcile(context.Background())
	if result.Failed != 1 {
		t.Fatalf("result = %+v, want Failed=1", result)
	}
	if state, _ := r.State("pos-1"); state != StateFailed {
		t.Errorf("state after 2nd failure = %v, want Failed", state)
	}
}

func TestPoolStateDecodesPoolAccount(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{accounts: map[string]collab.Account{
		"pool-1": {Pubkey: "pool-1", Data: []byte(`{"CurrentPrice":"100"}`)},
	}}
	r := New(rpc, &poolDecoder{}, DefaultConfig(), testLogger())

	state, err := r.PoolState(context.Background(), "pool-1")
	if err != nil {
		t.Fatalf("PoolState: %v", err)
	}
	if state.CurrentPrice.Value.String() != "100" {
		t.Errorf("CurrentPrice = %s, want 100", state.CurrentPrice.Value)
	}
}

type poolDecoder struct{}

func (poolDecoder) DecodePosition(data []byte) (types.Position, error) {
	return types.Position{}, errors.New("not used in this test")
}

func (poolDecoder) DecodePool(data []byte) (types.PoolState, error) {
	var raw struct {
		CurrentPrice string `json:"CurrentPrice"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.PoolState{}, err
	}
	price, err := decimal.NewFromString(raw.CurrentPrice)
	if err != nil {
		return types.PoolState{}, err
	}
	return types.PoolState{CurrentPrice: types.NewPrice(price)}, nil
}

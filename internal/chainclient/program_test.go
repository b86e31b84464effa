package chainclient

import (
	"context"
	"errors"
	"testing"

	"clmmstrat/internal/collab"
)

type fakeRPC struct {
	simErr    string
	sendErr   error
	signature string
}

func (f *fakeRPC) LatestBlockhash(ctx context.Context) (string, error) { return "hash", nil }
func (f *fakeRPC) GetAccount(ctx context.Context, pubkey string) (collab.Account, error) {
	return collab.Account{}, nil
}
func (f *fakeRPC) GetSlot(ctx context.Context) (uint64, error) { return 1, nil }
func (f *fakeRPC) SimulateTransaction(ctx context.Context, tx []byte) (collab.SimResult, error) {
	return collab.SimResult{Err: f.simErr}, nil
}
func (f *fakeRPC) SendAndConfirmTransaction(ctx context.Context, tx []byte) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.signature, nil
}

type fakeSigner struct{}

func (fakeSigner) Sign(payload []byte) ([]byte, error) { return []byte("sig"), nil }
func (fakeSigner) Address() string                     { return "0xfake" }

func TestProgramOpenPositionSucceeds(t *testing.T) {
	t.Parallel()
	rpc := &fakeRPC{signature: "sig-1"}
	p := NewProgram(rpc, fakeSigner{}, "program-1", testLogger())

	outcome, err := p.OpenPosition(context.Background(), collab.OpenPositionParams{
		Pool: "pool-1", Owner: "0xowner", TickLower: -100, TickUpper: 100,
	})
	if err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}
	if !outcome.OK || outcome.Signature != "sig-1" {
		t.Errorf("outcome = %+v, want OK with sig-1", outcome)
	}
}

func TestProgramReportsSimulationFailure(t *testing.T) {
	t.Parallel()
	rpc := &fakeRPC{simErr: "insufficient funds"}
	p := NewProgram(rpc, fakeSigner{}, "program-1", testLogger())

	outcome, err := p.IncreaseLiquidity(context.Background(), collab.IncreaseLiquidityParams{PositionID: "pos-1"})
	if err != nil {
		t.Fatalf("IncreaseLiquidity: %v", err)
	}
	if outcome.OK || outcome.Error != "insufficient funds" {
		t.Errorf("outcome = %+v, want failed simulation", outcome)
	}
}

func TestProgramReportsSendFailure(t *testing.T) {
	t.Parallel()
	rpc := &fakeRPC{sendErr: errors.New("network down")}
	p := NewProgram(rpc, fakeSigner{}, "program-1", testLogger())

	outcome, err := p.ClosePosition(context.Background(), collab.ClosePositionParams{PositionID: "pos-1"})
	if err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if outcome.OK || outcome.Error != "network down" {
		t.Errorf("outcome = %+v, want failed send", outcome)
	}
}

func TestProgramDecreaseAndCollectFeesSucceed(t *testing.T) {
	t.Parallel()
	rpc := &fakeRPC{signature: "sig-2"}
	p := NewProgram(rpc, fakeSigner{}, "program-1", testLogger())

	if _, err := p.DecreaseLiquidity(context.Background(), collab.DecreaseLiquidityParams{PositionID: "pos-1"}); err != nil {
		t.Fatalf("DecreaseLiquidity: %v", err)
	}
	if _, err := p.CollectFees(context.Background(), collab.CollectFeesParams{PositionID: "pos-1"}); err != nil {
		t.Fatalf("CollectFees: %v", err)
	}
}

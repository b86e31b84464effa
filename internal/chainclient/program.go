package chainclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"clmmstrat/internal/collab"
)

// Program implements collab.CLMMProgram by encoding each instruction as a
// JSON-RPC call against the configured program ID and submitting it
// through a ChainRPC. Wire-level instruction layout is opaque to the rest
// of the engine; only this package and the chain program itself need to
// agree on it.
type Program struct {
	rpc       collab.ChainRPC
	signer    collab.Signer
	programID string
	logger    *slog.Logger
}

// NewProgram wires a Program against a ChainRPC, a Signer, and the target
// program ID.
func NewProgram(rpc collab.ChainRPC, signer collab.Signer, programID string, logger *slog.Logger) *Program {
	return &Program{rpc: rpc, signer: signer, programID: programID, logger: logger.With("component", "clmm_program")}
}

func (p *Program) submit(ctx context.Context, instruction string, params any) (collab.TxOutcome, error) {
	payload, err := json.Marshal(struct {
		Program     string `json:"program"`
		Instruction string `json:"instruction"`
		Params      any    `json:"params"`
	}{Program: p.programID, Instruction: instruction, Params: params})
	if err != nil {
		return collab.TxOutcome{}, fmt.Errorf("encode instruction: %w", err)
	}

	sig, err := p.signer.Sign(payload)
	if err != nil {
		return collab.TxOutcome{}, fmt.Errorf("sign instruction: %w", err)
	}
	tx := append(payload, sig...)

	if sim, err := p.rpc.SimulateTransaction(ctx, tx); err != nil {
		return collab.TxOutcome{}, fmt.Errorf("simulate %s: %w", instruction, err)
	} else if sim.Err != "" {
		return collab.TxOutcome{OK: false, Error: sim.Err}, nil
	}

	signature, err := p.rpc.SendAndConfirmTransaction(ctx, tx)
	if err != nil {
		p.logger.Error("transaction failed", "instruction", instruction, "error", err)
		return collab.TxOutcome{OK: false, Error: err.Error()}, nil
	}

	return collab.TxOutcome{OK: true, Signature: signature}, nil
}

// OpenPosition encodes and submits an open-position instruction.
func (p *Program) OpenPosition(ctx context.Context, params collab.OpenPositionParams) (collab.TxOutcome, error) {
	return p.submit(ctx, "open_position", params)
}

// IncreaseLiquidity encodes and submits an increase-liquidity instruction.
func (p *Program) IncreaseLiquidity(ctx context.Context, params collab.IncreaseLiquidityParams) (collab.TxOutcome, error) {
	return p.submit(ctx, "increase_liquidity", params)
}

// DecreaseLiquidity encodes and submits a decrease-liquidity instruction.
func (p *Program) DecreaseLiquidity(ctx context.Context, params collab.DecreaseLiquidityParams) (collab.TxOutcome, error) {
	return p.submit(ctx, "decrease_liquidity", params)
}

// CollectFees encodes and submits a fee-collection instruction.
func (p *Program) CollectFees(ctx context.Context, params collab.CollectFeesParams) (collab.TxOutcome, error) {
	return p.submit(ctx, "collect_fees", params)
}

// ClosePosition encodes and submits a close-position instruction.
func (p *Program) ClosePosition(ctx context.Context, params collab.ClosePositionParams) (collab.TxOutcome, error) {
	return p.submit(ctx, "close_position", params)
}

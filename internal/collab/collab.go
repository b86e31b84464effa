// Package collab defines the contractual boundary between the core
// simulation/execution engine and its external collaborators: the
// market-data provider, the chain RPC endpoint, and the CLMM program that
// encodes on-chain instructions. The core depends only on these
// interfaces; internal/chainclient and internal/marketdata are the
// concrete, wired-up implementations, and tests substitute fakes.
package collab

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"clmmstrat/pkg/types"
)

// Candle is one OHLCV bar in ascending time order.
type Candle struct {
	StartTS time.Time
	Open    decimal.Decimal
	High    decimal.Decimal
	Low     decimal.Decimal
	Close   decimal.Decimal
	Volume  decimal.Decimal
}

// MarketData is the market-data collaborator: historical candle retrieval
// for the Historical price-path variant and for volatility estimation.
type MarketData interface {
	PriceHistory(ctx context.Context, tokenA, tokenB string, startTS, endTS time.Time, resolutionSecs int) ([]Candle, error)
}

// Account is the on-chain account state returned by the chain RPC
// collaborator, deliberately opaque beyond what the reconciler needs.
type Account struct {
	Pubkey   string
	Slot     uint64
	Data     []byte
	Lamports uint64
	Owner    string
}

// SimResult is the outcome of a dry-run transaction simulation.
type SimResult struct {
	Err string // empty on success
}

// ChainRPC is the chain RPC collaborator: blockhash, account reads, slot
// height, transaction simulation and confirmation.
type ChainRPC interface {
	LatestBlockhash(ctx context.Context) (string, error)
	GetAccount(ctx context.Context, pubkey string) (Account, error)
	GetSlot(ctx context.Context) (uint64, error)
	SimulateTransaction(ctx context.Context, tx []byte) (SimResult, error)
	SendAndConfirmTransaction(ctx context.Context, tx []byte) (signature string, err error)
}

// TxOutcome is the uniform result shape every CLMMProgram instruction
// encoder reports back to the core: a signature plus success/failure and,
// on success, the confirming slot.
type TxOutcome struct {
	Signature string
	OK        bool
	Slot      *uint64
	Error     string
}

// OpenPositionParams are the typed parameters the core supplies to open a
// new CLMM position; the program encoder is responsible for the wire
// format, the core never constructs instruction bytes itself.
type OpenPositionParams struct {
	Pool        string
	Owner       string
	TickLower   int32
	TickUpper   int32
	Amount0Max  types.Amount
	Amount1Max  types.Amount
	SlippageBps int
}

// IncreaseLiquidityParams are the typed parameters for adding liquidity to
// an existing position.
type IncreaseLiquidityParams struct {
	PositionID  string
	Amount0Max  types.Amount
	Amount1Max  types.Amount
	SlippageBps int
}

// DecreaseLiquidityParams are the typed parameters for removing liquidity
// from an existing position. LiquidityDelta == nil means remove all.
type DecreaseLiquidityParams struct {
	PositionID     string
	LiquidityDelta *decimal.Decimal
	MinAmount0     types.Amount
	MinAmount1     types.Amount
}

// CollectFeesParams are the typed parameters for collecting accrued fees.
type CollectFeesParams struct {
	PositionID string
}

// ClosePositionParams are the typed parameters for closing (burning) a
// position after its liquidity has been fully withdrawn.
type ClosePositionParams struct {
	PositionID string
}

// CLMMProgram is the opaque instruction-encoder collaborator: the core
// supplies typed parameters for open/increase/decrease/collect/close and
// receives back a uniform TxOutcome. Wire-level instruction layout for any
// specific chain program is out of scope.
type CLMMProgram interface {
	OpenPosition(ctx context.Context, p OpenPositionParams) (TxOutcome, error)
	IncreaseLiquidity(ctx context.Context, p IncreaseLiquidityParams) (TxOutcome, error)
	DecreaseLiquidity(ctx context.Context, p DecreaseLiquidityParams) (TxOutcome, error)
	CollectFees(ctx context.Context, p CollectFeesParams) (TxOutcome, error)
	ClosePosition(ctx context.Context, p ClosePositionParams) (TxOutcome, error)
}

// Signer is the wallet-signer capability: sign an arbitrary byte payload,
// used to authorize transactions built from CLMMProgram output.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
	Address() string
}

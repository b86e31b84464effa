package chainclient

import (
	"encoding/json"
	"fmt"

	"clmmstrat/pkg/types"
)

// PositionDecoder implements reconcile.ProgramDecoder by treating the raw
// account blob as the JSON encoding of types.Position, the same wire
// format Program.submit uses for instruction payloads. A real chain
// program would hand back a packed binary account layout; JSON keeps the
// wire format symmetric with the rest of this package without inventing
// an assumed binary layout for a specific chain.
type PositionDecoder struct{}

// NewPositionDecoder creates a PositionDecoder.
func NewPositionDecoder() PositionDecoder {
	return PositionDecoder{}
}

// DecodePosition parses data as a JSON-encoded types.Position.
func (PositionDecoder) DecodePosition(data []byte) (types.Position, error) {
	var pos types.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return types.Position{}, fmt.Errorf("decode position account: %w", err)
	}
	return pos, nil
}

// DecodePool parses data as a JSON-encoded types.PoolState, the same
// opaque-account convention DecodePosition uses.
func (PositionDecoder) DecodePool(data []byte) (types.PoolState, error) {
	var pool types.PoolState
	if err := json.Unmarshal(data, &pool); err != nil {
		return types.PoolState{}, fmt.Errorf("decode pool account: %w", err)
	}
	return pool, nil
}

package protocol

import (
	"math/big"

	transfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"
)

// DenomTrace is the ICS-20 path a token took plus its base denomination.
type DenomTrace = transfertypes.DenomTrace

// ParseDenomTrace splits a full denomination into its trace path and base.
// A single segment yields an empty path. Leading port/channel-N pairs are the
// path; everything after the last valid pair is the base denom.
func ParseDenomTrace(fullDenom string) DenomTrace {
	return transfertypes.ParseDenomTrace(fullDenom)
}

// FullDenomPath is the inverse of ParseDenomTrace.
func FullDenomPath(trace DenomTrace) string {
	return trace.GetFullDenomPath()
}

// Balance is an amount of one denomination held by the relayer's key.
type Balance struct {
	Denom  string
	Amount *big.Int
}

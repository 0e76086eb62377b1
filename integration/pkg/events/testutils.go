package events

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// PackLog builds a handler log for event with the given arguments, in ABI order.
// EXPOSED FOR TESTING.
func PackLog(handler common.Address, event string, blockNumber uint64, txHash common.Hash, args ...any) (types.Log, error) {
	ev, ok := handlerABI.Events[event]
	if !ok {
		return types.Log{}, fmt.Errorf("unknown event %s", event)
	}
	data, err := ev.Inputs.Pack(args...)
	if err != nil {
		return types.Log{}, fmt.Errorf("failed to pack %s: %w", event, err)
	}
	return types.Log{
		Address:     handler,
		Topics:      []common.Hash{ev.ID},
		Data:        data,
		BlockNumber: blockNumber,
		TxHash:      txHash,
	}, nil
}

// PacketLogArgs returns the ABI arguments of a packet event, without the
// acknowledgement.
// EXPOSED FOR TESTING.
func PacketLogArgs(seq uint64, srcPort, srcChan, dstPort, dstChan string, data []byte) []any {
	return []any{seq, srcPort, srcChan, dstPort, dstChan, data, uint64(0), uint64(100), uint64(0)}
}

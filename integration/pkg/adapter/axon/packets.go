package axon

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/Flouse/forcerelay/integration/pkg/events"
	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/pkg/commitment"
	"github.com/Flouse/forcerelay/protocol"
)

// maxConcurrentCalls bounds the per-sequence calls of unreceived queries.
const maxConcurrentCalls = 8

// packetRecord reads a (bytes32, found) commitment getter. Absence is a
// valid answer and reported as protocol.ErrNotFound.
func (a *Adapter) packetRecord(ctx context.Context, number *big.Int, method string, req protocol.QueryPacketRequest) ([]byte, error) {
	out, err := a.callHandler(ctx, number, method, req.PortID, req.ChannelID, req.Sequence)
	if err != nil {
		return nil, err
	}
	value, found := out[0].([32]byte), out[1].(bool)
	if !found {
		return nil, fmt.Errorf("%w: %s of %s/%s/%d", protocol.ErrNotFound, method, req.PortID, req.ChannelID, req.Sequence)
	}
	return value[:], nil
}

func (a *Adapter) QueryPacketCommitment(ctx context.Context, req protocol.QueryPacketRequest, proof protocol.IncludeProof) ([]byte, *protocol.Proofs, error) {
	number, height, err := a.resolve(ctx, req.Height, proof)
	if err != nil {
		return nil, nil, err
	}
	value, err := a.packetRecord(ctx, number, "getHashedPacketCommitment", req)
	if err != nil {
		return nil, nil, err
	}
	proofs, err := a.proveAt(ctx, proof, height, commitment.PacketCommitment(req.PortID, req.ChannelID, req.Sequence))
	if err != nil {
		return nil, nil, err
	}
	return value, proofs, nil
}

func (a *Adapter) QueryPacketAcknowledgement(ctx context.Context, req protocol.QueryPacketRequest, proof protocol.IncludeProof) ([]byte, *protocol.Proofs, error) {
	number, height, err := a.resolve(ctx, req.Height, proof)
	if err != nil {
		return nil, nil, err
	}
	value, err := a.packetRecord(ctx, number, "getHashedPacketAcknowledgementCommitment", req)
	if err != nil {
		return nil, nil, err
	}
	proofs, err := a.proveAt(ctx, proof, height, commitment.PacketAcknowledgement(req.PortID, req.ChannelID, req.Sequence))
	if err != nil {
		return nil, nil, err
	}
	return value, proofs, nil
}

// QueryPacketReceipt returns a single 1 byte when the receipt exists.
func (a *Adapter) QueryPacketReceipt(ctx context.Context, req protocol.QueryPacketRequest, proof protocol.IncludeProof) ([]byte, *protocol.Proofs, error) {
	number, height, err := a.resolve(ctx, req.Height, proof)
	if err != nil {
		return nil, nil, err
	}
	received, err := a.hasReceipt(ctx, number, req.PortID, req.ChannelID, req.Sequence)
	if err != nil {
		return nil, nil, err
	}
	if !received {
		return nil, nil, fmt.Errorf("%w: receipt of %s/%s/%d", protocol.ErrNotFound, req.PortID, req.ChannelID, req.Sequence)
	}
	proofs, err := a.proveAt(ctx, proof, height, commitment.PacketReceipt(req.PortID, req.ChannelID, req.Sequence))
	if err != nil {
		return nil, nil, err
	}
	return []byte{1}, proofs, nil
}

func (a *Adapter) hasReceipt(ctx context.Context, number *big.Int, portID, channelID string, sequence uint64) (bool, error) {
	out, err := a.callHandler(ctx, number, "hasPacketReceipt", portID, channelID, sequence)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// sequencesAtTip reads a sequence list getter at the tip and reports the
// height it was read at.
func (a *Adapter) sequencesAtTip(ctx context.Context, method string, req protocol.QueryPacketsRequest) ([]uint64, protocol.Height, error) {
	tip, err := a.tip(ctx)
	if err != nil {
		return nil, protocol.Height{}, err
	}
	out, err := a.callHandler(ctx, new(big.Int).SetUint64(tip), method, req.PortID, req.ChannelID)
	if err != nil {
		return nil, protocol.Height{}, err
	}
	return out[0].([]uint64), protocol.NewHeight(tip), nil
}

func (a *Adapter) QueryPacketCommitments(ctx context.Context, req protocol.QueryPacketsRequest) ([]uint64, protocol.Height, error) {
	return a.sequencesAtTip(ctx, "getHashedPacketCommitmentSequences", req)
}

func (a *Adapter) QueryPacketAcknowledgements(ctx context.Context, req protocol.QueryPacketsRequest) ([]uint64, protocol.Height, error) {
	return a.sequencesAtTip(ctx, "getHashedPacketAcknowledgementSequences", req)
}

// QueryUnreceivedPackets keeps the sequences this chain has not received.
// On ordered channels that is every sequence from the next expected one;
// on unordered channels every sequence without a receipt.
func (a *Adapter) QueryUnreceivedPackets(ctx context.Context, req protocol.QueryUnreceivedRequest) ([]uint64, error) {
	ch, err := a.channelAt(ctx, nil, req.PortID, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if ch.Ordering == channeltypes.ORDERED {
		next, err := a.nextSequenceRecv(ctx, nil, req.PortID, req.ChannelID)
		if err != nil {
			return nil, err
		}
		var out []uint64
		for _, seq := range req.Sequences {
			if seq >= next {
				out = append(out, seq)
			}
		}
		return out, nil
	}
	return a.selectSequences(ctx, req.Sequences, func(ctx context.Context, seq uint64) (bool, error) {
		received, err := a.hasReceipt(ctx, nil, req.PortID, req.ChannelID, seq)
		return !received, err
	})
}

// QueryUnreceivedAcknowledgements keeps the sequences whose commitment still
// exists, i.e. whose acknowledgement has not been relayed back yet.
func (a *Adapter) QueryUnreceivedAcknowledgements(ctx context.Context, req protocol.QueryUnreceivedRequest) ([]uint64, error) {
	return a.selectSequences(ctx, req.Sequences, func(ctx context.Context, seq uint64) (bool, error) {
		_, err := a.packetRecord(ctx, nil, "getHashedPacketCommitment", protocol.QueryPacketRequest{
			PortID: req.PortID, ChannelID: req.ChannelID, Sequence: seq,
		})
		if errors.Is(err, protocol.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	})
}

// selectSequences evaluates keep for every sequence concurrently and returns
// the kept ones in input order.
func (a *Adapter) selectSequences(ctx context.Context, seqs []uint64, keep func(ctx context.Context, seq uint64) (bool, error)) ([]uint64, error) {
	kept := make([]bool, len(seqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCalls)
	for i, seq := range seqs {
		g.Go(func() error {
			ok, err := keep(gctx, seq)
			if err != nil {
				return fmt.Errorf("sequence %d: %w", seq, err)
			}
			kept[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []uint64
	for i, seq := range seqs {
		if kept[i] {
			out = append(out, seq)
		}
	}
	return out, nil
}

func (a *Adapter) QueryNextSequenceReceive(ctx context.Context, req protocol.QueryNextSequenceReceiveRequest, proof protocol.IncludeProof) (uint64, *protocol.Proofs, error) {
	number, height, err := a.resolve(ctx, req.Height, proof)
	if err != nil {
		return 0, nil, err
	}
	next, err := a.nextSequenceRecv(ctx, number, req.PortID, req.ChannelID)
	if err != nil {
		return 0, nil, err
	}
	proofs, err := a.proveAt(ctx, proof, height, commitment.NextSequenceRecv(req.PortID, req.ChannelID))
	if err != nil {
		return 0, nil, err
	}
	return next, proofs, nil
}

func (a *Adapter) nextSequenceRecv(ctx context.Context, number *big.Int, portID, channelID string) (uint64, error) {
	out, err := a.callHandler(ctx, number, "getNextSequenceRecv", portID, channelID)
	if err != nil {
		return 0, err
	}
	return out[0].(uint64), nil
}

// QueryTxs finds the events of a client update or of a transaction.
//
// A client query reads the block at the consensus height and returns the
// first UpdateClient of the client there. A hash query translates every log
// of the transaction's receipt. Both return no events when nothing matches.
func (a *Adapter) QueryTxs(ctx context.Context, req protocol.QueryTxRequest) ([]protocol.IBCEventWithHeight, error) {
	if req.ClientID != "" {
		block := req.ConsensusHeight.GetRevisionHeight()
		logs, err := a.filterLogs(ctx, block, block, eventTopics(protocol.EventKindUpdateClient))
		if err != nil {
			return nil, err
		}
		ev, ok, err := a.translator.FirstClientUpdate(logs, req.ClientID)
		if err != nil || !ok {
			return nil, err
		}
		return []protocol.IBCEventWithHeight{ev}, nil
	}

	receipt, err := a.reader.TransactionReceipt(ctx, common.Hash(req.TxHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, queryError("receipt of "+req.TxHash.String(), err)
	}
	logs := make([]types.Log, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		logs = append(logs, *l)
	}
	return a.translator.TranslateAll(logs, nil)
}

// QueryPacketEvents returns the events of the requested kind in the
// qualified height range. Without a kind, client creations and updates,
// sends and acknowledgement writes are returned.
func (a *Adapter) QueryPacketEvents(ctx context.Context, req protocol.PacketEventQuery) ([]protocol.IBCEventWithHeight, error) {
	tip, err := a.tip(ctx)
	if err != nil {
		return nil, err
	}
	from, to, err := req.Height.BlockRange(tip)
	if err != nil {
		return nil, err
	}
	kinds := []protocol.EventKind{
		protocol.EventKindCreateClient,
		protocol.EventKindUpdateClient,
		protocol.EventKindSendPacket,
		protocol.EventKindWriteAcknowledgement,
	}
	if req.Kind != protocol.EventKindUnknown {
		kinds = []protocol.EventKind{req.Kind}
	}
	logs, err := a.filterLogs(ctx, from, to, eventTopics(kinds...))
	if err != nil {
		return nil, err
	}
	return a.translator.TranslateAll(logs, chainaccess.AllOf{
		&chainaccess.KindFilter{Kinds: kinds},
		chainaccess.NewPacketFilter(req),
	})
}

func (a *Adapter) filterLogs(ctx context.Context, from, to uint64, topics []common.Hash) ([]types.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{a.handler},
	}
	if len(topics) > 0 {
		q.Topics = [][]common.Hash{topics}
	}
	logs, err := a.reader.FilterLogs(ctx, q)
	if err != nil {
		return nil, queryError(fmt.Sprintf("logs of blocks %d-%d", from, to), err)
	}
	return logs, nil
}

// eventTopics returns the log topics of kinds the handler emits.
func eventTopics(kinds ...protocol.EventKind) []common.Hash {
	var topics []common.Hash
	for _, kind := range kinds {
		name, ok := events.EventName(kind)
		if !ok {
			continue
		}
		topics = append(topics, events.Handler().Events[name].ID)
	}
	return topics
}

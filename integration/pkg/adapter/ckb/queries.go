package ckb

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"time"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Flouse/forcerelay/integration/pkg/txbuilder"
	"github.com/Flouse/forcerelay/protocol"
)

// ClientStateTypeURL tags the client cell data surfaced as a client state.
const ClientStateTypeURL = "/forcerelay.ckb.v1.AxonClientCell"

// NativeDenom is the denomination of capacity.
const NativeDenom = "ckb"

func (a *Adapter) QueryApplicationStatus(ctx context.Context) (protocol.ChainStatus, error) {
	tip, err := a.ledger.TipBlockNumber(ctx)
	if err != nil {
		return protocol.ChainStatus{}, err
	}
	return protocol.ChainStatus{Height: protocol.NewHeight(tip), Timestamp: time.Now()}, nil
}

func (a *Adapter) QueryCommitmentPrefix() ([]byte, error) {
	return a.identity.StorePrefix, nil
}

// QueryHostConsensusState returns an empty state: cells carry no state root
// a counterparty client could track.
func (a *Adapter) QueryHostConsensusState(context.Context, protocol.QueryHostConsensusStateRequest) (protocol.ConsensusState, error) {
	return protocol.ConsensusState{}, nil
}

// QueryBalance sums the capacity of the signer's plain cells.
func (a *Adapter) QueryBalance(ctx context.Context, denom string) (*big.Int, error) {
	if denom != "" && denom != NativeDenom {
		return nil, fmt.Errorf("%w: denom %q is not held in cells", protocol.ErrQueryFailure, denom)
	}
	if a.wallet == nil {
		return nil, fmt.Errorf("%w: no wallet configured", protocol.ErrQueryFailure)
	}
	cells, err := a.wallet.LiveCellsByLock(ctx, a.signer.Lock())
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, cell := range cells {
		if cell.Output.Type != nil {
			continue
		}
		total.Add(total, new(big.Int).SetUint64(cell.Output.Capacity))
	}
	return total, nil
}

// QueryAllBalances reports the native capacity, the only denomination held
// in plain cells.
func (a *Adapter) QueryAllBalances(ctx context.Context) ([]protocol.Balance, error) {
	amount, err := a.QueryBalance(ctx, NativeDenom)
	if err != nil {
		return nil, err
	}
	return []protocol.Balance{{Denom: NativeDenom, Amount: amount}}, nil
}

func (a *Adapter) QueryDenomTrace(_ context.Context, hash string) (protocol.DenomTrace, error) {
	return protocol.DenomTrace{}, fmt.Errorf("%w: denom trace %s, the cell chain keeps no denom traces", protocol.ErrNotFound, hash)
}

func clientStateAny(data []byte) *codectypes.Any {
	return &codectypes.Any{TypeUrl: ClientStateTypeURL, Value: data}
}

func (a *Adapter) QueryClients(ctx context.Context) ([]protocol.IdentifiedClientState, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if snap.client == nil {
		return nil, nil
	}
	return []protocol.IdentifiedClientState{{ClientID: a.scripts.ClientID, ClientState: clientStateAny(snap.client.Data)}}, nil
}

func (a *Adapter) QueryClientState(ctx context.Context, req protocol.QueryClientStateRequest, proof protocol.IncludeProof) (*codectypes.Any, *protocol.Proofs, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := snap.checkHeight(req.Height); err != nil {
		return nil, nil, err
	}
	if req.ClientID != a.scripts.ClientID || snap.client == nil {
		return nil, nil, fmt.Errorf("%w: client %s does not exist", protocol.ErrQueryFailure, req.ClientID)
	}
	proofs, err := snap.proveIf(proof, *snap.client)
	if err != nil {
		return nil, nil, err
	}
	return clientStateAny(snap.client.Data), proofs, nil
}

// QueryConsensusState always fails: the client cell keeps only the latest
// verified state and no per-height history.
func (a *Adapter) QueryConsensusState(_ context.Context, req protocol.QueryConsensusStateRequest, _ protocol.IncludeProof) (*codectypes.Any, *protocol.Proofs, error) {
	return nil, nil, fmt.Errorf("%w: consensus state of %s at %s is not stored in cells", protocol.ErrQueryFailure, req.ClientID, req.ConsensusHeight)
}

func (a *Adapter) QueryConsensusStateHeights(context.Context, string) ([]protocol.Height, error) {
	return nil, nil
}

func (a *Adapter) QueryConnections(ctx context.Context) ([]connectiontypes.IdentifiedConnection, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	return connections(snap)
}

func connections(snap *snapshot) ([]connectiontypes.IdentifiedConnection, error) {
	if snap.lc.Connections == nil {
		return nil, nil
	}
	out := make([]connectiontypes.IdentifiedConnection, 0, len(snap.lc.Connections.Connections))
	for i := range snap.lc.Connections.Connections {
		end, err := snap.lc.Connections.Connection(uint64(i))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", protocol.ErrQueryFailure, err)
		}
		out = append(out, connectiontypes.NewIdentifiedConnection(connectiontypes.FormatConnectionIdentifier(uint64(i)), end))
	}
	return out, nil
}

func (a *Adapter) QueryClientConnections(ctx context.Context, req protocol.QueryClientConnectionsRequest) ([]string, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	conns, err := connections(snap)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, c := range conns {
		if c.ClientId == req.ClientID {
			ids = append(ids, c.Id)
		}
	}
	return ids, nil
}

func (a *Adapter) QueryConnection(ctx context.Context, req protocol.QueryConnectionRequest, proof protocol.IncludeProof) (connectiontypes.ConnectionEnd, *protocol.Proofs, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return connectiontypes.ConnectionEnd{}, nil, err
	}
	if err := snap.checkHeight(req.Height); err != nil {
		return connectiontypes.ConnectionEnd{}, nil, err
	}
	end, err := connectionEnd(snap, req.ConnectionID)
	if err != nil {
		return end, nil, err
	}
	proofs, err := snap.proveIf(proof, *snap.connections)
	if err != nil {
		return end, nil, err
	}
	return end, proofs, nil
}

func connectionEnd(snap *snapshot, connectionID string) (connectiontypes.ConnectionEnd, error) {
	var end connectiontypes.ConnectionEnd
	number, err := connectiontypes.ParseConnectionSequence(connectionID)
	if err != nil {
		return end, fmt.Errorf("%w: %w", protocol.ErrQueryFailure, err)
	}
	if snap.lc.Connections == nil {
		return end, fmt.Errorf("%w: connection %s does not exist", protocol.ErrQueryFailure, connectionID)
	}
	end, err = snap.lc.Connections.Connection(number)
	if err != nil {
		return end, fmt.Errorf("%w: connection %s: %w", protocol.ErrQueryFailure, connectionID, err)
	}
	return end, nil
}

// identifiedChannels lists the channels of the snapshot accepted by keep,
// ordered by channel number.
func identifiedChannels(snap *snapshot, keep func(channeltypes.Channel) bool) ([]protocol.IdentifiedChannel, error) {
	keys := make([]txbuilder.ChannelKey, 0, len(snap.lc.Channels))
	for key := range snap.lc.Channels {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(x, y txbuilder.ChannelKey) int {
		nx, ny := snap.lc.Channels[x].State.Number, snap.lc.Channels[y].State.Number
		if nx != ny {
			if nx < ny {
				return -1
			}
			return 1
		}
		switch {
		case x.PortID < y.PortID:
			return -1
		case x.PortID > y.PortID:
			return 1
		}
		return 0
	})

	var out []protocol.IdentifiedChannel
	for _, key := range keys {
		end, err := snap.lc.Channels[key].State.End()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", protocol.ErrQueryFailure, err)
		}
		if keep(end) {
			out = append(out, channeltypes.NewIdentifiedChannel(key.PortID, key.ChannelID, end))
		}
	}
	return out, nil
}

func (a *Adapter) QueryConnectionChannels(ctx context.Context, req protocol.QueryConnectionChannelsRequest) ([]protocol.IdentifiedChannel, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	return identifiedChannels(snap, func(end channeltypes.Channel) bool {
		return len(end.ConnectionHops) > 0 && end.ConnectionHops[0] == req.ConnectionID
	})
}

func (a *Adapter) QueryChannels(ctx context.Context) ([]protocol.IdentifiedChannel, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	return identifiedChannels(snap, func(channeltypes.Channel) bool { return true })
}

func (a *Adapter) QueryChannel(ctx context.Context, req protocol.QueryChannelRequest, proof protocol.IncludeProof) (channeltypes.Channel, *protocol.Proofs, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return channeltypes.Channel{}, nil, err
	}
	if err := snap.checkHeight(req.Height); err != nil {
		return channeltypes.Channel{}, nil, err
	}
	_, end, err := snap.channel(req.PortID, req.ChannelID)
	if err != nil {
		return end, nil, err
	}
	proofs, err := snap.proveIf(proof, snap.channels[txbuilder.ChannelKey{ChannelID: req.ChannelID, PortID: req.PortID}])
	if err != nil {
		return end, nil, err
	}
	return end, proofs, nil
}

// QueryChannelClientState returns the client cell of the channel's
// connection. Every channel of this adapter belongs to the same client.
func (a *Adapter) QueryChannelClientState(ctx context.Context, req protocol.QueryChannelClientStateRequest) (*protocol.IdentifiedClientState, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if _, _, err := snap.channel(req.PortID, req.ChannelID); err != nil {
		return nil, err
	}
	if snap.client == nil {
		return nil, fmt.Errorf("%w: client of channel %s/%s does not exist", protocol.ErrQueryFailure, req.PortID, req.ChannelID)
	}
	return &protocol.IdentifiedClientState{ClientID: a.scripts.ClientID, ClientState: clientStateAny(snap.client.Data)}, nil
}

// packetWith returns the packet cell of sequence on the local end
// port/channel if it is in status. The direction follows from status.
func (s *snapshot) packetWith(portID, channelID string, sequence uint64, status txbuilder.PacketStatus) (packetCell, bool) {
	key := txbuilder.PacketKey{ChannelID: channelID, PortID: portID, Sequence: sequence, Direction: status.Direction()}
	p, ok := s.packets[key]
	if !ok || p.state.Status != status {
		return packetCell{}, false
	}
	return p, true
}

// QueryPacketCommitment returns the hash of the sent packet while its cell
// awaits an acknowledgement.
func (a *Adapter) QueryPacketCommitment(ctx context.Context, req protocol.QueryPacketRequest, proof protocol.IncludeProof) ([]byte, *protocol.Proofs, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := snap.checkHeight(req.Height); err != nil {
		return nil, nil, err
	}
	p, ok := snap.packetWith(req.PortID, req.ChannelID, req.Sequence, txbuilder.PacketStatusSend)
	if !ok {
		return nil, nil, fmt.Errorf("%w: commitment of %s/%s/%d", protocol.ErrNotFound, req.PortID, req.ChannelID, req.Sequence)
	}
	proofs, err := snap.proveIf(proof, p.live)
	if err != nil {
		return nil, nil, err
	}
	return crypto.Keccak256(p.state.Packet), proofs, nil
}

// QueryPacketAcknowledgement returns the hash of the written
// acknowledgement.
func (a *Adapter) QueryPacketAcknowledgement(ctx context.Context, req protocol.QueryPacketRequest, proof protocol.IncludeProof) ([]byte, *protocol.Proofs, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := snap.checkHeight(req.Height); err != nil {
		return nil, nil, err
	}
	p, ok := snap.packetWith(req.PortID, req.ChannelID, req.Sequence, txbuilder.PacketStatusWriteAck)
	if !ok {
		return nil, nil, fmt.Errorf("%w: acknowledgement of %s/%s/%d", protocol.ErrNotFound, req.PortID, req.ChannelID, req.Sequence)
	}
	proofs, err := snap.proveIf(proof, p.live)
	if err != nil {
		return nil, nil, err
	}
	return crypto.Keccak256(p.state.Ack), proofs, nil
}

// QueryPacketReceipt answers from the channel cell, which records every
// receive.
func (a *Adapter) QueryPacketReceipt(ctx context.Context, req protocol.QueryPacketRequest, proof protocol.IncludeProof) ([]byte, *protocol.Proofs, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := snap.checkHeight(req.Height); err != nil {
		return nil, nil, err
	}
	state, end, err := snap.channel(req.PortID, req.ChannelID)
	if err != nil {
		return nil, nil, err
	}
	if !received(state, end, req.Sequence) {
		return nil, nil, fmt.Errorf("%w: receipt of %s/%s/%d", protocol.ErrNotFound, req.PortID, req.ChannelID, req.Sequence)
	}
	proofs, err := snap.proveIf(proof, snap.channels[txbuilder.ChannelKey{ChannelID: req.ChannelID, PortID: req.PortID}])
	if err != nil {
		return nil, nil, err
	}
	return []byte{1}, proofs, nil
}

func received(state *txbuilder.ChannelCell, end channeltypes.Channel, sequence uint64) bool {
	if end.Ordering == channeltypes.ORDERED {
		return sequence < state.NextSequenceRecv
	}
	return slices.Contains(state.ReceivedSequences, sequence)
}

// sequences lists the sequences of packet cells on port/channel in status,
// ascending.
func (s *snapshot) sequences(portID, channelID string, status txbuilder.PacketStatus) []uint64 {
	var out []uint64
	for key, p := range s.packets {
		if key.PortID == portID && key.ChannelID == channelID && p.state.Status == status {
			out = append(out, key.Sequence)
		}
	}
	slices.Sort(out)
	return out
}

func (a *Adapter) QueryPacketCommitments(ctx context.Context, req protocol.QueryPacketsRequest) ([]uint64, protocol.Height, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, protocol.Height{}, err
	}
	return snap.sequences(req.PortID, req.ChannelID, txbuilder.PacketStatusSend), protocol.NewHeight(snap.tip), nil
}

func (a *Adapter) QueryPacketAcknowledgements(ctx context.Context, req protocol.QueryPacketsRequest) ([]uint64, protocol.Height, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, protocol.Height{}, err
	}
	return snap.sequences(req.PortID, req.ChannelID, txbuilder.PacketStatusWriteAck), protocol.NewHeight(snap.tip), nil
}

func (a *Adapter) QueryUnreceivedPackets(ctx context.Context, req protocol.QueryUnreceivedRequest) ([]uint64, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	state, end, err := snap.channel(req.PortID, req.ChannelID)
	if err != nil {
		return nil, err
	}
	var out []uint64
	for _, seq := range req.Sequences {
		if !received(state, end, seq) {
			out = append(out, seq)
		}
	}
	return out, nil
}

// QueryUnreceivedAcknowledgements keeps the sequences whose packet cell is
// still waiting in Send status.
func (a *Adapter) QueryUnreceivedAcknowledgements(ctx context.Context, req protocol.QueryUnreceivedRequest) ([]uint64, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []uint64
	for _, seq := range req.Sequences {
		if _, ok := snap.packetWith(req.PortID, req.ChannelID, seq, txbuilder.PacketStatusSend); ok {
			out = append(out, seq)
		}
	}
	return out, nil
}

func (a *Adapter) QueryNextSequenceReceive(ctx context.Context, req protocol.QueryNextSequenceReceiveRequest, proof protocol.IncludeProof) (uint64, *protocol.Proofs, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return 0, nil, err
	}
	if err := snap.checkHeight(req.Height); err != nil {
		return 0, nil, err
	}
	state, _, err := snap.channel(req.PortID, req.ChannelID)
	if err != nil {
		return 0, nil, err
	}
	proofs, err := snap.proveIf(proof, snap.channels[txbuilder.ChannelKey{ChannelID: req.ChannelID, PortID: req.PortID}])
	if err != nil {
		return 0, nil, err
	}
	return state.NextSequenceRecv, proofs, nil
}

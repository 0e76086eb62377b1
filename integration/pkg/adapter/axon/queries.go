package axon

import (
	"context"
	"fmt"
	"math/big"
	"time"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/gogoproto/proto"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Flouse/forcerelay/integration/pkg/events"
	"github.com/Flouse/forcerelay/pkg/commitment"
	"github.com/Flouse/forcerelay/protocol"
)

// storedObject unpacks the (bytes, found) outputs of a handler getter.
// Absence of clients, connections and channels is unexpected and reported
// as a query failure naming what was missing.
func storedObject(out []any, what string) ([]byte, error) {
	raw, found := out[0].([]byte), out[1].(bool)
	if !found {
		return nil, fmt.Errorf("%w: %s does not exist", protocol.ErrQueryFailure, what)
	}
	return raw, nil
}

func decodeAny(raw []byte, what string) (*codectypes.Any, error) {
	a := &codectypes.Any{}
	if err := a.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %w", protocol.ErrQueryFailure, what, err)
	}
	return a, nil
}

func decodeProto(raw []byte, msg proto.Message, what string) error {
	if err := proto.Unmarshal(raw, msg); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %w", protocol.ErrQueryFailure, what, err)
	}
	return nil
}

// proveAt builds the proof of path at number when asked to.
func (a *Adapter) proveAt(ctx context.Context, proof protocol.IncludeProof, number uint64, path commitment.Path) (*protocol.Proofs, error) {
	if proof == protocol.IncludeProofNo {
		return nil, nil
	}
	return a.pipeline.GetProofs(ctx, number, path)
}

func (a *Adapter) QueryApplicationStatus(ctx context.Context) (protocol.ChainStatus, error) {
	header, err := a.reader.HeaderByNumber(ctx, nil)
	if err != nil {
		return protocol.ChainStatus{}, queryError("latest header", err)
	}
	if header == nil {
		return protocol.ChainStatus{Timestamp: time.Now()}, nil
	}
	return protocol.ChainStatus{
		Height:    protocol.NewHeight(header.Number.Uint64()),
		Timestamp: time.Unix(int64(header.Time), 0), //nolint:gosec // block timestamps fit in int64
	}, nil
}

func (a *Adapter) QueryCommitmentPrefix() ([]byte, error) {
	return a.identity.StorePrefix, nil
}

// QueryHostConsensusState returns the state root and timestamp of the block
// at the requested height.
func (a *Adapter) QueryHostConsensusState(ctx context.Context, req protocol.QueryHostConsensusStateRequest) (protocol.ConsensusState, error) {
	var number *big.Int
	if h, ok := req.Height.Height(); ok {
		number = new(big.Int).SetUint64(h.GetRevisionHeight())
	}
	header, err := a.reader.HeaderByNumber(ctx, number)
	if err != nil {
		return protocol.ConsensusState{}, queryError(fmt.Sprintf("header at %s", req.Height), err)
	}
	return protocol.ConsensusState{
		Root:      header.Root.Bytes(),
		Timestamp: time.Unix(int64(header.Time), 0), //nolint:gosec // block timestamps fit in int64
	}, nil
}

// QueryBalance returns the relayer's balance of the ERC20 token at the
// address denom.
func (a *Adapter) QueryBalance(ctx context.Context, denom string) (*big.Int, error) {
	if !common.IsHexAddress(denom) {
		return nil, fmt.Errorf("%w: denom %q is not a token address", protocol.ErrQueryFailure, denom)
	}
	out, err := a.call(ctx, common.HexToAddress(denom), events.Transfer(), nil, "balanceOf", a.transmitter.Address())
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// QueryAllBalances returns nothing: token contracts are not enumerable from
// the handler, so balances are only available per token via QueryBalance.
func (a *Adapter) QueryAllBalances(context.Context) ([]protocol.Balance, error) {
	a.lggr.Debugw("All balances are not enumerable on the account chain, query per token instead")
	return nil, nil
}

func (a *Adapter) QueryDenomTrace(ctx context.Context, hash string) (protocol.DenomTrace, error) {
	if a.transfer == (common.Address{}) {
		return protocol.DenomTrace{}, fmt.Errorf("%w: no transfer contract configured", protocol.ErrQueryFailure)
	}
	out, err := a.call(ctx, a.transfer, events.Transfer(), nil, "getDenomTrace", hash)
	if err != nil {
		return protocol.DenomTrace{}, err
	}
	fullDenom := out[0].(string)
	if fullDenom == "" {
		return protocol.DenomTrace{}, fmt.Errorf("%w: denom trace %s", protocol.ErrNotFound, hash)
	}
	return protocol.ParseDenomTrace(fullDenom), nil
}

func (a *Adapter) QueryClients(ctx context.Context) ([]protocol.IdentifiedClientState, error) {
	out, err := a.callHandler(ctx, nil, "getClientStates")
	if err != nil {
		return nil, err
	}
	ids, states := out[0].([]string), out[1].([][]byte)
	clients := make([]protocol.IdentifiedClientState, 0, len(ids))
	for i, id := range ids {
		cs, err := decodeAny(states[i], "client state of "+id)
		if err != nil {
			return nil, err
		}
		clients = append(clients, protocol.IdentifiedClientState{ClientID: id, ClientState: cs})
	}
	return clients, nil
}

func (a *Adapter) QueryClientState(ctx context.Context, req protocol.QueryClientStateRequest, proof protocol.IncludeProof) (*codectypes.Any, *protocol.Proofs, error) {
	number, height, err := a.resolve(ctx, req.Height, proof)
	if err != nil {
		return nil, nil, err
	}
	out, err := a.callHandler(ctx, number, "getClientState", req.ClientID)
	if err != nil {
		return nil, nil, err
	}
	raw, err := storedObject(out, "client "+req.ClientID)
	if err != nil {
		return nil, nil, err
	}
	cs, err := decodeAny(raw, "client state of "+req.ClientID)
	if err != nil {
		return nil, nil, err
	}
	proofs, err := a.proveAt(ctx, proof, height, commitment.ClientState(req.ClientID))
	if err != nil {
		return nil, nil, err
	}
	return cs, proofs, nil
}

func (a *Adapter) QueryConsensusState(ctx context.Context, req protocol.QueryConsensusStateRequest, proof protocol.IncludeProof) (*codectypes.Any, *protocol.Proofs, error) {
	number, height, err := a.resolve(ctx, req.QueryHeight, proof)
	if err != nil {
		return nil, nil, err
	}
	h := req.ConsensusHeight
	out, err := a.callHandler(ctx, number, "getConsensusState", req.ClientID, h.GetRevisionNumber(), h.GetRevisionHeight())
	if err != nil {
		return nil, nil, err
	}
	what := fmt.Sprintf("consensus state %s of client %s", h, req.ClientID)
	raw, err := storedObject(out, what)
	if err != nil {
		return nil, nil, err
	}
	cs, err := decodeAny(raw, what)
	if err != nil {
		return nil, nil, err
	}
	proofs, err := a.proveAt(ctx, proof, height, commitment.ConsensusState(req.ClientID, h))
	if err != nil {
		return nil, nil, err
	}
	return cs, proofs, nil
}

func (a *Adapter) QueryConsensusStateHeights(ctx context.Context, clientID string) ([]protocol.Height, error) {
	out, err := a.callHandler(ctx, nil, "getConsensusHeights", clientID)
	if err != nil {
		return nil, err
	}
	revisions, heights := out[0].([]uint64), out[1].([]uint64)
	if len(revisions) != len(heights) {
		return nil, fmt.Errorf("%w: handler returned %d revisions for %d heights", protocol.ErrQueryFailure, len(revisions), len(heights))
	}
	res := make([]protocol.Height, len(heights))
	for i := range heights {
		res[i] = protocol.Height{RevisionNumber: revisions[i], RevisionHeight: heights[i]}
	}
	return res, nil
}

func (a *Adapter) QueryConnections(ctx context.Context) ([]connectiontypes.IdentifiedConnection, error) {
	out, err := a.callHandler(ctx, nil, "getConnections")
	if err != nil {
		return nil, err
	}
	ids, ends := out[0].([]string), out[1].([][]byte)
	conns := make([]connectiontypes.IdentifiedConnection, 0, len(ids))
	for i, id := range ids {
		var end connectiontypes.ConnectionEnd
		if err := decodeProto(ends[i], &end, "connection "+id); err != nil {
			return nil, err
		}
		conns = append(conns, connectiontypes.NewIdentifiedConnection(id, end))
	}
	return conns, nil
}

func (a *Adapter) QueryClientConnections(ctx context.Context, req protocol.QueryClientConnectionsRequest) ([]string, error) {
	out, err := a.callHandler(ctx, nil, "getClientConnections", req.ClientID)
	if err != nil {
		return nil, err
	}
	return out[0].([]string), nil
}

func (a *Adapter) QueryConnection(ctx context.Context, req protocol.QueryConnectionRequest, proof protocol.IncludeProof) (connectiontypes.ConnectionEnd, *protocol.Proofs, error) {
	var end connectiontypes.ConnectionEnd
	number, height, err := a.resolve(ctx, req.Height, proof)
	if err != nil {
		return end, nil, err
	}
	if err := a.connectionAt(ctx, number, req.ConnectionID, &end); err != nil {
		return end, nil, err
	}
	proofs, err := a.proveAt(ctx, proof, height, commitment.Connection(req.ConnectionID))
	if err != nil {
		return end, nil, err
	}
	return end, proofs, nil
}

func (a *Adapter) connectionAt(ctx context.Context, number *big.Int, connectionID string, end *connectiontypes.ConnectionEnd) error {
	out, err := a.callHandler(ctx, number, "getConnection", connectionID)
	if err != nil {
		return err
	}
	raw, err := storedObject(out, "connection "+connectionID)
	if err != nil {
		return err
	}
	return decodeProto(raw, end, "connection "+connectionID)
}

func identifiedChannels(out []any) ([]protocol.IdentifiedChannel, error) {
	ports, ids, ends := out[0].([]string), out[1].([]string), out[2].([][]byte)
	if len(ports) != len(ids) || len(ids) != len(ends) {
		return nil, fmt.Errorf("%w: handler returned mismatched channel lists", protocol.ErrQueryFailure)
	}
	chans := make([]protocol.IdentifiedChannel, 0, len(ids))
	for i := range ids {
		var ch channeltypes.Channel
		if err := decodeProto(ends[i], &ch, fmt.Sprintf("channel %s/%s", ports[i], ids[i])); err != nil {
			return nil, err
		}
		chans = append(chans, channeltypes.NewIdentifiedChannel(ports[i], ids[i], ch))
	}
	return chans, nil
}

func (a *Adapter) QueryConnectionChannels(ctx context.Context, req protocol.QueryConnectionChannelsRequest) ([]protocol.IdentifiedChannel, error) {
	out, err := a.callHandler(ctx, nil, "getConnectionChannels", req.ConnectionID)
	if err != nil {
		return nil, err
	}
	return identifiedChannels(out)
}

func (a *Adapter) QueryChannels(ctx context.Context) ([]protocol.IdentifiedChannel, error) {
	out, err := a.callHandler(ctx, nil, "getChannels")
	if err != nil {
		return nil, err
	}
	return identifiedChannels(out)
}

func (a *Adapter) QueryChannel(ctx context.Context, req protocol.QueryChannelRequest, proof protocol.IncludeProof) (channeltypes.Channel, *protocol.Proofs, error) {
	number, height, err := a.resolve(ctx, req.Height, proof)
	if err != nil {
		return channeltypes.Channel{}, nil, err
	}
	ch, err := a.channelAt(ctx, number, req.PortID, req.ChannelID)
	if err != nil {
		return ch, nil, err
	}
	proofs, err := a.proveAt(ctx, proof, height, commitment.ChannelEnd(req.PortID, req.ChannelID))
	if err != nil {
		return ch, nil, err
	}
	return ch, proofs, nil
}

func (a *Adapter) channelAt(ctx context.Context, number *big.Int, portID, channelID string) (channeltypes.Channel, error) {
	var ch channeltypes.Channel
	what := fmt.Sprintf("channel %s/%s", portID, channelID)
	out, err := a.callHandler(ctx, number, "getChannel", portID, channelID)
	if err != nil {
		return ch, err
	}
	raw, err := storedObject(out, what)
	if err != nil {
		return ch, err
	}
	err = decodeProto(raw, &ch, what)
	return ch, err
}

func (a *Adapter) QueryChannelClientState(ctx context.Context, req protocol.QueryChannelClientStateRequest) (*protocol.IdentifiedClientState, error) {
	out, err := a.callHandler(ctx, nil, "getChannelClientState", req.PortID, req.ChannelID)
	if err != nil {
		return nil, err
	}
	clientID, raw, found := out[0].(string), out[1].([]byte), out[2].(bool)
	if !found {
		return nil, fmt.Errorf("%w: client of channel %s/%s does not exist", protocol.ErrQueryFailure, req.PortID, req.ChannelID)
	}
	cs, err := decodeAny(raw, "client state of "+clientID)
	if err != nil {
		return nil, err
	}
	return &protocol.IdentifiedClientState{ClientID: clientID, ClientState: cs}, nil
}

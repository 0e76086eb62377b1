package axon

import (
	"context"
	"fmt"
	"math/big"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"

	"github.com/Flouse/forcerelay/pkg/commitment"
	"github.com/Flouse/forcerelay/protocol"
)

// BuildClientState describes this chain to a counterparty client. Only the
// cell chain client and custom clients are accepted.
func (a *Adapter) BuildClientState(_ context.Context, height protocol.Height, settings protocol.ClientSettings) (protocol.ClientState, error) {
	switch settings.Kind {
	case protocol.ClientSettingsCkb, protocol.ClientSettingsOther:
	default:
		return protocol.ClientState{}, fmt.Errorf("%w: %s", protocol.ErrUnsupportedClientSettings, settings.Kind)
	}
	return protocol.ClientState{ChainID: a.identity.ChainID, LatestHeight: height}, nil
}

// BuildConsensusState returns an empty consensus state. Counterparty clients
// of this chain verify blocks from the object proof, not from a stored root.
func (a *Adapter) BuildConsensusState(context.Context, protocol.Height) (protocol.ConsensusState, error) {
	return protocol.ConsensusState{}, nil
}

// BuildHeader returns an empty header for targetHeight and no supporting
// headers; finality travels inside each proof instead.
func (a *Adapter) BuildHeader(_ context.Context, _, targetHeight protocol.Height) (protocol.Header, []protocol.Header, error) {
	return protocol.Header{Height: targetHeight}, nil, nil
}

// expectedConnectionState is the state the proven connection end must be
// in for a handshake message.
var expectedConnectionState = map[protocol.MsgKind]connectiontypes.State{
	protocol.MsgKindConnectionOpenTry:     connectiontypes.INIT,
	protocol.MsgKindConnectionOpenAck:     connectiontypes.TRYOPEN,
	protocol.MsgKindConnectionOpenConfirm: connectiontypes.OPEN,
}

// BuildConnectionProofsAndClientState proves the connection end at height.
// OpenTry and OpenAck also carry the client state of clientID.
func (a *Adapter) BuildConnectionProofsAndClientState(ctx context.Context, msg protocol.MsgKind, connectionID, clientID string, height protocol.Height) (*codectypes.Any, *protocol.Proofs, error) {
	number := height.GetRevisionHeight()
	at := new(big.Int).SetUint64(number)

	var end connectiontypes.ConnectionEnd
	if err := a.connectionAt(ctx, at, connectionID, &end); err != nil {
		return nil, nil, err
	}
	if want, ok := expectedConnectionState[msg]; ok && end.State != want {
		a.lggr.Warnw("Connection is not in the state the message expects",
			"msg", msg.String(), "connectionID", connectionID, "state", end.State.String(), "expected", want.String())
	}

	var clientState *codectypes.Any
	if msg == protocol.MsgKindConnectionOpenTry || msg == protocol.MsgKindConnectionOpenAck {
		cs, _, err := a.QueryClientState(ctx, protocol.QueryClientStateRequest{
			ClientID: clientID,
			Height:   protocol.SpecificHeight(height),
		}, protocol.IncludeProofNo)
		if err != nil {
			return nil, nil, err
		}
		clientState = cs
	}

	proofs, err := a.pipeline.GetProofs(ctx, number, commitment.Connection(connectionID))
	if err != nil {
		return nil, nil, err
	}
	return clientState, proofs, nil
}

func (a *Adapter) BuildChannelProofs(ctx context.Context, portID, channelID string, height protocol.Height) (*protocol.Proofs, error) {
	return a.pipeline.GetProofs(ctx, height.GetRevisionHeight(), commitment.ChannelEnd(portID, channelID))
}

// BuildPacketProofs proves the record msg relies on: the acknowledgement for
// acknowledgements, the receipt or next receive sequence for timeouts on
// unordered and ordered channels, and the commitment otherwise.
func (a *Adapter) BuildPacketProofs(ctx context.Context, msg protocol.MsgKind, portID, channelID string, sequence uint64, height protocol.Height) (*protocol.Proofs, error) {
	number := height.GetRevisionHeight()

	var path commitment.Path
	switch msg {
	case protocol.MsgKindAcknowledgement:
		path = commitment.PacketAcknowledgement(portID, channelID, sequence)
	case protocol.MsgKindTimeout:
		ch, err := a.channelAt(ctx, new(big.Int).SetUint64(number), portID, channelID)
		if err != nil {
			return nil, err
		}
		if ch.Ordering == channeltypes.ORDERED {
			path = commitment.NextSequenceRecv(portID, channelID)
		} else {
			path = commitment.PacketReceipt(portID, channelID, sequence)
		}
	default:
		path = commitment.PacketCommitment(portID, channelID, sequence)
	}
	return a.pipeline.GetProofs(ctx, number, path)
}

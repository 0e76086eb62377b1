package ckb

import (
	"context"
	"fmt"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"

	"github.com/Flouse/forcerelay/integration/pkg/txbuilder"
	"github.com/Flouse/forcerelay/protocol"
)

// BuildClientState describes this chain to a counterparty client. Only the
// Axon client and custom clients are accepted.
func (a *Adapter) BuildClientState(_ context.Context, height protocol.Height, settings protocol.ClientSettings) (protocol.ClientState, error) {
	switch settings.Kind {
	case protocol.ClientSettingsAxon, protocol.ClientSettingsOther:
	default:
		return protocol.ClientState{}, fmt.Errorf("%w: %s", protocol.ErrUnsupportedClientSettings, settings.Kind)
	}
	return protocol.ClientState{ChainID: a.identity.ChainID, LatestHeight: height}, nil
}

func (a *Adapter) BuildConsensusState(context.Context, protocol.Height) (protocol.ConsensusState, error) {
	return protocol.ConsensusState{}, nil
}

func (a *Adapter) BuildHeader(_ context.Context, _, targetHeight protocol.Height) (protocol.Header, []protocol.Header, error) {
	return protocol.Header{Height: targetHeight}, nil, nil
}

var expectedConnectionState = map[protocol.MsgKind]connectiontypes.State{
	protocol.MsgKindConnectionOpenTry:     connectiontypes.INIT,
	protocol.MsgKindConnectionOpenAck:     connectiontypes.TRYOPEN,
	protocol.MsgKindConnectionOpenConfirm: connectiontypes.OPEN,
}

// BuildConnectionProofsAndClientState proves the connections cell. OpenTry
// and OpenAck also carry the client cell.
func (a *Adapter) BuildConnectionProofsAndClientState(ctx context.Context, msg protocol.MsgKind, connectionID, clientID string, height protocol.Height) (*codectypes.Any, *protocol.Proofs, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := snap.checkHeight(protocol.SpecificHeight(height)); err != nil {
		return nil, nil, err
	}
	end, err := connectionEnd(snap, connectionID)
	if err != nil {
		return nil, nil, err
	}
	if want, ok := expectedConnectionState[msg]; ok && end.State != want {
		a.lggr.Warnw("Connection is not in the state the message expects",
			"msg", msg.String(), "connectionID", connectionID, "state", end.State.String(), "expected", want.String())
	}

	var clientState *codectypes.Any
	if msg == protocol.MsgKindConnectionOpenTry || msg == protocol.MsgKindConnectionOpenAck {
		if clientID != a.scripts.ClientID || snap.client == nil {
			return nil, nil, fmt.Errorf("%w: client %s does not exist", protocol.ErrQueryFailure, clientID)
		}
		clientState = clientStateAny(snap.client.Data)
	}

	proofs, err := snap.prove(*snap.connections)
	if err != nil {
		return nil, nil, err
	}
	return clientState, proofs, nil
}

func (a *Adapter) BuildChannelProofs(ctx context.Context, portID, channelID string, height protocol.Height) (*protocol.Proofs, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := snap.checkHeight(protocol.SpecificHeight(height)); err != nil {
		return nil, err
	}
	if _, _, err := snap.channel(portID, channelID); err != nil {
		return nil, err
	}
	return snap.prove(snap.channels[txbuilder.ChannelKey{ChannelID: channelID, PortID: portID}])
}

// BuildPacketProofs proves the cell msg relies on: the acknowledged packet
// cell for acknowledgements, the channel cell for timeouts and the sent
// packet cell otherwise.
func (a *Adapter) BuildPacketProofs(ctx context.Context, msg protocol.MsgKind, portID, channelID string, sequence uint64, height protocol.Height) (*protocol.Proofs, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := snap.checkHeight(protocol.SpecificHeight(height)); err != nil {
		return nil, err
	}

	switch msg {
	case protocol.MsgKindAcknowledgement:
		p, ok := snap.packetWith(portID, channelID, sequence, txbuilder.PacketStatusWriteAck)
		if !ok {
			return nil, fmt.Errorf("%w: acknowledgement of %s/%s/%d", protocol.ErrNotFound, portID, channelID, sequence)
		}
		return snap.prove(p.live)
	case protocol.MsgKindTimeout:
		if _, _, err := snap.channel(portID, channelID); err != nil {
			return nil, err
		}
		return snap.prove(snap.channels[txbuilder.ChannelKey{ChannelID: channelID, PortID: portID}])
	default:
		p, ok := snap.packetWith(portID, channelID, sequence, txbuilder.PacketStatusSend)
		if !ok {
			return nil, fmt.Errorf("%w: commitment of %s/%s/%d", protocol.ErrNotFound, portID, channelID, sequence)
		}
		return snap.prove(p.live)
	}
}

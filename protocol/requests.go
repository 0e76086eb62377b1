package protocol

import (
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
)

type QueryClientStateRequest struct {
	ClientID string
	Height   QueryHeight
}

type QueryConsensusStateRequest struct {
	ClientID        string
	ConsensusHeight Height
	QueryHeight     QueryHeight
}

type QueryConnectionRequest struct {
	ConnectionID string
	Height       QueryHeight
}

type QueryClientConnectionsRequest struct {
	ClientID string
}

type QueryConnectionChannelsRequest struct {
	ConnectionID string
}

type QueryChannelRequest struct {
	PortID    string
	ChannelID string
	Height    QueryHeight
}

type QueryChannelClientStateRequest struct {
	PortID    string
	ChannelID string
}

type QueryPacketRequest struct {
	PortID    string
	ChannelID string
	Sequence  uint64
	Height    QueryHeight
}

type QueryPacketsRequest struct {
	PortID    string
	ChannelID string
}

type QueryUnreceivedRequest struct {
	PortID    string
	ChannelID string
	Sequences []uint64
}

type QueryNextSequenceReceiveRequest struct {
	PortID    string
	ChannelID string
	Height    QueryHeight
}

type QueryHostConsensusStateRequest struct {
	Height QueryHeight
}

// QueryTxRequest selects transactions either by the client update that
// installed a consensus height, or by transaction hash. Exactly one of
// ClientID and TxHash is set.
type QueryTxRequest struct {
	ClientID        string
	ConsensusHeight Height
	TxHash          Bytes32
}

// PacketEventQuery selects packet-bearing events in a height range.
type PacketEventQuery struct {
	Height               QualifiedHeight
	Kind                 EventKind
	SourcePortID         string
	SourceChannelID      string
	DestinationPortID    string
	DestinationChannelID string
	Sequences            []uint64
}

// IdentifiedClientState is a client state paired with its identifier.
type IdentifiedClientState struct {
	ClientID    string
	ClientState *codectypes.Any
}

// PacketState is a stored packet commitment, receipt or acknowledgement.
type PacketState struct {
	PortID    string
	ChannelID string
	Sequence  uint64
	Data      []byte
}

// IdentifiedChannel re-exports the ibc-go type for adapter signatures.
type IdentifiedChannel = channeltypes.IdentifiedChannel

// Package commitment maps IBC state identifiers to ICS-24 commitment paths
// and to the storage slots the handler contract keeps their commitments in.
package commitment

import (
	"fmt"

	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	host "github.com/cosmos/ibc-go/v8/modules/core/24-host"
)

// PathKind identifies which piece of IBC state a Path points at.
type PathKind int

const (
	ClientStatePath PathKind = iota
	ConsensusStatePath
	ConnectionPath
	ChannelEndPath
	PacketCommitmentPath
	PacketAcknowledgementPath
	PacketReceiptPath
	NextSequenceRecvPath
)

func (k PathKind) String() string {
	switch k {
	case ClientStatePath:
		return "ClientState"
	case ConsensusStatePath:
		return "ConsensusState"
	case ConnectionPath:
		return "Connection"
	case ChannelEndPath:
		return "ChannelEnd"
	case PacketCommitmentPath:
		return "PacketCommitment"
	case PacketAcknowledgementPath:
		return "PacketAcknowledgement"
	case PacketReceiptPath:
		return "PacketReceipt"
	case NextSequenceRecvPath:
		return "NextSequenceRecv"
	default:
		return "Unknown"
	}
}

// Path is a typed ICS-24 commitment path. Only the identifiers relevant to
// Kind are set.
type Path struct {
	Kind         PathKind
	ClientID     string
	Height       clienttypes.Height
	ConnectionID string
	PortID       string
	ChannelID    string
	Sequence     uint64
}

func ClientState(clientID string) Path {
	return Path{Kind: ClientStatePath, ClientID: clientID}
}

func ConsensusState(clientID string, height clienttypes.Height) Path {
	return Path{Kind: ConsensusStatePath, ClientID: clientID, Height: height}
}

func Connection(connectionID string) Path {
	return Path{Kind: ConnectionPath, ConnectionID: connectionID}
}

func ChannelEnd(portID, channelID string) Path {
	return Path{Kind: ChannelEndPath, PortID: portID, ChannelID: channelID}
}

func PacketCommitment(portID, channelID string, sequence uint64) Path {
	return Path{Kind: PacketCommitmentPath, PortID: portID, ChannelID: channelID, Sequence: sequence}
}

func PacketAcknowledgement(portID, channelID string, sequence uint64) Path {
	return Path{Kind: PacketAcknowledgementPath, PortID: portID, ChannelID: channelID, Sequence: sequence}
}

func PacketReceipt(portID, channelID string, sequence uint64) Path {
	return Path{Kind: PacketReceiptPath, PortID: portID, ChannelID: channelID, Sequence: sequence}
}

func NextSequenceRecv(portID, channelID string) Path {
	return Path{Kind: NextSequenceRecvPath, PortID: portID, ChannelID: channelID}
}

// String renders the canonical ICS-24 key.
func (p Path) String() string {
	switch p.Kind {
	case ClientStatePath:
		return host.FullClientStatePath(p.ClientID)
	case ConsensusStatePath:
		return host.FullConsensusStatePath(p.ClientID, p.Height)
	case ConnectionPath:
		return host.ConnectionPath(p.ConnectionID)
	case ChannelEndPath:
		return host.ChannelPath(p.PortID, p.ChannelID)
	case PacketCommitmentPath:
		return host.PacketCommitmentPath(p.PortID, p.ChannelID, p.Sequence)
	case PacketAcknowledgementPath:
		return host.PacketAcknowledgementPath(p.PortID, p.ChannelID, p.Sequence)
	case PacketReceiptPath:
		return host.PacketReceiptPath(p.PortID, p.ChannelID, p.Sequence)
	case NextSequenceRecvPath:
		return host.NextSequenceRecvPath(p.PortID, p.ChannelID)
	default:
		return fmt.Sprintf("unknown/%d", p.Kind)
	}
}

// Bytes is the path as the byte string hashed into the storage key.
func (p Path) Bytes() []byte {
	return []byte(p.String())
}

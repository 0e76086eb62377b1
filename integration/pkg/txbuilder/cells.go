// Package txbuilder turns IBC messages into unsigned cell chain
// transactions. It performs no I/O: every cell it spends or references comes
// from a LookupContext the caller refreshed beforehand.
package txbuilder

import (
	"encoding/binary"
	"fmt"

	"github.com/cosmos/gogoproto/proto"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	ckbtypes "github.com/nervosnetwork/ckb-sdk-go/v2/types"

	"github.com/Flouse/forcerelay/protocol"
)

// ConnectionsCell is the data of the single cell holding every connection
// end of a client, indexed by connection number.
type ConnectionsCell struct {
	NextChannelNumber uint64
	// Connections holds protobuf encoded connection ends.
	Connections [][]byte
}

// ChannelCell is the data of a channel cell.
type ChannelCell struct {
	Number uint64
	PortID string
	// Channel is the protobuf encoded channel end.
	Channel          []byte
	NextSequenceSend uint64
	NextSequenceRecv uint64
	NextSequenceAck  uint64
	// ReceivedSequences records receipts of an unordered channel.
	ReceivedSequences []uint64
}

// PacketStatus is the lifecycle stage recorded in a packet cell.
type PacketStatus uint8

const (
	PacketStatusSend PacketStatus = iota + 1
	PacketStatusRecv
	PacketStatusWriteAck
	PacketStatusAck
)

func (s PacketStatus) String() string {
	switch s {
	case PacketStatusSend:
		return "Send"
	case PacketStatusRecv:
		return "Recv"
	case PacketStatusWriteAck:
		return "WriteAck"
	case PacketStatusAck:
		return "Ack"
	default:
		return fmt.Sprintf("PacketStatus(%d)", uint8(s))
	}
}

// Direction is which side of the local channel owns a packet in s. Sent and
// acknowledged packets are outgoing, received ones incoming.
func (s PacketStatus) Direction() PacketDirection {
	if s == PacketStatusRecv || s == PacketStatusWriteAck {
		return PacketIncoming
	}
	return PacketOutgoing
}

// PacketCell is the data of a packet cell.
type PacketCell struct {
	// Packet is the protobuf encoded packet.
	Packet []byte
	Status PacketStatus
	Ack    []byte
}

// Envelope travels in the transaction witness and tells the on-chain scripts
// which message the transaction executes.
type Envelope struct {
	MsgKind uint8
	// Content is the protobuf encoded message, proofs included.
	Content []byte
}

func (c *ConnectionsCell) Connection(number uint64) (connectiontypes.ConnectionEnd, error) {
	var end connectiontypes.ConnectionEnd
	if number >= uint64(len(c.Connections)) {
		return end, fmt.Errorf("%w: %s", protocol.ErrNotFound, connectiontypes.FormatConnectionIdentifier(number))
	}
	if err := proto.Unmarshal(c.Connections[number], &end); err != nil {
		return end, fmt.Errorf("%w: connection %d: %w", protocol.ErrMalformedProof, number, err)
	}
	return end, nil
}

func (c *ChannelCell) End() (channeltypes.Channel, error) {
	var end channeltypes.Channel
	if err := proto.Unmarshal(c.Channel, &end); err != nil {
		return end, fmt.Errorf("%w: channel %d: %w", protocol.ErrMalformedProof, c.Number, err)
	}
	return end, nil
}

func (c *PacketCell) Decode() (channeltypes.Packet, error) {
	var p channeltypes.Packet
	if err := proto.Unmarshal(c.Packet, &p); err != nil {
		return p, fmt.Errorf("%w: packet cell: %w", protocol.ErrMalformedProof, err)
	}
	return p, nil
}

func DecodeConnectionsCell(data []byte) (*ConnectionsCell, error) {
	var c ConnectionsCell
	if err := rlp.DecodeBytes(data, &c); err != nil {
		return nil, fmt.Errorf("invalid connections cell: %w", err)
	}
	return &c, nil
}

func DecodeChannelCell(data []byte) (*ChannelCell, error) {
	var c ChannelCell
	if err := rlp.DecodeBytes(data, &c); err != nil {
		return nil, fmt.Errorf("invalid channel cell: %w", err)
	}
	return &c, nil
}

func DecodePacketCell(data []byte) (*PacketCell, error) {
	var c PacketCell
	if err := rlp.DecodeBytes(data, &c); err != nil {
		return nil, fmt.Errorf("invalid packet cell: %w", err)
	}
	return &c, nil
}

// ConnectionArgs is the type script args of a client's connections cell.
func ConnectionArgs(clientID [32]byte) []byte {
	return append([]byte(nil), clientID[:]...)
}

// ChannelArgs is the type script args of a channel cell. The client id
// prefix lets the indexer list every channel of a client.
func ChannelArgs(clientID [32]byte, channelNumber uint64, portID string) []byte {
	args := make([]byte, 0, 32+8+32)
	args = append(args, clientID[:]...)
	args = binary.BigEndian.AppendUint64(args, channelNumber)
	return append(args, crypto.Keccak256([]byte(portID))...)
}

// PacketArgs is the type script args of a packet cell.
func PacketArgs(clientID [32]byte, channelNumber uint64, portID string, sequence uint64) []byte {
	return binary.BigEndian.AppendUint64(ChannelArgs(clientID, channelNumber, portID), sequence)
}

func typeScript(codeHash ckbtypes.Hash, args []byte) *ckbtypes.Script {
	return &ckbtypes.Script{CodeHash: codeHash, HashType: ckbtypes.HashTypeType, Args: args}
}

const shannonsPerByte = 100_000_000

// occupiedCapacity is the minimal capacity in shannons a cell with output
// and data must hold.
func occupiedCapacity(output *ckbtypes.CellOutput, data []byte) uint64 {
	size := uint64(8 + len(data))
	for _, s := range []*ckbtypes.Script{output.Lock, output.Type} {
		if s != nil {
			size += uint64(32 + 1 + len(s.Args))
		}
	}
	return size * shannonsPerByte
}

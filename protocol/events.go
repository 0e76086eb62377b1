package protocol

import (
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
)

// EventKind enumerates the canonical IBC events an adapter can report.
type EventKind int

const (
	EventKindUnknown EventKind = iota
	EventKindCreateClient
	EventKindUpdateClient
	EventKindOpenInitConnection
	EventKindOpenTryConnection
	EventKindOpenAckConnection
	EventKindOpenConfirmConnection
	EventKindOpenInitChannel
	EventKindOpenTryChannel
	EventKindOpenAckChannel
	EventKindOpenConfirmChannel
	EventKindCloseInitChannel
	EventKindCloseConfirmChannel
	EventKindSendPacket
	EventKindWriteAcknowledgement
	EventKindReceivePacket
	EventKindAcknowledgePacket
	EventKindTimeoutPacket
)

var eventKindNames = map[EventKind]string{
	EventKindCreateClient:          "CreateClient",
	EventKindUpdateClient:          "UpdateClient",
	EventKindOpenInitConnection:    "OpenInitConnection",
	EventKindOpenTryConnection:     "OpenTryConnection",
	EventKindOpenAckConnection:     "OpenAckConnection",
	EventKindOpenConfirmConnection: "OpenConfirmConnection",
	EventKindOpenInitChannel:       "OpenInitChannel",
	EventKindOpenTryChannel:        "OpenTryChannel",
	EventKindOpenAckChannel:        "OpenAckChannel",
	EventKindOpenConfirmChannel:    "OpenConfirmChannel",
	EventKindCloseInitChannel:      "CloseInitChannel",
	EventKindCloseConfirmChannel:   "CloseConfirmChannel",
	EventKindSendPacket:            "SendPacket",
	EventKindWriteAcknowledgement:  "WriteAcknowledgement",
	EventKindReceivePacket:         "ReceivePacket",
	EventKindAcknowledgePacket:     "AcknowledgePacket",
	EventKindTimeoutPacket:         "TimeoutPacket",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// IBCEvent is implemented by every canonical event payload.
type IBCEvent interface {
	Kind() EventKind
}

// PacketEvent is an IBCEvent that carries a packet.
type PacketEvent interface {
	IBCEvent
	GetPacket() channeltypes.Packet
}

// IBCEventWithHeight is a canonical event together with where it was recorded.
type IBCEventWithHeight struct {
	Event  IBCEvent
	Height Height
	TxHash Bytes32
}

type ClientAttributes struct {
	ClientID        string
	ClientType      string
	ConsensusHeight Height
}

type CreateClient struct{ ClientAttributes }

func (CreateClient) Kind() EventKind { return EventKindCreateClient }

type UpdateClient struct {
	ClientAttributes
	Header []byte
}

func (UpdateClient) Kind() EventKind { return EventKindUpdateClient }

type ConnectionAttributes struct {
	ConnectionID             string
	ClientID                 string
	CounterpartyConnectionID string
	CounterpartyClientID     string
}

type OpenInitConnection struct{ ConnectionAttributes }

func (OpenInitConnection) Kind() EventKind { return EventKindOpenInitConnection }

type OpenTryConnection struct{ ConnectionAttributes }

func (OpenTryConnection) Kind() EventKind { return EventKindOpenTryConnection }

type OpenAckConnection struct{ ConnectionAttributes }

func (OpenAckConnection) Kind() EventKind { return EventKindOpenAckConnection }

type OpenConfirmConnection struct{ ConnectionAttributes }

func (OpenConfirmConnection) Kind() EventKind { return EventKindOpenConfirmConnection }

type ChannelAttributes struct {
	PortID                string
	ChannelID             string
	ConnectionID          string
	CounterpartyPortID    string
	CounterpartyChannelID string
}

type OpenInitChannel struct{ ChannelAttributes }

func (OpenInitChannel) Kind() EventKind { return EventKindOpenInitChannel }

type OpenTryChannel struct{ ChannelAttributes }

func (OpenTryChannel) Kind() EventKind { return EventKindOpenTryChannel }

type OpenAckChannel struct{ ChannelAttributes }

func (OpenAckChannel) Kind() EventKind { return EventKindOpenAckChannel }

type OpenConfirmChannel struct{ ChannelAttributes }

func (OpenConfirmChannel) Kind() EventKind { return EventKindOpenConfirmChannel }

type CloseInitChannel struct{ ChannelAttributes }

func (CloseInitChannel) Kind() EventKind { return EventKindCloseInitChannel }

type CloseConfirmChannel struct{ ChannelAttributes }

func (CloseConfirmChannel) Kind() EventKind { return EventKindCloseConfirmChannel }

type SendPacket struct{ Packet channeltypes.Packet }

func (SendPacket) Kind() EventKind                  { return EventKindSendPacket }
func (e SendPacket) GetPacket() channeltypes.Packet { return e.Packet }

type ReceivePacket struct{ Packet channeltypes.Packet }

func (ReceivePacket) Kind() EventKind                  { return EventKindReceivePacket }
func (e ReceivePacket) GetPacket() channeltypes.Packet { return e.Packet }

type WriteAcknowledgement struct {
	Packet channeltypes.Packet
	Ack    []byte
}

func (WriteAcknowledgement) Kind() EventKind                  { return EventKindWriteAcknowledgement }
func (e WriteAcknowledgement) GetPacket() channeltypes.Packet { return e.Packet }

type AcknowledgePacket struct{ Packet channeltypes.Packet }

func (AcknowledgePacket) Kind() EventKind                  { return EventKindAcknowledgePacket }
func (e AcknowledgePacket) GetPacket() channeltypes.Packet { return e.Packet }

type TimeoutPacket struct{ Packet channeltypes.Packet }

func (TimeoutPacket) Kind() EventKind                  { return EventKindTimeoutPacket }
func (e TimeoutPacket) GetPacket() channeltypes.Packet { return e.Packet }

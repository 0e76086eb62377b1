package protocol

import (
	"fmt"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/gogoproto/proto"
	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
)

// MsgKind enumerates the IBC messages an adapter can be asked to submit.
type MsgKind int

const (
	MsgKindUnknown MsgKind = iota
	MsgKindCreateClient
	MsgKindUpdateClient
	MsgKindConnectionOpenInit
	MsgKindConnectionOpenTry
	MsgKindConnectionOpenAck
	MsgKindConnectionOpenConfirm
	MsgKindChannelOpenInit
	MsgKindChannelOpenTry
	MsgKindChannelOpenAck
	MsgKindChannelOpenConfirm
	MsgKindChannelCloseInit
	MsgKindChannelCloseConfirm
	MsgKindRecvPacket
	MsgKindAcknowledgement
	MsgKindTimeout
)

// msgPrototypes is the closed set of supported messages. Every other type URL
// resolves to MsgKindUnknown.
var msgPrototypes = map[MsgKind]func() proto.Message{
	MsgKindCreateClient:          func() proto.Message { return &clienttypes.MsgCreateClient{} },
	MsgKindUpdateClient:          func() proto.Message { return &clienttypes.MsgUpdateClient{} },
	MsgKindConnectionOpenInit:    func() proto.Message { return &connectiontypes.MsgConnectionOpenInit{} },
	MsgKindConnectionOpenTry:     func() proto.Message { return &connectiontypes.MsgConnectionOpenTry{} },
	MsgKindConnectionOpenAck:     func() proto.Message { return &connectiontypes.MsgConnectionOpenAck{} },
	MsgKindConnectionOpenConfirm: func() proto.Message { return &connectiontypes.MsgConnectionOpenConfirm{} },
	MsgKindChannelOpenInit:       func() proto.Message { return &channeltypes.MsgChannelOpenInit{} },
	MsgKindChannelOpenTry:        func() proto.Message { return &channeltypes.MsgChannelOpenTry{} },
	MsgKindChannelOpenAck:        func() proto.Message { return &channeltypes.MsgChannelOpenAck{} },
	MsgKindChannelOpenConfirm:    func() proto.Message { return &channeltypes.MsgChannelOpenConfirm{} },
	MsgKindChannelCloseInit:      func() proto.Message { return &channeltypes.MsgChannelCloseInit{} },
	MsgKindChannelCloseConfirm:   func() proto.Message { return &channeltypes.MsgChannelCloseConfirm{} },
	MsgKindRecvPacket:            func() proto.Message { return &channeltypes.MsgRecvPacket{} },
	MsgKindAcknowledgement:       func() proto.Message { return &channeltypes.MsgAcknowledgement{} },
	MsgKindTimeout:               func() proto.Message { return &channeltypes.MsgTimeout{} },
}

var msgKindsByTypeURL = func() map[string]MsgKind {
	m := make(map[string]MsgKind, len(msgPrototypes))
	for kind, newMsg := range msgPrototypes {
		m["/"+proto.MessageName(newMsg())] = kind
	}
	return m
}()

// ParseMsgKind resolves a protobuf type URL to its message kind.
func ParseMsgKind(typeURL string) MsgKind {
	return msgKindsByTypeURL[typeURL]
}

// TypeURL returns the protobuf type URL of the kind, or "" for unknown kinds.
func (k MsgKind) TypeURL() string {
	newMsg, ok := msgPrototypes[k]
	if !ok {
		return ""
	}
	return "/" + proto.MessageName(newMsg())
}

func (k MsgKind) String() string {
	newMsg, ok := msgPrototypes[k]
	if !ok {
		return "Unknown"
	}
	return proto.MessageName(newMsg())
}

// DecodeMsg resolves the kind of msg and unmarshals its payload.
func DecodeMsg(msg *codectypes.Any) (MsgKind, proto.Message, error) {
	if msg == nil {
		return MsgKindUnknown, nil, fmt.Errorf("%w: nil message", ErrUnsupportedMessageType)
	}
	kind := ParseMsgKind(msg.TypeUrl)
	if kind == MsgKindUnknown {
		return kind, nil, fmt.Errorf("%w: %s", ErrUnsupportedMessageType, msg.TypeUrl)
	}
	decoded := msgPrototypes[kind]()
	if err := proto.Unmarshal(msg.Value, decoded); err != nil {
		return kind, nil, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return kind, decoded, nil
}

// EncodeMsg wraps msg into an Any with its canonical type URL.
func EncodeMsg(msg proto.Message) (*codectypes.Any, error) {
	value, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", proto.MessageName(msg), err)
	}
	return &codectypes.Any{TypeUrl: "/" + proto.MessageName(msg), Value: value}, nil
}

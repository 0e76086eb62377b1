// Package events turns IBC handler logs into canonical protocol events.
package events

import (
	"errors"
	"fmt"
	"strings"

	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/protocol"
)

var (
	handlerABI  = mustParseABI(HandlerABI)
	transferABI = mustParseABI(TransferABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

// Handler returns the parsed IBC handler ABI.
func Handler() *abi.ABI {
	return &handlerABI
}

// Transfer returns the parsed ICS-20 transfer ABI.
func Transfer() *abi.ABI {
	return &transferABI
}

// eventKinds maps handler event names 1:1 to canonical kinds.
var eventKinds = map[string]protocol.EventKind{
	"CreateClient":          protocol.EventKindCreateClient,
	"UpdateClient":          protocol.EventKindUpdateClient,
	"OpenInitConnection":    protocol.EventKindOpenInitConnection,
	"OpenTryConnection":     protocol.EventKindOpenTryConnection,
	"OpenAckConnection":     protocol.EventKindOpenAckConnection,
	"OpenConfirmConnection": protocol.EventKindOpenConfirmConnection,
	"OpenInitChannel":       protocol.EventKindOpenInitChannel,
	"OpenTryChannel":        protocol.EventKindOpenTryChannel,
	"OpenAckChannel":        protocol.EventKindOpenAckChannel,
	"OpenConfirmChannel":    protocol.EventKindOpenConfirmChannel,
	"CloseInitChannel":      protocol.EventKindCloseInitChannel,
	"CloseConfirmChannel":   protocol.EventKindCloseConfirmChannel,
	"SendPacket":            protocol.EventKindSendPacket,
	"ReceivePacket":         protocol.EventKindReceivePacket,
	"WriteAcknowledgement":  protocol.EventKindWriteAcknowledgement,
	"AcknowledgePacket":     protocol.EventKindAcknowledgePacket,
}

// EventName returns the handler event emitted for kind.
func EventName(kind protocol.EventKind) (string, bool) {
	for name, k := range eventKinds {
		if k == kind {
			return name, true
		}
	}
	return "", false
}

type clientLog struct {
	ClientId       string //nolint:revive // matches ABI argument name
	ClientType     string
	RevisionNumber uint64
	RevisionHeight uint64
	Header         []byte
}

type connectionLog struct {
	ConnectionId             string //nolint:revive // matches ABI argument name
	ClientId                 string //nolint:revive // matches ABI argument name
	CounterpartyConnectionId string //nolint:revive // matches ABI argument name
	CounterpartyClientId     string //nolint:revive // matches ABI argument name
}

type channelLog struct {
	PortId                string //nolint:revive // matches ABI argument name
	ChannelId             string //nolint:revive // matches ABI argument name
	ConnectionId          string //nolint:revive // matches ABI argument name
	CounterpartyPortId    string //nolint:revive // matches ABI argument name
	CounterpartyChannelId string //nolint:revive // matches ABI argument name
}

type packetLog struct {
	Sequence              uint64
	SourcePort            string
	SourceChannel         string
	DestinationPort       string
	DestinationChannel    string
	Data                  []byte
	TimeoutRevisionNumber uint64
	TimeoutRevisionHeight uint64
	TimeoutTimestamp      uint64
	Acknowledgement       []byte
}

func (p packetLog) packet() channeltypes.Packet {
	return channeltypes.Packet{
		Sequence:           p.Sequence,
		SourcePort:         p.SourcePort,
		SourceChannel:      p.SourceChannel,
		DestinationPort:    p.DestinationPort,
		DestinationChannel: p.DestinationChannel,
		Data:               p.Data,
		TimeoutHeight:      clienttypes.NewHeight(p.TimeoutRevisionNumber, p.TimeoutRevisionHeight),
		TimeoutTimestamp:   p.TimeoutTimestamp,
	}
}

// Translator decodes logs emitted by one IBC handler contract.
//
// Thread-safety: Translator is immutable and safe for concurrent use.
type Translator struct {
	handler common.Address
}

func NewTranslator(handler common.Address) (*Translator, error) {
	if handler == (common.Address{}) {
		return nil, errors.New("handler address is not set")
	}
	return &Translator{handler: handler}, nil
}

// Handler is the address whose logs are translated.
func (t *Translator) Handler() common.Address {
	return t.handler
}

// Translate maps log to at most one canonical event. Logs from other
// contracts and unknown event variants return ok == false and no error. A
// known variant whose payload does not decode is an error.
func (t *Translator) Translate(log types.Log) (ev protocol.IBCEventWithHeight, ok bool, err error) {
	kind, name, known := t.kindOf(log)
	if !known {
		return ev, false, nil
	}
	return t.translate(log, kind, name)
}

// kindOf identifies the event variant of log without decoding its payload.
func (t *Translator) kindOf(log types.Log) (protocol.EventKind, string, bool) {
	if log.Address != t.handler || len(log.Topics) == 0 {
		return protocol.EventKindUnknown, "", false
	}
	event, err := handlerABI.EventByID(log.Topics[0])
	if err != nil {
		return protocol.EventKindUnknown, "", false
	}
	kind, known := eventKinds[event.Name]
	return kind, event.Name, known
}

func (t *Translator) translate(log types.Log, kind protocol.EventKind, name string) (protocol.IBCEventWithHeight, bool, error) {
	payload, err := decode(kind, name, log.Data)
	if err != nil {
		return protocol.IBCEventWithHeight{}, false, fmt.Errorf("failed to decode %s log in tx %s: %w", name, log.TxHash, err)
	}
	return protocol.IBCEventWithHeight{
		Event:  payload,
		Height: protocol.NewHeight(log.BlockNumber),
		TxHash: protocol.Bytes32(log.TxHash),
	}, true, nil
}

func decode(kind protocol.EventKind, name string, data []byte) (protocol.IBCEvent, error) {
	switch kind {
	case protocol.EventKindCreateClient, protocol.EventKindUpdateClient:
		var l clientLog
		if err := handlerABI.UnpackIntoInterface(&l, name, data); err != nil {
			return nil, err
		}
		attrs := protocol.ClientAttributes{
			ClientID:        l.ClientId,
			ClientType:      l.ClientType,
			ConsensusHeight: clienttypes.NewHeight(l.RevisionNumber, l.RevisionHeight),
		}
		if kind == protocol.EventKindCreateClient {
			return protocol.CreateClient{ClientAttributes: attrs}, nil
		}
		return protocol.UpdateClient{ClientAttributes: attrs, Header: l.Header}, nil

	case protocol.EventKindOpenInitConnection, protocol.EventKindOpenTryConnection,
		protocol.EventKindOpenAckConnection, protocol.EventKindOpenConfirmConnection:
		var l connectionLog
		if err := handlerABI.UnpackIntoInterface(&l, name, data); err != nil {
			return nil, err
		}
		attrs := protocol.ConnectionAttributes{
			ConnectionID:             l.ConnectionId,
			ClientID:                 l.ClientId,
			CounterpartyConnectionID: l.CounterpartyConnectionId,
			CounterpartyClientID:     l.CounterpartyClientId,
		}
		switch kind {
		case protocol.EventKindOpenInitConnection:
			return protocol.OpenInitConnection{ConnectionAttributes: attrs}, nil
		case protocol.EventKindOpenTryConnection:
			return protocol.OpenTryConnection{ConnectionAttributes: attrs}, nil
		case protocol.EventKindOpenAckConnection:
			return protocol.OpenAckConnection{ConnectionAttributes: attrs}, nil
		default:
			return protocol.OpenConfirmConnection{ConnectionAttributes: attrs}, nil
		}

	case protocol.EventKindOpenInitChannel, protocol.EventKindOpenTryChannel,
		protocol.EventKindOpenAckChannel, protocol.EventKindOpenConfirmChannel,
		protocol.EventKindCloseInitChannel, protocol.EventKindCloseConfirmChannel:
		var l channelLog
		if err := handlerABI.UnpackIntoInterface(&l, name, data); err != nil {
			return nil, err
		}
		attrs := protocol.ChannelAttributes{
			PortID:                l.PortId,
			ChannelID:             l.ChannelId,
			ConnectionID:          l.ConnectionId,
			CounterpartyPortID:    l.CounterpartyPortId,
			CounterpartyChannelID: l.CounterpartyChannelId,
		}
		switch kind {
		case protocol.EventKindOpenInitChannel:
			return protocol.OpenInitChannel{ChannelAttributes: attrs}, nil
		case protocol.EventKindOpenTryChannel:
			return protocol.OpenTryChannel{ChannelAttributes: attrs}, nil
		case protocol.EventKindOpenAckChannel:
			return protocol.OpenAckChannel{ChannelAttributes: attrs}, nil
		case protocol.EventKindOpenConfirmChannel:
			return protocol.OpenConfirmChannel{ChannelAttributes: attrs}, nil
		case protocol.EventKindCloseInitChannel:
			return protocol.CloseInitChannel{ChannelAttributes: attrs}, nil
		default:
			return protocol.CloseConfirmChannel{ChannelAttributes: attrs}, nil
		}

	case protocol.EventKindSendPacket, protocol.EventKindReceivePacket,
		protocol.EventKindWriteAcknowledgement, protocol.EventKindAcknowledgePacket:
		var l packetLog
		if err := handlerABI.UnpackIntoInterface(&l, name, data); err != nil {
			return nil, err
		}
		switch kind {
		case protocol.EventKindSendPacket:
			return protocol.SendPacket{Packet: l.packet()}, nil
		case protocol.EventKindReceivePacket:
			return protocol.ReceivePacket{Packet: l.packet()}, nil
		case protocol.EventKindWriteAcknowledgement:
			return protocol.WriteAcknowledgement{Packet: l.packet(), Ack: l.Acknowledgement}, nil
		default:
			return protocol.AcknowledgePacket{Packet: l.packet()}, nil
		}
	}
	return nil, fmt.Errorf("no decoder for %s", kind)
}

// TranslateAll translates logs in order, keeping events accepted by filter.
// A nil filter keeps every event.
func (t *Translator) TranslateAll(logs []types.Log, filter chainaccess.EventFilter) ([]protocol.IBCEventWithHeight, error) {
	var out []protocol.IBCEventWithHeight
	for _, log := range logs {
		ev, ok, err := t.Translate(log)
		if err != nil {
			return nil, err
		}
		if !ok || (filter != nil && !filter.Filter(ev.Event)) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// FirstClientUpdate returns the first UpdateClient event of clientID in log
// order, even if more exist.
func (t *Translator) FirstClientUpdate(logs []types.Log, clientID string) (protocol.IBCEventWithHeight, bool, error) {
	filter := chainaccess.AllOf{
		&chainaccess.KindFilter{Kinds: []protocol.EventKind{protocol.EventKindUpdateClient}},
		&chainaccess.ClientFilter{ClientID: clientID},
	}
	for _, log := range logs {
		if kind, _, known := t.kindOf(log); !known || kind != protocol.EventKindUpdateClient {
			continue
		}
		ev, ok, err := t.Translate(log)
		if err != nil {
			return ev, false, err
		}
		if ok && filter.Filter(ev.Event) {
			return ev, true, nil
		}
	}
	return protocol.IBCEventWithHeight{}, false, nil
}

// ExpectOne recovers the single event of kind from a receipt's logs. Logs of
// other kinds are not decoded. Zero matches is protocol.ErrEventNotFound,
// more than one is protocol.ErrAmbiguousEvent.
func (t *Translator) ExpectOne(logs []types.Log, kind protocol.EventKind) (protocol.IBCEventWithHeight, error) {
	var matches []protocol.IBCEventWithHeight
	for _, log := range logs {
		got, name, known := t.kindOf(log)
		if !known || got != kind {
			continue
		}
		ev, _, err := t.translate(log, got, name)
		if err != nil {
			return protocol.IBCEventWithHeight{}, err
		}
		matches = append(matches, ev)
	}
	switch len(matches) {
	case 0:
		return protocol.IBCEventWithHeight{}, fmt.Errorf("%w: no %s log among %d logs", protocol.ErrEventNotFound, kind, len(logs))
	case 1:
		return matches[0], nil
	default:
		return protocol.IBCEventWithHeight{}, fmt.Errorf("%w: %d %s logs", protocol.ErrAmbiguousEvent, len(matches), kind)
	}
}

// Package dispatcher submits IBC messages to the account chain handler and
// resolves the event each one produced.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/gogoproto/proto"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Flouse/forcerelay/integration/pkg/events"
	"github.com/Flouse/forcerelay/integration/pkg/monitoring"
	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// route is how one message kind reaches the handler.
type route struct {
	method string
	// convert turns the decoded message into the payload the method takes.
	// Nil passes the message through.
	convert  func(proto.Message) (proto.Message, error)
	expected protocol.EventKind
}

var routes = map[protocol.MsgKind]route{
	protocol.MsgKindCreateClient:          {method: "createClient", expected: protocol.EventKindCreateClient},
	protocol.MsgKindUpdateClient:          {method: "updateClient", expected: protocol.EventKindUpdateClient},
	protocol.MsgKindConnectionOpenInit:    {method: "connectionOpenInit", expected: protocol.EventKindOpenInitConnection},
	protocol.MsgKindConnectionOpenTry:     {method: "connectionOpenTry", expected: protocol.EventKindOpenTryConnection},
	protocol.MsgKindConnectionOpenAck:     {method: "connectionOpenAck", expected: protocol.EventKindOpenAckConnection},
	protocol.MsgKindConnectionOpenConfirm: {method: "connectionOpenConfirm", expected: protocol.EventKindOpenConfirmConnection},
	protocol.MsgKindChannelOpenInit:       {method: "channelOpenInit", expected: protocol.EventKindOpenInitChannel},
	protocol.MsgKindChannelOpenTry:        {method: "channelOpenTry", expected: protocol.EventKindOpenTryChannel},
	protocol.MsgKindChannelOpenAck:        {method: "channelOpenAck", expected: protocol.EventKindOpenAckChannel},
	protocol.MsgKindChannelOpenConfirm:    {method: "channelOpenConfirm", expected: protocol.EventKindOpenConfirmChannel},
	protocol.MsgKindChannelCloseInit:      {method: "channelCloseInit", expected: protocol.EventKindCloseInitChannel},
	protocol.MsgKindChannelCloseConfirm:   {method: "channelCloseConfirm", expected: protocol.EventKindCloseConfirmChannel},
	protocol.MsgKindRecvPacket:            {method: "recvPacket", expected: protocol.EventKindReceivePacket},
	protocol.MsgKindAcknowledgement:       {method: "acknowledgePacket", expected: protocol.EventKindAcknowledgePacket},
	// The handler has no timeout entry point. A timeout is relayed as a
	// receive of the same packet.
	protocol.MsgKindTimeout: {method: "recvPacket", convert: timeoutAsRecv, expected: protocol.EventKindReceivePacket},
}

func timeoutAsRecv(msg proto.Message) (proto.Message, error) {
	timeout, ok := msg.(*channeltypes.MsgTimeout)
	if !ok {
		return nil, fmt.Errorf("expected MsgTimeout, got %T", msg)
	}
	return &channeltypes.MsgRecvPacket{
		Packet:          timeout.Packet,
		ProofCommitment: timeout.ProofUnreceived,
		ProofHeight:     timeout.ProofHeight,
		Signer:          timeout.Signer,
	}, nil
}

// Supports reports whether kind has a route to the handler.
func Supports(kind protocol.MsgKind) bool {
	_, ok := routes[kind]
	return ok
}

// ExpectedEvent is the event kind a successful submission of kind emits.
func ExpectedEvent(kind protocol.MsgKind) (protocol.EventKind, bool) {
	r, ok := routes[kind]
	return r.expected, ok
}

// EncodeCall returns the handler calldata for msg and the event kind its
// receipt must carry.
func EncodeCall(msg *codectypes.Any) (protocol.MsgKind, []byte, protocol.EventKind, error) {
	kind, decoded, err := protocol.DecodeMsg(msg)
	if err != nil {
		return kind, nil, protocol.EventKindUnknown, err
	}
	r, ok := routes[kind]
	if !ok {
		return kind, nil, protocol.EventKindUnknown, fmt.Errorf("%w: %s", protocol.ErrUnsupportedMessageType, msg.TypeUrl)
	}
	payload := decoded
	if r.convert != nil {
		if payload, err = r.convert(decoded); err != nil {
			return kind, nil, protocol.EventKindUnknown, err
		}
	}
	raw, err := proto.Marshal(payload)
	if err != nil {
		return kind, nil, protocol.EventKindUnknown, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	data, err := events.Handler().Pack(r.method, raw)
	if err != nil {
		return kind, nil, protocol.EventKindUnknown, fmt.Errorf("failed to pack %s: %w", r.method, err)
	}
	return kind, data, r.expected, nil
}

// Dispatcher submits messages one at a time and returns the single event
// each produced.
type Dispatcher struct {
	translator  *events.Translator
	transmitter chainaccess.ContractTransmitter
	lggr        logger.Logger
	metrics     *monitoring.MetricLabeler
}

func NewDispatcher(translator *events.Translator, transmitter chainaccess.ContractTransmitter, lggr logger.Logger, metrics *monitoring.MetricLabeler) (*Dispatcher, error) {
	var errs []error
	if translator == nil {
		errs = append(errs, errors.New("translator is not set"))
	}
	if transmitter == nil {
		errs = append(errs, errors.New("transmitter is not set"))
	}
	if lggr == nil {
		errs = append(errs, errors.New("logger is not set"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Dispatcher{
		translator:  translator,
		transmitter: transmitter,
		lggr:        logger.Named(lggr, "Dispatcher"),
		metrics:     metrics,
	}, nil
}

// Dispatch submits msg, waits for inclusion and returns the expected event
// at the receipt's height.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *codectypes.Any) (protocol.IBCEventWithHeight, error) {
	kind, data, expected, err := EncodeCall(msg)
	if err != nil {
		return protocol.IBCEventWithHeight{}, err
	}

	receipt, err := d.transmitter.Transact(ctx, d.translator.Handler(), data)
	if err != nil {
		d.metrics.IncrementSubmissionFailures(kind.String())
		return protocol.IBCEventWithHeight{}, fmt.Errorf("failed to submit %s: %w", kind, err)
	}
	d.metrics.IncrementMessagesSubmitted(kind.String())

	return d.resolve(kind, expected, receipt)
}

// resolve packages the expected event of a receipt. EVMContractTransmitter
// only returns mined receipts; other ContractTransmitter implementations may
// hand back a receipt of a pooled transaction, which has no block number and
// is reported as pending.
func (d *Dispatcher) resolve(kind protocol.MsgKind, expected protocol.EventKind, receipt *types.Receipt) (protocol.IBCEventWithHeight, error) {
	if receipt.BlockNumber == nil {
		return protocol.IBCEventWithHeight{}, fmt.Errorf("%w: tx %s", protocol.ErrStillPending, receipt.TxHash.Hex())
	}

	logs := make([]types.Log, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		logs = append(logs, *l)
	}
	d.lggr.Debugw("Received receipt", "msg", kind.String(), "tx", receipt.TxHash.Hex(), "logs", len(logs))

	ev, err := d.translator.ExpectOne(logs, expected)
	if err != nil {
		return protocol.IBCEventWithHeight{}, fmt.Errorf("tx %s: %w", receipt.TxHash.Hex(), err)
	}
	ev.Height = protocol.NewHeight(receipt.BlockNumber.Uint64())
	ev.TxHash = protocol.Bytes32(receipt.TxHash)

	d.lggr.Infow("Message committed",
		"event", expected.String(),
		"tx", receipt.TxHash.Hex(),
		"height", ev.Height.String())
	return ev, nil
}

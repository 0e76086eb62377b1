package dispatcher

import (
	"context"
	"math/big"
	"testing"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/gogoproto/proto"
	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Flouse/forcerelay/integration/pkg/events"
	"github.com/Flouse/forcerelay/integration/pkg/monitoring"
	"github.com/Flouse/forcerelay/pkg/chainaccess/chainaccesstest"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var (
	handler = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	txHash  = common.HexToHash("0xfeed")
	packet  = channeltypes.Packet{
		Sequence:           5,
		SourcePort:         "transfer",
		SourceChannel:      "channel-0",
		DestinationPort:    "transfer",
		DestinationChannel: "channel-1",
		Data:               []byte("payload"),
		TimeoutHeight:      clienttypes.NewHeight(0, 100),
	}
)

func newDispatcher(t *testing.T) (*Dispatcher, *chainaccesstest.Transmitter) {
	t.Helper()
	translator, err := events.NewTranslator(handler)
	require.NoError(t, err)
	transmitter := &chainaccesstest.Transmitter{}
	d, err := NewDispatcher(translator, transmitter, logger.Test(t), monitoring.NewNoopMetricLabeler())
	require.NoError(t, err)
	return d, transmitter
}

func encode(t *testing.T, msg proto.Message) *codectypes.Any {
	t.Helper()
	anyMsg, err := protocol.EncodeMsg(msg)
	require.NoError(t, err)
	return anyMsg
}

func packetLog(t *testing.T, event string, blockNumber uint64) *types.Log {
	t.Helper()
	l, err := events.PackLog(handler, event, blockNumber, txHash,
		events.PacketLogArgs(5, "transfer", "channel-0", "transfer", "channel-1", []byte("payload"))...)
	require.NoError(t, err)
	return &l
}

// decodeCall unpacks calldata sent to the handler into its method name and
// protobuf payload.
func decodeCall(t *testing.T, data []byte) (string, []byte) {
	t.Helper()
	method, err := events.Handler().MethodById(data[:4])
	require.NoError(t, err)
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 1)
	return method.Name, args[0].([]byte)
}

func TestDispatch_RecvPacket(t *testing.T) {
	d, transmitter := newDispatcher(t)
	msg := &channeltypes.MsgRecvPacket{Packet: packet, ProofCommitment: []byte{1}, Signer: "relayer"}

	var sent []byte
	transmitter.On("Transact", mock.Anything, handler, mock.MatchedBy(func(data []byte) bool {
		sent = data
		return true
	})).Return(&types.Receipt{
		TxHash:      txHash,
		BlockNumber: big.NewInt(77),
		Logs:        []*types.Log{packetLog(t, "ReceivePacket", 77)},
	}, nil).Once()

	ev, err := d.Dispatch(context.Background(), encode(t, msg))
	require.NoError(t, err)
	assert.Equal(t, protocol.NewHeight(77), ev.Height)
	assert.Equal(t, protocol.Bytes32(txHash), ev.TxHash)
	recv, ok := ev.Event.(protocol.ReceivePacket)
	require.True(t, ok)
	assert.Equal(t, uint64(5), recv.Packet.Sequence)

	name, payload := decodeCall(t, sent)
	assert.Equal(t, "recvPacket", name)
	var decoded channeltypes.MsgRecvPacket
	require.NoError(t, proto.Unmarshal(payload, &decoded))
	assert.Equal(t, "relayer", decoded.Signer)
	assert.Equal(t, packet.Sequence, decoded.Packet.Sequence)
}

func TestDispatch_TimeoutIsSentAsRecv(t *testing.T) {
	d, transmitter := newDispatcher(t)
	msg := &channeltypes.MsgTimeout{Packet: packet, ProofUnreceived: []byte{9}, NextSequenceRecv: 5, Signer: "relayer"}

	var sent []byte
	transmitter.On("Transact", mock.Anything, handler, mock.MatchedBy(func(data []byte) bool {
		sent = data
		return true
	})).Return(&types.Receipt{
		TxHash:      txHash,
		BlockNumber: big.NewInt(80),
		Logs:        []*types.Log{packetLog(t, "ReceivePacket", 80)},
	}, nil).Once()

	ev, err := d.Dispatch(context.Background(), encode(t, msg))
	require.NoError(t, err)
	assert.Equal(t, protocol.EventKindReceivePacket, ev.Event.Kind())

	name, payload := decodeCall(t, sent)
	assert.Equal(t, "recvPacket", name)
	var decoded channeltypes.MsgRecvPacket
	require.NoError(t, proto.Unmarshal(payload, &decoded))
	assert.Equal(t, []byte{9}, decoded.ProofCommitment)
}

func TestDispatch_Failures(t *testing.T) {
	recv := &channeltypes.MsgRecvPacket{Packet: packet, Signer: "relayer"}

	tests := []struct {
		name    string
		msg     *codectypes.Any
		receipt *types.Receipt
		sendErr error
		wantErr error
	}{
		{
			name:    "unknown message type",
			msg:     &codectypes.Any{TypeUrl: "/ibc.applications.fee.v1.MsgPayPacketFee"},
			wantErr: protocol.ErrUnsupportedMessageType,
		},
		{
			name:    "no matching log",
			msg:     encode(t, recv),
			receipt: &types.Receipt{TxHash: txHash, BlockNumber: big.NewInt(3)},
			wantErr: protocol.ErrEventNotFound,
		},
		{
			name:    "wrong event kind only",
			msg:     encode(t, recv),
			receipt: &types.Receipt{TxHash: txHash, BlockNumber: big.NewInt(3), Logs: []*types.Log{packetLog(t, "SendPacket", 3)}},
			wantErr: protocol.ErrEventNotFound,
		},
		{
			name: "two matching logs",
			msg:  encode(t, recv),
			receipt: &types.Receipt{TxHash: txHash, BlockNumber: big.NewInt(3), Logs: []*types.Log{
				packetLog(t, "ReceivePacket", 3), packetLog(t, "ReceivePacket", 3),
			}},
			wantErr: protocol.ErrAmbiguousEvent,
		},
		{
			name:    "receipt without block",
			msg:     encode(t, recv),
			receipt: &types.Receipt{TxHash: txHash},
			wantErr: protocol.ErrStillPending,
		},
		{
			name:    "reverted",
			msg:     encode(t, recv),
			sendErr: &protocol.SubmissionError{TxHash: txHash.Hex(), Reason: "packet already received"},
			wantErr: protocol.ErrSubmissionFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, transmitter := newDispatcher(t)
			if tt.receipt != nil || tt.sendErr != nil {
				transmitter.On("Transact", mock.Anything, handler, mock.Anything).Return(tt.receipt, tt.sendErr).Once()
			}

			_, err := d.Dispatch(context.Background(), tt.msg)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.receipt == nil && tt.sendErr == nil {
				transmitter.AssertNotCalled(t, "Transact", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestSubmissionErrorKeepsRevertReason(t *testing.T) {
	d, transmitter := newDispatcher(t)
	transmitter.On("Transact", mock.Anything, handler, mock.Anything).
		Return(nil, &protocol.SubmissionError{Reason: "client frozen"}).Once()

	_, err := d.Dispatch(context.Background(), encode(t, &channeltypes.MsgAcknowledgement{Packet: packet, Signer: "relayer"}))
	var serr *protocol.SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "client frozen", serr.Reason)
}

func TestEveryRoutedKindHasHandlerMethod(t *testing.T) {
	for kind, r := range routes {
		_, ok := events.Handler().Methods[r.method]
		assert.True(t, ok, "%s routes to missing method %s", kind, r.method)
		_, ok = events.EventName(r.expected)
		assert.True(t, ok, "%s expects unmapped event %s", kind, r.expected)
	}
}

package axon

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Flouse/forcerelay/integration/pkg/events"
	"github.com/Flouse/forcerelay/integration/pkg/monitor"
	"github.com/Flouse/forcerelay/pkg/chainaccess/chainaccesstest"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var handler = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func newAdapter(t *testing.T) (*Adapter, *chainaccesstest.AxonLedger, *chainaccesstest.Transmitter) {
	t.Helper()
	ledger := &chainaccesstest.AxonLedger{}
	transmitter := &chainaccesstest.Transmitter{}
	a, err := New(Params{
		Identity:    protocol.ChainIdentity{ChainID: "2022", Family: protocol.ChainFamilyAxon, StorePrefix: []byte("ibc")},
		Reader:      ledger,
		Finality:    ledger,
		Transmitter: transmitter,
		Handler:     handler,
		Monitor:     monitor.Config{MaxBlockRange: 10},
		Lggr:        logger.Test(t),
	})
	require.NoError(t, err)
	return a, ledger, transmitter
}

// onCall answers the handler call of method with args by the packed outputs.
func onCall(t *testing.T, l *chainaccesstest.AxonLedger, method string, args []any, outputs ...any) {
	t.Helper()
	data, err := events.Handler().Pack(method, args...)
	require.NoError(t, err)
	ret, err := events.Handler().Methods[method].Outputs.Pack(outputs...)
	require.NoError(t, err)
	l.On("CallContract", mock.Anything, mock.MatchedBy(func(call ethereum.CallMsg) bool {
		return call.To != nil && *call.To == handler && bytes.Equal(call.Data, data)
	}), mock.Anything).Return(ret, nil)
}

func channelBytes(t *testing.T, order channeltypes.Order) []byte {
	t.Helper()
	ch := channeltypes.NewChannel(channeltypes.OPEN, order,
		channeltypes.NewCounterparty("transfer", "channel-1"), []string{"connection-0"}, "ics20-1")
	raw, err := ch.Marshal()
	require.NoError(t, err)
	return raw
}

func TestNew_MissingCollaborators(t *testing.T) {
	_, err := New(Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain id is not set")
	assert.Contains(t, err.Error(), "ledger reader is not set")
	assert.Contains(t, err.Error(), "transmitter is not set")
}

func TestQueryPacketCommitment(t *testing.T) {
	req := protocol.QueryPacketRequest{PortID: "transfer", ChannelID: "channel-0", Sequence: 5, Height: protocol.LatestHeight()}
	args := []any{"transfer", "channel-0", uint64(5)}

	t.Run("absent", func(t *testing.T) {
		a, l, _ := newAdapter(t)
		onCall(t, l, "getHashedPacketCommitment", args, [32]byte{}, false)

		_, _, err := a.QueryPacketCommitment(context.Background(), req, protocol.IncludeProofNo)
		require.ErrorIs(t, err, protocol.ErrNotFound)
	})

	t.Run("present without proof", func(t *testing.T) {
		a, l, _ := newAdapter(t)
		var value [32]byte
		value[31] = 0x2a
		onCall(t, l, "getHashedPacketCommitment", args, value, true)

		got, proofs, err := a.QueryPacketCommitment(context.Background(), req, protocol.IncludeProofNo)
		require.NoError(t, err)
		assert.Equal(t, value[:], got)
		assert.Nil(t, proofs)
	})
}

func TestQueryPacketReceipt(t *testing.T) {
	a, l, _ := newAdapter(t)
	onCall(t, l, "hasPacketReceipt", []any{"transfer", "channel-0", uint64(1)}, true)
	onCall(t, l, "hasPacketReceipt", []any{"transfer", "channel-0", uint64(2)}, false)

	got, _, err := a.QueryPacketReceipt(context.Background(), protocol.QueryPacketRequest{
		PortID: "transfer", ChannelID: "channel-0", Sequence: 1, Height: protocol.LatestHeight(),
	}, protocol.IncludeProofNo)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got)

	_, _, err = a.QueryPacketReceipt(context.Background(), protocol.QueryPacketRequest{
		PortID: "transfer", ChannelID: "channel-0", Sequence: 2, Height: protocol.LatestHeight(),
	}, protocol.IncludeProofNo)
	require.ErrorIs(t, err, protocol.ErrNotFound)
}

func TestQueryChannel_Missing(t *testing.T) {
	a, l, _ := newAdapter(t)
	onCall(t, l, "getChannel", []any{"transfer", "channel-9"}, []byte{}, false)

	_, _, err := a.QueryChannel(context.Background(), protocol.QueryChannelRequest{
		PortID: "transfer", ChannelID: "channel-9", Height: protocol.LatestHeight(),
	}, protocol.IncludeProofNo)
	require.ErrorIs(t, err, protocol.ErrQueryFailure)
	assert.Contains(t, err.Error(), "channel transfer/channel-9 does not exist")
}

func TestQueryUnreceivedPackets(t *testing.T) {
	req := protocol.QueryUnreceivedRequest{PortID: "transfer", ChannelID: "channel-0", Sequences: []uint64{1, 2, 3, 4}}
	chanArgs := []any{"transfer", "channel-0"}

	t.Run("ordered", func(t *testing.T) {
		a, l, _ := newAdapter(t)
		onCall(t, l, "getChannel", chanArgs, channelBytes(t, channeltypes.ORDERED), true)
		onCall(t, l, "getNextSequenceRecv", chanArgs, uint64(3))

		got, err := a.QueryUnreceivedPackets(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []uint64{3, 4}, got)
	})

	t.Run("unordered", func(t *testing.T) {
		a, l, _ := newAdapter(t)
		onCall(t, l, "getChannel", chanArgs, channelBytes(t, channeltypes.UNORDERED), true)
		for seq, received := range map[uint64]bool{1: true, 2: false, 3: true, 4: false} {
			onCall(t, l, "hasPacketReceipt", []any{"transfer", "channel-0", seq}, received)
		}

		got, err := a.QueryUnreceivedPackets(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 4}, got)
	})
}

func TestQueryUnreceivedAcknowledgements(t *testing.T) {
	a, l, _ := newAdapter(t)
	var commitment [32]byte
	commitment[0] = 1
	onCall(t, l, "getHashedPacketCommitment", []any{"transfer", "channel-0", uint64(7)}, commitment, true)
	onCall(t, l, "getHashedPacketCommitment", []any{"transfer", "channel-0", uint64(8)}, [32]byte{}, false)

	got, err := a.QueryUnreceivedAcknowledgements(context.Background(), protocol.QueryUnreceivedRequest{
		PortID: "transfer", ChannelID: "channel-0", Sequences: []uint64{7, 8},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{7}, got)
}

func TestQueryPacketEvents(t *testing.T) {
	a, l, _ := newAdapter(t)
	l.On("HeaderByNumber", mock.Anything, (*big.Int)(nil)).Return(&types.Header{Number: big.NewInt(50)}, nil)

	sent, err := events.PackLog(handler, "SendPacket", 42, common.HexToHash("0x01"),
		events.PacketLogArgs(5, "transfer", "channel-0", "transfer", "channel-1", []byte("a"))...)
	require.NoError(t, err)
	other, err := events.PackLog(handler, "SendPacket", 43, common.HexToHash("0x02"),
		events.PacketLogArgs(6, "transfer", "channel-3", "transfer", "channel-4", []byte("b"))...)
	require.NoError(t, err)
	l.On("FilterLogs", mock.Anything, mock.MatchedBy(func(q ethereum.FilterQuery) bool {
		return q.FromBlock.Uint64() == 0 && q.ToBlock.Uint64() == 50
	})).Return([]types.Log{sent, other}, nil)

	got, err := a.QueryPacketEvents(context.Background(), protocol.PacketEventQuery{
		Height:               protocol.QualifiedHeight{Height: protocol.LatestHeight(), SmallerEqual: true},
		Kind:                 protocol.EventKindSendPacket,
		SourcePortID:         "transfer",
		SourceChannelID:      "channel-0",
		DestinationPortID:    "transfer",
		DestinationChannelID: "channel-1",
		Sequences:            []uint64{5, 6},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.EventKindSendPacket, got[0].Event.Kind())
	assert.Equal(t, uint64(42), got[0].Height.GetRevisionHeight())
}

func TestQueryTxs_ByHashNotFound(t *testing.T) {
	a, l, _ := newAdapter(t)
	l.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, ethereum.NotFound)

	got, err := a.QueryTxs(context.Background(), protocol.QueryTxRequest{TxHash: protocol.Bytes32{1}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSubscribe(t *testing.T) {
	a, l, _ := newAdapter(t)
	l.On("HeaderByNumber", mock.Anything, mock.Anything).Return(&types.Header{Number: big.NewInt(10)}, nil)
	l.On("FilterLogs", mock.Anything, mock.Anything).Return([]types.Log{}, nil).Maybe()

	first, err := a.Subscribe(context.Background())
	require.NoError(t, err)
	second, err := a.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())

	require.NoError(t, a.Shutdown())
	_, open := <-first.Events()
	assert.False(t, open)

	_, err = a.Subscribe(context.Background())
	require.Error(t, err)
	require.NoError(t, a.Shutdown())
}

func TestShutdownWithoutSubscribe(t *testing.T) {
	a, _, _ := newAdapter(t)
	require.NoError(t, a.Shutdown())
}

func TestSendMessagesAndWaitCommit_StopsAtFirstFailure(t *testing.T) {
	a, _, transmitter := newAdapter(t)
	msg, err := protocol.EncodeMsg(&channeltypes.MsgRecvPacket{
		Packet: channeltypes.Packet{
			Sequence: 1, SourcePort: "transfer", SourceChannel: "channel-0",
			DestinationPort: "transfer", DestinationChannel: "channel-1",
			Data: []byte("x"), TimeoutHeight: clienttypes.NewHeight(0, 100),
		},
		ProofCommitment: []byte{1},
		Signer:          "relayer",
	})
	require.NoError(t, err)
	transmitter.On("Transact", mock.Anything, handler, mock.Anything).Return(nil, errors.New("nonce too low")).Once()

	out, err := a.SendMessagesAndWaitCommit(context.Background(), []*codectypes.Any{msg, msg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message 1 of 2")
	assert.Empty(t, out)
	transmitter.AssertNumberOfCalls(t, "Transact", 1)
}

func TestOptionalFeatures(t *testing.T) {
	a, _, _ := newAdapter(t)
	for _, f := range []protocol.Feature{protocol.FeatureCrossChainQuery, protocol.FeatureIncentivizedPackets, protocol.FeatureCounterpartyPayee} {
		assert.False(t, a.SupportsFeature(f), f.String())
	}
	res, err := a.CrossChainQuery(context.Background(), []string{"q"})
	require.NoError(t, err)
	assert.Empty(t, res)
	fee, err := a.QueryIncentivizedPacket(context.Background(), "transfer", "channel-0", 1)
	require.NoError(t, err)
	assert.Empty(t, fee)
	require.NoError(t, a.MaybeRegisterCounterpartyPayee(context.Background(), "transfer", "channel-0", "payee"))
}

func TestBuildClientState(t *testing.T) {
	a, _, _ := newAdapter(t)
	h := protocol.NewHeight(12)

	cs, err := a.BuildClientState(context.Background(), h, protocol.ClientSettings{Kind: protocol.ClientSettingsCkb})
	require.NoError(t, err)
	assert.Equal(t, "2022", cs.ChainID)
	assert.Equal(t, h, cs.LatestHeight)

	_, err = a.BuildClientState(context.Background(), h, protocol.ClientSettings{Kind: protocol.ClientSettingsTendermint})
	require.ErrorIs(t, err, protocol.ErrUnsupportedClientSettings)
}

func TestBuildHeader(t *testing.T) {
	a, _, _ := newAdapter(t)
	header, support, err := a.BuildHeader(context.Background(), protocol.NewHeight(1), protocol.NewHeight(9))
	require.NoError(t, err)
	assert.Equal(t, protocol.NewHeight(9), header.Height)
	assert.Empty(t, support)
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name  string
		id    *big.Int
		err   error
		state protocol.HealthState
	}{
		{name: "matching chain", id: big.NewInt(2022), state: protocol.Healthy},
		{name: "other chain", id: big.NewInt(1), state: protocol.Unhealthy},
		{name: "unreachable", err: errors.New("connection refused"), state: protocol.Unhealthy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, l, _ := newAdapter(t)
			if tc.err != nil {
				l.On("ChainID", mock.Anything).Return(nil, tc.err)
			} else {
				l.On("ChainID", mock.Anything).Return(tc.id, nil)
			}
			got := a.HealthCheck(context.Background())
			assert.Equal(t, tc.state, got.State)
			if tc.state == protocol.Unhealthy {
				assert.Error(t, got.Reason)
			}
		})
	}
}

func TestQueryCommitmentPrefix(t *testing.T) {
	a, _, _ := newAdapter(t)
	prefix, err := a.QueryCommitmentPrefix()
	require.NoError(t, err)
	assert.Equal(t, []byte("ibc"), prefix)
}

package txbuilder

import (
	"testing"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/gogoproto/proto"
	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/ethereum/go-ethereum/rlp"
	ckbtypes "github.com/nervosnetwork/ckb-sdk-go/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

const (
	testClientID    = "07-axon-0"
	stateCapacity   = 1000 * shannonsPerByte
	packetCapacity  = 500 * shannonsPerByte
	transferPort    = "transfer"
	openChannelID   = "channel-0"
	pendingSequence = 1
)

var clientIDBytes = [32]byte{0x01}

func mustMarshal(t *testing.T, msg proto.Message) []byte {
	t.Helper()
	raw, err := proto.Marshal(msg)
	require.NoError(t, err)
	return raw
}

func encodeAny(t *testing.T, msg proto.Message) *codectypes.Any {
	t.Helper()
	anyMsg, err := protocol.EncodeMsg(msg)
	require.NoError(t, err)
	return anyMsg
}

func cellRef(txByte byte, capacity uint64, typ *ckbtypes.Script) CellRef {
	return CellRef{
		OutPoint: &ckbtypes.OutPoint{TxHash: ckbtypes.Hash{txByte}, Index: 0},
		Output: &ckbtypes.CellOutput{
			Capacity: capacity,
			Lock:     &ckbtypes.Script{CodeHash: ckbtypes.Hash{0xaa}, HashType: ckbtypes.HashTypeType},
			Type:     typ,
		},
	}
}

var testPacket = channeltypes.Packet{
	Sequence:           pendingSequence,
	SourcePort:         transferPort,
	SourceChannel:      openChannelID,
	DestinationPort:    transferPort,
	DestinationChannel: "channel-7",
	Data:               []byte("payload"),
	TimeoutHeight:      clienttypes.NewHeight(0, 100),
}

// newContext returns a context with one open connection, one open unordered
// channel and a sent packet awaiting its acknowledgement.
func newContext(t *testing.T) *LookupContext {
	t.Helper()
	codeHashes := CodeHashes{
		Client:     ckbtypes.Hash{0x10},
		Connection: ckbtypes.Hash{0x11},
		Channel:    ckbtypes.Hash{0x12},
		Packet:     ckbtypes.Hash{0x13},
	}
	conn := connectiontypes.ConnectionEnd{
		ClientId:     testClientID,
		Versions:     connectiontypes.GetCompatibleVersions(),
		State:        connectiontypes.OPEN,
		Counterparty: connectiontypes.Counterparty{ClientId: "07-ckb-0", ConnectionId: "connection-3"},
	}
	chanEnd := channeltypes.Channel{
		State:          channeltypes.OPEN,
		Ordering:       channeltypes.UNORDERED,
		Counterparty:   channeltypes.Counterparty{PortId: transferPort, ChannelId: "channel-7"},
		ConnectionHops: []string{"connection-0"},
		Version:        "ics20-1",
	}
	connsCell := cellRef(0x01, stateCapacity, typeScript(codeHashes.Connection, ConnectionArgs(clientIDBytes)))

	return &LookupContext{
		ClientID:        testClientID,
		ClientIDBytes:   clientIDBytes,
		Connections:     &ConnectionsCell{NextChannelNumber: 1, Connections: [][]byte{mustMarshal(t, &conn)}},
		ConnectionsCell: &connsCell,
		Channels: map[ChannelKey]ChannelEntry{
			{ChannelID: openChannelID, PortID: transferPort}: {
				State: &ChannelCell{
					Number:           0,
					PortID:           transferPort,
					Channel:          mustMarshal(t, &chanEnd),
					NextSequenceSend: 2,
					NextSequenceRecv: 1,
					NextSequenceAck:  1,
				},
				Cell: cellRef(0x02, stateCapacity, typeScript(codeHashes.Channel, ChannelArgs(clientIDBytes, 0, transferPort))),
			},
		},
		Packets: map[PacketKey]PacketEntry{
			{ChannelID: openChannelID, PortID: transferPort, Sequence: pendingSequence}: {
				State: &PacketCell{Packet: mustMarshal(t, &testPacket), Status: PacketStatusSend},
				Cell:  cellRef(0x03, packetCapacity, typeScript(codeHashes.Packet, PacketArgs(clientIDBytes, 0, transferPort, pendingSequence))),
			},
		},
		CodeHashes:       codeHashes,
		ClientCellDep:    &ckbtypes.CellDep{OutPoint: &ckbtypes.OutPoint{TxHash: ckbtypes.Hash{0x20}}, DepType: ckbtypes.DepTypeCode},
		ContractCellDeps: []*ckbtypes.CellDep{{OutPoint: &ckbtypes.OutPoint{TxHash: ckbtypes.Hash{0x21}}, DepType: ckbtypes.DepTypeCode}},
		PacketOwnerLock:  &ckbtypes.Script{CodeHash: ckbtypes.Hash{0xbb}, HashType: ckbtypes.HashTypeType, Args: []byte{0x01}},
		StateLock:        &ckbtypes.Script{CodeHash: ckbtypes.Hash{0xaa}, HashType: ckbtypes.HashTypeType},
	}
}

func lastEnvelope(t *testing.T, tx *ckbtypes.Transaction) Envelope {
	t.Helper()
	require.NotEmpty(t, tx.Witnesses)
	var env Envelope
	require.NoError(t, rlp.DecodeBytes(tx.Witnesses[len(tx.Witnesses)-1], &env))
	return env
}

func TestBuild_ConnectionOpenInit(t *testing.T) {
	b := NewBuilder(logger.Test(t))
	lc := newContext(t)
	msg := &connectiontypes.MsgConnectionOpenInit{
		ClientId:     testClientID,
		Counterparty: connectiontypes.Counterparty{ClientId: "07-ckb-1"},
		Signer:       "relayer",
	}

	info, err := b.Build(encodeAny(t, msg), lc)
	require.NoError(t, err)
	require.NotNil(t, info.Tx)
	assert.Len(t, info.Tx.Inputs, 1)
	assert.Len(t, info.Tx.Outputs, 1)
	assert.Len(t, info.Tx.CellDeps, 2)
	assert.Equal(t, uint64(stateCapacity), info.InputCapacity)

	conns, err := DecodeConnectionsCell(info.Tx.OutputsData[0])
	require.NoError(t, err)
	require.Len(t, conns.Connections, 2)
	end, err := conns.Connection(1)
	require.NoError(t, err)
	assert.Equal(t, connectiontypes.INIT, end.State)
	assert.Equal(t, "07-ckb-1", end.Counterparty.ClientId)

	ev, ok := info.Event.(protocol.OpenInitConnection)
	require.True(t, ok)
	assert.Equal(t, "connection-1", ev.ConnectionID)
	assert.Equal(t, testClientID, ev.ClientID)

	env := lastEnvelope(t, info.Tx)
	assert.Equal(t, uint8(protocol.MsgKindConnectionOpenInit), env.MsgKind)
	assert.Equal(t, info.Envelope, env)
	// The context is a snapshot and must not be mutated by a build.
	assert.Len(t, lc.Connections.Connections, 1)
}

func TestBuild_ConnectionOpenAck(t *testing.T) {
	b := NewBuilder(logger.Test(t))
	lc := newContext(t)
	initEnd := connectiontypes.ConnectionEnd{
		ClientId:     testClientID,
		Versions:     connectiontypes.GetCompatibleVersions(),
		State:        connectiontypes.INIT,
		Counterparty: connectiontypes.Counterparty{ClientId: "07-ckb-0"},
	}
	lc.Connections.Connections = append(lc.Connections.Connections, mustMarshal(t, &initEnd))

	info, err := b.Build(encodeAny(t, &connectiontypes.MsgConnectionOpenAck{
		ConnectionId:             "connection-1",
		CounterpartyConnectionId: "connection-9",
		Signer:                   "relayer",
	}), lc)
	require.NoError(t, err)

	conns, err := DecodeConnectionsCell(info.Tx.OutputsData[0])
	require.NoError(t, err)
	end, err := conns.Connection(1)
	require.NoError(t, err)
	assert.Equal(t, connectiontypes.OPEN, end.State)
	assert.Equal(t, "connection-9", end.Counterparty.ConnectionId)

	ev, ok := info.Event.(protocol.OpenAckConnection)
	require.True(t, ok)
	assert.Equal(t, "connection-9", ev.CounterpartyConnectionID)
}

func TestBuild_ChannelOpenInit(t *testing.T) {
	b := NewBuilder(logger.Test(t))
	lc := newContext(t)
	msg := &channeltypes.MsgChannelOpenInit{
		PortId: transferPort,
		Channel: channeltypes.Channel{
			Ordering:       channeltypes.UNORDERED,
			Counterparty:   channeltypes.Counterparty{PortId: transferPort},
			ConnectionHops: []string{"connection-0"},
			Version:        "ics20-1",
		},
		Signer: "relayer",
	}

	info, err := b.Build(encodeAny(t, msg), lc)
	require.NoError(t, err)
	require.Len(t, info.Tx.Outputs, 2)

	conns, err := DecodeConnectionsCell(info.Tx.OutputsData[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(2), conns.NextChannelNumber)

	created := info.Tx.Outputs[1]
	assert.Equal(t, lc.CodeHashes.Channel, created.Type.CodeHash)
	assert.Equal(t, ChannelArgs(clientIDBytes, 1, transferPort), created.Type.Args)
	assert.Equal(t, occupiedCapacity(created, info.Tx.OutputsData[1]), created.Capacity)

	cell, err := DecodeChannelCell(info.Tx.OutputsData[1])
	require.NoError(t, err)
	end, err := cell.End()
	require.NoError(t, err)
	assert.Equal(t, channeltypes.INIT, end.State)

	ev, ok := info.Event.(protocol.OpenInitChannel)
	require.True(t, ok)
	assert.Equal(t, "channel-1", ev.ChannelID)
	assert.Equal(t, "connection-0", ev.ConnectionID)
}

func TestBuild_RecvPacket(t *testing.T) {
	b := NewBuilder(logger.Test(t))
	lc := newContext(t)
	incoming := channeltypes.Packet{
		Sequence:           4,
		SourcePort:         transferPort,
		SourceChannel:      "channel-7",
		DestinationPort:    transferPort,
		DestinationChannel: openChannelID,
		Data:               []byte("incoming"),
	}

	info, err := b.Build(encodeAny(t, &channeltypes.MsgRecvPacket{Packet: incoming, Signer: "relayer"}), lc)
	require.NoError(t, err)
	require.Len(t, info.Tx.Outputs, 2)

	channelCell, err := DecodeChannelCell(info.Tx.OutputsData[0])
	require.NoError(t, err)
	assert.Equal(t, []uint64{4}, channelCell.ReceivedSequences)

	packetCell, err := DecodePacketCell(info.Tx.OutputsData[1])
	require.NoError(t, err)
	assert.Equal(t, PacketStatusRecv, packetCell.Status)
	assert.Equal(t, lc.PacketOwnerLock, info.Tx.Outputs[1].Lock)
	assert.Equal(t, PacketArgs(clientIDBytes, 0, transferPort, 4), info.Tx.Outputs[1].Type.Args)

	ev, ok := info.Event.(protocol.ReceivePacket)
	require.True(t, ok)
	assert.Equal(t, uint64(4), ev.Packet.Sequence)

	// A refreshed context that recorded the receipt rejects a second receive.
	entry := lc.Channels[ChannelKey{ChannelID: openChannelID, PortID: transferPort}]
	entry.State = channelCell
	lc.Channels[ChannelKey{ChannelID: openChannelID, PortID: transferPort}] = entry
	_, err = b.Build(encodeAny(t, &channeltypes.MsgRecvPacket{Packet: incoming, Signer: "relayer"}), lc)
	require.ErrorIs(t, err, protocol.ErrStaleContext)
}

func TestBuild_Acknowledgement(t *testing.T) {
	b := NewBuilder(logger.Test(t))
	lc := newContext(t)

	info, err := b.Build(encodeAny(t, &channeltypes.MsgAcknowledgement{
		Packet:          testPacket,
		Acknowledgement: []byte(`{"result":"AQ=="}`),
		Signer:          "relayer",
	}), lc)
	require.NoError(t, err)
	assert.Len(t, info.Tx.Inputs, 2)
	assert.Equal(t, uint64(stateCapacity+packetCapacity), info.InputCapacity)

	packetCell, err := DecodePacketCell(info.Tx.OutputsData[1])
	require.NoError(t, err)
	assert.Equal(t, PacketStatusAck, packetCell.Status)
	assert.Equal(t, []byte(`{"result":"AQ=="}`), packetCell.Ack)

	_, ok := info.Event.(protocol.AcknowledgePacket)
	assert.True(t, ok)
}

func TestBuild_AcknowledgementBesideReceivedPacket(t *testing.T) {
	b := NewBuilder(logger.Test(t))
	lc := newContext(t)
	incoming := testPacket
	incoming.SourceChannel, incoming.DestinationChannel = "channel-7", openChannelID
	lc.Packets[PacketKey{ChannelID: openChannelID, PortID: transferPort, Sequence: pendingSequence, Direction: PacketIncoming}] = PacketEntry{
		State: &PacketCell{Packet: mustMarshal(t, &incoming), Status: PacketStatusWriteAck, Ack: []byte("ok")},
		Cell:  cellRef(0x04, packetCapacity, typeScript(lc.CodeHashes.Packet, PacketArgs(clientIDBytes, 0, transferPort, pendingSequence))),
	}

	info, err := b.Build(encodeAny(t, &channeltypes.MsgAcknowledgement{
		Packet:          testPacket,
		Acknowledgement: []byte("ok"),
		Signer:          "relayer",
	}), lc)
	require.NoError(t, err)
	require.Len(t, info.Tx.Inputs, 2)
	assert.Equal(t, ckbtypes.Hash{0x03}, info.Tx.Inputs[1].PreviousOutput.TxHash)
}

func TestPacketStatus_Direction(t *testing.T) {
	assert.Equal(t, PacketOutgoing, PacketStatusSend.Direction())
	assert.Equal(t, PacketOutgoing, PacketStatusAck.Direction())
	assert.Equal(t, PacketIncoming, PacketStatusRecv.Direction())
	assert.Equal(t, PacketIncoming, PacketStatusWriteAck.Direction())
}

func TestBuild_SynthesizedClientEvents(t *testing.T) {
	b := NewBuilder(logger.Test(t))
	lc := newContext(t)

	info, err := b.Build(encodeAny(t, &clienttypes.MsgCreateClient{Signer: "relayer"}), lc)
	require.NoError(t, err)
	assert.Nil(t, info.Tx)
	created, ok := info.Event.(protocol.CreateClient)
	require.True(t, ok)
	assert.Equal(t, testClientID, created.ClientID)

	info, err = b.Build(encodeAny(t, &clienttypes.MsgUpdateClient{
		ClientId:      testClientID,
		ClientMessage: &codectypes.Any{TypeUrl: "/axon.Header", Value: []byte{0x01}},
		Signer:        "relayer",
	}), lc)
	require.NoError(t, err)
	assert.Nil(t, info.Tx)
	updated, ok := info.Event.(protocol.UpdateClient)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01}, updated.Header)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		msg     func(t *testing.T) *codectypes.Any
		mutate  func(lc *LookupContext)
		wantErr error
	}{
		{
			name: "timeout is unsupported",
			msg: func(t *testing.T) *codectypes.Any {
				return encodeAny(t, &channeltypes.MsgTimeout{Packet: testPacket, Signer: "relayer"})
			},
			wantErr: protocol.ErrUnsupportedMessageType,
		},
		{
			name: "unknown type url",
			msg: func(t *testing.T) *codectypes.Any {
				return &codectypes.Any{TypeUrl: "/cosmos.bank.v1beta1.MsgSend"}
			},
			wantErr: protocol.ErrUnsupportedMessageType,
		},
		{
			name: "ack on open connection",
			msg: func(t *testing.T) *codectypes.Any {
				return encodeAny(t, &connectiontypes.MsgConnectionOpenAck{ConnectionId: "connection-0", Signer: "relayer"})
			},
			wantErr: protocol.ErrStaleContext,
		},
		{
			name: "update for another client",
			msg: func(t *testing.T) *codectypes.Any {
				return encodeAny(t, &clienttypes.MsgUpdateClient{ClientId: "07-axon-9", Signer: "relayer"})
			},
			wantErr: protocol.ErrStaleContext,
		},
		{
			name: "channel on unknown connection",
			msg: func(t *testing.T) *codectypes.Any {
				return encodeAny(t, &channeltypes.MsgChannelOpenInit{PortId: transferPort, Channel: channeltypes.Channel{
					ConnectionHops: []string{"connection-5"},
				}})
			},
			wantErr: protocol.ErrStaleContext,
		},
		{
			name: "recv on unloaded channel",
			msg: func(t *testing.T) *codectypes.Any {
				p := testPacket
				p.DestinationChannel = "channel-42"
				return encodeAny(t, &channeltypes.MsgRecvPacket{Packet: p})
			},
			wantErr: protocol.ErrStaleContext,
		},
		{
			name: "ack of packet already acknowledged",
			msg: func(t *testing.T) *codectypes.Any {
				return encodeAny(t, &channeltypes.MsgAcknowledgement{Packet: testPacket})
			},
			mutate: func(lc *LookupContext) {
				key := PacketKey{ChannelID: openChannelID, PortID: transferPort, Sequence: pendingSequence}
				entry := lc.Packets[key]
				entry.State = &PacketCell{Packet: entry.State.Packet, Status: PacketStatusAck}
				lc.Packets[key] = entry
			},
			wantErr: protocol.ErrStaleContext,
		},
		{
			name: "connections cell missing",
			msg: func(t *testing.T) *codectypes.Any {
				return encodeAny(t, &connectiontypes.MsgConnectionOpenInit{ClientId: testClientID})
			},
			mutate:  func(lc *LookupContext) { lc.ConnectionsCell = nil },
			wantErr: protocol.ErrStaleContext,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(logger.Test(t))
			lc := newContext(t)
			if tt.mutate != nil {
				tt.mutate(lc)
			}
			_, err := b.Build(tt.msg(t), lc)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuild_NilContext(t *testing.T) {
	b := NewBuilder(logger.Test(t))
	_, err := b.Build(encodeAny(t, &channeltypes.MsgChannelCloseInit{PortId: transferPort, ChannelId: openChannelID}), nil)
	require.ErrorIs(t, err, protocol.ErrStaleContext)
}

package txbuilder

import (
	"slices"

	"github.com/cosmos/gogoproto/proto"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"

	"github.com/Flouse/forcerelay/protocol"
)

func buildRecvPacket(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*channeltypes.MsgRecvPacket)
	p := m.Packet
	if lc.PacketOwnerLock == nil {
		return nil, stale("packet owner lock is not loaded")
	}
	entry, end, err := openChannelEntry(lc, p.DestinationPort, p.DestinationChannel)
	if err != nil {
		return nil, err
	}

	next := *entry.State
	switch end.Ordering {
	case channeltypes.ORDERED:
		if p.Sequence != next.NextSequenceRecv {
			return nil, stale("packet %d received out of order, next is %d", p.Sequence, next.NextSequenceRecv)
		}
		next.NextSequenceRecv++
	default:
		if slices.Contains(next.ReceivedSequences, p.Sequence) {
			return nil, stale("packet %d already received on %s/%s", p.Sequence, p.DestinationPort, p.DestinationChannel)
		}
		next.ReceivedSequences = append(slices.Clone(next.ReceivedSequences), p.Sequence)
	}

	channelData, err := encodeCell(&next)
	if err != nil {
		return nil, err
	}
	rawPacket, err := proto.Marshal(&p)
	if err != nil {
		return nil, err
	}
	packetData, err := encodeCell(&PacketCell{Packet: rawPacket, Status: PacketStatusRecv})
	if err != nil {
		return nil, err
	}

	d := newDraft(lc)
	d.spend(&entry.Cell)
	d.replace(&entry.Cell, channelData)
	d.create(lc.PacketOwnerLock,
		typeScript(lc.CodeHashes.Packet, PacketArgs(lc.ClientIDBytes, next.Number, p.DestinationPort, p.Sequence)),
		packetData)
	return d.info(protocol.ReceivePacket{Packet: p}), nil
}

func buildAckPacket(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*channeltypes.MsgAcknowledgement)
	p := m.Packet
	entry, end, err := openChannelEntry(lc, p.SourcePort, p.SourceChannel)
	if err != nil {
		return nil, err
	}
	packet, err := lc.packet(p.SourceChannel, p.SourcePort, p.Sequence, PacketOutgoing)
	if err != nil {
		return nil, err
	}
	if packet.State.Status != PacketStatusSend {
		return nil, stale("packet %d on %s/%s is %s, expected %s", p.Sequence, p.SourcePort, p.SourceChannel, packet.State.Status, PacketStatusSend)
	}

	next := *entry.State
	if end.Ordering == channeltypes.ORDERED {
		if p.Sequence != next.NextSequenceAck {
			return nil, stale("packet %d acknowledged out of order, next is %d", p.Sequence, next.NextSequenceAck)
		}
		next.NextSequenceAck++
	}
	channelData, err := encodeCell(&next)
	if err != nil {
		return nil, err
	}
	packetData, err := encodeCell(&PacketCell{Packet: packet.State.Packet, Status: PacketStatusAck, Ack: m.Acknowledgement})
	if err != nil {
		return nil, err
	}

	d := newDraft(lc)
	d.spend(&entry.Cell)
	d.spend(&packet.Cell)
	d.replace(&entry.Cell, channelData)
	d.replace(&packet.Cell, packetData)
	return d.info(protocol.AcknowledgePacket{Packet: p}), nil
}

func openChannelEntry(lc *LookupContext, portID, channelID string) (ChannelEntry, channeltypes.Channel, error) {
	entry, err := lc.channel(channelID, portID)
	if err != nil {
		return entry, channeltypes.Channel{}, err
	}
	end, err := entry.State.End()
	if err != nil {
		return entry, end, err
	}
	if end.State != channeltypes.OPEN {
		return entry, end, stale("channel %s/%s is %s, expected %s", portID, channelID, end.State, channeltypes.OPEN)
	}
	return entry, end, nil
}

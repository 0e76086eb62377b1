package txbuilder

import (
	"github.com/cosmos/gogoproto/proto"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"

	"github.com/Flouse/forcerelay/protocol"
)

func buildChanOpenInit(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*channeltypes.MsgChannelOpenInit)
	end := m.Channel
	end.State = channeltypes.INIT
	id, info, err := openChannel(lc, m.PortId, end)
	if err != nil {
		return nil, err
	}
	info.Event = protocol.OpenInitChannel{ChannelAttributes: channelAttributes(m.PortId, id, end)}
	return info, nil
}

func buildChanOpenTry(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*channeltypes.MsgChannelOpenTry)
	end := m.Channel
	end.State = channeltypes.TRYOPEN
	id, info, err := openChannel(lc, m.PortId, end)
	if err != nil {
		return nil, err
	}
	info.Event = protocol.OpenTryChannel{ChannelAttributes: channelAttributes(m.PortId, id, end)}
	return info, nil
}

func buildChanOpenAck(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*channeltypes.MsgChannelOpenAck)
	info, end, err := transitionChannel(lc, m.PortId, m.ChannelId, channeltypes.INIT, func(end *channeltypes.Channel) {
		end.State = channeltypes.OPEN
		end.Counterparty.ChannelId = m.CounterpartyChannelId
		end.Version = m.CounterpartyVersion
	})
	if err != nil {
		return nil, err
	}
	info.Event = protocol.OpenAckChannel{ChannelAttributes: channelAttributes(m.PortId, m.ChannelId, end)}
	return info, nil
}

func buildChanOpenConfirm(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*channeltypes.MsgChannelOpenConfirm)
	info, end, err := transitionChannel(lc, m.PortId, m.ChannelId, channeltypes.TRYOPEN, func(end *channeltypes.Channel) {
		end.State = channeltypes.OPEN
	})
	if err != nil {
		return nil, err
	}
	info.Event = protocol.OpenConfirmChannel{ChannelAttributes: channelAttributes(m.PortId, m.ChannelId, end)}
	return info, nil
}

func buildChanCloseInit(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*channeltypes.MsgChannelCloseInit)
	info, end, err := transitionChannel(lc, m.PortId, m.ChannelId, channeltypes.OPEN, func(end *channeltypes.Channel) {
		end.State = channeltypes.CLOSED
	})
	if err != nil {
		return nil, err
	}
	info.Event = protocol.CloseInitChannel{ChannelAttributes: channelAttributes(m.PortId, m.ChannelId, end)}
	return info, nil
}

func buildChanCloseConfirm(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*channeltypes.MsgChannelCloseConfirm)
	info, end, err := transitionChannel(lc, m.PortId, m.ChannelId, channeltypes.OPEN, func(end *channeltypes.Channel) {
		end.State = channeltypes.CLOSED
	})
	if err != nil {
		return nil, err
	}
	info.Event = protocol.CloseConfirmChannel{ChannelAttributes: channelAttributes(m.PortId, m.ChannelId, end)}
	return info, nil
}

func channelAttributes(portID, channelID string, end channeltypes.Channel) protocol.ChannelAttributes {
	attrs := protocol.ChannelAttributes{
		PortID:                portID,
		ChannelID:             channelID,
		CounterpartyPortID:    end.Counterparty.PortId,
		CounterpartyChannelID: end.Counterparty.ChannelId,
	}
	if len(end.ConnectionHops) > 0 {
		attrs.ConnectionID = end.ConnectionHops[0]
	}
	return attrs
}

// openChannel allocates the next channel number of the client and creates
// the channel cell for end.
func openChannel(lc *LookupContext, portID string, end channeltypes.Channel) (string, *TxInfo, error) {
	conns, cell, err := lc.connections()
	if err != nil {
		return "", nil, err
	}
	if lc.StateLock == nil {
		return "", nil, stale("state cell lock is not loaded")
	}
	if len(end.ConnectionHops) != 1 {
		return "", nil, stale("channel must have exactly one connection hop, got %d", len(end.ConnectionHops))
	}
	connNumber, err := connectiontypes.ParseConnectionSequence(end.ConnectionHops[0])
	if err != nil {
		return "", nil, err
	}
	if _, err := conns.Connection(connNumber); err != nil {
		return "", nil, stale("connection %s: %v", end.ConnectionHops[0], err)
	}

	number := conns.NextChannelNumber
	id := channeltypes.FormatChannelIdentifier(number)
	rawEnd, err := proto.Marshal(&end)
	if err != nil {
		return "", nil, err
	}
	channelData, err := encodeCell(&ChannelCell{
		Number:           number,
		PortID:           portID,
		Channel:          rawEnd,
		NextSequenceSend: 1,
		NextSequenceRecv: 1,
		NextSequenceAck:  1,
	})
	if err != nil {
		return "", nil, err
	}
	connsData, err := encodeCell(&ConnectionsCell{
		NextChannelNumber: number + 1,
		Connections:       conns.Connections,
	})
	if err != nil {
		return "", nil, err
	}

	d := newDraft(lc)
	d.spend(cell)
	d.replace(cell, connsData)
	d.create(lc.StateLock, typeScript(lc.CodeHashes.Channel, ChannelArgs(lc.ClientIDBytes, number, portID)), channelData)
	return id, d.info(nil), nil
}

// transitionChannel moves the channel from state from by applying update.
func transitionChannel(lc *LookupContext, portID, channelID string, from channeltypes.State, update func(*channeltypes.Channel)) (*TxInfo, channeltypes.Channel, error) {
	var end channeltypes.Channel
	entry, err := lc.channel(channelID, portID)
	if err != nil {
		return nil, end, err
	}
	if end, err = entry.State.End(); err != nil {
		return nil, end, err
	}
	if end.State != from {
		return nil, end, stale("channel %s/%s is %s, expected %s", portID, channelID, end.State, from)
	}
	update(&end)

	next := *entry.State
	if next.Channel, err = proto.Marshal(&end); err != nil {
		return nil, end, err
	}
	data, err := encodeCell(&next)
	if err != nil {
		return nil, end, err
	}
	d := newDraft(lc)
	d.spend(&entry.Cell)
	d.replace(&entry.Cell, data)
	return d.info(nil), end, nil
}

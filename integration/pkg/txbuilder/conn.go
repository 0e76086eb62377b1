package txbuilder

import (
	"slices"

	"github.com/cosmos/gogoproto/proto"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"

	"github.com/Flouse/forcerelay/protocol"
)

func buildConnOpenInit(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*connectiontypes.MsgConnectionOpenInit)
	if err := lc.checkClient(m.ClientId); err != nil {
		return nil, err
	}
	versions := connectiontypes.GetCompatibleVersions()
	if m.Version != nil {
		versions = []*connectiontypes.Version{m.Version}
	}
	end := connectiontypes.ConnectionEnd{
		ClientId:     m.ClientId,
		Versions:     versions,
		State:        connectiontypes.INIT,
		Counterparty: m.Counterparty,
		DelayPeriod:  m.DelayPeriod,
	}
	id, info, err := appendConnection(lc, end)
	if err != nil {
		return nil, err
	}
	info.Event = protocol.OpenInitConnection{ConnectionAttributes: protocol.ConnectionAttributes{
		ConnectionID:         id,
		ClientID:             m.ClientId,
		CounterpartyClientID: m.Counterparty.ClientId,
	}}
	return info, nil
}

func buildConnOpenTry(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*connectiontypes.MsgConnectionOpenTry)
	if err := lc.checkClient(m.ClientId); err != nil {
		return nil, err
	}
	end := connectiontypes.ConnectionEnd{
		ClientId:     m.ClientId,
		Versions:     m.CounterpartyVersions,
		State:        connectiontypes.TRYOPEN,
		Counterparty: m.Counterparty,
		DelayPeriod:  m.DelayPeriod,
	}
	id, info, err := appendConnection(lc, end)
	if err != nil {
		return nil, err
	}
	info.Event = protocol.OpenTryConnection{ConnectionAttributes: protocol.ConnectionAttributes{
		ConnectionID:             id,
		ClientID:                 m.ClientId,
		CounterpartyConnectionID: m.Counterparty.ConnectionId,
		CounterpartyClientID:     m.Counterparty.ClientId,
	}}
	return info, nil
}

func buildConnOpenAck(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*connectiontypes.MsgConnectionOpenAck)
	info, end, err := transitionConnection(lc, m.ConnectionId, connectiontypes.INIT, func(end *connectiontypes.ConnectionEnd) {
		end.State = connectiontypes.OPEN
		end.Counterparty.ConnectionId = m.CounterpartyConnectionId
		if m.Version != nil {
			end.Versions = []*connectiontypes.Version{m.Version}
		}
	})
	if err != nil {
		return nil, err
	}
	info.Event = protocol.OpenAckConnection{ConnectionAttributes: connectionAttributes(m.ConnectionId, end)}
	return info, nil
}

func buildConnOpenConfirm(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*connectiontypes.MsgConnectionOpenConfirm)
	info, end, err := transitionConnection(lc, m.ConnectionId, connectiontypes.TRYOPEN, func(end *connectiontypes.ConnectionEnd) {
		end.State = connectiontypes.OPEN
	})
	if err != nil {
		return nil, err
	}
	info.Event = protocol.OpenConfirmConnection{ConnectionAttributes: connectionAttributes(m.ConnectionId, end)}
	return info, nil
}

func connectionAttributes(id string, end connectiontypes.ConnectionEnd) protocol.ConnectionAttributes {
	return protocol.ConnectionAttributes{
		ConnectionID:             id,
		ClientID:                 end.ClientId,
		CounterpartyConnectionID: end.Counterparty.ConnectionId,
		CounterpartyClientID:     end.Counterparty.ClientId,
	}
}

// appendConnection adds end to the connections cell under the next
// connection number.
func appendConnection(lc *LookupContext, end connectiontypes.ConnectionEnd) (string, *TxInfo, error) {
	conns, cell, err := lc.connections()
	if err != nil {
		return "", nil, err
	}
	raw, err := proto.Marshal(&end)
	if err != nil {
		return "", nil, err
	}
	next := ConnectionsCell{
		NextChannelNumber: conns.NextChannelNumber,
		Connections:       append(slices.Clone(conns.Connections), raw),
	}
	id := connectiontypes.FormatConnectionIdentifier(uint64(len(conns.Connections)))

	info, err := rewriteConnections(lc, cell, &next)
	return id, info, err
}

// transitionConnection moves connection id from state from by applying
// update to it.
func transitionConnection(lc *LookupContext, id string, from connectiontypes.State, update func(*connectiontypes.ConnectionEnd)) (*TxInfo, connectiontypes.ConnectionEnd, error) {
	var end connectiontypes.ConnectionEnd
	conns, cell, err := lc.connections()
	if err != nil {
		return nil, end, err
	}
	number, err := connectiontypes.ParseConnectionSequence(id)
	if err != nil {
		return nil, end, err
	}
	if end, err = conns.Connection(number); err != nil {
		return nil, end, stale("connection %s: %v", id, err)
	}
	if end.State != from {
		return nil, end, stale("connection %s is %s, expected %s", id, end.State, from)
	}
	update(&end)
	raw, err := proto.Marshal(&end)
	if err != nil {
		return nil, end, err
	}
	next := ConnectionsCell{
		NextChannelNumber: conns.NextChannelNumber,
		Connections:       slices.Clone(conns.Connections),
	}
	next.Connections[number] = raw

	info, err := rewriteConnections(lc, cell, &next)
	return info, end, err
}

func rewriteConnections(lc *LookupContext, cell *CellRef, next *ConnectionsCell) (*TxInfo, error) {
	data, err := encodeCell(next)
	if err != nil {
		return nil, err
	}
	d := newDraft(lc)
	d.spend(cell)
	d.replace(cell, data)
	return d.info(nil), nil
}

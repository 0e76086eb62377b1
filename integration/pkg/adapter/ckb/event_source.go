package ckb

import (
	"context"
	"slices"

	"github.com/Flouse/forcerelay/integration/pkg/monitor"
	"github.com/Flouse/forcerelay/integration/pkg/txbuilder"
	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/protocol"
)

// eventSource feeds the monitor from packet cells. A cell's creation block is
// the height of the event its status stands for.
type eventSource struct {
	a *Adapter
}

var _ monitor.EventSource = (*eventSource)(nil)

func (s *eventSource) LatestHeight(ctx context.Context) (uint64, error) {
	return s.a.ledger.TipBlockNumber(ctx)
}

func (s *eventSource) EventsInRange(ctx context.Context, from, to uint64) ([]protocol.IBCEventWithHeight, error) {
	return s.a.packetEvents(ctx, from, to, nil)
}

// packetEvent is the event a packet cell in its current status stands for.
func packetEvent(p packetCell) protocol.IBCEvent {
	switch p.state.Status {
	case txbuilder.PacketStatusSend:
		return protocol.SendPacket{Packet: p.packet}
	case txbuilder.PacketStatusRecv:
		return protocol.ReceivePacket{Packet: p.packet}
	case txbuilder.PacketStatusWriteAck:
		return protocol.WriteAcknowledgement{Packet: p.packet, Ack: p.state.Ack}
	case txbuilder.PacketStatusAck:
		return protocol.AcknowledgePacket{Packet: p.packet}
	default:
		return nil
	}
}

// packetEvents returns the events of packet cells created in [from, to]
// that pass filter, ordered by height then sequence.
func (a *Adapter) packetEvents(ctx context.Context, from, to uint64, filter chainaccess.EventFilter) ([]protocol.IBCEventWithHeight, error) {
	cells, err := a.packetCells(ctx)
	if err != nil {
		return nil, err
	}
	var out []protocol.IBCEventWithHeight
	for _, p := range cells {
		if p.live.BlockNumber < from || p.live.BlockNumber > to {
			continue
		}
		ev := packetEvent(p)
		if ev == nil || (filter != nil && !filter.Filter(ev)) {
			continue
		}
		out = append(out, protocol.IBCEventWithHeight{
			Event:  ev,
			Height: protocol.NewHeight(p.live.BlockNumber),
			TxHash: protocol.Bytes32(p.live.OutPoint.TxHash),
		})
	}
	slices.SortStableFunc(out, func(x, y protocol.IBCEventWithHeight) int {
		if c := x.Height.Compare(y.Height); c != 0 {
			return int(c)
		}
		px := x.Event.(protocol.PacketEvent).GetPacket().Sequence
		py := y.Event.(protocol.PacketEvent).GetPacket().Sequence
		switch {
		case px < py:
			return -1
		case px > py:
			return 1
		}
		return 0
	})
	return out, nil
}

// QueryTxs answers hash queries from the packet cells the transaction
// created. Client updates happen off-chain, so client queries find nothing.
func (a *Adapter) QueryTxs(ctx context.Context, req protocol.QueryTxRequest) ([]protocol.IBCEventWithHeight, error) {
	if req.ClientID != "" {
		return nil, nil
	}
	tip, err := a.ledger.TipBlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	all, err := a.packetEvents(ctx, 0, tip, nil)
	if err != nil {
		return nil, err
	}
	var out []protocol.IBCEventWithHeight
	for _, ev := range all {
		if ev.TxHash == req.TxHash {
			out = append(out, ev)
		}
	}
	return out, nil
}

// QueryPacketEvents returns the packet events of the requested kind in the
// qualified height range. Without a kind, sends and acknowledgement writes
// are returned.
func (a *Adapter) QueryPacketEvents(ctx context.Context, req protocol.PacketEventQuery) ([]protocol.IBCEventWithHeight, error) {
	tip, err := a.ledger.TipBlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	from, to, err := req.Height.BlockRange(tip)
	if err != nil {
		return nil, err
	}
	kinds := []protocol.EventKind{protocol.EventKindSendPacket, protocol.EventKindWriteAcknowledgement}
	if req.Kind != protocol.EventKindUnknown {
		kinds = []protocol.EventKind{req.Kind}
	}
	return a.packetEvents(ctx, from, to, chainaccess.AllOf{
		&chainaccess.KindFilter{Kinds: kinds},
		chainaccess.NewPacketFilter(req),
	})
}

package chainaccess

import (
	"slices"

	"github.com/Flouse/forcerelay/protocol"
)

// PacketFilter keeps packet events matching every supplied field. Empty
// fields and an empty sequence list match anything. Events without a packet
// are kept.
type PacketFilter struct {
	Sequences            []uint64
	SourcePortID         string
	SourceChannelID      string
	DestinationPortID    string
	DestinationChannelID string
}

// NewPacketFilter builds the filter of a packet event query.
func NewPacketFilter(q protocol.PacketEventQuery) EventFilter {
	return &PacketFilter{
		Sequences:            q.Sequences,
		SourcePortID:         q.SourcePortID,
		SourceChannelID:      q.SourceChannelID,
		DestinationPortID:    q.DestinationPortID,
		DestinationChannelID: q.DestinationChannelID,
	}
}

func (f *PacketFilter) Filter(ev protocol.IBCEvent) bool {
	pe, ok := ev.(protocol.PacketEvent)
	if !ok {
		return true
	}
	p := pe.GetPacket()
	if len(f.Sequences) > 0 && !slices.Contains(f.Sequences, p.Sequence) {
		return false
	}
	return matches(f.SourcePortID, p.SourcePort) &&
		matches(f.SourceChannelID, p.SourceChannel) &&
		matches(f.DestinationPortID, p.DestinationPort) &&
		matches(f.DestinationChannelID, p.DestinationChannel)
}

func matches(want, got string) bool {
	return want == "" || want == got
}

// ClientFilter keeps client events of a single client.
type ClientFilter struct {
	ClientID string
}

func (f *ClientFilter) Filter(ev protocol.IBCEvent) bool {
	switch e := ev.(type) {
	case protocol.CreateClient:
		return e.ClientID == f.ClientID
	case protocol.UpdateClient:
		return e.ClientID == f.ClientID
	default:
		return false
	}
}

// KindFilter keeps events whose kind is listed.
type KindFilter struct {
	Kinds []protocol.EventKind
}

func (f *KindFilter) Filter(ev protocol.IBCEvent) bool {
	return slices.Contains(f.Kinds, ev.Kind())
}

// AllOf keeps events every filter keeps.
type AllOf []EventFilter

func (a AllOf) Filter(ev protocol.IBCEvent) bool {
	for _, f := range a {
		if !f.Filter(ev) {
			return false
		}
	}
	return true
}

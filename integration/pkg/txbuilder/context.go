package txbuilder

import (
	"fmt"

	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	ckbtypes "github.com/nervosnetwork/ckb-sdk-go/v2/types"

	"github.com/Flouse/forcerelay/protocol"
)

// CodeHashes are the type script code hashes of the IBC cells.
type CodeHashes struct {
	Client     ckbtypes.Hash
	Connection ckbtypes.Hash
	Channel    ckbtypes.Hash
	Packet     ckbtypes.Hash
}

// CellRef is a live cell the builder may spend.
type CellRef struct {
	OutPoint *ckbtypes.OutPoint
	Output   *ckbtypes.CellOutput
}

func (r CellRef) loaded() bool {
	return r.OutPoint != nil && r.Output != nil
}

type ChannelKey struct {
	ChannelID string
	PortID    string
}

// PacketDirection separates the send and receive sequence spaces of a
// channel, which count independently.
type PacketDirection uint8

const (
	PacketOutgoing PacketDirection = iota
	PacketIncoming
)

// PacketKey locates a packet cell by the local channel end and direction.
type PacketKey struct {
	ChannelID string
	PortID    string
	Sequence  uint64
	Direction PacketDirection
}

type ChannelEntry struct {
	State *ChannelCell
	Cell  CellRef
}

type PacketEntry struct {
	State *PacketCell
	Cell  CellRef
}

// LookupContext is the snapshot of on-chain state a build reads. The caller
// refreshes it from live cells; a context that no longer matches the message
// fails the build with protocol.ErrStaleContext.
type LookupContext struct {
	ClientID      string
	ClientIDBytes [32]byte

	Connections     *ConnectionsCell
	ConnectionsCell *CellRef

	Channels map[ChannelKey]ChannelEntry
	Packets  map[PacketKey]PacketEntry

	CodeHashes CodeHashes

	// ClientCellDep references the cell holding the counterparty client's
	// metadata.
	ClientCellDep *ckbtypes.CellDep
	// ContractCellDeps are the code cells of the connection, channel and
	// packet scripts.
	ContractCellDeps []*ckbtypes.CellDep

	// PacketOwnerLock locks packet cells the relayer creates.
	PacketOwnerLock *ckbtypes.Script
	// StateLock locks connection and channel cells.
	StateLock *ckbtypes.Script
}

func stale(format string, args ...any) error {
	return fmt.Errorf("%w: %s", protocol.ErrStaleContext, fmt.Sprintf(format, args...))
}

func (c *LookupContext) connections() (*ConnectionsCell, *CellRef, error) {
	if c.Connections == nil || c.ConnectionsCell == nil || !c.ConnectionsCell.loaded() {
		return nil, nil, stale("connections cell of client %s is not loaded", c.ClientID)
	}
	return c.Connections, c.ConnectionsCell, nil
}

func (c *LookupContext) channel(channelID, portID string) (ChannelEntry, error) {
	entry, ok := c.Channels[ChannelKey{ChannelID: channelID, PortID: portID}]
	if !ok || entry.State == nil || !entry.Cell.loaded() {
		return ChannelEntry{}, stale("channel %s/%s is not loaded", portID, channelID)
	}
	return entry, nil
}

func (c *LookupContext) packet(channelID, portID string, sequence uint64, dir PacketDirection) (PacketEntry, error) {
	entry, ok := c.Packets[PacketKey{ChannelID: channelID, PortID: portID, Sequence: sequence, Direction: dir}]
	if !ok || entry.State == nil || !entry.Cell.loaded() {
		return PacketEntry{}, stale("packet %s/%s/%d is not loaded", portID, channelID, sequence)
	}
	return entry, nil
}

func (c *LookupContext) checkClient(clientID string) error {
	if clientID != c.ClientID {
		return stale("message targets client %s, context holds %s", clientID, c.ClientID)
	}
	return nil
}

// ChannelNumber parses the number out of a channel identifier.
func ChannelNumber(channelID string) (uint64, error) {
	n, err := channeltypes.ParseChannelSequence(channelID)
	if err != nil {
		return 0, fmt.Errorf("invalid channel id %q: %w", channelID, err)
	}
	return n, nil
}

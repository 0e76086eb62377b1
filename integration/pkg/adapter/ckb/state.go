package ckb

import (
	"context"
	"fmt"

	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/ethereum/go-ethereum/rlp"
	ckbtypes "github.com/nervosnetwork/ckb-sdk-go/v2/types"
	"golang.org/x/sync/errgroup"

	"github.com/Flouse/forcerelay/integration/pkg/txbuilder"
	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/protocol"
)

// packetCell is a decoded packet cell.
type packetCell struct {
	live   chainaccess.LiveCell
	state  *txbuilder.PacketCell
	packet channeltypes.Packet
}

// key is where the packet lives on this chain: the source end while it is
// sent or acknowledged, the destination end once received.
func (p packetCell) key() txbuilder.PacketKey {
	dir := p.state.Status.Direction()
	if dir == txbuilder.PacketIncoming {
		return txbuilder.PacketKey{ChannelID: p.packet.DestinationChannel, PortID: p.packet.DestinationPort, Sequence: p.packet.Sequence, Direction: dir}
	}
	return txbuilder.PacketKey{ChannelID: p.packet.SourceChannel, PortID: p.packet.SourcePort, Sequence: p.packet.Sequence, Direction: dir}
}

// snapshot is the IBC state of the client read at tip.
type snapshot struct {
	tip uint64
	lc  *txbuilder.LookupContext

	client      *chainaccess.LiveCell
	connections *chainaccess.LiveCell
	channels    map[txbuilder.ChannelKey]chainaccess.LiveCell
	packets     map[txbuilder.PacketKey]packetCell
}

func typeScript(codeHash ckbtypes.Hash, args []byte) *ckbtypes.Script {
	return &ckbtypes.Script{CodeHash: codeHash, HashType: ckbtypes.HashTypeType, Args: args}
}

func cellRef(cell chainaccess.LiveCell) txbuilder.CellRef {
	return txbuilder.CellRef{OutPoint: cell.OutPoint, Output: cell.Output}
}

// load reads every cell of the client concurrently. The tip is read first so
// no cell in the snapshot is older than it claims.
func (a *Adapter) load(ctx context.Context) (*snapshot, error) {
	s := &snapshot{
		lc: &txbuilder.LookupContext{
			ClientID:         a.scripts.ClientID,
			ClientIDBytes:    a.scripts.ClientIDBytes,
			Channels:         map[txbuilder.ChannelKey]txbuilder.ChannelEntry{},
			Packets:          map[txbuilder.PacketKey]txbuilder.PacketEntry{},
			CodeHashes:       a.scripts.CodeHashes,
			ClientCellDep:    a.scripts.ClientCellDep,
			ContractCellDeps: a.scripts.ContractCellDeps,
			PacketOwnerLock:  a.signer.Lock(),
			StateLock:        a.scripts.StateLock,
		},
		channels: map[txbuilder.ChannelKey]chainaccess.LiveCell{},
	}
	tip, err := a.ledger.TipBlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	s.tip = tip

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cell, err := a.singleCell(gctx, typeScript(a.scripts.CodeHashes.Client, a.scripts.ClientIDBytes[:]), "client cell")
		s.client = cell
		return err
	})
	g.Go(func() error {
		cell, err := a.singleCell(gctx, typeScript(a.scripts.CodeHashes.Connection, txbuilder.ConnectionArgs(a.scripts.ClientIDBytes)), "connections cell")
		if err != nil || cell == nil {
			return err
		}
		conns, err := txbuilder.DecodeConnectionsCell(cell.Data)
		if err != nil {
			return fmt.Errorf("%w: %w", protocol.ErrQueryFailure, err)
		}
		ref := cellRef(*cell)
		s.connections = cell
		s.lc.Connections = conns
		s.lc.ConnectionsCell = &ref
		return nil
	})
	g.Go(func() error {
		return a.loadChannels(gctx, s)
	})
	g.Go(func() error {
		packets, err := a.packetCells(gctx)
		if err != nil {
			return err
		}
		s.packets = make(map[txbuilder.PacketKey]packetCell, len(packets))
		for _, p := range packets {
			key := p.key()
			s.packets[key] = p
			s.lc.Packets[key] = txbuilder.PacketEntry{State: p.state, Cell: cellRef(p.live)}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s, nil
}

// singleCell returns the only live cell of script, or nil when there is none.
func (a *Adapter) singleCell(ctx context.Context, script *ckbtypes.Script, what string) (*chainaccess.LiveCell, error) {
	cells, err := a.ledger.LiveCellsByType(ctx, script)
	if err != nil {
		return nil, err
	}
	switch len(cells) {
	case 0:
		return nil, nil
	case 1:
		return &cells[0], nil
	default:
		return nil, fmt.Errorf("%w: %d live %ss for client %s", protocol.ErrQueryFailure, len(cells), what, a.scripts.ClientID)
	}
}

func (a *Adapter) loadChannels(ctx context.Context, s *snapshot) error {
	cells, err := a.ledger.LiveCellsByType(ctx, typeScript(a.scripts.CodeHashes.Channel, a.scripts.ClientIDBytes[:]))
	if err != nil {
		return err
	}
	for _, cell := range cells {
		state, err := txbuilder.DecodeChannelCell(cell.Data)
		if err != nil {
			a.lggr.Warnw("Skipping undecodable channel cell", "outPoint", cell.OutPoint.TxHash.String(), "error", err)
			continue
		}
		key := txbuilder.ChannelKey{ChannelID: channeltypes.FormatChannelIdentifier(state.Number), PortID: state.PortID}
		s.channels[key] = cell
		s.lc.Channels[key] = txbuilder.ChannelEntry{State: state, Cell: cellRef(cell)}
	}
	return nil
}

// packetCells lists and decodes the packet cells of the client.
func (a *Adapter) packetCells(ctx context.Context) ([]packetCell, error) {
	cells, err := a.ledger.LiveCellsByType(ctx, typeScript(a.scripts.CodeHashes.Packet, a.scripts.ClientIDBytes[:]))
	if err != nil {
		return nil, err
	}
	out := make([]packetCell, 0, len(cells))
	for _, cell := range cells {
		state, err := txbuilder.DecodePacketCell(cell.Data)
		if err != nil {
			a.lggr.Warnw("Skipping undecodable packet cell", "outPoint", cell.OutPoint.TxHash.String(), "error", err)
			continue
		}
		packet, err := state.Decode()
		if err != nil {
			a.lggr.Warnw("Skipping packet cell with undecodable packet", "outPoint", cell.OutPoint.TxHash.String(), "error", err)
			continue
		}
		out = append(out, packetCell{live: cell, state: state, packet: packet})
	}
	return out, nil
}

func (s *snapshot) channel(portID, channelID string) (*txbuilder.ChannelCell, channeltypes.Channel, error) {
	entry, ok := s.lc.Channels[txbuilder.ChannelKey{ChannelID: channelID, PortID: portID}]
	if !ok {
		return nil, channeltypes.Channel{}, fmt.Errorf("%w: channel %s/%s does not exist", protocol.ErrQueryFailure, portID, channelID)
	}
	end, err := entry.State.End()
	if err != nil {
		return nil, end, fmt.Errorf("%w: %w", protocol.ErrQueryFailure, err)
	}
	return entry.State, end, nil
}

// checkHeight accepts heights up to the tip. Cells only expose the latest
// state, so every accepted height is answered from it.
func (s *snapshot) checkHeight(q protocol.QueryHeight) error {
	if h, ok := q.Height(); ok && h.GetRevisionHeight() > s.tip {
		return fmt.Errorf("%w: height %d is above chain tip %d", protocol.ErrInvalidHeight, h.GetRevisionHeight(), s.tip)
	}
	return nil
}

// cellProof is the object proof of a cell: where it lives and what it holds.
type cellProof struct {
	TxHash [32]byte
	Index  uint32
	Data   []byte
}

func (s *snapshot) prove(cell chainaccess.LiveCell) (*protocol.Proofs, error) {
	encoded, err := rlp.EncodeToBytes(&cellProof{
		TxHash: [32]byte(cell.OutPoint.TxHash),
		Index:  cell.OutPoint.Index,
		Data:   cell.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode cell proof: %w", err)
	}
	return protocol.NewProofs(encoded, protocol.NewHeight(s.tip)), nil
}

// proveIf builds the proof of cell when asked to.
func (s *snapshot) proveIf(proof protocol.IncludeProof, cell chainaccess.LiveCell) (*protocol.Proofs, error) {
	if proof == protocol.IncludeProofNo {
		return nil, nil
	}
	return s.prove(cell)
}

package txbuilder

import (
	"fmt"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/gogoproto/proto"
	"github.com/ethereum/go-ethereum/rlp"
	ckbtypes "github.com/nervosnetwork/ckb-sdk-go/v2/types"

	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// TxInfo is the outcome of a build.
type TxInfo struct {
	// Tx is nil when the message needs no transaction and Event is
	// synthesized directly.
	Tx       *ckbtypes.Transaction
	Envelope Envelope
	// InputCapacity is the capacity of the IBC cells Tx spends. The signer
	// adds fee inputs for anything the outputs need beyond it.
	InputCapacity uint64
	// InputLocks are the locks of the cells Tx spends, in input order.
	InputLocks []*ckbtypes.Script
	Event      protocol.IBCEvent
}

type buildFunc func(msg proto.Message, lc *LookupContext) (*TxInfo, error)

// Builder converts messages with the same closed set of kinds the account
// chain dispatcher uses. Timeouts have no cell chain counterpart.
type Builder struct {
	lggr   logger.Logger
	routes map[protocol.MsgKind]buildFunc
}

func NewBuilder(lggr logger.Logger) *Builder {
	return &Builder{
		lggr: logger.Named(lggr, "TxBuilder"),
		routes: map[protocol.MsgKind]buildFunc{
			protocol.MsgKindCreateClient:          buildCreateClient,
			protocol.MsgKindUpdateClient:          buildUpdateClient,
			protocol.MsgKindConnectionOpenInit:    buildConnOpenInit,
			protocol.MsgKindConnectionOpenTry:     buildConnOpenTry,
			protocol.MsgKindConnectionOpenAck:     buildConnOpenAck,
			protocol.MsgKindConnectionOpenConfirm: buildConnOpenConfirm,
			protocol.MsgKindChannelOpenInit:       buildChanOpenInit,
			protocol.MsgKindChannelOpenTry:        buildChanOpenTry,
			protocol.MsgKindChannelOpenAck:        buildChanOpenAck,
			protocol.MsgKindChannelOpenConfirm:    buildChanOpenConfirm,
			protocol.MsgKindChannelCloseInit:      buildChanCloseInit,
			protocol.MsgKindChannelCloseConfirm:   buildChanCloseConfirm,
			protocol.MsgKindRecvPacket:            buildRecvPacket,
			protocol.MsgKindAcknowledgement:       buildAckPacket,
		},
	}
}

// Supports reports whether kind can be built.
func (b *Builder) Supports(kind protocol.MsgKind) bool {
	_, ok := b.routes[kind]
	return ok
}

// Build converts msg into an unsigned transaction against lc.
func (b *Builder) Build(msg *codectypes.Any, lc *LookupContext) (*TxInfo, error) {
	kind, decoded, err := protocol.DecodeMsg(msg)
	if err != nil {
		return nil, err
	}
	build, ok := b.routes[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnsupportedMessageType, msg.TypeUrl)
	}
	if lc == nil {
		return nil, stale("no lookup context")
	}

	info, err := build(decoded, lc)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", kind, err)
	}
	info.Envelope = Envelope{MsgKind: uint8(kind), Content: msg.Value}
	if info.Tx != nil {
		witness, err := rlp.EncodeToBytes(&info.Envelope)
		if err != nil {
			return nil, fmt.Errorf("failed to encode envelope: %w", err)
		}
		info.Tx.Witnesses = append(info.Tx.Witnesses, witness)
	}
	b.lggr.Debugw("Built transaction", "msg", kind.String(), "synthesized", info.Tx == nil, "inputCapacity", info.InputCapacity)
	return info, nil
}

// draft accumulates a transaction.
type draft struct {
	tx            *ckbtypes.Transaction
	inputCapacity uint64
	inputLocks    []*ckbtypes.Script
}

func newDraft(lc *LookupContext) *draft {
	tx := &ckbtypes.Transaction{
		Version:     0,
		HeaderDeps:  []ckbtypes.Hash{},
		Inputs:      []*ckbtypes.CellInput{},
		Outputs:     []*ckbtypes.CellOutput{},
		OutputsData: [][]byte{},
		Witnesses:   [][]byte{},
	}
	if lc.ClientCellDep != nil {
		tx.CellDeps = append(tx.CellDeps, lc.ClientCellDep)
	}
	tx.CellDeps = append(tx.CellDeps, lc.ContractCellDeps...)
	return &draft{tx: tx}
}

func (d *draft) spend(ref *CellRef) {
	d.tx.Inputs = append(d.tx.Inputs, &ckbtypes.CellInput{Since: 0, PreviousOutput: ref.OutPoint})
	d.inputCapacity += ref.Output.Capacity
	d.inputLocks = append(d.inputLocks, ref.Output.Lock)
}

// replace outputs the successor of a spent state cell with new data.
func (d *draft) replace(ref *CellRef, data []byte) {
	out := &ckbtypes.CellOutput{Capacity: ref.Output.Capacity, Lock: ref.Output.Lock, Type: ref.Output.Type}
	if need := occupiedCapacity(out, data); need > out.Capacity {
		out.Capacity = need
	}
	d.add(out, data)
}

// create outputs a new cell holding exactly its occupied capacity.
func (d *draft) create(lock, typ *ckbtypes.Script, data []byte) {
	out := &ckbtypes.CellOutput{Lock: lock, Type: typ}
	out.Capacity = occupiedCapacity(out, data)
	d.add(out, data)
}

func (d *draft) add(out *ckbtypes.CellOutput, data []byte) {
	d.tx.Outputs = append(d.tx.Outputs, out)
	d.tx.OutputsData = append(d.tx.OutputsData, data)
}

func (d *draft) info(ev protocol.IBCEvent) *TxInfo {
	return &TxInfo{Tx: d.tx, InputCapacity: d.inputCapacity, InputLocks: d.inputLocks, Event: ev}
}

func encodeCell(v any) ([]byte, error) {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cell data: %w", err)
	}
	return data, nil
}

package ledger

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nervosnetwork/ckb-sdk-go/v2/crypto/blake2b"
	ckbtypes "github.com/nervosnetwork/ckb-sdk-go/v2/types"

	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var _ chainaccess.CellTxSigner = (*CkbSigner)(nil)

const (
	signatureSize = 65
	// minChangeCapacity is the occupied capacity of a cell with a sighash
	// lock, no type and no data: 8 + 32 + 1 + 20 bytes.
	minChangeCapacity = 61 * 100_000_000
)

var ErrInsufficientCapacity = errors.New("insufficient capacity")

// LockCellSource lists the cells a lock owns.
type LockCellSource interface {
	LiveCellsByLock(ctx context.Context, script *ckbtypes.Script) ([]chainaccess.LiveCell, error)
}

// CkbSigner pays fees from cells under a secp256k1 blake160 sighash lock and
// signs the inputs that lock owns.
type CkbSigner struct {
	key     *ecdsa.PrivateKey
	lock    *ckbtypes.Script
	lockDep *ckbtypes.CellDep
	cells   LockCellSource
	fee     uint64
	lggr    logger.Logger

	// mu keeps two transactions from selecting the same fee cells.
	mu sync.Mutex
}

// NewCkbSigner parses a hex private key and derives the sighash lock with
// codeHash from it.
func NewCkbSigner(privateKey string, codeHash ckbtypes.Hash, lockDep *ckbtypes.CellDep, cells LockCellSource, fee uint64, lggr logger.Logger) (*CkbSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	if cells == nil {
		return nil, errors.New("cell source is not set")
	}
	if lockDep == nil {
		return nil, errors.New("lock cell dep is not set")
	}
	return &CkbSigner{
		key: key,
		lock: &ckbtypes.Script{
			CodeHash: codeHash,
			HashType: ckbtypes.HashTypeType,
			Args:     blake2b.Blake160(crypto.CompressPubkey(&key.PublicKey)),
		},
		lockDep: lockDep,
		cells:   cells,
		fee:     fee,
		lggr:    logger.Named(lggr, "CkbSigner"),
	}, nil
}

// Lock is the script the signer unlocks.
func (s *CkbSigner) Lock() *ckbtypes.Script {
	return s.lock
}

func (s *CkbSigner) CompleteAndSign(ctx context.Context, utx chainaccess.UnsignedCellTx) (*ckbtypes.Transaction, error) {
	if utx.Tx == nil {
		return nil, errors.New("no transaction to sign")
	}
	if len(utx.InputLocks) != len(utx.Tx.Inputs) {
		return nil, fmt.Errorf("have %d input locks for %d inputs", len(utx.InputLocks), len(utx.Tx.Inputs))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := utx.Tx
	locks := append([]*ckbtypes.Script(nil), utx.InputLocks...)
	if err := s.pay(ctx, tx, utx.InputCapacity, &locks); err != nil {
		return nil, err
	}
	tx.CellDeps = append(tx.CellDeps, s.lockDep)

	var group []int
	for i, l := range locks {
		if sameScript(l, s.lock) {
			group = append(group, i)
		}
	}
	if len(group) == 0 {
		return tx, nil
	}
	if err := s.sign(tx, group); err != nil {
		return nil, err
	}
	return tx, nil
}

// pay adds fee inputs until inputs cover outputs plus the fee, and returns
// any surplus in a change cell.
func (s *CkbSigner) pay(ctx context.Context, tx *ckbtypes.Transaction, have uint64, locks *[]*ckbtypes.Script) error {
	need := s.fee
	for _, out := range tx.Outputs {
		need += out.Capacity
	}
	settled := func() bool {
		return have == need || have >= need+minChangeCapacity
	}

	if !settled() {
		cells, err := s.cells.LiveCellsByLock(ctx, s.lock)
		if err != nil {
			return fmt.Errorf("failed to list fee cells: %w", err)
		}
		for _, cell := range cells {
			if cell.Output.Type != nil || len(cell.Data) > 0 {
				continue
			}
			tx.Inputs = append(tx.Inputs, &ckbtypes.CellInput{Since: 0, PreviousOutput: cell.OutPoint})
			*locks = append(*locks, s.lock)
			have += cell.Output.Capacity
			if settled() {
				break
			}
		}
	}
	if !settled() {
		return fmt.Errorf("%w: %w: inputs hold %d shannons, outputs and fee need %d", protocol.ErrSubmissionFailure, ErrInsufficientCapacity, have, need)
	}
	if have > need {
		tx.Outputs = append(tx.Outputs, &ckbtypes.CellOutput{Capacity: have - need, Lock: s.lock})
		tx.OutputsData = append(tx.OutputsData, []byte{})
	}
	s.lggr.Debugw("Paid transaction", "inputs", len(tx.Inputs), "change", have-need, "fee", s.fee)
	return nil
}

// sign fills the lock of the group's first witness. A witness already at
// that index, such as a message envelope, moves into the output type field.
func (s *CkbSigner) sign(tx *ckbtypes.Transaction, group []int) error {
	for len(tx.Witnesses) < len(tx.Inputs) {
		tx.Witnesses = append(tx.Witnesses, []byte{})
	}
	first := group[0]
	var carried []byte
	if len(tx.Witnesses[first]) > 0 {
		carried = tx.Witnesses[first]
	}

	placeholder := (&ckbtypes.WitnessArgs{Lock: make([]byte, signatureSize), OutputType: carried}).Serialize()
	txHash := tx.ComputeHash()

	msg := append([]byte(nil), txHash[:]...)
	msg = appendWitness(msg, placeholder)
	for _, i := range group[1:] {
		msg = appendWitness(msg, tx.Witnesses[i])
	}
	for i := len(tx.Inputs); i < len(tx.Witnesses); i++ {
		msg = appendWitness(msg, tx.Witnesses[i])
	}

	sig, err := crypto.Sign(blake2b.Blake256(msg), s.key)
	if err != nil {
		return fmt.Errorf("failed to sign transaction %s: %w", txHash, err)
	}
	tx.Witnesses[first] = (&ckbtypes.WitnessArgs{Lock: sig, OutputType: carried}).Serialize()
	return nil
}

func appendWitness(msg, witness []byte) []byte {
	msg = binary.LittleEndian.AppendUint64(msg, uint64(len(witness)))
	return append(msg, witness...)
}

func sameScript(a, b *ckbtypes.Script) bool {
	if a == nil || b == nil {
		return false
	}
	return a.CodeHash == b.CodeHash && a.HashType == b.HashType && bytes.Equal(a.Args, b.Args)
}

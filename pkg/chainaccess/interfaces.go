package chainaccess

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ckbtypes "github.com/nervosnetwork/ckb-sdk-go/v2/types"

	"github.com/Flouse/forcerelay/pkg/finality"
	"github.com/Flouse/forcerelay/protocol"
)

// LedgerReader provides read access to the account chain's EVM surface.
//
// Thread-safety: All methods must be safe for concurrent calls.
type LedgerReader interface {
	ethereum.ContractCaller
	// FilterLogs returns logs matching q in block and log order.
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	// HeaderByNumber returns the header at number, or the latest header when number is nil.
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	// TransactionReceipt returns ethereum.NotFound while the transaction is pending.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// StorageProof is an eth_getProof result for a single account.
type StorageProof struct {
	AccountProof [][]byte
	StorageHash  common.Hash
	// StorageProofs holds one proof per requested slot, in request order.
	StorageProofs []SlotProof
}

// SlotProof is the Merkle proof of a single storage slot.
type SlotProof struct {
	Key   common.Hash
	Value *big.Int
	Proof [][]byte
}

// FinalityReader provides the chain-native data the proof pipeline needs.
//
// Thread-safety: All methods must be safe for concurrent calls.
type FinalityReader interface {
	// BlockByNumber returns the block at number, or an error wrapping
	// protocol.ErrNotFound when it does not exist yet.
	BlockByNumber(ctx context.Context, number uint64) (*finality.Block, error)
	// ProofByNumber returns the finality proof published in block number,
	// which finalizes block number-1. It returns an error wrapping
	// protocol.ErrNotFound while that block does not exist yet.
	ProofByNumber(ctx context.Context, number uint64) (*finality.Proof, error)
	// CurrentValidators returns the validator set of the current epoch.
	CurrentValidators(ctx context.Context) (finality.ValidatorSet, error)
	// GetProof returns the account and storage proofs of account at number.
	GetProof(ctx context.Context, account common.Address, slots []common.Hash, number uint64) (*StorageProof, error)
}

// ContractTransmitter submits calls to a contract and waits for them to be mined.
//
// Implementations serialize submissions so nonces are used in order. That is
// a precondition of the account chain, callers must not submit from the same
// key through any other path.
type ContractTransmitter interface {
	// Transact sends data to contract and returns the receipt once mined.
	// A transaction not mined within the configured wait returns an error
	// wrapping protocol.ErrStillPending. Reverts and refused transactions
	// return a *protocol.SubmissionError. A returned receipt should carry its
	// block number; callers treat a receipt without one as still pending.
	Transact(ctx context.Context, contract common.Address, data []byte) (*types.Receipt, error)
	// Address is the sender of submitted transactions.
	Address() common.Address
}

// LiveCell is an unspent cell together with its data.
type LiveCell struct {
	OutPoint    *ckbtypes.OutPoint
	Output      *ckbtypes.CellOutput
	Data        []byte
	BlockNumber uint64
}

// CellLedger provides access to the cell chain.
//
// Thread-safety: All methods must be safe for concurrent calls.
type CellLedger interface {
	TipBlockNumber(ctx context.Context) (uint64, error)
	// LiveCellsByType returns every live cell whose type script matches
	// script by code hash, hash type and args prefix.
	LiveCellsByType(ctx context.Context, script *ckbtypes.Script) ([]LiveCell, error)
	SendTransaction(ctx context.Context, tx *ckbtypes.Transaction) (ckbtypes.Hash, error)
	// WaitCommitted blocks until hash is committed and returns its block
	// number, or fails with protocol.ErrStillPending after the configured wait.
	WaitCommitted(ctx context.Context, hash ckbtypes.Hash) (uint64, error)
}

// UnsignedCellTx is a cell transaction whose IBC inputs are chosen but whose
// fee inputs are not.
type UnsignedCellTx struct {
	Tx *ckbtypes.Transaction
	// InputCapacity is the total capacity of the inputs of Tx.
	InputCapacity uint64
	// InputLocks are the lock scripts of the inputs of Tx, in input order.
	InputLocks []*ckbtypes.Script
}

// CellTxSigner completes an unsigned cell transaction with fee inputs and
// change, and signs it. Key management lives behind this interface.
type CellTxSigner interface {
	CompleteAndSign(ctx context.Context, utx UnsignedCellTx) (*ckbtypes.Transaction, error)
}

// EventFilter decides whether a canonical event is delivered to the caller.
type EventFilter interface {
	Filter(ev protocol.IBCEvent) bool
}

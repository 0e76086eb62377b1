// Package chainaccesstest provides testify mocks of the chainaccess interfaces.
package chainaccesstest

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ckbtypes "github.com/nervosnetwork/ckb-sdk-go/v2/types"
	"github.com/stretchr/testify/mock"

	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/pkg/finality"
)

var (
	_ chainaccess.LedgerReader        = (*AxonLedger)(nil)
	_ chainaccess.FinalityReader      = (*AxonLedger)(nil)
	_ chainaccess.ContractTransmitter = (*Transmitter)(nil)
	_ chainaccess.CellLedger          = (*CellLedger)(nil)
	_ chainaccess.CellTxSigner        = (*CellSigner)(nil)
)

// AxonLedger mocks both account chain reader interfaces.
type AxonLedger struct {
	mock.Mock
}

func (m *AxonLedger) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, call, blockNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *AxonLedger) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Log), args.Error(1)
}

func (m *AxonLedger) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Header), args.Error(1)
}

func (m *AxonLedger) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

func (m *AxonLedger) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *AxonLedger) BlockByNumber(ctx context.Context, number uint64) (*finality.Block, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finality.Block), args.Error(1)
}

func (m *AxonLedger) ProofByNumber(ctx context.Context, number uint64) (*finality.Proof, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finality.Proof), args.Error(1)
}

func (m *AxonLedger) CurrentValidators(ctx context.Context) (finality.ValidatorSet, error) {
	args := m.Called(ctx)
	return args.Get(0).(finality.ValidatorSet), args.Error(1)
}

func (m *AxonLedger) GetProof(ctx context.Context, account common.Address, slots []common.Hash, number uint64) (*chainaccess.StorageProof, error) {
	args := m.Called(ctx, account, slots, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chainaccess.StorageProof), args.Error(1)
}

// Transmitter mocks chainaccess.ContractTransmitter.
type Transmitter struct {
	mock.Mock
}

func (m *Transmitter) Transact(ctx context.Context, contract common.Address, data []byte) (*types.Receipt, error) {
	args := m.Called(ctx, contract, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

func (m *Transmitter) Address() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

// CellLedger mocks chainaccess.CellLedger.
type CellLedger struct {
	mock.Mock
}

func (m *CellLedger) TipBlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *CellLedger) LiveCellsByType(ctx context.Context, script *ckbtypes.Script) ([]chainaccess.LiveCell, error) {
	args := m.Called(ctx, script)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chainaccess.LiveCell), args.Error(1)
}

func (m *CellLedger) SendTransaction(ctx context.Context, tx *ckbtypes.Transaction) (ckbtypes.Hash, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(ckbtypes.Hash), args.Error(1)
}

func (m *CellLedger) WaitCommitted(ctx context.Context, hash ckbtypes.Hash) (uint64, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(uint64), args.Error(1)
}

// CellSigner mocks chainaccess.CellTxSigner.
type CellSigner struct {
	mock.Mock
}

func (m *CellSigner) CompleteAndSign(ctx context.Context, utx chainaccess.UnsignedCellTx) (*ckbtypes.Transaction, error) {
	args := m.Called(ctx, utx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ckbtypes.Transaction), args.Error(1)
}

// Package contracttransmitter signs and submits handler calls on the account
// chain.
package contracttransmitter

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var _ chainaccess.ContractTransmitter = &EVMContractTransmitter{}

const (
	DefaultReceiptPollInterval = time.Second
	DefaultReceiptTimeout      = 2 * time.Minute
)

// Backend is the subset of an ethclient.Client the transmitter uses.
type Backend interface {
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.TransactionSender
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Config struct {
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
}

type EVMContractTransmitter struct {
	lggr   logger.Logger
	client Backend
	pk     *ecdsa.PrivateKey
	from   common.Address
	signer types.Signer
	cfg    Config
	mu     sync.Mutex
}

func NewEVMContractTransmitterFromRPC(ctx context.Context, lggr logger.Logger, rpcURL, privateKey string, cfg Config) (*EVMContractTransmitter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial %s: %w", protocol.ErrTransportFailure, rpcURL, err)
	}

	pk, err := crypto.HexToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid signer key: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get chain id: %w", protocol.ErrTransportFailure, err)
	}

	return NewEVMContractTransmitter(lggr, client, pk, chainID, cfg), nil
}

func NewEVMContractTransmitter(lggr logger.Logger, client Backend, pk *ecdsa.PrivateKey, chainID *big.Int, cfg Config) *EVMContractTransmitter {
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = DefaultReceiptPollInterval
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = DefaultReceiptTimeout
	}
	return &EVMContractTransmitter{
		lggr:   logger.Named(lggr, "ContractTransmitter"),
		client: client,
		pk:     pk,
		from:   crypto.PubkeyToAddress(pk.PublicKey),
		signer: types.LatestSignerForChainID(chainID),
		cfg:    cfg,
	}
}

func (ct *EVMContractTransmitter) Address() common.Address {
	return ct.from
}

// Transact submits one call at a time. The lock is held until the receipt is
// in so the next call reads a nonce that accounts for this one.
func (ct *EVMContractTransmitter) Transact(ctx context.Context, contract common.Address, data []byte) (*types.Receipt, error) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	tx, err := ct.signedTx(ctx, contract, data)
	if err != nil {
		return nil, err
	}

	if err := ct.client.SendTransaction(ctx, tx); err != nil {
		return nil, &protocol.SubmissionError{TxHash: tx.Hash().Hex(), Reason: revertReason(err), Err: err}
	}
	ct.lggr.Infow("submitted tx to chain", "tx hash", tx.Hash().Hex(), "nonce", tx.Nonce())

	receipt, err := ct.waitForReceipt(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &protocol.SubmissionError{
			TxHash: tx.Hash().Hex(),
			Reason: ct.replayRevert(ctx, contract, data, receipt.BlockNumber),
			Err:    errors.New("transaction reverted"),
		}
	}
	return receipt, nil
}

func (ct *EVMContractTransmitter) signedTx(ctx context.Context, contract common.Address, data []byte) (*types.Transaction, error) {
	nonce, err := ct.client.PendingNonceAt(ctx, ct.from)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get nonce: %w", protocol.ErrTransportFailure, err)
	}

	gasPrice, err := ct.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get gas price: %w", protocol.ErrTransportFailure, err)
	}

	// A call that would revert fails estimation, which is where the reason
	// is cheapest to get.
	gas, err := ct.client.EstimateGas(ctx, ethereum.CallMsg{From: ct.from, To: &contract, Data: data})
	if err != nil {
		return nil, &protocol.SubmissionError{Reason: revertReason(err), Err: err}
	}
	gas += gas / 5

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &contract,
		Value:    big.NewInt(0),
		Data:     data,
	})
	return types.SignTx(tx, ct.signer, ct.pk)
}

func (ct *EVMContractTransmitter) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	policy := retrypolicy.NewBuilder[*types.Receipt]().
		HandleErrors(ethereum.NotFound).
		WithDelay(ct.cfg.ReceiptPollInterval).
		WithMaxDuration(ct.cfg.ReceiptTimeout).
		WithMaxRetries(-1).
		ReturnLastFailure().
		Build()

	receipt, err := failsafe.With[*types.Receipt](policy).WithContext(ctx).Get(func() (*types.Receipt, error) {
		receipt, err := ct.client.TransactionReceipt(ctx, hash)
		if err == nil && receipt.BlockNumber == nil {
			// pooled, not mined yet
			return nil, ethereum.NotFound
		}
		return receipt, err
	})
	switch {
	case err == nil:
		return receipt, nil
	case errors.Is(err, ethereum.NotFound):
		ct.lggr.Warnw("Transaction not mined in time", "tx hash", hash.Hex(), "waited", ct.cfg.ReceiptTimeout)
		return nil, fmt.Errorf("%w: tx %s", protocol.ErrStillPending, hash.Hex())
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: tx %s: %w", protocol.ErrStillPending, hash.Hex(), ctx.Err())
	default:
		return nil, fmt.Errorf("%w: failed to get receipt of %s: %w", protocol.ErrTransportFailure, hash.Hex(), err)
	}
}

// replayRevert re-executes a reverted call at the block it was mined in to
// recover its revert reason.
func (ct *EVMContractTransmitter) replayRevert(ctx context.Context, contract common.Address, data []byte, block *big.Int) string {
	_, err := ct.client.CallContract(ctx, ethereum.CallMsg{From: ct.from, To: &contract, Data: data}, block)
	if err == nil {
		return ""
	}
	return revertReason(err)
}

// revertReason extracts a readable reason from an RPC error. It falls back
// to the error text when the node returned no revert data.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if raw, decodeErr := hexutil.Decode(hexData); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}
	return err.Error()
}

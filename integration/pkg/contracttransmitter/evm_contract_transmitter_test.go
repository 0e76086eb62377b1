package contracttransmitter

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, call, blockNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	args := m.Called(ctx, call)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *mockBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

// revertError mimics the JSON-RPC error a node returns for a reverted call.
type revertError struct {
	data string
}

func (e *revertError) Error() string          { return "execution reverted" }
func (e *revertError) ErrorData() interface{} { return e.data }

func newRevertError(t *testing.T, reason string) *revertError {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return &revertError{data: hexutil.Encode(append(selector, packed...))}
}

var handler = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func newTransmitter(t *testing.T, backend *mockBackend) *EVMContractTransmitter {
	t.Helper()
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewEVMContractTransmitter(logger.Test(t), backend, pk, big.NewInt(2022), Config{
		ReceiptPollInterval: time.Millisecond,
		ReceiptTimeout:      50 * time.Millisecond,
	})
}

func expectSigning(backend *mockBackend, ct *EVMContractTransmitter) {
	backend.On("PendingNonceAt", mock.Anything, ct.Address()).Return(uint64(3), nil).Once()
	backend.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(8), nil).Once()
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(100000), nil).Once()
}

func TestEVMContractTransmitter_Transact(t *testing.T) {
	backend := &mockBackend{}
	ct := newTransmitter(t, backend)
	expectSigning(backend, ct)

	var sent *types.Transaction
	backend.On("SendTransaction", mock.Anything, mock.MatchedBy(func(tx *types.Transaction) bool {
		sent = tx
		return true
	})).Return(nil).Once()
	backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, ethereum.NotFound).Once()
	backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(&types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(12),
	}, nil).Once()

	receipt, err := ct.Transact(context.Background(), handler, []byte{0xca, 0xfe})
	require.NoError(t, err)
	assert.Equal(t, int64(12), receipt.BlockNumber.Int64())

	require.NotNil(t, sent)
	assert.Equal(t, uint64(3), sent.Nonce())
	assert.Equal(t, uint64(120000), sent.Gas())
	assert.Equal(t, handler, *sent.To())
	assert.Equal(t, []byte{0xca, 0xfe}, sent.Data())
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(2022)), sent)
	require.NoError(t, err)
	assert.Equal(t, ct.Address(), from)
	backend.AssertExpectations(t)
}

func TestEVMContractTransmitter_WaitsPastPooledReceipt(t *testing.T) {
	backend := &mockBackend{}
	ct := newTransmitter(t, backend)
	expectSigning(backend, ct)
	backend.On("SendTransaction", mock.Anything, mock.Anything).Return(nil).Once()
	backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(&types.Receipt{}, nil).Once()
	backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(&types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(13),
	}, nil).Once()

	receipt, err := ct.Transact(context.Background(), handler, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, int64(13), receipt.BlockNumber.Int64())
	backend.AssertExpectations(t)
}

func TestEVMContractTransmitter_Failures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(b *mockBackend, ct *EVMContractTransmitter)
		wantErr    error
		wantReason string
	}{
		{
			name: "revert during estimation",
			setup: func(b *mockBackend, ct *EVMContractTransmitter) {
				b.On("PendingNonceAt", mock.Anything, ct.Address()).Return(uint64(0), nil)
				b.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1), nil)
				b.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(0), newRevertError(t, "channel not found"))
			},
			wantErr:    protocol.ErrSubmissionFailure,
			wantReason: "channel not found",
		},
		{
			name: "refused by node",
			setup: func(b *mockBackend, ct *EVMContractTransmitter) {
				expectSigning(b, ct)
				b.On("SendTransaction", mock.Anything, mock.Anything).Return(errors.New("nonce too low"))
			},
			wantErr:    protocol.ErrSubmissionFailure,
			wantReason: "nonce too low",
		},
		{
			name: "reverted on chain",
			setup: func(b *mockBackend, ct *EVMContractTransmitter) {
				expectSigning(b, ct)
				b.On("SendTransaction", mock.Anything, mock.Anything).Return(nil)
				b.On("TransactionReceipt", mock.Anything, mock.Anything).Return(&types.Receipt{
					Status:      types.ReceiptStatusFailed,
					BlockNumber: big.NewInt(30),
				}, nil)
				b.On("CallContract", mock.Anything, mock.Anything, big.NewInt(30)).Return(nil, newRevertError(t, "packet already received"))
			},
			wantErr:    protocol.ErrSubmissionFailure,
			wantReason: "packet already received",
		},
		{
			name: "never mined",
			setup: func(b *mockBackend, ct *EVMContractTransmitter) {
				expectSigning(b, ct)
				b.On("SendTransaction", mock.Anything, mock.Anything).Return(nil)
				b.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, ethereum.NotFound)
			},
			wantErr: protocol.ErrStillPending,
		},
		{
			name: "nonce unavailable",
			setup: func(b *mockBackend, ct *EVMContractTransmitter) {
				b.On("PendingNonceAt", mock.Anything, ct.Address()).Return(uint64(0), errors.New("connection refused"))
			},
			wantErr: protocol.ErrTransportFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &mockBackend{}
			ct := newTransmitter(t, backend)
			tt.setup(backend, ct)

			_, err := ct.Transact(context.Background(), handler, []byte{0x01})
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantReason != "" {
				var serr *protocol.SubmissionError
				require.ErrorAs(t, err, &serr)
				assert.Equal(t, tt.wantReason, serr.Reason)
			}
		})
	}
}

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nervosnetwork/ckb-sdk-go/v2/indexer"
	ckbtypes "github.com/nervosnetwork/ckb-sdk-go/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

type mockCkbRPC struct {
	mock.Mock
}

func (m *mockCkbRPC) GetTipBlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockCkbRPC) GetCells(ctx context.Context, searchKey *indexer.SearchKey, order indexer.SearchOrder, limit uint64, afterCursor string) (*indexer.LiveCells, error) {
	args := m.Called(ctx, searchKey, order, limit, afterCursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*indexer.LiveCells), args.Error(1)
}

func (m *mockCkbRPC) SendTransaction(ctx context.Context, tx *ckbtypes.Transaction) (*ckbtypes.Hash, error) {
	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ckbtypes.Hash), args.Error(1)
}

func (m *mockCkbRPC) GetTransaction(ctx context.Context, hash ckbtypes.Hash, onlyCommitted *bool) (*ckbtypes.TransactionWithStatus, error) {
	args := m.Called(ctx, hash, onlyCommitted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ckbtypes.TransactionWithStatus), args.Error(1)
}

func (m *mockCkbRPC) GetHeader(ctx context.Context, hash ckbtypes.Hash) (*ckbtypes.Header, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ckbtypes.Header), args.Error(1)
}

func cellsPage(n int, cursor string) *indexer.LiveCells {
	page := &indexer.LiveCells{LastCursor: cursor}
	for i := 0; i < n; i++ {
		page.Objects = append(page.Objects, &indexer.LiveCell{
			BlockNumber: uint64(i),
			OutPoint:    &ckbtypes.OutPoint{Index: uint32(i)},
			Output:      &ckbtypes.CellOutput{Capacity: 100},
			OutputData:  []byte{byte(i)},
		})
	}
	return page
}

func TestLiveCellsByTypePages(t *testing.T) {
	rpcMock := &mockCkbRPC{}
	client := NewCkbClient(rpcMock, time.Millisecond, time.Second, logger.Test(t))
	script := &ckbtypes.Script{HashType: ckbtypes.HashTypeType, Args: []byte{0x01}}

	rpcMock.On("GetCells", mock.Anything, mock.Anything, indexer.SearchOrderAsc, uint64(defaultCellPageSize), "").
		Return(cellsPage(defaultCellPageSize, "0xcursor"), nil).Once()
	rpcMock.On("GetCells", mock.Anything, mock.Anything, indexer.SearchOrderAsc, uint64(defaultCellPageSize), "0xcursor").
		Return(cellsPage(3, "0xend"), nil).Once()

	cells, err := client.LiveCellsByType(context.Background(), script)
	require.NoError(t, err)
	assert.Len(t, cells, defaultCellPageSize+3)
	assert.Equal(t, []byte{2}, cells[len(cells)-1].Data)
	rpcMock.AssertExpectations(t)
}

func TestLiveCellsByTypeTransportFailure(t *testing.T) {
	rpcMock := &mockCkbRPC{}
	client := NewCkbClient(rpcMock, time.Millisecond, time.Second, logger.Test(t))
	rpcMock.On("GetCells", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := client.LiveCellsByType(context.Background(), &ckbtypes.Script{})
	require.ErrorIs(t, err, protocol.ErrTransportFailure)
}

func TestSendTransactionRefused(t *testing.T) {
	rpcMock := &mockCkbRPC{}
	client := NewCkbClient(rpcMock, time.Millisecond, time.Second, logger.Test(t))
	rpcMock.On("SendTransaction", mock.Anything, mock.Anything).Return(nil, errors.New("PoolRejectedDuplicatedTransaction"))

	_, err := client.SendTransaction(context.Background(), &ckbtypes.Transaction{})
	require.ErrorIs(t, err, protocol.ErrSubmissionFailure)
}

func TestWaitCommitted(t *testing.T) {
	hash := ckbtypes.HexToHash("0x01")
	blockHash := ckbtypes.HexToHash("0x02")

	tests := []struct {
		name    string
		setup   func(m *mockCkbRPC)
		want    uint64
		wantErr error
	}{
		{
			name: "committed after pending",
			setup: func(m *mockCkbRPC) {
				m.On("GetTransaction", mock.Anything, hash, mock.Anything).Return(&ckbtypes.TransactionWithStatus{
					TxStatus: &ckbtypes.TxStatus{Status: ckbtypes.TransactionStatusPending},
				}, nil).Once()
				m.On("GetTransaction", mock.Anything, hash, mock.Anything).Return(&ckbtypes.TransactionWithStatus{
					TxStatus: &ckbtypes.TxStatus{Status: ckbtypes.TransactionStatusCommitted, BlockHash: &blockHash},
				}, nil).Once()
				m.On("GetHeader", mock.Anything, blockHash).Return(&ckbtypes.Header{Number: 42}, nil).Once()
			},
			want: 42,
		},
		{
			name: "rejected",
			setup: func(m *mockCkbRPC) {
				reason := "Resolve failed Dead"
				m.On("GetTransaction", mock.Anything, hash, mock.Anything).Return(&ckbtypes.TransactionWithStatus{
					TxStatus: &ckbtypes.TxStatus{Status: ckbtypes.TransactionStatusRejected, Reason: &reason},
				}, nil).Once()
			},
			wantErr: protocol.ErrSubmissionFailure,
		},
		{
			name: "never committed",
			setup: func(m *mockCkbRPC) {
				m.On("GetTransaction", mock.Anything, hash, mock.Anything).Return(&ckbtypes.TransactionWithStatus{
					TxStatus: &ckbtypes.TxStatus{Status: ckbtypes.TransactionStatusProposed},
				}, nil)
			},
			wantErr: protocol.ErrStillPending,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpcMock := &mockCkbRPC{}
			tt.setup(rpcMock)
			client := NewCkbClient(rpcMock, time.Millisecond, 50*time.Millisecond, logger.Test(t))

			got, err := client.WaitCommitted(context.Background(), hash)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWaitCommittedRejectedCarriesReason(t *testing.T) {
	rpcMock := &mockCkbRPC{}
	reason := "script error"
	rpcMock.On("GetTransaction", mock.Anything, mock.Anything, mock.Anything).Return(&ckbtypes.TransactionWithStatus{
		TxStatus: &ckbtypes.TxStatus{Status: ckbtypes.TransactionStatusRejected, Reason: &reason},
	}, nil)
	client := NewCkbClient(rpcMock, time.Millisecond, time.Second, logger.Test(t))

	_, err := client.WaitCommitted(context.Background(), ckbtypes.HexToHash("0x03"))
	var serr *protocol.SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, reason, serr.Reason)
}

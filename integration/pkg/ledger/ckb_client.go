package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/nervosnetwork/ckb-sdk-go/v2/indexer"
	"github.com/nervosnetwork/ckb-sdk-go/v2/rpc"
	ckbtypes "github.com/nervosnetwork/ckb-sdk-go/v2/types"

	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var _ chainaccess.CellLedger = (*CkbClient)(nil)

const (
	defaultCellPageSize   = 200
	defaultCommitPoll     = 3 * time.Second
	defaultCommitDeadline = 2 * time.Minute
)

// CkbRPC is the subset of the CKB node and indexer RPC the client uses.
type CkbRPC interface {
	GetTipBlockNumber(ctx context.Context) (uint64, error)
	GetCells(ctx context.Context, searchKey *indexer.SearchKey, order indexer.SearchOrder, limit uint64, afterCursor string) (*indexer.LiveCells, error)
	SendTransaction(ctx context.Context, tx *ckbtypes.Transaction) (*ckbtypes.Hash, error)
	GetTransaction(ctx context.Context, hash ckbtypes.Hash, onlyCommitted *bool) (*ckbtypes.TransactionWithStatus, error)
	GetHeader(ctx context.Context, hash ckbtypes.Hash) (*ckbtypes.Header, error)
}

var errNotCommitted = errors.New("transaction not committed yet")

// CkbClient implements chainaccess.CellLedger over a CKB node with the
// built-in indexer enabled.
type CkbClient struct {
	rpc          CkbRPC
	pollInterval time.Duration
	maxWait      time.Duration
	lggr         logger.Logger
}

// DialCkb connects to the node at url.
func DialCkb(url string, pollInterval, maxWait time.Duration, lggr logger.Logger) (*CkbClient, error) {
	client, err := rpc.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial %s: %w", protocol.ErrTransportFailure, url, err)
	}
	return NewCkbClient(client, pollInterval, maxWait, lggr), nil
}

func NewCkbClient(client CkbRPC, pollInterval, maxWait time.Duration, lggr logger.Logger) *CkbClient {
	if pollInterval <= 0 {
		pollInterval = defaultCommitPoll
	}
	if maxWait <= 0 {
		maxWait = defaultCommitDeadline
	}
	return &CkbClient{rpc: client, pollInterval: pollInterval, maxWait: maxWait, lggr: lggr}
}

func (c *CkbClient) TipBlockNumber(ctx context.Context) (uint64, error) {
	tip, err := c.rpc.GetTipBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: get_tip_block_number: %w", protocol.ErrTransportFailure, err)
	}
	return tip, nil
}

func (c *CkbClient) LiveCellsByType(ctx context.Context, script *ckbtypes.Script) ([]chainaccess.LiveCell, error) {
	return c.liveCells(ctx, script, ckbtypes.ScriptTypeType)
}

// LiveCellsByLock returns every live cell locked by script.
func (c *CkbClient) LiveCellsByLock(ctx context.Context, script *ckbtypes.Script) ([]chainaccess.LiveCell, error) {
	return c.liveCells(ctx, script, ckbtypes.ScriptTypeLock)
}

func (c *CkbClient) liveCells(ctx context.Context, script *ckbtypes.Script, scriptType ckbtypes.ScriptType) ([]chainaccess.LiveCell, error) {
	key := &indexer.SearchKey{
		Script:     script,
		ScriptType: scriptType,
	}
	var (
		out    []chainaccess.LiveCell
		cursor string
	)
	for {
		page, err := c.rpc.GetCells(ctx, key, indexer.SearchOrderAsc, defaultCellPageSize, cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: get_cells: %w", protocol.ErrTransportFailure, err)
		}
		for _, cell := range page.Objects {
			out = append(out, chainaccess.LiveCell{
				OutPoint:    cell.OutPoint,
				Output:      cell.Output,
				Data:        cell.OutputData,
				BlockNumber: cell.BlockNumber,
			})
		}
		if len(page.Objects) < defaultCellPageSize || page.LastCursor == "" {
			return out, nil
		}
		cursor = page.LastCursor
	}
}

func (c *CkbClient) SendTransaction(ctx context.Context, tx *ckbtypes.Transaction) (ckbtypes.Hash, error) {
	hash, err := c.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return ckbtypes.Hash{}, &protocol.SubmissionError{Err: err}
	}
	return *hash, nil
}

func (c *CkbClient) WaitCommitted(ctx context.Context, hash ckbtypes.Hash) (uint64, error) {
	policy := retrypolicy.NewBuilder[uint64]().
		HandleErrors(errNotCommitted).
		WithDelay(c.pollInterval).
		WithMaxDuration(c.maxWait).
		WithMaxRetries(-1).
		ReturnLastFailure().
		Build()

	number, err := failsafe.With[uint64](policy).WithContext(ctx).Get(func() (uint64, error) {
		tx, err := c.rpc.GetTransaction(ctx, hash, nil)
		if err != nil {
			return 0, fmt.Errorf("%w: get_transaction: %w", protocol.ErrTransportFailure, err)
		}
		if tx == nil || tx.TxStatus == nil {
			return 0, errNotCommitted
		}
		switch tx.TxStatus.Status {
		case ckbtypes.TransactionStatusCommitted:
		case ckbtypes.TransactionStatusRejected:
			reason := ""
			if tx.TxStatus.Reason != nil {
				reason = *tx.TxStatus.Reason
			}
			return 0, &protocol.SubmissionError{TxHash: hash.String(), Reason: reason}
		default:
			return 0, errNotCommitted
		}
		if tx.TxStatus.BlockHash == nil {
			return 0, errNotCommitted
		}
		header, err := c.rpc.GetHeader(ctx, *tx.TxStatus.BlockHash)
		if err != nil {
			return 0, fmt.Errorf("%w: get_header: %w", protocol.ErrTransportFailure, err)
		}
		return header.Number, nil
	})
	if errors.Is(err, errNotCommitted) {
		c.lggr.Warnw("Transaction not committed in time", "tx", hash.String(), "waited", c.maxWait)
		return 0, fmt.Errorf("%w: tx %s", protocol.ErrStillPending, hash)
	}
	return number, err
}

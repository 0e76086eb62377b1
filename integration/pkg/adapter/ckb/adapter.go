// Package ckb implements the chain adapter of the cell chain. IBC state lives
// in typed cells of a single client; messages become transactions built by
// txbuilder and completed by a CellTxSigner.
package ckb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	ckbtypes "github.com/nervosnetwork/ckb-sdk-go/v2/types"

	"github.com/Flouse/forcerelay/integration/pkg/ledger"
	"github.com/Flouse/forcerelay/integration/pkg/monitor"
	"github.com/Flouse/forcerelay/integration/pkg/monitoring"
	"github.com/Flouse/forcerelay/integration/pkg/txbuilder"
	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var _ protocol.ChainAdapter = (*Adapter)(nil)

// Signer completes transactions and owns the packet cells the relayer
// creates.
type Signer interface {
	chainaccess.CellTxSigner
	Lock() *ckbtypes.Script
}

// Scripts locate the IBC cells of the client this adapter serves.
type Scripts struct {
	ClientID         string
	ClientIDBytes    [32]byte
	CodeHashes       txbuilder.CodeHashes
	ClientCellDep    *ckbtypes.CellDep
	ContractCellDeps []*ckbtypes.CellDep
	StateLock        *ckbtypes.Script
}

type Params struct {
	Identity protocol.ChainIdentity
	Ledger   chainaccess.CellLedger
	Signer   Signer
	// Wallet lists the cells of the signer's lock for balance queries. It
	// may be nil, in which case balances are not served.
	Wallet  ledger.LockCellSource
	Scripts Scripts
	Monitor monitor.Config
	Lggr    logger.Logger
	Metrics *monitoring.MetricLabeler
}

// Adapter is the protocol.ChainAdapter of the cell chain.
//
// Every query reads a fresh snapshot of the client's cells. Submissions are
// serialized: each message is built against the state its predecessor left.
type Adapter struct {
	identity   protocol.ChainIdentity
	ledger     chainaccess.CellLedger
	signer     Signer
	wallet     ledger.LockCellSource
	scripts    Scripts
	builder    *txbuilder.Builder
	monitorCfg monitor.Config
	lggr       logger.Logger
	metrics    *monitoring.MetricLabeler

	sendMu sync.Mutex

	mu       sync.Mutex
	monitor  *monitor.Service
	shutdown bool
}

func New(p Params) (*Adapter, error) {
	var errs []error
	if p.Identity.ChainID == "" {
		errs = append(errs, errors.New("chain id is not set"))
	}
	if p.Ledger == nil {
		errs = append(errs, errors.New("cell ledger is not set"))
	}
	if p.Signer == nil {
		errs = append(errs, errors.New("signer is not set"))
	}
	if p.Scripts.ClientID == "" {
		errs = append(errs, errors.New("client id is not set"))
	}
	if p.Lggr == nil {
		errs = append(errs, errors.New("logger is not set"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if p.Metrics == nil {
		p.Metrics = monitoring.NewNoopMetricLabeler()
	}
	lggr := logger.With(logger.Named(p.Lggr, "CkbAdapter"), "chainID", p.Identity.ChainID, "clientID", p.Scripts.ClientID)

	return &Adapter{
		identity:   p.Identity,
		ledger:     p.Ledger,
		signer:     p.Signer,
		wallet:     p.Wallet,
		scripts:    p.Scripts,
		builder:    txbuilder.NewBuilder(lggr),
		monitorCfg: p.Monitor,
		lggr:       lggr,
		metrics:    p.Metrics,
	}, nil
}

func (a *Adapter) Identity() protocol.ChainIdentity {
	return a.identity
}

// HealthCheck reports unhealthy when the node does not answer.
func (a *Adapter) HealthCheck(ctx context.Context) protocol.HealthCheck {
	if _, err := a.ledger.TipBlockNumber(ctx); err != nil {
		return protocol.HealthCheck{State: protocol.Unhealthy, Reason: err}
	}
	return protocol.HealthCheck{State: protocol.Healthy}
}

// Subscribe starts the packet cell monitor on first use. Later calls return
// the same subscription.
func (a *Adapter) Subscribe(ctx context.Context) (protocol.Subscription, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.shutdown {
		return nil, errors.New("adapter is shut down")
	}
	if a.monitor != nil {
		return a.monitor.Subscription(), nil
	}

	svc, err := monitor.NewService(a.identity.ChainID, &eventSource{a: a}, a.monitorCfg, a.lggr, a.metrics)
	if err != nil {
		return nil, err
	}
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start cell monitor: %w", err)
	}
	a.monitor = svc
	return svc.Subscription(), nil
}

func (a *Adapter) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	if a.monitor == nil {
		return nil
	}
	return a.monitor.Close()
}

func (a *Adapter) SupportsFeature(protocol.Feature) bool {
	return false
}

// SendMessagesAndWaitCommit submits msgs one at a time and stops at the
// first failure.
func (a *Adapter) SendMessagesAndWaitCommit(ctx context.Context, msgs []*codectypes.Any) ([]protocol.IBCEventWithHeight, error) {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	out := make([]protocol.IBCEventWithHeight, 0, len(msgs))
	for i, msg := range msgs {
		ev, err := a.submit(ctx, msg)
		if err != nil {
			return out, fmt.Errorf("message %d of %d: %w", i+1, len(msgs), err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// submit builds msg against a fresh snapshot, signs, sends and waits for the
// commit. Messages the cell chain executes off-chain yield their event at
// the snapshot tip without a transaction.
func (a *Adapter) submit(ctx context.Context, msg *codectypes.Any) (protocol.IBCEventWithHeight, error) {
	kind := protocol.ParseMsgKind(msg.TypeUrl)
	snap, err := a.load(ctx)
	if err != nil {
		return protocol.IBCEventWithHeight{}, err
	}
	info, err := a.builder.Build(msg, snap.lc)
	if err != nil {
		return protocol.IBCEventWithHeight{}, err
	}
	if info.Event == nil {
		return protocol.IBCEventWithHeight{}, fmt.Errorf("%w: %s", protocol.ErrEventNotFound, kind)
	}
	if info.Tx == nil {
		a.lggr.Infow("Message applied without transaction", "msg", kind.String(), "event", info.Event.Kind().String())
		return protocol.IBCEventWithHeight{Event: info.Event, Height: protocol.NewHeight(snap.tip)}, nil
	}

	tx, err := a.signer.CompleteAndSign(ctx, chainaccess.UnsignedCellTx{
		Tx:            info.Tx,
		InputCapacity: info.InputCapacity,
		InputLocks:    info.InputLocks,
	})
	if err != nil {
		a.metrics.IncrementSubmissionFailures(kind.String())
		return protocol.IBCEventWithHeight{}, fmt.Errorf("failed to sign %s: %w", kind, err)
	}
	hash, err := a.ledger.SendTransaction(ctx, tx)
	if err != nil {
		a.metrics.IncrementSubmissionFailures(kind.String())
		return protocol.IBCEventWithHeight{}, fmt.Errorf("failed to submit %s: %w", kind, err)
	}
	a.metrics.IncrementMessagesSubmitted(kind.String())

	height, err := a.ledger.WaitCommitted(ctx, hash)
	if err != nil {
		return protocol.IBCEventWithHeight{}, fmt.Errorf("tx %s: %w", hash, err)
	}
	a.lggr.Infow("Message committed",
		"msg", kind.String(),
		"event", info.Event.Kind().String(),
		"tx", hash.String(),
		"height", height)
	return protocol.IBCEventWithHeight{
		Event:  info.Event,
		Height: protocol.NewHeight(height),
		TxHash: protocol.Bytes32(hash),
	}, nil
}

func (a *Adapter) CrossChainQuery(context.Context, []string) ([][]byte, error) {
	return nil, nil
}

func (a *Adapter) QueryIncentivizedPacket(context.Context, string, string, uint64) ([]byte, error) {
	return nil, nil
}

func (a *Adapter) MaybeRegisterCounterpartyPayee(context.Context, string, string, string) error {
	return nil
}

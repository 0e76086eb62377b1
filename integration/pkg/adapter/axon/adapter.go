// Package axon implements the chain adapter of the account chain: IBC state
// lives in a handler contract, proofs are storage proofs of blocks with BFT
// finality.
package axon

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Flouse/forcerelay/integration/pkg/dispatcher"
	"github.com/Flouse/forcerelay/integration/pkg/events"
	"github.com/Flouse/forcerelay/integration/pkg/monitor"
	"github.com/Flouse/forcerelay/integration/pkg/monitoring"
	"github.com/Flouse/forcerelay/integration/pkg/proofs"
	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

var _ protocol.ChainAdapter = (*Adapter)(nil)

// Params holds the collaborators of an Adapter.
type Params struct {
	Identity protocol.ChainIdentity
	Reader   chainaccess.LedgerReader
	Finality chainaccess.FinalityReader
	// Transmitter signs and submits handler calls. It is the serialization
	// point for nonces: nothing else may submit with the same key.
	Transmitter chainaccess.ContractTransmitter
	Handler     common.Address
	// Transfer is the ICS-20 contract. It may be unset when denom traces are
	// never queried.
	Transfer common.Address
	Proofs   proofs.Config
	Monitor  monitor.Config
	Lggr     logger.Logger
	Metrics  *monitoring.MetricLabeler
}

// Adapter is the protocol.ChainAdapter of the account chain.
//
// Thread-safety: reads are stateless and may run concurrently. Submissions
// are serialized by the transmitter.
type Adapter struct {
	identity    protocol.ChainIdentity
	reader      chainaccess.LedgerReader
	handler     common.Address
	transfer    common.Address
	translator  *events.Translator
	pipeline    *proofs.Pipeline
	dispatcher  *dispatcher.Dispatcher
	transmitter chainaccess.ContractTransmitter
	monitorCfg  monitor.Config
	lggr        logger.Logger
	metrics     *monitoring.MetricLabeler

	mu       sync.Mutex
	monitor  *monitor.Service
	shutdown bool
}

func New(p Params) (*Adapter, error) {
	var errs []error
	if p.Identity.ChainID == "" {
		errs = append(errs, errors.New("chain id is not set"))
	}
	if p.Reader == nil {
		errs = append(errs, errors.New("ledger reader is not set"))
	}
	if p.Finality == nil {
		errs = append(errs, errors.New("finality reader is not set"))
	}
	if p.Transmitter == nil {
		errs = append(errs, errors.New("transmitter is not set"))
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
	lggr := logger.With(logger.Named(p.Lggr, "AxonAdapter"), "chainID", p.Identity.ChainID)

	translator, err := events.NewTranslator(p.Handler)
	if err != nil {
		return nil, err
	}
	p.Proofs.Handler = p.Handler
	pipeline, err := proofs.NewPipeline(p.Finality, p.Proofs, lggr, p.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create proof pipeline: %w", err)
	}
	d, err := dispatcher.NewDispatcher(translator, p.Transmitter, lggr, p.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	return &Adapter{
		identity:    p.Identity,
		reader:      p.Reader,
		handler:     p.Handler,
		transfer:    p.Transfer,
		translator:  translator,
		pipeline:    pipeline,
		dispatcher:  d,
		transmitter: p.Transmitter,
		monitorCfg:  p.Monitor,
		lggr:        lggr,
		metrics:     p.Metrics,
	}, nil
}

func (a *Adapter) Identity() protocol.ChainIdentity {
	return a.identity
}

// HealthCheck reports unhealthy when the node is unreachable or serves
// another chain.
func (a *Adapter) HealthCheck(ctx context.Context) protocol.HealthCheck {
	id, err := a.reader.ChainID(ctx)
	if err != nil {
		return protocol.HealthCheck{State: protocol.Unhealthy, Reason: fmt.Errorf("%w: chain id: %w", protocol.ErrTransportFailure, err)}
	}
	if id.String() != a.identity.ChainID {
		return protocol.HealthCheck{State: protocol.Unhealthy, Reason: fmt.Errorf("node serves chain %s, configured %s", id, a.identity.ChainID)}
	}
	return protocol.HealthCheck{State: protocol.Healthy}
}

// Subscribe starts the event monitor on first use. Later calls return the
// same subscription.
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
		return nil, fmt.Errorf("failed to start event monitor: %w", err)
	}
	a.monitor = svc
	return svc.Subscription(), nil
}

// Shutdown stops the event monitor if it was started.
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

// SupportsFeature is false for every optional feature.
func (a *Adapter) SupportsFeature(protocol.Feature) bool {
	return false
}

// SendMessagesAndWaitCommit submits msgs one at a time and stops at the
// first failure. A message may depend on state written by an earlier one.
func (a *Adapter) SendMessagesAndWaitCommit(ctx context.Context, msgs []*codectypes.Any) ([]protocol.IBCEventWithHeight, error) {
	out := make([]protocol.IBCEventWithHeight, 0, len(msgs))
	for i, msg := range msgs {
		ev, err := a.dispatcher.Dispatch(ctx, msg)
		if err != nil {
			return out, fmt.Errorf("message %d of %d: %w", i+1, len(msgs), err)
		}
		out = append(out, ev)
	}
	return out, nil
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

// call runs a view method of contract at blockNumber, or at the tip when
// blockNumber is nil.
func (a *Adapter) call(ctx context.Context, contract common.Address, contractABI *abi.ABI, blockNumber *big.Int, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	raw, err := a.reader.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, blockNumber)
	if err != nil {
		return nil, queryError(method, err)
	}
	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unpack %s: %w", protocol.ErrQueryFailure, method, err)
	}
	return out, nil
}

func (a *Adapter) callHandler(ctx context.Context, blockNumber *big.Int, method string, args ...any) ([]any, error) {
	return a.call(ctx, a.handler, events.Handler(), blockNumber, method, args...)
}

// queryError keeps transport failures as they are and reports everything
// else the node refused as a query failure.
func queryError(method string, err error) error {
	if errors.Is(err, protocol.ErrTransportFailure) {
		return fmt.Errorf("%s: %w", method, err)
	}
	return fmt.Errorf("%w: %s: %w", protocol.ErrQueryFailure, method, err)
}

// tip returns the latest block number.
func (a *Adapter) tip(ctx context.Context) (uint64, error) {
	header, err := a.reader.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, queryError("latest header", err)
	}
	return header.Number.Uint64(), nil
}

// resolve turns a query height into the block number calls run at. Latest
// queries without a proof run at the tip implicitly and return a nil
// number; with a proof the tip is read so the proof and the value agree.
func (a *Adapter) resolve(ctx context.Context, q protocol.QueryHeight, proof protocol.IncludeProof) (*big.Int, uint64, error) {
	if h, ok := q.Height(); ok {
		n := h.GetRevisionHeight()
		return new(big.Int).SetUint64(n), n, nil
	}
	if proof == protocol.IncludeProofNo {
		return nil, 0, nil
	}
	n, err := a.tip(ctx)
	if err != nil {
		return nil, 0, err
	}
	return new(big.Int).SetUint64(n), n, nil
}

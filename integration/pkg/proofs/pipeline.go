// Package proofs builds finality-verified state proofs of the account chain.
package proofs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Flouse/forcerelay/integration/pkg/monitoring"
	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/pkg/commitment"
	"github.com/Flouse/forcerelay/pkg/finality"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

const (
	DefaultPollInterval      = time.Second
	DefaultDebugDir          = "./debug"
	defaultIngredientsCached = 64
)

// Config configures a Pipeline.
type Config struct {
	// Handler is the contract whose storage is proven.
	Handler common.Address
	// PollInterval is the fixed delay between attempts to fetch a finality
	// proof that is not published yet.
	PollInterval time.Duration
	// WaitTimeout bounds the wait for a finality proof. Zero waits until ctx
	// is done.
	WaitTimeout time.Duration
	// DebugDir receives a dump of every block that fails finality verification.
	DebugDir string
}

// Ingredients is everything needed to trust state at Block: the block, the
// state root it was executed on, the proof that finalizes it and the
// validator set the proof was checked against.
type Ingredients struct {
	Block         finality.Block
	PrevStateRoot common.Hash
	Proof         finality.Proof
	Validators    finality.ValidatorSet
}

// ObjectProof is the wire format of the object proof handed to the
// counterparty's client.
type ObjectProof struct {
	Block         finality.Block
	Proof         finality.Proof
	PrevStateRoot common.Hash
	AccountProof  [][]byte
	StorageProof  [][]byte
}

var errProofPending = errors.New("finality proof not published yet")

// Pipeline builds verified proofs. It never returns a proof whose block did
// not pass finality verification.
type Pipeline struct {
	reader   chainaccess.FinalityReader
	cfg      Config
	verified *lru.Cache[uint64, *Ingredients]
	lggr     logger.Logger
	metrics  *monitoring.MetricLabeler
}

func NewPipeline(reader chainaccess.FinalityReader, cfg Config, lggr logger.Logger, metrics *monitoring.MetricLabeler) (*Pipeline, error) {
	var errs []error
	if reader == nil {
		errs = append(errs, errors.New("reader is not set"))
	}
	if lggr == nil {
		errs = append(errs, errors.New("logger is not set"))
	}
	if cfg.Handler == (common.Address{}) {
		errs = append(errs, errors.New("handler address is not set"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.DebugDir == "" {
		cfg.DebugDir = DefaultDebugDir
	}
	cache, err := lru.New[uint64, *Ingredients](defaultIngredientsCached)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		reader:   reader,
		cfg:      cfg,
		verified: cache,
		lggr:     logger.Named(lggr, "ProofPipeline"),
		metrics:  metrics,
	}, nil
}

// GetProofs proves the commitment stored under path at height.
//
// The algorithm:
//  1. Fetch block height, the state root of block height-1 and the proof
//     published in block height+1, waiting for it if necessary.
//  2. Verify the proof against the current validator set.
//  3. Fetch the storage proof of the path's slot in the handler at height.
//  4. RLP-encode block, finality proof, previous state root, account proof
//     and storage proof as the object proof.
func (p *Pipeline) GetProofs(ctx context.Context, height uint64, path commitment.Path) (*protocol.Proofs, error) {
	if height == 0 {
		return nil, fmt.Errorf("%w: block 0 has no previous block", protocol.ErrInvalidHeight)
	}
	start := time.Now()

	ingredients, err := p.VerifiedIngredients(ctx, height)
	if err != nil {
		return nil, err
	}

	slot := commitment.Slot(path)
	storage, err := p.reader.GetProof(ctx, p.cfg.Handler, []common.Hash{slot}, height)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch storage proof of %s at %d: %w", path, height, err)
	}
	if len(storage.StorageProofs) == 0 || len(storage.StorageProofs[0].Proof) == 0 {
		return nil, fmt.Errorf("%w: empty storage proof for %s at %d", protocol.ErrMalformedProof, path, height)
	}

	encoded, err := rlp.EncodeToBytes(&ObjectProof{
		Block:         ingredients.Block,
		Proof:         ingredients.Proof,
		PrevStateRoot: ingredients.PrevStateRoot,
		AccountProof:  storage.AccountProof,
		StorageProof:  storage.StorageProofs[0].Proof,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode object proof: %w", err)
	}

	p.metrics.RecordProofBuildDuration(time.Since(start))
	p.lggr.Debugw("Built proof", "path", path.String(), "height", height, "slot", slot.Hex())
	return protocol.NewProofs(encoded, protocol.NewHeight(height)), nil
}

// VerifiedIngredients returns the ingredients of height once they pass
// finality verification.
func (p *Pipeline) VerifiedIngredients(ctx context.Context, height uint64) (*Ingredients, error) {
	if height == 0 {
		return nil, fmt.Errorf("%w: block 0 has no previous block", protocol.ErrInvalidHeight)
	}
	if cached, ok := p.verified.Get(height); ok {
		return cached, nil
	}

	ingredients, err := p.fetchIngredients(ctx, height)
	if err != nil {
		return nil, err
	}

	if err := finality.Verify(ingredients.Block, ingredients.PrevStateRoot, ingredients.Proof, ingredients.Validators); err != nil {
		p.metrics.IncrementFinalityVerificationFailures()
		ferr := &protocol.FinalityError{
			BlockNumber: height,
			StateRoot:   protocol.Bytes32(ingredients.PrevStateRoot),
			Proof:       ingredients.Proof,
			Err:         err,
		}
		p.lggr.Errorw("Finality verification failed",
			"block", height,
			"prevStateRoot", ingredients.PrevStateRoot.Hex(),
			"proofBlockHash", ingredients.Proof.BlockHash.Hex(),
			"error", err)
		p.dump(ingredients, err)
		return nil, ferr
	}

	p.verified.Add(height, ingredients)
	return ingredients, nil
}

func (p *Pipeline) fetchIngredients(ctx context.Context, height uint64) (*Ingredients, error) {
	block, err := p.reader.BlockByNumber(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block %d: %w", height, err)
	}
	prev, err := p.reader.BlockByNumber(ctx, height-1)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block %d: %w", height-1, err)
	}
	proof, err := p.waitForProof(ctx, height+1)
	if err != nil {
		return nil, err
	}
	vals, err := p.reader.CurrentValidators(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch validators: %w", err)
	}
	return &Ingredients{
		Block:         *block,
		PrevStateRoot: prev.Header.StateRoot,
		Proof:         *proof,
		Validators:    vals,
	}, nil
}

// waitForProof polls at a fixed interval until block number is published
// and returns the proof it carries. This is the only unbounded wait in the
// adapter; it ends with ctx or the configured WaitTimeout.
func (p *Pipeline) waitForProof(ctx context.Context, number uint64) (*finality.Proof, error) {
	if p.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.WaitTimeout)
		defer cancel()
	}

	policy := retrypolicy.NewBuilder[*finality.Proof]().
		HandleErrors(errProofPending).
		WithDelay(p.cfg.PollInterval).
		WithMaxRetries(-1).
		ReturnLastFailure().
		OnRetry(func(event failsafe.ExecutionEvent[*finality.Proof]) {
			p.lggr.Debugw("Waiting for finality proof", "block", number, "attempt", event.Attempts())
		}).
		Build()

	proof, err := failsafe.With[*finality.Proof](policy).WithContext(ctx).Get(func() (*finality.Proof, error) {
		proof, err := p.reader.ProofByNumber(ctx, number)
		if errors.Is(err, protocol.ErrNotFound) {
			return nil, errProofPending
		}
		return proof, err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("stopped waiting for block %d: %w", number, ctxErr)
		}
		return nil, fmt.Errorf("failed to fetch finality proof from block %d: %w", number, err)
	}
	return proof, nil
}

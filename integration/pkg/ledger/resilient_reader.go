package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/bulkhead"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/ratelimiter"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/failsafe-go/failsafe-go/timeout"

	"github.com/Flouse/forcerelay/pkg/chainaccess"
	"github.com/Flouse/forcerelay/pkg/finality"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// Ensure ResilientReader conforms to both reader interfaces.
var (
	_ chainaccess.LedgerReader   = (*ResilientReader)(nil)
	_ chainaccess.FinalityReader = (*ResilientReader)(nil)
)

// AxonReader is what the account chain adapter reads through.
type AxonReader interface {
	chainaccess.LedgerReader
	chainaccess.FinalityReader
}

// ResilienceConfig contains configuration for resiliency policies.
type ResilienceConfig struct {
	// Circuit Breaker configuration
	FailureThreshold    uint          // Number of failures before opening circuit (default: 5)
	SuccessThreshold    uint          // Number of successes to close circuit (default: 3)
	CircuitBreakerDelay time.Duration // Delay before attempting to close circuit (default: 3s)

	// Retry Policy configuration
	MaxRetries     int           // Maximum number of retry attempts (default: 3)
	InitialBackoff time.Duration // Initial backoff duration (default: 150ms)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 5s)
	Jitter         time.Duration // Jitter to add to backoff (default: 50ms)

	// Timeout configuration
	RequestTimeout time.Duration // Timeout for individual requests (default: 10s)

	// Bulkhead configuration
	MaxConcurrentRequests uint // Maximum concurrent requests (default: 10)

	// Rate Limiter configuration
	MaxRequestsPerSecond uint // Maximum requests per second (default: 50)
}

// DefaultResilienceConfig returns a configuration with sensible defaults.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		FailureThreshold:      5,
		SuccessThreshold:      3,
		CircuitBreakerDelay:   3 * time.Second,
		MaxRetries:            3,
		InitialBackoff:        150 * time.Millisecond,
		MaxBackoff:            5 * time.Second,
		Jitter:                50 * time.Millisecond,
		RequestTimeout:        10 * time.Second,
		MaxConcurrentRequests: 10,
		MaxRequestsPerSecond:  50,
	}
}

// ResilientReader wraps an AxonReader with failsafe policies.
type ResilientReader struct {
	underlying     AxonReader
	executor       failsafe.Executor[any]
	circuitBreaker circuitbreaker.CircuitBreaker[any]
	lggr           logger.Logger
}

// NewResilientReader wraps a reader with resiliency policies.
func NewResilientReader(underlying AxonReader, lggr logger.Logger, config ResilienceConfig) *ResilientReader {
	// Order matters: outermost to innermost
	// RateLimiter -> Bulkhead -> CircuitBreaker -> Retry -> Timeout
	cb := createCircuitBreaker(config, lggr)
	executor := failsafe.With[any](
		ratelimiter.NewBursty[any](config.MaxRequestsPerSecond, time.Second),
		createBulkhead(config, lggr),
		cb,
		createRetryPolicy(config, lggr),
		createTimeoutPolicy(config, lggr),
	)

	return &ResilientReader{
		underlying:     underlying,
		executor:       executor,
		circuitBreaker: cb,
		lggr:           lggr,
	}
}

// isTransient reports whether err is worth retrying. Absence answers and
// cancellation are final.
func isTransient(_ any, err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, protocol.ErrNotFound) &&
		!errors.Is(err, ethereum.NotFound) &&
		!errors.Is(err, context.Canceled)
}

// GetCircuitBreakerState returns the current state of the circuit breaker.
func (r *ResilientReader) GetCircuitBreakerState() circuitbreaker.State {
	return r.circuitBreaker.State()
}

func run[T any](ctx context.Context, r *ResilientReader, fn func(ctx context.Context) (T, error)) (T, error) {
	res, err := r.executor.WithContext(ctx).GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
		return fn(exec.Context())
	})
	if err != nil {
		var zero T
		return zero, r.handleError(err)
	}
	return res.(T), nil
}

// handleError processes errors and provides context-aware error messages.
func (r *ResilientReader) handleError(err error) error {
	if r.circuitBreaker.State() == circuitbreaker.OpenState {
		return fmt.Errorf("%w: circuit breaker is open, node unavailable: %w", protocol.ErrTransportFailure, err)
	}
	return err
}

func (r *ResilientReader) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return run(ctx, r, func(ctx context.Context) ([]byte, error) {
		return r.underlying.CallContract(ctx, call, blockNumber)
	})
}

func (r *ResilientReader) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return run(ctx, r, func(ctx context.Context) ([]types.Log, error) {
		return r.underlying.FilterLogs(ctx, q)
	})
}

func (r *ResilientReader) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return run(ctx, r, func(ctx context.Context) (*types.Header, error) {
		return r.underlying.HeaderByNumber(ctx, number)
	})
}

func (r *ResilientReader) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return run(ctx, r, func(ctx context.Context) (*types.Receipt, error) {
		return r.underlying.TransactionReceipt(ctx, txHash)
	})
}

func (r *ResilientReader) ChainID(ctx context.Context) (*big.Int, error) {
	return run(ctx, r, r.underlying.ChainID)
}

func (r *ResilientReader) BlockByNumber(ctx context.Context, number uint64) (*finality.Block, error) {
	return run(ctx, r, func(ctx context.Context) (*finality.Block, error) {
		return r.underlying.BlockByNumber(ctx, number)
	})
}

func (r *ResilientReader) ProofByNumber(ctx context.Context, number uint64) (*finality.Proof, error) {
	return run(ctx, r, func(ctx context.Context) (*finality.Proof, error) {
		return r.underlying.ProofByNumber(ctx, number)
	})
}

func (r *ResilientReader) CurrentValidators(ctx context.Context) (finality.ValidatorSet, error) {
	return run(ctx, r, r.underlying.CurrentValidators)
}

func (r *ResilientReader) GetProof(ctx context.Context, account common.Address, slots []common.Hash, number uint64) (*chainaccess.StorageProof, error) {
	return run(ctx, r, func(ctx context.Context) (*chainaccess.StorageProof, error) {
		return r.underlying.GetProof(ctx, account, slots, number)
	})
}

func createCircuitBreaker(config ResilienceConfig, lggr logger.Logger) circuitbreaker.CircuitBreaker[any] {
	return circuitbreaker.NewBuilder[any]().
		WithDelay(config.CircuitBreakerDelay).
		HandleIf(isTransient).
		OnOpen(func(event circuitbreaker.StateChangedEvent) {
			lggr.Warnw("Circuit breaker opened", "failures", config.FailureThreshold)
		}).
		OnHalfOpen(func(event circuitbreaker.StateChangedEvent) {
			lggr.Info("Circuit breaker entering half-open state, attempting recovery")
		}).
		OnClose(func(event circuitbreaker.StateChangedEvent) {
			lggr.Infow("Circuit breaker closed", "successes", config.SuccessThreshold)
		}).
		WithFailureThreshold(config.FailureThreshold).
		WithSuccessThreshold(config.SuccessThreshold).
		Build()
}

func createRetryPolicy(config ResilienceConfig, lggr logger.Logger) retrypolicy.RetryPolicy[any] {
	return retrypolicy.NewBuilder[any]().
		HandleIf(isTransient).
		WithMaxRetries(config.MaxRetries).
		WithBackoff(config.InitialBackoff, config.MaxBackoff).
		WithJitter(config.Jitter).
		OnRetry(func(event failsafe.ExecutionEvent[any]) {
			lggr.Debugw("Retrying request", "attempt", event.Attempts(), "error", event.LastError())
		}).
		OnRetriesExceeded(func(event failsafe.ExecutionEvent[any]) {
			lggr.Warnw("Max retries exceeded", "max_retries", config.MaxRetries, "error", event.LastError())
		}).
		ReturnLastFailure().
		Build()
}

func createTimeoutPolicy(config ResilienceConfig, lggr logger.Logger) timeout.Timeout[any] {
	return timeout.NewBuilder[any](config.RequestTimeout).
		OnTimeoutExceeded(func(event failsafe.ExecutionDoneEvent[any]) {
			lggr.Warnw("Request timeout exceeded", "timeout", config.RequestTimeout)
		}).
		Build()
}

func createBulkhead(config ResilienceConfig, lggr logger.Logger) bulkhead.Bulkhead[any] {
	return bulkhead.NewBuilder[any](config.MaxConcurrentRequests).
		OnFull(func(event failsafe.ExecutionEvent[any]) {
			lggr.Warnw("Bulkhead is full", "max_concurrent_requests", config.MaxConcurrentRequests)
		}).
		Build()
}

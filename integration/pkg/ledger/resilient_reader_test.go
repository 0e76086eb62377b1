package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Flouse/forcerelay/pkg/chainaccess/chainaccesstest"
	"github.com/Flouse/forcerelay/pkg/finality"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

func testResilienceConfig() ResilienceConfig {
	cfg := DefaultResilienceConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	cfg.Jitter = 0
	cfg.RequestTimeout = time.Second
	cfg.MaxRequestsPerSecond = 1000
	return cfg
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "connection error", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "not found", err: fmt.Errorf("block 5: %w", protocol.ErrNotFound), want: false},
		{name: "ethereum not found", err: ethereum.NotFound, want: false},
		{name: "canceled", err: context.Canceled, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, isTransient(nil, tt.err))
		})
	}
}

func TestResilientReaderRetriesTransientErrors(t *testing.T) {
	underlying := &chainaccesstest.AxonLedger{}
	underlying.On("ChainID", mock.Anything).Return(nil, errors.New("i/o timeout")).Twice()
	underlying.On("ChainID", mock.Anything).Return(big.NewInt(2022), nil).Once()

	r := NewResilientReader(underlying, logger.Test(t), testResilienceConfig())
	id, err := r.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2022), id.Int64())
	underlying.AssertNumberOfCalls(t, "ChainID", 3)
}

func TestResilientReaderDoesNotRetryNotFound(t *testing.T) {
	underlying := &chainaccesstest.AxonLedger{}
	underlying.On("BlockByNumber", mock.Anything, uint64(7)).
		Return(nil, fmt.Errorf("block 7: %w", protocol.ErrNotFound))

	r := NewResilientReader(underlying, logger.Test(t), testResilienceConfig())
	_, err := r.BlockByNumber(context.Background(), 7)
	require.ErrorIs(t, err, protocol.ErrNotFound)
	underlying.AssertNumberOfCalls(t, "BlockByNumber", 1)
	assert.Equal(t, circuitbreaker.ClosedState, r.GetCircuitBreakerState())
}

func TestResilientReaderPassesResults(t *testing.T) {
	underlying := &chainaccesstest.AxonLedger{}
	vals, _, err := finality.RandValidatorSet(3, 1)
	require.NoError(t, err)
	underlying.On("CurrentValidators", mock.Anything).Return(vals, nil).Once()

	r := NewResilientReader(underlying, logger.Test(t), testResilienceConfig())
	got, err := r.CurrentValidators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, vals, got)
}

func TestResilientReaderOpensCircuit(t *testing.T) {
	underlying := &chainaccesstest.AxonLedger{}
	underlying.On("ChainID", mock.Anything).Return(nil, errors.New("connection reset by peer"))

	cfg := testResilienceConfig()
	cfg.MaxRetries = 0
	cfg.FailureThreshold = 2
	cfg.CircuitBreakerDelay = time.Minute
	r := NewResilientReader(underlying, logger.Test(t), cfg)

	for i := 0; i < 2; i++ {
		_, err := r.ChainID(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.OpenState, r.GetCircuitBreakerState())

	_, err := r.ChainID(context.Background())
	require.ErrorIs(t, err, protocol.ErrTransportFailure)
	underlying.AssertNumberOfCalls(t, "ChainID", 2)
}

package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Flouse/forcerelay/pkg/config"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// stubAdapter only carries an identity; the registry never calls anything
// else on it.
type stubAdapter struct {
	protocol.ChainAdapter
	id protocol.ChainIdentity
}

func (s *stubAdapter) Identity() protocol.ChainIdentity { return s.id }

func stubFactory(_ context.Context, _ logger.Logger, cfg config.ChainConfig) (protocol.ChainAdapter, error) {
	return &stubAdapter{id: cfg.Identity()}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(protocol.ChainFamilyCkb, stubFactory))
	require.NoError(t, r.Register(protocol.ChainFamilyAxon, stubFactory))
	require.Error(t, r.Register(protocol.ChainFamilyAxon, stubFactory))
	require.Error(t, r.Register("cosmos", nil))
	assert.Equal(t, []protocol.ChainFamily{protocol.ChainFamilyAxon, protocol.ChainFamilyCkb}, r.Families())

	tests := []struct {
		name    string
		cfg     config.ChainConfig
		wantErr string
	}{
		{name: "registered family", cfg: config.ChainConfig{Family: "axon", ChainID: "2022"}},
		{name: "unknown family", cfg: config.ChainConfig{Family: "cosmos", ChainID: "hub"}, wantErr: `no adapter registered for family "cosmos"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, err := r.Build(context.Background(), logger.Test(t), tc.cfg)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.cfg.ChainID, a.Identity().ChainID)
		})
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("dial failed")
	require.NoError(t, r.Register(protocol.ChainFamilyAxon, func(context.Context, logger.Logger, config.ChainConfig) (protocol.ChainAdapter, error) {
		return nil, boom
	}))
	_, err := r.Build(context.Background(), logger.Test(t), config.ChainConfig{Family: "axon", ChainID: "2022"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "chain 2022")
}

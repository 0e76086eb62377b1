// Package adapter selects the chain adapter of each configured chain by its
// family.
package adapter

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Flouse/forcerelay/pkg/config"
	"github.com/Flouse/forcerelay/protocol"
	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// Factory builds the adapter of one configured chain.
type Factory func(ctx context.Context, lggr logger.Logger, cfg config.ChainConfig) (protocol.ChainAdapter, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[protocol.ChainFamily]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[protocol.ChainFamily]Factory)}
}

// Register binds family to f. A family can be registered once.
func (r *Registry) Register(family protocol.ChainFamily, f Factory) error {
	if f == nil {
		return fmt.Errorf("nil factory for family %q", family)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[family]; ok {
		return fmt.Errorf("family %q is already registered", family)
	}
	r.factories[family] = f
	return nil
}

// Families lists the registered families in lexical order.
func (r *Registry) Families() []protocol.ChainFamily {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.ChainFamily, 0, len(r.factories))
	for family := range r.factories {
		out = append(out, family)
	}
	slices.Sort(out)
	return out
}

// Build creates the adapter of cfg with the factory of its family.
func (r *Registry) Build(ctx context.Context, lggr logger.Logger, cfg config.ChainConfig) (protocol.ChainAdapter, error) {
	family := protocol.ChainFamily(cfg.Family)
	r.mu.RLock()
	f, ok := r.factories[family]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no adapter registered for family %q (chain %s)", family, cfg.ChainID)
	}
	a, err := f(ctx, lggr, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s adapter for chain %s: %w", family, cfg.ChainID, err)
	}
	return a, nil
}

package simulator

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/humanav/config"
)

// ErrConfigMismatch is returned when a simulator is requested for a different scene than the one
// already loaded.
var ErrConfigMismatch = errors.New("a simulator with a different configuration already exists")

// Factory builds a simulator for a configuration.
type Factory func(ctx context.Context, cfg *config.Config) (*Simulator, error)

// Provider hands out a single shared simulator. Simulators hold every mesh of a building, so only
// one is ever built; requests for the same dataset, building, flip and modalities share it.
type Provider struct {
	mu      sync.Mutex
	factory Factory
	sim     *Simulator
	key     config.Key
}

// NewProvider returns a provider building its simulator with factory.
func NewProvider(factory Factory) *Provider {
	return &Provider{factory: factory}
}

// Get returns the shared simulator, building it on first use.
func (p *Provider) Get(ctx context.Context, cfg *config.Config) (*Simulator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := cfg.Key()
	if p.sim != nil {
		if key != p.key {
			return nil, errors.Wrapf(ErrConfigMismatch, "have %s, requested %s", p.key, key)
		}
		return p.sim, nil
	}
	sim, err := p.factory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p.sim = sim
	p.key = key
	return sim, nil
}

// Close closes the shared simulator, after which Get builds a new one.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sim == nil {
		return nil
	}
	err := p.sim.Close(ctx)
	p.sim = nil
	return err
}

package opdb

import "context"

// Provider restores its persisted records into live state at boot.
type Provider interface {
	Restore(ctx context.Context, store Store) error
}

// ProviderRegistry collects the components that own persisted state and
// replays them in registration order once the daemon is up.
type ProviderRegistry struct {
	providers []Provider
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{}
}

func (r *ProviderRegistry) Register(p Provider) {
	r.providers = append(r.providers, p)
}

func (r *ProviderRegistry) RestoreAll(ctx context.Context, store Store) error {
	for _, p := range r.providers {
		if err := p.Restore(ctx, store); err != nil {
			return err
		}
	}
	return nil
}

package translate

import (
	"context"
	"fmt"
)

// New creates the provider named by the Provider option.
func New(ctx context.Context, opts ...Option) (Translator, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	switch cfg.Provider {
	case "", providerAzure:
		return NewAzure(opts...)
	case providerGoogle:
		return NewGoogle(ctx, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

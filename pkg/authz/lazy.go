package authz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Factory constructs the underlying Authorizer on first guarded use
type Factory func(ctx context.Context) (Authorizer, error)

type instance struct {
	authorizer Authorizer
}

// Lazy defers construction of an Authorizer until the first guarded call.
// Unguarded operations are answered from the registry and never construct.
// Construction happens at most once; a failed construction assigns nothing
// and is retried by the next guarded call.
type Lazy struct {
	registry *Registry
	factory  Factory
	options

	mu      sync.Mutex
	current atomic.Pointer[instance]
}

// ErrNilFactory is returned by NewLazy when no factory is supplied
var ErrNilFactory = errors.New("authz: nil authorizer factory")

// NewLazy creates a lazy authorizer
func NewLazy(registry *Registry, factory Factory, opts ...Option) (*Lazy, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if factory == nil {
		return nil, ErrNilFactory
	}
	return &Lazy{
		registry: registry,
		factory:  factory,
		options:  buildOptions(opts),
	}, nil
}

// Authorize implements Authorizer
func (l *Lazy) Authorize(ctx context.Context, op string) error {
	if !l.registry.Guarded(op) {
		return nil
	}

	a, err := l.get(ctx)
	if err != nil {
		return err
	}
	return a.Authorize(ctx, op)
}

// Constructed reports whether the underlying Authorizer exists
func (l *Lazy) Constructed() bool {
	return l.current.Load() != nil
}

func (l *Lazy) get(ctx context.Context) (Authorizer, error) {
	if inst := l.current.Load(); inst != nil {
		return inst.authorizer, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if inst := l.current.Load(); inst != nil {
		return inst.authorizer, nil
	}

	a, err := l.factory(ctx)
	if err != nil {
		l.logger.WithError(err).Error("Failed to construct authorization interceptor")
		return nil, fmt.Errorf("authz: construct interceptor: %w", err)
	}
	if a == nil {
		return nil, errors.New("authz: factory returned nil authorizer")
	}

	l.current.Store(&instance{authorizer: a})
	l.metrics.RecordConstruction()
	l.logger.Debug("Authorization interceptor constructed")
	return a, nil
}

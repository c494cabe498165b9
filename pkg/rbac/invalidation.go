package rbac

import (
	"context"
	"sync"
)

// Invalidation describes which cached grant sets a mutation may have made
// stale. Nil fields widen the scope: no user and no tenant means everything.
type Invalidation struct {
	UserID   *int64 `json:"user_id,omitempty"`
	TenantID *int64 `json:"tenant_id,omitempty"`
}

// InvalidateAll is the event for role/policy/permission graph changes
func InvalidateAll() Invalidation {
	return Invalidation{}
}

// InvalidateUser scopes an event to one user, in one tenant or (nil) all
func InvalidateUser(userID int64, tenantID *int64) Invalidation {
	return Invalidation{UserID: &userID, TenantID: tenantID}
}

// InvalidateTenant scopes an event to every user of one tenant
func InvalidateTenant(tenantID int64) Invalidation {
	return Invalidation{TenantID: &tenantID}
}

// Matches reports whether a cached (user, tenant) entry is affected
func (i Invalidation) Matches(userID, tenantID int64) bool {
	if i.UserID != nil && *i.UserID != userID {
		return false
	}
	if i.TenantID != nil && *i.TenantID != tenantID {
		return false
	}
	return true
}

// Publisher announces grant-affecting mutations
type Publisher interface {
	Publish(ctx context.Context, event Invalidation) error
}

// Subscriber delivers published invalidations to handler until the returned
// cancel function is called.
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(Invalidation)) (cancel func() error, err error)
}

// Bus is an invalidation channel
type Bus interface {
	Publisher
	Subscriber
}

// LocalBus is an in-process Bus. Publish calls handlers synchronously, so a
// write has invalidated local caches by the time it returns.
type LocalBus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]func(Invalidation)
}

// NewLocalBus creates an in-process invalidation bus
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]func(Invalidation))}
}

// Publish delivers event to every current subscriber
func (b *LocalBus) Publish(_ context.Context, event Invalidation) error {
	b.mu.RLock()
	handlers := make([]func(Invalidation), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

// Subscribe registers handler
func (b *LocalBus) Subscribe(_ context.Context, handler func(Invalidation)) (func() error, error) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() error {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
		return nil
	}, nil
}

// MultiPublisher fans one event out to several publishers, returning the
// first error after trying all of them.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event Invalidation) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Invalidation) error { return nil }

package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/rsbst23/groundup/pkg/contextkeys"
)

// ErrNoContext is returned by Require when no tenant context is present
var ErrNoContext = errors.New("no tenant context")

// ErrContextAlreadySet is returned when a unit of work already carries a
// tenant context
var ErrContextAlreadySet = errors.New("tenant context already set")

// Context identifies the tenant and user a unit of work runs for
type Context struct {
	tenantID int64
	userID   int64
}

// New creates a tenant context
func New(tenantID, userID int64) Context {
	return Context{tenantID: tenantID, userID: userID}
}

// TenantID returns the tenant the work is scoped to
func (c Context) TenantID() int64 {
	return c.tenantID
}

// UserID returns the acting user
func (c Context) UserID() int64 {
	return c.userID
}

func (c Context) String() string {
	return fmt.Sprintf("tenant=%d user=%d", c.tenantID, c.userID)
}

// WithContext installs tc on ctx. It fails if ctx already carries a tenant
// context.
func WithContext(ctx context.Context, tc Context) (context.Context, error) {
	if _, ok := FromContext(ctx); ok {
		return ctx, ErrContextAlreadySet
	}
	return context.WithValue(ctx, contextkeys.TenantKey, tc), nil
}

// FromContext returns the tenant context carried by ctx
func FromContext(ctx context.Context) (Context, bool) {
	if ctx == nil {
		return Context{}, false
	}
	tc, ok := ctx.Value(contextkeys.TenantKey).(Context)
	return tc, ok
}

// CurrentTenantID returns the tenant of the current unit of work
func CurrentTenantID(ctx context.Context) (int64, bool) {
	tc, ok := FromContext(ctx)
	if !ok {
		return 0, false
	}
	return tc.tenantID, true
}

// CurrentUserID returns the user of the current unit of work
func CurrentUserID(ctx context.Context) (int64, bool) {
	tc, ok := FromContext(ctx)
	if !ok {
		return 0, false
	}
	return tc.userID, true
}

// Require returns the tenant context or ErrNoContext
func Require(ctx context.Context) (Context, error) {
	tc, ok := FromContext(ctx)
	if !ok {
		return Context{}, ErrNoContext
	}
	return tc, nil
}

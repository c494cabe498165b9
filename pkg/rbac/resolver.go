package rbac

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rsbst23/groundup/pkg/observability"
)

// DefaultConcurrency bounds parallel policy and permission lookups per
// resolution
const DefaultConcurrency = 8

// GrantResolver computes the effective grants of a user in a tenant
type GrantResolver interface {
	Resolve(ctx context.Context, userID, tenantID int64) (*GrantSet, error)
}

// Resolver walks membership → roles → policies → permissions against a
// DataSource. It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	source      DataSource
	concurrency int
	metrics     *observability.Metrics
	tracer      trace.Tracer
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithConcurrency sets the maximum number of in-flight lookups
func WithConcurrency(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithMetrics records resolution latency
func WithMetrics(m *observability.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// WithTracerProvider overrides the global tracer provider
func WithTracerProvider(tp trace.TracerProvider) ResolverOption {
	return func(r *Resolver) { r.tracer = tp.Tracer(observability.TracerName) }
}

// NewResolver creates a resolver over source
func NewResolver(source DataSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source:      source,
		concurrency: DefaultConcurrency,
		tracer:      observability.Tracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the user's grants in tenantID. A member with no roles gets
// an empty set. A missing tenant or membership yields a KindNotFound
// *ResolutionError; store faults yield KindUnavailable and caller
// cancellation KindCanceled.
func (r *Resolver) Resolve(ctx context.Context, userID, tenantID int64) (*GrantSet, error) {
	ctx, span := r.tracer.Start(ctx, "rbac.Resolve", trace.WithAttributes(
		attribute.Int64("rbac.user_id", userID),
		attribute.Int64("rbac.tenant_id", tenantID),
	))
	defer span.End()

	start := time.Now()
	grants, err := r.resolve(ctx, userID, tenantID)
	r.metrics.ObserveResolve(time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("rbac.permissions", len(grants.permissions)),
		attribute.Int("rbac.roles", len(grants.roles)),
	)
	return grants, nil
}

func (r *Resolver) resolve(ctx context.Context, userID, tenantID int64) (*GrantSet, error) {
	fail := func(stage string, err error) error {
		return classify(ctx, stage, userID, tenantID, err)
	}

	exists, err := r.source.TenantExists(ctx, tenantID)
	if err != nil {
		return nil, fail("tenant", err)
	}
	if !exists {
		return nil, fail("tenant", ErrNotFound)
	}

	if _, err := r.source.Membership(ctx, userID, tenantID); err != nil {
		return nil, fail("membership", err)
	}

	assigned, err := r.source.RolesForUser(ctx, userID, tenantID)
	if err != nil {
		return nil, fail("roles", err)
	}

	roles := make([]Role, 0, len(assigned))
	seenRoles := make(map[int64]bool, len(assigned))
	for _, role := range assigned {
		if seenRoles[role.ID] || !role.AppliesTo(tenantID) {
			continue
		}
		seenRoles[role.ID] = true
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return NewGrantSet(nil, nil), nil
	}

	policiesByRole := make([][]Policy, len(roles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, role := range roles {
		g.Go(func() error {
			policies, err := r.source.PoliciesForRole(gctx, role.ID)
			policiesByRole[i] = policies
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fail("policies", err)
	}

	var policies []Policy
	seenPolicies := make(map[int64]bool)
	for _, list := range policiesByRole {
		for _, p := range list {
			if seenPolicies[p.ID] || !p.AppliesTo(tenantID) {
				continue
			}
			seenPolicies[p.ID] = true
			policies = append(policies, p)
		}
	}

	permsByPolicy := make([][]Permission, len(policies))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, policy := range policies {
		g.Go(func() error {
			perms, err := r.source.PermissionsForPolicy(gctx, policy.ID)
			permsByPolicy[i] = perms
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fail("permissions", err)
	}

	var permCodes []string
	for _, list := range permsByPolicy {
		for _, p := range list {
			permCodes = append(permCodes, p.Code)
		}
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}

	return NewGrantSet(permCodes, names), nil
}

// classify maps a lookup failure to a ResolutionError. Only the caller's own
// context decides KindCanceled; a driver timeout with a live caller context
// is a store fault.
func classify(ctx context.Context, stage string, userID, tenantID int64, err error) error {
	kind := KindUnavailable
	switch {
	case errors.Is(err, ErrNotFound):
		kind = KindNotFound
	case ctx.Err() != nil:
		kind = KindCanceled
		if !errors.Is(err, ctx.Err()) {
			err = errors.Join(ctx.Err(), err)
		}
	}
	return &ResolutionError{Kind: kind, Stage: stage, UserID: userID, TenantID: tenantID, Err: err}
}

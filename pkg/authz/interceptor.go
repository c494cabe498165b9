package authz

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rsbst23/groundup/pkg/contextkeys"
	"github.com/rsbst23/groundup/pkg/observability"
	"github.com/rsbst23/groundup/pkg/rbac"
	"github.com/rsbst23/groundup/pkg/tenancy"
)

var (
	// ErrNilRegistry is returned by constructors given no registry
	ErrNilRegistry = errors.New("authz: nil registry")
	// ErrNilResolver is returned by NewInterceptor when no resolver is supplied
	ErrNilResolver = errors.New("authz: nil grant resolver")
)

// Authorizer decides whether the caller in ctx may run op. It returns nil
// when allowed, a *Denial when denied, and any other error when the decision
// could not be made.
type Authorizer interface {
	Authorize(ctx context.Context, op string) error
}

// Decision is the outcome of a completed check
type Decision struct {
	Operation string
	Allowed   bool
	Denial    *Denial
}

type options struct {
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// Option configures an Interceptor or Lazy wrapper
type Option func(*options)

// WithLogger sets the logger used for denials and resolution failures
func WithLogger(logger *observability.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records decisions and constructions
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracerProvider overrides the global tracer provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp.Tracer(observability.TracerName) }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: observability.NopLogger(),
		tracer: observability.Tracer(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Interceptor enforces a Registry against the grants of the caller in the
// current tenant context. It is stateless between calls and safe for
// concurrent use.
type Interceptor struct {
	registry *Registry
	resolver rbac.GrantResolver
	options
}

// NewInterceptor creates an interceptor
func NewInterceptor(registry *Registry, resolver rbac.GrantResolver, opts ...Option) (*Interceptor, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if resolver == nil {
		return nil, ErrNilResolver
	}
	return &Interceptor{
		registry: registry,
		resolver: resolver,
		options:  buildOptions(opts),
	}, nil
}

// Authorize implements Authorizer
func (i *Interceptor) Authorize(ctx context.Context, op string) error {
	decision, err := i.Check(ctx, op)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return decision.Denial
	}
	return nil
}

// Check evaluates op for the caller in ctx. A non-nil error means no
// decision was reached; it is never a *Denial.
func (i *Interceptor) Check(ctx context.Context, op string) (Decision, error) {
	reqs, _ := i.registry.requirements(op)
	if !effective(reqs) {
		i.metrics.RecordDecision(op, observability.OutcomeAllowed, "unguarded")
		return Decision{Operation: op, Allowed: true}, nil
	}

	tc, ok := tenancy.FromContext(ctx)
	if !ok || tc.UserID() <= 0 || tc.TenantID() <= 0 {
		return i.deny(ctx, &Denial{Operation: op, Reason: Unauthenticated}), nil
	}

	ctx, span := i.tracer.Start(ctx, "authz.Check", trace.WithAttributes(
		attribute.String("authz.operation", op),
		attribute.Int64("authz.user_id", tc.UserID()),
		attribute.Int64("authz.tenant_id", tc.TenantID()),
	))
	defer span.End()

	grants, err := i.resolver.Resolve(ctx, tc.UserID(), tc.TenantID())
	if err != nil {
		if re, ok := rbac.AsResolutionError(err); ok && (re.Kind == rbac.KindNotFound || re.Kind == rbac.KindCanceled) {
			span.SetAttributes(attribute.String("authz.outcome", "denied"))
			return i.deny(ctx, &Denial{Operation: op, Reason: InvalidContext, cause: err}), nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "grant resolution failed")
		i.metrics.RecordDecision(op, observability.OutcomeError, "resolution")
		i.logger.
			WithOperation(op).
			WithPrincipal(tc.UserID(), tc.TenantID()).
			WithError(err).
			Error("Authorization could not be decided")
		return Decision{Operation: op}, err
	}

	var missingPerms, missingRoles []string
	for _, req := range reqs {
		perms, roles := req.evaluate(grants)
		missingPerms = appendUnique(missingPerms, perms)
		missingRoles = appendUnique(missingRoles, roles)
	}

	if len(missingPerms) > 0 || len(missingRoles) > 0 {
		span.SetAttributes(attribute.String("authz.outcome", "denied"))
		return i.deny(ctx, &Denial{
			Operation:          op,
			Reason:             LacksPermission,
			MissingPermissions: missingPerms,
			MissingRoles:       missingRoles,
		}), nil
	}

	span.SetAttributes(attribute.String("authz.outcome", "allowed"))
	i.metrics.RecordDecision(op, observability.OutcomeAllowed, "")
	return Decision{Operation: op, Allowed: true}, nil
}

func (i *Interceptor) deny(ctx context.Context, d *Denial) Decision {
	i.metrics.RecordDecision(d.Operation, observability.OutcomeDenied, d.Reason.String())

	log := observability.WithTraceContext(ctx, i.logger).WithOperation(d.Operation).WithField("reason", d.Reason.String())
	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		log = log.WithField("request_id", requestID)
	}
	if tc, ok := tenancy.FromContext(ctx); ok {
		log = log.WithPrincipal(tc.UserID(), tc.TenantID())
	}
	if len(d.MissingPermissions) > 0 {
		log = log.WithField("missing_permissions", d.MissingPermissions)
	}
	if len(d.MissingRoles) > 0 {
		log = log.WithField("missing_roles", d.MissingRoles)
	}
	log.WithError(d.cause).Warn("Operation denied")

	return Decision{Operation: d.Operation, Denial: d}
}

func appendUnique(dst, src []string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes a BreakerResolver
type BreakerConfig struct {
	// Failures is the number of consecutive store faults that open the
	// breaker
	Failures uint32
	// Cooldown is how long the breaker stays open before letting one probe
	// through
	Cooldown time.Duration
	// OnStateChange, when set, observes transitions such as "closed" to
	// "open"
	OnStateChange func(from, to string)
}

// BreakerResolver fails fast with KindUnavailable while the store keeps
// failing, instead of queueing every request behind a dead database.
// Only store faults count: unknown tenants, non-members and canceled
// callers say nothing about store health.
type BreakerResolver struct {
	next    GrantResolver
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerResolver wraps next
func NewBreakerResolver(next GrantResolver, cfg BreakerConfig) *BreakerResolver {
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "rbac-resolver",
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			re, ok := AsResolutionError(err)
			return ok && re.Kind != KindUnavailable
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			cfg.OnStateChange(from.String(), to.String())
		}
	}

	return &BreakerResolver{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Resolve delegates unless the breaker is open
func (b *BreakerResolver) Resolve(ctx context.Context, userID, tenantID int64) (*GrantSet, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Resolve(ctx, userID, tenantID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &ResolutionError{Kind: KindUnavailable, Stage: "breaker", UserID: userID, TenantID: tenantID, Err: err}
	}
	if err != nil {
		return nil, err
	}
	return result.(*GrantSet), nil
}

// State reports "closed", "half-open" or "open"
func (b *BreakerResolver) State() string {
	return b.breaker.State().String()
}

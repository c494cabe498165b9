package rbac_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsbst23/groundup/pkg/rbac"
)

func unavailable() error {
	return &rbac.ResolutionError{Kind: rbac.KindUnavailable, Stage: "membership", Err: errors.New("connection refused")}
}

func TestBreakerResolver_OpensOnStoreFaults(t *testing.T) {
	next := &stubResolver{err: unavailable()}
	var transitions []string
	b := rbac.NewBreakerResolver(next, rbac.BreakerConfig{
		Failures: 3,
		Cooldown: 50 * time.Millisecond,
		OnStateChange: func(from, to string) {
			transitions = append(transitions, from+"->"+to)
		},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Resolve(ctx, 1, 10)
		re, ok := rbac.AsResolutionError(err)
		require.True(t, ok)
		assert.Equal(t, "membership", re.Stage)
	}
	assert.Equal(t, "open", b.State())

	// Open: fail fast without touching the store
	_, err := b.Resolve(ctx, 1, 10)
	re, ok := rbac.AsResolutionError(err)
	require.True(t, ok)
	assert.Equal(t, rbac.KindUnavailable, re.Kind)
	assert.Equal(t, "breaker", re.Stage)
	assert.True(t, re.Retryable())
	assert.Equal(t, int32(3), next.calls.Load())

	// After the cooldown one probe goes through and closes the breaker
	next.err = nil
	next.grants = rbac.NewGrantSet([]string{"inventory.view"}, nil)
	require.Eventually(t, func() bool { return b.State() == "half-open" }, time.Second, 10*time.Millisecond)

	grants, err := b.Resolve(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, grants.HasPermission("inventory.view"))
	assert.Equal(t, "closed", b.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerResolver_IgnoresDenialKinds(t *testing.T) {
	for _, kind := range []rbac.Kind{rbac.KindNotFound, rbac.KindCanceled} {
		t.Run(kind.String(), func(t *testing.T) {
			next := &stubResolver{err: &rbac.ResolutionError{Kind: kind, Err: rbac.ErrNotFound}}
			b := rbac.NewBreakerResolver(next, rbac.BreakerConfig{Failures: 1})

			for i := 0; i < 5; i++ {
				_, err := b.Resolve(context.Background(), 1, 10)
				re, ok := rbac.AsResolutionError(err)
				require.True(t, ok)
				assert.Equal(t, kind, re.Kind)
			}
			assert.Equal(t, "closed", b.State())
			assert.Equal(t, int32(5), next.calls.Load())
		})
	}
}

func TestBreakerResolver_SuccessResetsCount(t *testing.T) {
	next := &stubResolver{err: unavailable()}
	b := rbac.NewBreakerResolver(next, rbac.BreakerConfig{Failures: 2})
	ctx := context.Background()

	_, _ = b.Resolve(ctx, 1, 10)
	next.err = nil
	next.grants = rbac.NewGrantSet(nil, nil)
	_, err := b.Resolve(ctx, 1, 10)
	require.NoError(t, err)

	next.err = unavailable()
	_, _ = b.Resolve(ctx, 1, 10)
	assert.Equal(t, "closed", b.State(), "failures must be consecutive")
}

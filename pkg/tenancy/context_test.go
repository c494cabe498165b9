package tenancy

import (
	"context"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	tc := New(7, 42)
	if tc.TenantID() != 7 {
		t.Errorf("expected tenant 7, got %d", tc.TenantID())
	}
	if tc.UserID() != 42 {
		t.Errorf("expected user 42, got %d", tc.UserID())
	}
	if tc.String() != "tenant=7 user=42" {
		t.Errorf("unexpected string: %s", tc.String())
	}
}

func TestWithContext(t *testing.T) {
	t.Run("installs context", func(t *testing.T) {
		ctx, err := WithContext(context.Background(), New(1, 2))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tc, ok := FromContext(ctx)
		if !ok {
			t.Fatal("expected tenant context")
		}
		if tc != New(1, 2) {
			t.Errorf("unexpected context: %v", tc)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		ctx, err := WithContext(context.Background(), New(1, 2))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := WithContext(ctx, New(3, 4))
		if !errors.Is(err, ErrContextAlreadySet) {
			t.Fatalf("expected ErrContextAlreadySet, got %v", err)
		}
		tenantID, _ := CurrentTenantID(got)
		if tenantID != 1 {
			t.Errorf("expected original tenant 1, got %d", tenantID)
		}
	})

	t.Run("child contexts inherit", func(t *testing.T) {
		ctx, _ := WithContext(context.Background(), New(5, 6))
		child, cancel := context.WithCancel(ctx)
		defer cancel()

		userID, ok := CurrentUserID(child)
		if !ok || userID != 6 {
			t.Errorf("expected user 6, got %d (ok=%v)", userID, ok)
		}
	})
}

func TestAbsentContext(t *testing.T) {
	ctx := context.Background()

	if _, ok := FromContext(ctx); ok {
		t.Error("expected no tenant context")
	}
	if id, ok := CurrentTenantID(ctx); ok || id != 0 {
		t.Errorf("expected absent tenant, got %d (ok=%v)", id, ok)
	}
	if id, ok := CurrentUserID(ctx); ok || id != 0 {
		t.Errorf("expected absent user, got %d (ok=%v)", id, ok)
	}

	var nilCtx context.Context
	if _, ok := FromContext(nilCtx); ok {
		t.Error("expected no tenant context for nil ctx")
	}
}

func TestRequire(t *testing.T) {
	if _, err := Require(context.Background()); !errors.Is(err, ErrNoContext) {
		t.Errorf("expected ErrNoContext, got %v", err)
	}

	ctx, _ := WithContext(context.Background(), New(3, 9))
	tc, err := Require(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tc.TenantID() != 3 || tc.UserID() != 9 {
		t.Errorf("unexpected context: %v", tc)
	}
}

package authz

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsbst23/groundup/pkg/rbac"
	"github.com/rsbst23/groundup/pkg/tenancy"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   ErrorResponse
	}{
		{
			name:   "unauthenticated",
			err:    &Denial{Operation: "inventory.list", Reason: Unauthenticated},
			status: http.StatusUnauthorized,
			body:   ErrorResponse{Error: "authentication required for inventory.list", Reason: "unauthenticated"},
		},
		{
			name: "lacks permission",
			err: fmt.Errorf("wrapped: %w", &Denial{
				Operation:          "inventory.delete",
				Reason:             LacksPermission,
				MissingPermissions: []string{"inventory.delete"},
				MissingRoles:       []string{"Manager", "Owner"},
			}),
			status: http.StatusForbidden,
			body: ErrorResponse{
				Error:              "access to inventory.delete denied: missing permissions [inventory.delete] and roles [Manager, Owner]",
				Reason:             "lacks_permission",
				MissingPermissions: []string{"inventory.delete"},
				MissingRoles:       []string{"Manager", "Owner"},
			},
		},
		{
			name:   "invalid context hides cause",
			err:    &Denial{Operation: "inventory.list", Reason: InvalidContext, cause: errors.New("user 3 not a member of tenant 1")},
			status: http.StatusForbidden,
			body:   ErrorResponse{Error: "invalid tenant context", Reason: "invalid_context"},
		},
		{
			name:   "store unavailable",
			err:    &rbac.ResolutionError{Kind: rbac.KindUnavailable, Err: errors.New("connection refused")},
			status: http.StatusServiceUnavailable,
			body:   ErrorResponse{Error: "authorization temporarily unavailable"},
		},
		{
			name:   "anything else",
			err:    errors.New("lacks permission"),
			status: http.StatusInternalServerError,
			body:   ErrorResponse{Error: "internal server error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.body, body)
			assert.NotContains(t, w.Body.String(), "not a member")
		})
	}
}

func TestWriteError_RetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, &rbac.ResolutionError{Kind: rbac.KindUnavailable, Err: errors.New("down")})
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRequireOperation(t *testing.T) {
	interceptor := newTestInterceptor(t, &fakeResolver{grants: map[principal]*rbac.GrantSet{
		{1, 10}: rbac.NewGrantSet([]string{"inventory.view"}, nil),
	}})

	router := mux.NewRouter()
	router.Use(tenancy.Middleware(tenancy.HeaderAuthenticator{}, nil))
	router.Handle("/items", RequireOperation(interceptor, "inventory.list")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)).Methods(http.MethodGet)

	tests := []struct {
		name   string
		user   string
		tenant string
		status int
	}{
		{name: "allowed", user: "1", tenant: "10", status: http.StatusOK},
		{name: "anonymous", status: http.StatusUnauthorized},
		{name: "not a member", user: "2", tenant: "10", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/items", nil)
			if tt.user != "" {
				req.Header.Set(tenancy.UserIDHeader, tt.user)
				req.Header.Set(tenancy.TenantIDHeader, tt.tenant)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

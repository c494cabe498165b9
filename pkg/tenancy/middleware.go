package tenancy

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rsbst23/groundup/pkg/observability"
)

// Header names read by HeaderAuthenticator
const (
	UserIDHeader   = "X-User-ID"
	TenantIDHeader = "X-Tenant-ID"
)

// ErrInvalidIdentity is returned when a request carries identity data that
// cannot be parsed
var ErrInvalidIdentity = errors.New("invalid identity")

// Identity is the authenticated caller of a request
type Identity struct {
	UserID   int64
	TenantID int64
}

// Authenticator extracts the caller identity from a request. A nil identity
// with a nil error means the request is anonymous.
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// AuthenticatorFunc adapts a function to Authenticator
type AuthenticatorFunc func(r *http.Request) (*Identity, error)

// Authenticate calls f(r)
func (f AuthenticatorFunc) Authenticate(r *http.Request) (*Identity, error) {
	return f(r)
}

// HeaderAuthenticator trusts the X-User-ID and X-Tenant-ID headers. It is
// meant for local development and tests, behind a gateway that sets them.
type HeaderAuthenticator struct{}

// Authenticate implements Authenticator
func (HeaderAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	rawUser := strings.TrimSpace(r.Header.Get(UserIDHeader))
	rawTenant := strings.TrimSpace(r.Header.Get(TenantIDHeader))
	if rawUser == "" || rawTenant == "" {
		return nil, nil
	}

	userID, err := strconv.ParseInt(rawUser, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalidIdentity
	}
	tenantID, err := strconv.ParseInt(rawTenant, 10, 64)
	if err != nil || tenantID <= 0 {
		return nil, ErrInvalidIdentity
	}

	return &Identity{UserID: userID, TenantID: tenantID}, nil
}

// Middleware installs a tenant Context for authenticated requests. Anonymous
// requests continue without one; guarded operations then deny them.
func Middleware(authn Authenticator, logger *observability.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authn.Authenticate(r)
			if err != nil {
				logger.WithError(err).WithField("path", r.URL.Path).Warn("Authentication failed")
				unauthorizedResponse(w, "invalid credentials")
				return
			}
			if identity == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx, err := WithContext(r.Context(), New(identity.TenantID, identity.UserID))
			if err != nil {
				// An upstream handler already scoped this request.
				logger.WithPrincipal(identity.UserID, identity.TenantID).Warn("Tenant context already present on request")
				unauthorizedResponse(w, "invalid credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

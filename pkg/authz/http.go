package authz

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rsbst23/groundup/pkg/httputil"
	"github.com/rsbst23/groundup/pkg/rbac"
)

// ErrorResponse is the JSON body written for authorization failures
type ErrorResponse struct {
	Error              string   `json:"error"`
	Reason             string   `json:"reason,omitempty"`
	MissingPermissions []string `json:"missing_permissions,omitempty"`
	MissingRoles       []string `json:"missing_roles,omitempty"`
}

// WriteError writes err as a JSON response. Denials map to 401 or 403,
// retryable resolution failures to 503 and everything else to 500.
func WriteError(w http.ResponseWriter, err error) {
	if d, ok := AsDenial(err); ok {
		httputil.WriteJSON(w, d.StatusCode(), ErrorResponse{
			Error:              d.Error(),
			Reason:             d.Reason.String(),
			MissingPermissions: d.MissingPermissions,
			MissingRoles:       d.MissingRoles,
		})
		return
	}

	if re, ok := rbac.AsResolutionError(err); ok && re.Retryable() {
		w.Header().Set("Retry-After", "1")
		httputil.WriteServiceUnavailable(w, "authorization temporarily unavailable")
		return
	}

	httputil.WriteInternalError(w)
}

// RequireOperation guards every request through the route with op
func RequireOperation(a Authorizer, op string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := a.Authorize(r.Context(), op); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

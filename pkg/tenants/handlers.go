package tenants

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rsbst23/groundup/pkg/authz"
	"github.com/rsbst23/groundup/pkg/httputil"
	"github.com/rsbst23/groundup/pkg/observability"
	"github.com/rsbst23/groundup/pkg/rbac"
	"github.com/rsbst23/groundup/pkg/tenancy"
)

// Handlers serves the tenant API
type Handlers struct {
	service Service
	logger  *observability.Logger
}

// NewHandlers creates tenant handlers
func NewHandlers(service Service, logger *observability.Logger) *Handlers {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes registers tenant routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tenants", h.CreateTenant).Methods(http.MethodPost)
	router.HandleFunc("/tenants", h.ListTenants).Methods(http.MethodGet)
	router.HandleFunc("/tenants/{id}", h.GetTenant).Methods(http.MethodGet)

	// Members
	router.HandleFunc("/tenants/{id}/members", h.ListMembers).Methods(http.MethodGet)
	router.HandleFunc("/tenants/{id}/members", h.AddMember).Methods(http.MethodPost)
	router.HandleFunc("/tenants/{id}/members/{user_id}", h.RemoveMember).Methods(http.MethodDelete)
}

// CreateTenant creates a tenant
func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tenant, err := h.service.CreateTenant(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, tenant)
}

// ListTenants lists the caller's tenants
func (h *Handlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.service.ListTenants(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []*Tenant{}
	}
	httputil.WriteSuccess(w, tenants)
}

// GetTenant returns the current tenant
func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	tenant, err := h.service.GetTenant(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tenant)
}

// ListMembers lists members of the current tenant
func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	if !h.currentTenant(w, r) {
		return
	}

	members, err := h.service.ListMembers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

// AddMember adds a member to the current tenant
func (h *Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	if !h.currentTenant(w, r) {
		return
	}

	var req AddMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	member, err := h.service.AddMember(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, member)
}

// RemoveMember removes a member from the current tenant
func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if !h.currentTenant(w, r) {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.service.RemoveMember(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// currentTenant rejects paths naming a tenant other than the one in scope.
// Requests with no tenant context continue so the guard reports them.
func (h *Handlers) currentTenant(w http.ResponseWriter, r *http.Request) bool {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return false
	}
	if current, scoped := tenancy.CurrentTenantID(r.Context()); scoped && current != id {
		httputil.WriteNotFoundError(w, ErrTenantNotFound.Error())
		return false
	}
	return true
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case authz.IsDenied(err):
		authz.WriteError(w, err)
	case errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrMemberNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, ErrRoleNotFound), errors.Is(err, ErrInvalidRequest):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, ErrSlugTaken), errors.Is(err, rbac.ErrAlreadyExists):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, tenancy.ErrNoContext):
		httputil.WriteUnauthorized(w, "authentication required")
	default:
		observability.WithTraceContext(r.Context(), h.logger).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("Tenant request failed")
		authz.WriteError(w, err)
	}
}

package inventory

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rsbst23/groundup/pkg/authz"
	"github.com/rsbst23/groundup/pkg/httputil"
	"github.com/rsbst23/groundup/pkg/observability"
	"github.com/rsbst23/groundup/pkg/tenancy"
)

// Handlers serves the inventory API
type Handlers struct {
	service Service
	logger  *observability.Logger
}

// NewHandlers creates inventory handlers
func NewHandlers(service Service, logger *observability.Logger) *Handlers {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes registers inventory routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/items", h.ListItems).Methods(http.MethodGet)
	router.HandleFunc("/items", h.CreateItem).Methods(http.MethodPost)
	router.HandleFunc("/items/{id}", h.GetItem).Methods(http.MethodGet)
	router.HandleFunc("/items/{id}", h.UpdateItem).Methods(http.MethodPut, http.MethodPatch)
	router.HandleFunc("/items/{id}", h.DeleteItem).Methods(http.MethodDelete)
}

// ListItems lists items of the current tenant
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", defaultListLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	items, err := h.service.List(r.Context(), ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, items)
}

// GetItem returns one item
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, item)
}

// CreateItem creates an item
func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	item, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, item)
}

// UpdateItem updates an item's name or quantity
func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req UpdateItemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	item, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, item)
}

// DeleteItem deletes an item
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case authz.IsDenied(err):
		authz.WriteError(w, err)
	case errors.Is(err, ErrItemNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, ErrInvalidItem):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, ErrDuplicateSKU):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, tenancy.ErrNoContext):
		httputil.WriteUnauthorized(w, "authentication required")
	default:
		observability.WithTraceContext(r.Context(), h.logger).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("Inventory request failed")
		authz.WriteError(w, err)
	}
}

package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsbst23/groundup/pkg/tenancy"
)

func newTestRouter(e *env) *mux.Router {
	router := mux.NewRouter()
	router.Use(tenancy.Middleware(tenancy.HeaderAuthenticator{}, nil))
	NewHandlers(e.service, nil).RegisterRoutes(router)
	return router
}

func call(router http.Handler, method, path string, tenantID, userID int64, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != 0 {
		req.Header.Set(tenancy.UserIDHeader, strconv.FormatInt(userID, 10))
		req.Header.Set(tenancy.TenantIDHeader, strconv.FormatInt(tenantID, 10))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlers_Lifecycle(t *testing.T) {
	e := newEnv(t)
	router := newTestRouter(e)

	w := call(router, http.MethodPost, "/items", e.t1, owner, CreateItemRequest{SKU: "H-1", Name: "Hammer", Quantity: 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created Item
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	path := fmt.Sprintf("/items/%d", created.ID)

	w = call(router, http.MethodGet, path, e.t1, manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sku":"H-1"`)

	w = call(router, http.MethodGet, "/items?limit=10", e.t1, manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []Item
	require.NoError(t, json.NewDecoder(w.Body).Decode(&items))
	assert.Len(t, items, 1)

	name := "Claw hammer"
	w = call(router, http.MethodPatch, path, e.t1, owner, UpdateItemRequest{Name: &name})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Claw hammer"`)

	w = call(router, http.MethodDelete, path, e.t1, owner, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = call(router, http.MethodGet, path, e.t1, owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_Denials(t *testing.T) {
	e := newEnv(t)
	router := newTestRouter(e)

	w := call(router, http.MethodPost, "/items", e.t1, owner, CreateItemRequest{SKU: "D-1", Name: "Drill"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created Item
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	path := fmt.Sprintf("/items/%d", created.ID)

	t.Run("manager cannot delete", func(t *testing.T) {
		w := call(router, http.MethodDelete, path, e.t1, manager, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), `"missing_permissions":["inventory.delete"]`)
	})

	t.Run("auditor lacks role", func(t *testing.T) {
		w := call(router, http.MethodDelete, path, e.t1, auditor, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), `"missing_roles":["Manager","Owner"]`)
	})

	t.Run("stranger", func(t *testing.T) {
		w := call(router, http.MethodGet, "/items", e.t1, stranger, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), `"reason":"invalid_context"`)
		assert.Contains(t, w.Body.String(), "invalid tenant context")
	})

	t.Run("anonymous", func(t *testing.T) {
		w := call(router, http.MethodGet, "/items", 0, 0, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandlers_BadInput(t *testing.T) {
	e := newEnv(t)
	router := newTestRouter(e)

	w := call(router, http.MethodPost, "/items", e.t1, owner, CreateItemRequest{SKU: "", Name: "Nameless"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(router, http.MethodPost, "/items", e.t1, owner, CreateItemRequest{SKU: "S", Name: "S"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = call(router, http.MethodPost, "/items", e.t1, owner, CreateItemRequest{SKU: "S", Name: "S again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(router, http.MethodGet, "/items/abc", e.t1, owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(router, http.MethodGet, "/items?limit=many", e.t1, owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_FieldErrors(t *testing.T) {
	e := newEnv(t)
	router := newTestRouter(e)

	w := call(router, http.MethodPost, "/items", e.t1, owner, CreateItemRequest{Quantity: -3})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{
		"error": "name is required; quantity must not be negative; sku is required",
		"fields": {
			"name": "name is required",
			"quantity": "quantity must not be negative",
			"sku": "sku is required"
		}
	}`, w.Body.String())

	empty := ""
	w = call(router, http.MethodPatch, "/items/1", e.t1, owner, UpdateItemRequest{Name: &empty})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "name must not be empty")
}

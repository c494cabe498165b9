// Package httputil provides the JSON response helpers, request parsing and
// HTTP middleware shared by the groundup handlers.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, item)
//	httputil.WriteCreated(w, item)
//	httputil.WriteNoContent(w)
//	httputil.WriteNotFoundError(w, "item not found")
//	httputil.WriteConflict(w, "sku already exists")
//
// Error bodies are always {"error": "..."}. Authorization failures are
// written by authz.WriteError, which adds the denial reason and missing
// codes.
//
// # Request Parsing
//
//	var req inventory.CreateItemRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 or 413 already written
//	}
//
// Request structs declare their constraints with go-playground/validator
// tags. A failed check answers 400 with a per-field map:
//
//	{"error": "sku is required", "fields": {"sku": "sku is required"}}
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	limit, err := httputil.ParseQueryInt(r, "limit", 50)
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//		httputil.ContentTypeMiddleware,
//	)(router)
//
// # Related Packages
//
//   - pkg/tenancy: authentication middleware that sets the tenant context
//   - pkg/authz: route guards and denial responses
package httputil

// Package tenancy carries the current tenant and user through a unit of work.
//
// A Context is created once per request from the authenticated identity and
// installed on the request's context.Context. It is immutable and cannot be
// replaced further down the call chain:
//
//	ctx, err := tenancy.WithContext(r.Context(), tenancy.New(tenantID, userID))
//
// Readers report absence instead of defaulting:
//
//	tenantID, ok := tenancy.CurrentTenantID(ctx)
//	if !ok {
//		// no tenant in scope
//	}
//
// Middleware performs the installation for HTTP handlers using an
// Authenticator. HeaderAuthenticator is a development authenticator that
// trusts the X-User-ID and X-Tenant-ID request headers. JWTAuthenticator
// verifies HS256 bearer tokens whose subject is the user id:
//
//	authn, err := tenancy.NewJWTAuthenticator(secret, "groundup")
//	token, err := authn.Issue(userID, tenantID, time.Hour)
//
// A token without a tenant_id claim takes its tenant from X-Tenant-ID.
// Either way the resolver still checks membership.
package tenancy

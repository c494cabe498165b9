// Package authz enforces declared permission requirements on service
// operations.
//
// # Declaring requirements
//
// Operations are identified by name and declared once, at startup, in a
// Registry:
//
//	reg := authz.NewRegistry()
//	reg.MustRegister("inventory.list", authz.RequireAnyPermission("inventory.view"))
//	reg.MustRegister("inventory.update", authz.RequirePermissions("inventory.view", "inventory.update"))
//	reg.MustRegister("inventory.delete",
//		authz.RequirePermissions("inventory.delete").WithRoles("Manager", "Owner"))
//	reg.Freeze()
//
// Several requirements on one operation must all pass. Within a requirement,
// roles are matched ANY-of and permissions ALL-of or ANY-of depending on
// RequireAll; when both lists are present both must pass. The table can also
// be loaded from YAML with LoadRegistryYAML and printed with WriteYAML.
//
// # Enforcing
//
// An Interceptor reads the tenant context from ctx, resolves the caller's
// grants and evaluates the operation's requirements:
//
//	interceptor, err := authz.NewInterceptor(reg, resolver, authz.WithLogger(logger))
//	list := authz.Guard1(interceptor, "inventory.list", store.List)
//	items, err := list(ctx)
//	if d, ok := authz.AsDenial(err); ok {
//		// d.Reason, d.MissingPermissions, d.MissingRoles
//	}
//
// Denied calls return a *Denial and never run the body. A tenant that does
// not exist, a caller who is not a member, or a caller who canceled while
// grants were resolved all deny with InvalidContext, whose public message
// does not reveal which case applied. Store faults are returned unchanged as
// *rbac.ResolutionError so callers can retry; they are never reported as a
// denial.
//
// # Lazy construction
//
// Lazy defers building the Interceptor until the first guarded call, so
// unguarded operations can be served before the grant store is reachable:
//
//	a, err := authz.NewLazy(reg, func(ctx context.Context) (authz.Authorizer, error) {
//		return authz.NewInterceptor(reg, resolver)
//	})
//
// # HTTP
//
// WriteError maps authorization errors to responses and RequireOperation
// guards a gorilla/mux route.
package authz

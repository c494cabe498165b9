// Package tenants manages tenants and their memberships.
//
// Every operation runs in the caller's tenant context and is declared in the
// authorization table by Register:
//
//	tenants.create          role system:admin
//	tenants.get             tenants.view
//	tenants.list            tenants.view
//	tenants.members.list    tenants.view
//	tenants.members.add     tenants.manage
//	tenants.members.remove  tenants.manage
//
// NewService returns the unguarded implementation; wrap it with
// NewGuardedService before exposing it:
//
//	svc := tenants.NewGuardedService(tenants.NewService(store, rbacStore), authorizer)
//	tenants.NewHandlers(svc, logger).RegisterRoutes(router)
//
// Slugs are derived from the tenant name when not supplied. A generated slug
// that collides gets a numeric suffix; an explicit slug that collides is
// rejected with ErrSlugTaken.
package tenants

// Package rbac resolves the effective grants of a user within a tenant.
//
// # Model
//
// Grants flow through a fixed chain:
//
//	UserTenant (membership) → UserRole → Role → RolePolicy → Policy → Permission
//
// Roles and policies are either global (TenantID nil) or scoped to one
// tenant. A role assignment is either tenant-scoped or global; a global
// assignment applies in every tenant the user is a member of. Tenant-scoped
// roles and policies never contribute grants outside their tenant.
//
// # Resolution
//
//	resolver := rbac.NewResolver(store)
//	grants, err := resolver.Resolve(ctx, userID, tenantID)
//	if re, ok := rbac.AsResolutionError(err); ok {
//		switch re.Kind {
//		case rbac.KindNotFound:    // tenant missing or user not a member
//		case rbac.KindCanceled:    // caller gave up
//		case rbac.KindUnavailable: // store fault, retryable
//		}
//	}
//	grants.HasPermission("inventory.view")
//
// A member with no roles resolves to an empty GrantSet, which is a valid
// "no access" answer and not an error. Policies for all roles are fetched
// concurrently and each distinct policy's permissions are fetched once.
//
// # Caching
//
// CachingResolver memoizes grant sets per (tenant, user). It cannot be built
// without a Subscriber: every Store write that can change a grant set
// publishes an Invalidation, delivered in-process by LocalBus or across
// instances by RedisBus on the "groundup:rbac:invalidate" channel.
//
//	bus := rbac.NewRedisBus(redisClient, "", nil)
//	store := rbac.NewStore(db, rbac.WithPublisher(bus))
//	cached, err := rbac.NewCachingResolver(ctx, rbac.NewResolver(store), bus, rbac.CacheConfig{}, metrics)
//
// # Circuit breaker
//
// BreakerResolver fails fast with KindUnavailable once the store has failed
// Failures times in a row, and probes again after Cooldown. Place it under
// the cache so cached grants keep answering during an outage:
//
//	guarded := rbac.NewBreakerResolver(rbac.NewResolver(store), rbac.BreakerConfig{})
//	cached, err := rbac.NewCachingResolver(ctx, guarded, bus, rbac.CacheConfig{}, metrics)
//
// # Schema
//
// Migrations returns the PostgreSQL schema; RunMigrations applies it. The
// rbactest subpackage carries an equivalent SQLite schema for tests.
package rbac

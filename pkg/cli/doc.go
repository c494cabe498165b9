// Package cli implements groundup-admin, the operator tool for the
// authorization data behind groundup-api.
//
// # Commands
//
// migrate: Apply schema migrations and create the system:admin role
//
//	groundup-admin migrate
//
// seed: Create a role graph from YAML. Safe to re-run.
//
//	groundup-admin seed -file ./seed.yaml
//
// A seed file:
//
//	permissions:
//	  - code: inventory.view
//	    description: Read inventory items
//	policies:
//	  - name: inventory-read
//	    permissions: [inventory.view]
//	roles:
//	  - name: Viewer
//	    policies: [inventory-read]
//	members:
//	  - {user_id: 7, tenant_id: 1}
//	assignments:
//	  - {user_id: 7, role: Viewer, tenant_id: 1}
//
// assign, revoke: Change role assignments. -tenant 0 targets the global
// assignment.
//
//	groundup-admin assign -user 7 -role Manager -tenant 1
//	groundup-admin revoke -user 7 -role Manager -tenant 1
//
// member: Manage memberships
//
//	groundup-admin member add -user 7 -tenant 1
//	groundup-admin member remove -user 7 -tenant 1
//	groundup-admin member list -tenant 1
//
// grants: Show what a user holds in a tenant
//
//	groundup-admin grants -user 7 -tenant 1 -json
//
// check: Evaluate one operation against live grants. Exits non-zero when
// denied.
//
//	groundup-admin check -user 7 -tenant 1 -op inventory.delete
//
// permissions: Print the effective permission table
//
//	groundup-admin permissions -permission-table ./override.yaml
//
// token: Sign a bearer token for jwt auth mode. Needs GROUNDUP_JWT_SECRET.
//
//	groundup-admin token -user 7 -tenant 1 -ttl 15m
//
// # Configuration
//
// Connection settings are the GROUNDUP_* variables read by pkg/config. With
// GROUNDUP_REDIS_URL set, assignment and membership changes are published on
// the invalidation channel so running API servers drop cached grants.
package cli

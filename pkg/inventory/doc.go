// Package inventory stores per-tenant inventory items behind guarded
// operations.
//
//	inventory.list    ANY inventory.view
//	inventory.get     ANY inventory.view
//	inventory.create  inventory.create
//	inventory.update  ALL inventory.view, inventory.update
//	inventory.delete  inventory.delete AND role Manager or Owner
//
// Every query is limited to the tenant in the caller's tenancy context; an
// item belonging to another tenant is reported as ErrItemNotFound.
package inventory

package inventory

import (
	"errors"
	"time"
)

// Operation names declared in the authorization table
const (
	OpList   = "inventory.list"
	OpGet    = "inventory.get"
	OpCreate = "inventory.create"
	OpUpdate = "inventory.update"
	OpDelete = "inventory.delete"
)

// Permission codes
const (
	PermissionView   = "inventory.view"
	PermissionCreate = "inventory.create"
	PermissionUpdate = "inventory.update"
	PermissionDelete = "inventory.delete"
)

// Roles allowed to delete items
var DeleteRoles = []string{"Manager", "Owner"}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var (
	// ErrItemNotFound is returned when the item does not exist in the tenant
	ErrItemNotFound = errors.New("item not found")
	// ErrDuplicateSKU is returned when the tenant already has an item with the SKU
	ErrDuplicateSKU = errors.New("sku already exists")
	// ErrInvalidItem is returned for items that fail validation
	ErrInvalidItem = errors.New("invalid item")
)

// Item is a stocked product of one tenant
type Item struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateItemRequest is the input of inventory.create
type CreateItemRequest struct {
	SKU      string `json:"sku" validate:"required,max=128"`
	Name     string `json:"name" validate:"required,max=255"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// UpdateItemRequest is the input of inventory.update. Nil fields are left
// unchanged.
type UpdateItemRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Quantity *int    `json:"quantity,omitempty" validate:"omitempty,gte=0"`
}

// ListOptions pages through items
type ListOptions struct {
	Limit  int
	Offset int
}

func (o ListOptions) normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

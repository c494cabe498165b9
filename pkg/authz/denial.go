package authz

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Reason classifies why a call was denied
type Reason int

const (
	// Unauthenticated means no tenant context or identity was present
	Unauthenticated Reason = iota + 1
	// LacksPermission means the caller's grants do not satisfy the operation
	LacksPermission
	// InvalidContext means the tenant does not exist, the caller is not a
	// member, or the caller gave up while grants were resolved
	InvalidContext
)

func (r Reason) String() string {
	switch r {
	case Unauthenticated:
		return "unauthenticated"
	case LacksPermission:
		return "lacks_permission"
	case InvalidContext:
		return "invalid_context"
	default:
		return "unknown"
	}
}

// InvalidContextMessage is the only detail exposed to callers for
// InvalidContext denials
const InvalidContextMessage = "invalid tenant context"

// Denial is the error returned when an operation is not allowed
type Denial struct {
	Operation          string
	Reason             Reason
	MissingPermissions []string
	MissingRoles       []string

	cause error
}

// Error returns the public message for the denial
func (d *Denial) Error() string {
	switch d.Reason {
	case Unauthenticated:
		return fmt.Sprintf("authentication required for %s", d.Operation)
	case InvalidContext:
		return InvalidContextMessage
	case LacksPermission:
		var missing []string
		if len(d.MissingPermissions) > 0 {
			missing = append(missing, "permissions ["+strings.Join(d.MissingPermissions, ", ")+"]")
		}
		if len(d.MissingRoles) > 0 {
			missing = append(missing, "roles ["+strings.Join(d.MissingRoles, ", ")+"]")
		}
		return fmt.Sprintf("access to %s denied: missing %s", d.Operation, strings.Join(missing, " and "))
	default:
		return fmt.Sprintf("access to %s denied", d.Operation)
	}
}

// Unwrap returns the internal cause. It is never shown to callers.
func (d *Denial) Unwrap() error {
	return d.cause
}

// StatusCode maps the denial to an HTTP status
func (d *Denial) StatusCode() int {
	if d.Reason == Unauthenticated {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

// AsDenial unwraps err to a *Denial
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// IsDenied reports whether err is a denial
func IsDenied(err error) bool {
	_, ok := AsDenial(err)
	return ok
}

package rbac

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by store lookups when the row does not exist
var ErrNotFound = errors.New("rbac: not found")

// ErrAlreadyExists is returned when a unique constraint rejects a write
var ErrAlreadyExists = errors.New("rbac: already exists")

// Kind classifies a resolution failure
type Kind int

const (
	// KindUnavailable is a data-store fault. It is retryable and must not be
	// treated as a denial.
	KindUnavailable Kind = iota
	// KindNotFound means the tenant does not exist or the user is not a member
	KindNotFound
	// KindCanceled means the caller's context was canceled or timed out
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindCanceled:
		return "canceled"
	default:
		return "unavailable"
	}
}

// ResolutionError reports why grants could not be resolved for a user in a
// tenant.
type ResolutionError struct {
	Kind     Kind
	Stage    string
	UserID   int64
	TenantID int64
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("rbac: resolve user %d in tenant %d: %s (%s): %v",
		e.UserID, e.TenantID, e.Stage, e.Kind, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Retryable is true for transient store faults
func (e *ResolutionError) Retryable() bool {
	return e.Kind == KindUnavailable
}

// AsResolutionError unwraps err to a *ResolutionError
func AsResolutionError(err error) (*ResolutionError, bool) {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// Roles as issued by the identity service.
const (
	RoleAdmin  = "Admin"
	RoleAuthor = "Author"
	RoleUser   = "User"
)

var (
	ErrUnauthorized = errors.New("missing or invalid principal")
	ErrForbidden    = errors.New("insufficient role")
)

// Principal is the authenticated caller. Authentication itself happens
// upstream; the edge proxy forwards the verified identity in headers.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

// PrincipalFromRequest parses the forwarded identity headers.
func PrincipalFromRequest(r *http.Request) (Principal, error) {
	id, err := uuid.Parse(r.Header.Get("X-User-Id"))
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	role := r.Header.Get("X-User-Role")
	if role == "" {
		return Principal{}, ErrUnauthorized
	}
	return Principal{UserID: id, Role: role}, nil
}

// Authorize checks the principal against the required role set. An empty
// set means any authenticated principal passes.
func Authorize(p Principal, required ...string) error {
	if len(required) == 0 {
		return nil
	}
	for _, role := range required {
		if p.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

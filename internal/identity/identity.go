// Package identity consumes the external identity service. Users,
// readers and authors are owned elsewhere; this package only resolves
// identifiers to records.
package identity

import (
	"context"

	"github.com/google/uuid"
)

type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
}

type Reader struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"userId"`
	FavoriteGenre string    `json:"favoriteGenre"`
}

type Author struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	PenName   string    `json:"penName"`
	Biography string    `json:"biography"`
}

// Lookup resolves identity references. Implementations signal an absent
// record with database.ErrUserNotFound / ErrReaderNotFound / ErrAuthorNotFound.
type Lookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetReaderByUser(ctx context.Context, userID uuid.UUID) (*Reader, error)
	GetAuthorByUser(ctx context.Context, userID uuid.UUID) (*Author, error)
}

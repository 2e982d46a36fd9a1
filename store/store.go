// Package store persists users, profiles, films and comments.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Store is the data-access surface used by resolvers. Every method is a
// single atomic operation and honours context cancellation.
type Store interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)

	CreateProfile(ctx context.Context, profile *Profile) (*Profile, error)
	ProfileByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	ProfileByUser(ctx context.Context, userID uuid.UUID) (*Profile, error)
	UpdateProfile(ctx context.Context, profile *Profile) (*Profile, error)

	CreateFilm(ctx context.Context, film *Film) (*Film, error)
	Films(ctx context.Context) ([]*Film, error)
	FilmByID(ctx context.Context, id uuid.UUID) (*Film, error)

	// CreateComment fails with ErrNotFound when the film or author is missing.
	CreateComment(ctx context.Context, comment *Comment) (*Comment, error)
	CommentsByFilm(ctx context.Context, filmID uuid.UUID) ([]*Comment, error)
	CommentsByUser(ctx context.Context, userID uuid.UUID) ([]*Comment, error)
}

package domain

import (
	"context"
	"time"
)

// User is a library member who can hold reservations.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserRepository is the port for user persistence.
// Get returns ErrNotFound when the user does not exist; Create and Update
// return ErrConflict on a duplicate email.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
}

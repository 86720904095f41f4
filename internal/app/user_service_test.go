package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/adapter/memory"
	"library/internal/app"
	"library/internal/domain"
)

func TestCreateUser_Validation(t *testing.T) {
	svc := app.NewUserService(memory.New(), nil)

	tests := []struct {
		name string
		in   app.UserInput
	}{
		{"missing name", app.UserInput{Email: "juan@example.com"}},
		{"blank name", app.UserInput{Name: "  ", Email: "juan@example.com"}},
		{"missing email", app.UserInput{Name: "Juan"}},
		{"malformed email", app.UserInput{Name: "Juan", Email: "juan.example.com"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateUser(context.Background(), tc.in)
			assert.ErrorIs(t, err, domain.ErrInvalid)
		})
	}
}

func TestUserDirectory(t *testing.T) {
	svc := app.NewUserService(memory.New(), nil)
	ctx := context.Background()

	juan, err := svc.CreateUser(ctx, app.UserInput{Name: " Juan Pérez ", Email: "Juan@Example.com", Phone: "555-0101"})
	require.NoError(t, err)
	assert.Equal(t, "Juan Pérez", juan.Name)
	assert.Equal(t, "juan@example.com", juan.Email)

	_, err = svc.CreateUser(ctx, app.UserInput{Name: "Other", Email: "JUAN@example.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	ana, err := svc.CreateUser(ctx, app.UserInput{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	got, err := svc.GetUser(ctx, juan.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0101", got.Phone)

	_, err = svc.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	updated, err := svc.UpdateUser(ctx, juan.ID, app.UserInput{Name: "Juan P.", Email: "juanp@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "juanp@example.com", updated.Email)
	assert.Empty(t, updated.Phone)

	_, err = svc.UpdateUser(ctx, juan.ID, app.UserInput{Name: "Juan", Email: "ANA@example.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = svc.UpdateUser(ctx, 9999, app.UserInput{Name: "x", Email: "x@example.com"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, juan.ID, users[0].ID)

	require.NoError(t, svc.DeleteUser(ctx, ana.ID))
	assert.ErrorIs(t, svc.DeleteUser(ctx, ana.ID), domain.ErrNotFound)
}

func TestDeleteUser_InUse(t *testing.T) {
	f := newFixture(t, 1)
	f.reserve(t, jan15, 7)
	svc := app.NewUserService(f.store, nil)

	assert.ErrorIs(t, svc.DeleteUser(context.Background(), f.user.ID), domain.ErrConflict)
}

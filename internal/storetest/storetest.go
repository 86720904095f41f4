// Package storetest holds the repository contract shared by every
// domain.Store implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/domain"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) domain.Store

// Run exercises the full repository contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("books", func(t *testing.T) { testBooks(t, newStore(t)) })
	t.Run("stock", func(t *testing.T) { testStock(t, newStore(t)) })
	t.Run("reservations", func(t *testing.T) { testReservations(t, newStore(t)) })
	t.Run("mark returned", func(t *testing.T) { testMarkReturned(t, newStore(t)) })
	t.Run("tx commit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("tx rollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
}

// SeedUser creates a user with the given name and a derived email.
func SeedUser(t *testing.T, s domain.Store, name string) *domain.User {
	t.Helper()
	u := &domain.User{Name: name, Email: name + "@example.com"}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

// SeedBook creates a book with the given external id, price and stock.
func SeedBook(t *testing.T, s domain.Store, externalID int64, price string, stock int) *domain.Book {
	t.Helper()
	b := &domain.Book{
		ExternalID:        externalID,
		Title:             "The Lord of the Rings",
		Author:            "J. R. R. Tolkien",
		Price:             decimal.RequireFromString(price),
		StockQuantity:     stock,
		AvailableQuantity: stock,
	}
	require.NoError(t, s.Books().Create(context.Background(), b))
	return b
}

func testUsers(t *testing.T, s domain.Store) {
	ctx := context.Background()

	juan := &domain.User{Name: "Juan Pérez", Email: "juan@example.com", Phone: "555-0101"}
	require.NoError(t, s.Users().Create(ctx, juan))
	assert.NotZero(t, juan.ID)
	assert.False(t, juan.CreatedAt.IsZero())

	ana := SeedUser(t, s, "ana")

	dup := &domain.User{Name: "Other", Email: "juan@example.com"}
	assert.ErrorIs(t, s.Users().Create(ctx, dup), domain.ErrConflict)

	got, err := s.Users().Get(ctx, juan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Juan Pérez", got.Name)
	assert.Equal(t, "555-0101", got.Phone)

	_, err = s.Users().Get(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got.Name = "Juan P."
	require.NoError(t, s.Users().Update(ctx, got))
	got, err = s.Users().Get(ctx, juan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Juan P.", got.Name)

	got.Email = ana.Email
	assert.ErrorIs(t, s.Users().Update(ctx, got), domain.ErrConflict)
	assert.ErrorIs(t, s.Users().Update(ctx, &domain.User{ID: 9999, Name: "x", Email: "x@example.com"}), domain.ErrNotFound)

	users, err := s.Users().List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, juan.ID, users[0].ID)
	assert.Equal(t, ana.ID, users[1].ID)

	require.NoError(t, s.Users().Delete(ctx, ana.ID))
	assert.ErrorIs(t, s.Users().Delete(ctx, ana.ID), domain.ErrNotFound)
}

func testBooks(t *testing.T, s domain.Store) {
	ctx := context.Background()

	b := SeedBook(t, s, 258027, "15.99", 10)
	assert.NotZero(t, b.ID)

	dup := &domain.Book{ExternalID: 258027, Title: "Copy", Price: decimal.Zero}
	assert.ErrorIs(t, s.Books().Create(ctx, dup), domain.ErrConflict)

	got, err := s.Books().GetByExternalID(ctx, 258027)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.True(t, decimal.RequireFromString("15.99").Equal(got.Price), "price %s", got.Price)
	assert.Equal(t, 10, got.StockQuantity)
	assert.Equal(t, 10, got.AvailableQuantity)

	byID, err := s.Books().GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(258027), byID.ExternalID)

	_, err = s.Books().GetByExternalID(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Books().GetByID(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got.Price = decimal.RequireFromString("17.50")
	got.Title = "The Hobbit"
	require.NoError(t, s.Books().Update(ctx, got))
	got, err = s.Books().GetByExternalID(ctx, 258027)
	require.NoError(t, err)
	assert.Equal(t, "The Hobbit", got.Title)
	assert.True(t, decimal.RequireFromString("17.5").Equal(got.Price))

	SeedBook(t, s, 1001, "3.00", 1)
	books, err := s.Books().List(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, int64(258027), books[0].ExternalID)

	require.NoError(t, s.Books().Delete(ctx, b.ID))
	assert.ErrorIs(t, s.Books().Delete(ctx, b.ID), domain.ErrNotFound)
}

func testStock(t *testing.T, s domain.Store) {
	ctx := context.Background()
	b := SeedBook(t, s, 42, "5.00", 2)

	require.NoError(t, s.Books().DecrementAvailable(ctx, b.ID))
	require.NoError(t, s.Books().DecrementAvailable(ctx, b.ID))
	assert.ErrorIs(t, s.Books().DecrementAvailable(ctx, b.ID), domain.ErrOutOfStock)

	got, err := s.Books().GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableQuantity)

	require.NoError(t, s.Books().IncrementAvailable(ctx, b.ID))
	got, err = s.Books().GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableQuantity)

	assert.ErrorIs(t, s.Books().DecrementAvailable(ctx, 9999), domain.ErrNotFound)
	assert.ErrorIs(t, s.Books().IncrementAvailable(ctx, 9999), domain.ErrNotFound)
}

func newReservation(userID, bookID int64, start domain.Date, days int) *domain.Reservation {
	rate := decimal.RequireFromString("15.99")
	return &domain.Reservation{
		UserID:             userID,
		BookID:             bookID,
		RentalDays:         days,
		StartDate:          start,
		ExpectedReturnDate: start.AddDays(days),
		DailyRate:          rate,
		TotalFee:           rate.Mul(decimal.NewFromInt(int64(days))),
		LateFee:            decimal.Zero,
		Status:             domain.StatusActive,
	}
}

func testReservations(t *testing.T, s domain.Store) {
	ctx := context.Background()
	juan := SeedUser(t, s, "juan")
	ana := SeedUser(t, s, "ana")
	b := SeedBook(t, s, 258027, "15.99", 5)
	other := SeedBook(t, s, 7, "2.00", 5)

	start := domain.NewDate(2024, time.January, 15)
	r1 := newReservation(juan.ID, b.ID, start, 7)
	require.NoError(t, s.Reservations().Create(ctx, r1))
	assert.NotZero(t, r1.ID)
	assert.False(t, r1.CreatedAt.IsZero())

	r2 := newReservation(ana.ID, other.ID, start.AddDays(10), 3)
	require.NoError(t, s.Reservations().Create(ctx, r2))

	got, err := s.Reservations().Get(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, juan.ID, got.UserID)
	assert.Equal(t, b.ID, got.BookID)
	assert.Equal(t, 7, got.RentalDays)
	assert.Equal(t, "2024-01-15", got.StartDate.String())
	assert.Equal(t, "2024-01-22", got.ExpectedReturnDate.String())
	assert.Nil(t, got.ActualReturnDate)
	assert.True(t, decimal.RequireFromString("15.99").Equal(got.DailyRate))
	assert.True(t, decimal.RequireFromString("111.93").Equal(got.TotalFee))
	assert.True(t, got.LateFee.IsZero())
	assert.Equal(t, domain.StatusActive, got.Status)

	_, err = s.Reservations().Get(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all, err := s.Reservations().List(ctx, domain.ReservationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, r1.ID, all[0].ID)
	assert.Equal(t, r2.ID, all[1].ID)

	byUser, err := s.Reservations().List(ctx, domain.ReservationFilter{UserID: ana.ID})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, r2.ID, byUser[0].ID)

	byBook, err := s.Reservations().List(ctx, domain.ReservationFilter{BookID: b.ID})
	require.NoError(t, err)
	require.Len(t, byBook, 1)

	// r1 is due 2024-01-22; a reservation due on the cutoff day is not included.
	due, err := s.Reservations().List(ctx, domain.ReservationFilter{
		Status:    domain.StatusActive,
		DueBefore: domain.NewDate(2024, time.January, 22),
	})
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = s.Reservations().List(ctx, domain.ReservationFilter{
		Status:    domain.StatusActive,
		DueBefore: domain.NewDate(2024, time.January, 23),
	})
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, r1.ID, due[0].ID)

	none, err := s.Reservations().List(ctx, domain.ReservationFilter{UserID: 9999})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testMarkReturned(t *testing.T, s domain.Store) {
	ctx := context.Background()
	u := SeedUser(t, s, "juan")
	b := SeedBook(t, s, 258027, "15.99", 5)

	r := newReservation(u.ID, b.ID, domain.NewDate(2024, time.January, 15), 7)
	require.NoError(t, s.Reservations().Create(ctx, r))

	returned := domain.NewDate(2024, time.January, 25)
	r.ActualReturnDate = &returned
	r.LateFee = decimal.RequireFromString("7.20")
	r.Status = domain.StatusReturned
	require.NoError(t, s.Reservations().MarkReturned(ctx, r))

	got, err := s.Reservations().Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReturned, got.Status)
	require.NotNil(t, got.ActualReturnDate)
	assert.Equal(t, "2024-01-25", got.ActualReturnDate.String())
	assert.True(t, decimal.RequireFromString("7.2").Equal(got.LateFee))
	assert.Equal(t, "2024-01-22", got.ExpectedReturnDate.String())

	assert.ErrorIs(t, s.Reservations().MarkReturned(ctx, r), domain.ErrAlreadyReturned)

	missing := *r
	missing.ID = 9999
	assert.ErrorIs(t, s.Reservations().MarkReturned(ctx, &missing), domain.ErrNotFound)
}

func testTxCommit(t *testing.T, s domain.Store) {
	ctx := context.Background()

	err := s.InTx(ctx, func(tx domain.Store) error {
		if err := tx.Users().Create(ctx, &domain.User{Name: "a", Email: "a@example.com"}); err != nil {
			return err
		}
		// Nested units of work join the outer one.
		return tx.InTx(ctx, func(inner domain.Store) error {
			return inner.Users().Create(ctx, &domain.User{Name: "b", Email: "b@example.com"})
		})
	})
	require.NoError(t, err)

	users, err := s.Users().List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func testTxRollback(t *testing.T, s domain.Store) {
	ctx := context.Background()
	b := SeedBook(t, s, 42, "5.00", 1)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx domain.Store) error {
		if err := tx.Books().DecrementAvailable(ctx, b.ID); err != nil {
			return err
		}
		if err := tx.Users().Create(ctx, &domain.User{Name: "a", Email: "a@example.com"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	users, err := s.Users().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	got, err := s.Books().GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableQuantity)
}

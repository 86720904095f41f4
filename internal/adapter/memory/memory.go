// Package memory implements an in-memory store for development and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"library/internal/domain"
)

// DB implements domain.Store in memory.
//
// Units of work are serialised by txMu and roll back by restoring a snapshot
// taken when they start. Writes made outside InTx are not isolated from a
// concurrent rollback, so services route every write through InTx.
type DB struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data state
}

type state struct {
	users        []domain.User
	books        []domain.Book
	reservations []domain.Reservation

	userSeq        int64
	bookSeq        int64
	reservationSeq int64
}

// New creates an empty in-memory store.
func New() *DB {
	return &DB{}
}

// Ensure interfaces are met.
var (
	_ domain.Store                 = (*DB)(nil)
	_ domain.UserRepository        = userRepo{}
	_ domain.BookRepository        = bookRepo{}
	_ domain.ReservationRepository = reservationRepo{}
)

func (db *DB) Users() domain.UserRepository               { return userRepo{db} }
func (db *DB) Books() domain.BookRepository               { return bookRepo{db} }
func (db *DB) Reservations() domain.ReservationRepository { return reservationRepo{db} }

// InTx runs fn as one unit of work.
func (db *DB) InTx(ctx context.Context, fn func(tx domain.Store) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := db.snapshot()
	if err := fn(txStore{db}); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

type txStore struct {
	*DB
}

// InTx joins the running unit of work.
func (s txStore) InTx(_ context.Context, fn func(tx domain.Store) error) error {
	return fn(s)
}

func (db *DB) snapshot() state {
	db.mu.Lock()
	defer db.mu.Unlock()

	s := db.data
	s.users = append([]domain.User(nil), db.data.users...)
	s.books = append([]domain.Book(nil), db.data.books...)
	s.reservations = make([]domain.Reservation, len(db.data.reservations))
	for i, r := range db.data.reservations {
		s.reservations[i] = copyReservation(r)
	}
	return s
}

func (db *DB) restore(s state) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data = s
}

func copyReservation(r domain.Reservation) domain.Reservation {
	if r.ActualReturnDate != nil {
		d := *r.ActualReturnDate
		r.ActualReturnDate = &d
	}
	return r
}

// --- UserRepository ---

type userRepo struct{ db *DB }

// Create stores u and assigns its ID and CreatedAt.
func (r userRepo) Create(_ context.Context, u *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.db.emailTaken(u.Email, 0) {
		return errors.Wrapf(domain.ErrConflict, "email %q already registered", u.Email)
	}
	r.db.data.userSeq++
	u.ID = r.db.data.userSeq
	u.CreatedAt = time.Now().UTC()
	r.db.data.users = append(r.db.data.users, *u)
	return nil
}

func (r userRepo) Get(_ context.Context, id int64) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.data.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, errors.Wrapf(domain.ErrNotFound, "user %d", id)
}

func (r userRepo) List(_ context.Context) ([]domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return append([]domain.User{}, r.db.data.users...), nil
}

func (r userRepo) Update(_ context.Context, u *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.db.emailTaken(u.Email, u.ID) {
		return errors.Wrapf(domain.ErrConflict, "email %q already registered", u.Email)
	}
	for i := range r.db.data.users {
		if r.db.data.users[i].ID == u.ID {
			u.CreatedAt = r.db.data.users[i].CreatedAt
			r.db.data.users[i] = *u
			return nil
		}
	}
	return errors.Wrapf(domain.ErrNotFound, "user %d", u.ID)
}

func (r userRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i, u := range r.db.data.users {
		if u.ID == id {
			r.db.data.users = append(r.db.data.users[:i], r.db.data.users[i+1:]...)
			return nil
		}
	}
	return errors.Wrapf(domain.ErrNotFound, "user %d", id)
}

func (db *DB) emailTaken(email string, exceptID int64) bool {
	for _, u := range db.data.users {
		if u.ID != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

// --- BookRepository ---

type bookRepo struct{ db *DB }

// Create stores b and assigns its ID and CreatedAt.
func (r bookRepo) Create(_ context.Context, b *domain.Book) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.data.books {
		if existing.ExternalID == b.ExternalID {
			return errors.Wrapf(domain.ErrConflict, "book %d already exists", b.ExternalID)
		}
	}
	r.db.data.bookSeq++
	b.ID = r.db.data.bookSeq
	b.CreatedAt = time.Now().UTC()
	r.db.data.books = append(r.db.data.books, *b)
	return nil
}

func (r bookRepo) GetByID(_ context.Context, id int64) (*domain.Book, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if i := r.db.bookIndex(id); i >= 0 {
		b := r.db.data.books[i]
		return &b, nil
	}
	return nil, errors.Wrapf(domain.ErrNotFound, "book id %d", id)
}

func (r bookRepo) GetByExternalID(_ context.Context, externalID int64) (*domain.Book, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, b := range r.db.data.books {
		if b.ExternalID == externalID {
			return &b, nil
		}
	}
	return nil, errors.Wrapf(domain.ErrNotFound, "book %d", externalID)
}

func (r bookRepo) List(_ context.Context) ([]domain.Book, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return append([]domain.Book{}, r.db.data.books...), nil
}

func (r bookRepo) Update(_ context.Context, b *domain.Book) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	i := r.db.bookIndex(b.ID)
	if i < 0 {
		return errors.Wrapf(domain.ErrNotFound, "book %d", b.ExternalID)
	}
	b.CreatedAt = r.db.data.books[i].CreatedAt
	r.db.data.books[i] = *b
	return nil
}

func (r bookRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	i := r.db.bookIndex(id)
	if i < 0 {
		return errors.Wrapf(domain.ErrNotFound, "book id %d", id)
	}
	r.db.data.books = append(r.db.data.books[:i], r.db.data.books[i+1:]...)
	return nil
}

func (r bookRepo) DecrementAvailable(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	i := r.db.bookIndex(id)
	if i < 0 {
		return errors.Wrapf(domain.ErrNotFound, "book id %d", id)
	}
	b := &r.db.data.books[i]
	if b.AvailableQuantity <= 0 {
		return errors.Wrapf(domain.ErrOutOfStock, "book %d", b.ExternalID)
	}
	b.AvailableQuantity--
	return nil
}

func (r bookRepo) IncrementAvailable(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	i := r.db.bookIndex(id)
	if i < 0 {
		return errors.Wrapf(domain.ErrNotFound, "book id %d", id)
	}
	r.db.data.books[i].AvailableQuantity++
	return nil
}

func (db *DB) bookIndex(id int64) int {
	for i, b := range db.data.books {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// --- ReservationRepository ---

type reservationRepo struct{ db *DB }

// Create stores res and assigns its ID and CreatedAt.
func (r reservationRepo) Create(_ context.Context, res *domain.Reservation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.data.reservationSeq++
	res.ID = r.db.data.reservationSeq
	res.CreatedAt = time.Now().UTC()
	r.db.data.reservations = append(r.db.data.reservations, copyReservation(*res))
	return nil
}

func (r reservationRepo) Get(_ context.Context, id int64) (*domain.Reservation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, res := range r.db.data.reservations {
		if res.ID == id {
			c := copyReservation(res)
			return &c, nil
		}
	}
	return nil, errors.Wrapf(domain.ErrNotFound, "reservation %d", id)
}

// List returns matching reservations in insertion (ascending id) order.
func (r reservationRepo) List(_ context.Context, f domain.ReservationFilter) ([]domain.Reservation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := []domain.Reservation{}
	for _, res := range r.db.data.reservations {
		if f.Matches(res) {
			out = append(out, copyReservation(res))
		}
	}
	return out, nil
}

func (r reservationRepo) MarkReturned(_ context.Context, res *domain.Reservation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i := range r.db.data.reservations {
		stored := &r.db.data.reservations[i]
		if stored.ID != res.ID {
			continue
		}
		if stored.Status != domain.StatusActive {
			return errors.Wrapf(domain.ErrAlreadyReturned, "reservation %d", res.ID)
		}
		stored.Status = res.Status
		stored.LateFee = res.LateFee
		if res.ActualReturnDate != nil {
			d := *res.ActualReturnDate
			stored.ActualReturnDate = &d
		}
		return nil
	}
	return errors.Wrapf(domain.ErrNotFound, "reservation %d", res.ID)
}

package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusActive   ReservationStatus = "ACTIVE"
	StatusReturned ReservationStatus = "RETURNED"
)

// Reservation links one user to one book copy for a rental period.
// DailyRate and TotalFee are fixed at creation; LateFee stays zero until the
// book is returned.
type Reservation struct {
	ID                 int64
	UserID             int64
	BookID             int64
	RentalDays         int
	StartDate          Date
	ExpectedReturnDate Date
	ActualReturnDate   *Date
	DailyRate          decimal.Decimal
	TotalFee           decimal.Decimal
	LateFee            decimal.Decimal
	Status             ReservationStatus
	CreatedAt          time.Time
}

// IsOverdue reports whether r is active and was due before today.
func (r Reservation) IsOverdue(today Date) bool {
	return r.Status == StatusActive && r.ExpectedReturnDate.Before(today)
}

// ReservationFilter narrows ReservationRepository.List. Zero fields do not
// filter.
type ReservationFilter struct {
	UserID    int64
	BookID    int64
	Status    ReservationStatus
	DueBefore Date // ExpectedReturnDate strictly before this date
}

// Matches reports whether r satisfies every set field of f.
func (f ReservationFilter) Matches(r Reservation) bool {
	if f.UserID != 0 && r.UserID != f.UserID {
		return false
	}
	if f.BookID != 0 && r.BookID != f.BookID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.DueBefore.IsZero() && !r.ExpectedReturnDate.Before(f.DueBefore) {
		return false
	}
	return true
}

// ReservationRepository is the port for reservation persistence.
// List returns reservations in ascending id order. MarkReturned only updates
// an ACTIVE reservation and returns ErrAlreadyReturned otherwise.
type ReservationRepository interface {
	Create(ctx context.Context, r *Reservation) error
	Get(ctx context.Context, id int64) (*Reservation, error)
	List(ctx context.Context, f ReservationFilter) ([]Reservation, error)
	MarkReturned(ctx context.Context, r *Reservation) error
}

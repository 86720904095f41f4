package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"library/internal/domain"
)

const tracerName = "library/internal/app"

// ReservationService runs the reservation lifecycle: renting a copy of a
// book, returning it, and the reservation queries.
type ReservationService struct {
	store  domain.Store
	fees   domain.FeePolicy
	log    *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// ReservationOption configures a ReservationService.
type ReservationOption func(*ReservationService)

// WithClock replaces the wall clock used to decide which reservations are
// overdue.
func WithClock(now func() time.Time) ReservationOption {
	return func(s *ReservationService) { s.now = now }
}

// NewReservationService creates a ReservationService on store. A nil logger
// disables logging.
func NewReservationService(store domain.Store, fees domain.FeePolicy, log *zap.Logger, opts ...ReservationOption) *ReservationService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &ReservationService{
		store:  store,
		fees:   fees,
		log:    log.Named("reservations"),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateReservationInput is a request to rent one copy of a book.
type CreateReservationInput struct {
	UserID         int64
	BookExternalID int64
	RentalDays     int
	StartDate      domain.Date
}

// ReservationView is a reservation with its user and book resolved.
type ReservationView struct {
	ID                 int64                    `json:"id"`
	UserID             int64                    `json:"userId"`
	UserName           string                   `json:"userName"`
	BookExternalID     int64                    `json:"bookExternalId"`
	BookTitle          string                   `json:"bookTitle"`
	RentalDays         int                      `json:"rentalDays"`
	StartDate          domain.Date              `json:"startDate"`
	ExpectedReturnDate domain.Date              `json:"expectedReturnDate"`
	ActualReturnDate   *domain.Date             `json:"actualReturnDate"`
	DailyRate          decimal.Decimal          `json:"dailyRate"`
	TotalFee           decimal.Decimal          `json:"totalFee"`
	LateFee            decimal.Decimal          `json:"lateFee"`
	Status             domain.ReservationStatus `json:"status"`
	CreatedAt          time.Time                `json:"createdAt"`
}

// CreateReservation takes one copy of the book and records an ACTIVE
// reservation priced at the book's current daily rate. Nothing is written
// when the user or book is unknown or the book is out of stock.
func (s *ReservationService) CreateReservation(ctx context.Context, in CreateReservationInput) (view ReservationView, err error) {
	ctx, span := s.tracer.Start(ctx, "reservation.create", trace.WithAttributes(
		attribute.Int64("user.id", in.UserID),
		attribute.Int64("book.external_id", in.BookExternalID),
	))
	defer func() { endSpan(span, err) }()

	if in.RentalDays <= 0 {
		return ReservationView{}, errors.Wrapf(domain.ErrInvalid, "rental days must be positive, got %d", in.RentalDays)
	}
	if in.StartDate.IsZero() {
		return ReservationView{}, errors.Wrap(domain.ErrInvalid, "start date is required")
	}

	err = s.store.InTx(ctx, func(tx domain.Store) error {
		user, err := tx.Users().Get(ctx, in.UserID)
		if err != nil {
			return err
		}
		book, err := tx.Books().GetByExternalID(ctx, in.BookExternalID)
		if err != nil {
			return err
		}
		if err := tx.Books().DecrementAvailable(ctx, book.ID); err != nil {
			return err
		}

		r := &domain.Reservation{
			UserID:             user.ID,
			BookID:             book.ID,
			RentalDays:         in.RentalDays,
			StartDate:          in.StartDate,
			ExpectedReturnDate: in.StartDate.AddDays(in.RentalDays),
			DailyRate:          book.Price,
			TotalFee:           s.fees.TotalFee(book.Price, in.RentalDays),
			LateFee:            decimal.Zero,
			Status:             domain.StatusActive,
		}
		if err := tx.Reservations().Create(ctx, r); err != nil {
			return err
		}
		saved, err := tx.Reservations().Get(ctx, r.ID)
		if err != nil {
			return err
		}

		v := newViewer(tx)
		v.users[user.ID] = user
		v.books[book.ID] = book
		view, err = v.view(ctx, *saved)
		return err
	})
	if err != nil {
		s.logFailure("create reservation", err, zap.Int64("user_id", in.UserID), zap.Int64("book_external_id", in.BookExternalID))
		return ReservationView{}, err
	}

	span.SetAttributes(attribute.Int64("reservation.id", view.ID))
	s.log.Info("reservation created",
		zap.Int64("reservation_id", view.ID),
		zap.Int64("user_id", view.UserID),
		zap.Int64("book_external_id", view.BookExternalID),
		zap.Stringer("expected_return_date", view.ExpectedReturnDate),
		zap.Stringer("total_fee", view.TotalFee),
	)
	return view, nil
}

// ReturnBook closes an ACTIVE reservation on returnDate and puts the copy
// back in stock. A return after the expected date is charged a late fee on
// the book's current price.
func (s *ReservationService) ReturnBook(ctx context.Context, reservationID int64, returnDate domain.Date) (view ReservationView, err error) {
	ctx, span := s.tracer.Start(ctx, "reservation.return", trace.WithAttributes(
		attribute.Int64("reservation.id", reservationID),
	))
	defer func() { endSpan(span, err) }()

	if returnDate.IsZero() {
		return ReservationView{}, errors.Wrap(domain.ErrInvalid, "return date is required")
	}

	err = s.store.InTx(ctx, func(tx domain.Store) error {
		r, err := tx.Reservations().Get(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.Status != domain.StatusActive {
			return errors.Wrapf(domain.ErrAlreadyReturned, "reservation %d", r.ID)
		}
		book, err := tx.Books().GetByID(ctx, r.BookID)
		if err != nil {
			return err
		}

		r.LateFee = decimal.Zero
		if returnDate.After(r.ExpectedReturnDate) {
			r.LateFee = s.fees.LateFee(book.Price, r.ExpectedReturnDate.DaysUntil(returnDate))
		}
		returned := returnDate
		r.ActualReturnDate = &returned
		r.Status = domain.StatusReturned

		if err := tx.Reservations().MarkReturned(ctx, r); err != nil {
			return err
		}
		if err := tx.Books().IncrementAvailable(ctx, book.ID); err != nil {
			return err
		}
		saved, err := tx.Reservations().Get(ctx, r.ID)
		if err != nil {
			return err
		}

		v := newViewer(tx)
		v.books[book.ID] = book
		view, err = v.view(ctx, *saved)
		return err
	})
	if err != nil {
		s.logFailure("return book", err, zap.Int64("reservation_id", reservationID))
		return ReservationView{}, err
	}

	s.log.Info("book returned",
		zap.Int64("reservation_id", view.ID),
		zap.Int64("book_external_id", view.BookExternalID),
		zap.Stringer("return_date", returnDate),
		zap.Stringer("late_fee", view.LateFee),
	)
	return view, nil
}

// GetReservation returns the reservation with the given id.
func (s *ReservationService) GetReservation(ctx context.Context, id int64) (ReservationView, error) {
	var view ReservationView
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		r, err := tx.Reservations().Get(ctx, id)
		if err != nil {
			return err
		}
		view, err = newViewer(tx).view(ctx, *r)
		return err
	})
	if err != nil {
		return ReservationView{}, err
	}
	return view, nil
}

// ListReservations returns every reservation.
func (s *ReservationService) ListReservations(ctx context.Context) ([]ReservationView, error) {
	return s.list(ctx, domain.ReservationFilter{})
}

// ListReservationsByUser returns the reservations held by userID.
func (s *ReservationService) ListReservationsByUser(ctx context.Context, userID int64) ([]ReservationView, error) {
	return s.list(ctx, domain.ReservationFilter{UserID: userID})
}

// ListActiveReservations returns the reservations whose book is still out.
func (s *ReservationService) ListActiveReservations(ctx context.Context) ([]ReservationView, error) {
	return s.list(ctx, domain.ReservationFilter{Status: domain.StatusActive})
}

// ListOverdueReservations returns the active reservations that were due
// before today. A reservation due today is not overdue.
func (s *ReservationService) ListOverdueReservations(ctx context.Context) ([]ReservationView, error) {
	today := domain.DateOf(s.now())
	return s.list(ctx, domain.ReservationFilter{Status: domain.StatusActive, DueBefore: today})
}

func (s *ReservationService) list(ctx context.Context, f domain.ReservationFilter) ([]ReservationView, error) {
	var views []ReservationView
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		rs, err := tx.Reservations().List(ctx, f)
		if err != nil {
			return err
		}
		v := newViewer(tx)
		views = make([]ReservationView, 0, len(rs))
		for _, r := range rs {
			rv, err := v.view(ctx, r)
			if err != nil {
				return err
			}
			views = append(views, rv)
		}
		return nil
	})
	if err != nil {
		s.logFailure("list reservations", err)
		return nil, err
	}
	return views, nil
}

// logFailure logs errors that are not one of the domain error kinds; those
// are expected outcomes and reach the caller unchanged.
func (s *ReservationService) logFailure(op string, err error, fields ...zap.Field) {
	if isDomainError(err) {
		return
	}
	s.log.Error(op+" failed", append(fields, zap.Error(err))...)
}

// viewer converts reservations to views, loading each user and book once.
type viewer struct {
	tx    domain.Store
	users map[int64]*domain.User
	books map[int64]*domain.Book
}

func newViewer(tx domain.Store) *viewer {
	return &viewer{
		tx:    tx,
		users: make(map[int64]*domain.User),
		books: make(map[int64]*domain.Book),
	}
}

func (v *viewer) view(ctx context.Context, r domain.Reservation) (ReservationView, error) {
	user, ok := v.users[r.UserID]
	if !ok {
		var err error
		if user, err = v.tx.Users().Get(ctx, r.UserID); err != nil {
			return ReservationView{}, err
		}
		v.users[r.UserID] = user
	}
	book, ok := v.books[r.BookID]
	if !ok {
		var err error
		if book, err = v.tx.Books().GetByID(ctx, r.BookID); err != nil {
			return ReservationView{}, err
		}
		v.books[r.BookID] = book
	}

	return ReservationView{
		ID:                 r.ID,
		UserID:             r.UserID,
		UserName:           user.Name,
		BookExternalID:     book.ExternalID,
		BookTitle:          book.Title,
		RentalDays:         r.RentalDays,
		StartDate:          r.StartDate,
		ExpectedReturnDate: r.ExpectedReturnDate,
		ActualReturnDate:   r.ActualReturnDate,
		DailyRate:          r.DailyRate,
		TotalFee:           r.TotalFee,
		LateFee:            r.LateFee,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt,
	}, nil
}

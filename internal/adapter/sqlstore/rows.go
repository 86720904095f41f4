package sqlstore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"library/internal/domain"
)

// sqlTime scans TIMESTAMPTZ values and the RFC 3339 text SQLite stores.
type sqlTime struct {
	t time.Time
}

var textTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func (s *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		s.t = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into timestamp", src)
	}
}

func (s *sqlTime) parse(v string) error {
	for _, layout := range textTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			s.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("sqlstore: unrecognised timestamp %q", v)
}

// timestamp returns t in the form the connected database stores.
func (d *DB) timestamp(t time.Time) any {
	if d.sqlite {
		return t.Format(time.RFC3339Nano)
	}
	return t
}

type userRow struct {
	ID        int64   `db:"id"`
	Name      string  `db:"name"`
	Email     string  `db:"email"`
	Phone     string  `db:"phone"`
	CreatedAt sqlTime `db:"created_at"`
}

var userColumns = []any{"id", "name", "email", "phone", "created_at"}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		CreatedAt: r.CreatedAt.t,
	}
}

type bookRow struct {
	ID                int64           `db:"id"`
	ExternalID        int64           `db:"external_id"`
	Title             string          `db:"title"`
	Author            string          `db:"author"`
	Price             decimal.Decimal `db:"price"`
	StockQuantity     int             `db:"stock_quantity"`
	AvailableQuantity int             `db:"available_quantity"`
	CreatedAt         sqlTime         `db:"created_at"`
}

var bookColumns = []any{
	"id", "external_id", "title", "author", "price",
	"stock_quantity", "available_quantity", "created_at",
}

func (r bookRow) toDomain() domain.Book {
	return domain.Book{
		ID:                r.ID,
		ExternalID:        r.ExternalID,
		Title:             r.Title,
		Author:            r.Author,
		Price:             r.Price,
		StockQuantity:     r.StockQuantity,
		AvailableQuantity: r.AvailableQuantity,
		CreatedAt:         r.CreatedAt.t,
	}
}

type reservationRow struct {
	ID                 int64           `db:"id"`
	UserID             int64           `db:"user_id"`
	BookID             int64           `db:"book_id"`
	RentalDays         int             `db:"rental_days"`
	StartDate          domain.Date     `db:"start_date"`
	ExpectedReturnDate domain.Date     `db:"expected_return_date"`
	ActualReturnDate   *domain.Date    `db:"actual_return_date"`
	DailyRate          decimal.Decimal `db:"daily_rate"`
	TotalFee           decimal.Decimal `db:"total_fee"`
	LateFee            decimal.Decimal `db:"late_fee"`
	Status             string          `db:"status"`
	CreatedAt          sqlTime         `db:"created_at"`
}

var reservationColumns = []any{
	"id", "user_id", "book_id", "rental_days", "start_date", "expected_return_date",
	"actual_return_date", "daily_rate", "total_fee", "late_fee", "status", "created_at",
}

func (r reservationRow) toDomain() domain.Reservation {
	return domain.Reservation{
		ID:                 r.ID,
		UserID:             r.UserID,
		BookID:             r.BookID,
		RentalDays:         r.RentalDays,
		StartDate:          r.StartDate,
		ExpectedReturnDate: r.ExpectedReturnDate,
		ActualReturnDate:   r.ActualReturnDate,
		DailyRate:          r.DailyRate,
		TotalFee:           r.TotalFee,
		LateFee:            r.LateFee,
		Status:             domain.ReservationStatus(r.Status),
		CreatedAt:          r.CreatedAt.t,
	}
}

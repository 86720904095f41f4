package sqlstore

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/pkg/errors"

	"library/internal/domain"
)

type reservationRepo struct{ d *DB }

// Create inserts res and assigns its ID and CreatedAt.
func (r reservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	createdAt := now()
	id, err := r.d.insert(ctx, r.d.insertInto(tableReservations).Rows(goqu.Record{
		"user_id":              res.UserID,
		"book_id":              res.BookID,
		"rental_days":          res.RentalDays,
		"start_date":           res.StartDate,
		"expected_return_date": res.ExpectedReturnDate,
		"actual_return_date":   res.ActualReturnDate,
		"daily_rate":           res.DailyRate,
		"total_fee":            res.TotalFee,
		"late_fee":             res.LateFee,
		"status":               string(res.Status),
		"created_at":           r.d.timestamp(createdAt),
	}))
	if err != nil {
		return classify(err, "create reservation for user %d", res.UserID)
	}
	res.ID = id
	res.CreatedAt = createdAt
	return nil
}

func (r reservationRepo) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	var row reservationRow
	err := r.d.get(ctx, &row, r.d.from(tableReservations).
		Select(reservationColumns...).
		Where(goqu.C("id").Eq(id)))
	if err != nil {
		return nil, classify(err, "reservation %d", id)
	}
	res := row.toDomain()
	return &res, nil
}

// List returns matching reservations in ascending id order.
func (r reservationRepo) List(ctx context.Context, f domain.ReservationFilter) ([]domain.Reservation, error) {
	ds := r.d.from(tableReservations).Select(reservationColumns...).Order(goqu.C("id").Asc())
	if conds := filterExpressions(f); len(conds) > 0 {
		ds = ds.Where(conds...)
	}

	var rows []reservationRow
	if err := r.d.selectAll(ctx, &rows, ds); err != nil {
		return nil, classify(err, "list reservations")
	}
	out := make([]domain.Reservation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func filterExpressions(f domain.ReservationFilter) []exp.Expression {
	var conds []exp.Expression
	if f.UserID != 0 {
		conds = append(conds, goqu.C("user_id").Eq(f.UserID))
	}
	if f.BookID != 0 {
		conds = append(conds, goqu.C("book_id").Eq(f.BookID))
	}
	if f.Status != "" {
		conds = append(conds, goqu.C("status").Eq(string(f.Status)))
	}
	if !f.DueBefore.IsZero() {
		conds = append(conds, goqu.C("expected_return_date").Lt(f.DueBefore))
	}
	return conds
}

// MarkReturned writes the return fields of an ACTIVE reservation. The status
// guard makes a concurrent second return lose instead of double-counting.
func (r reservationRepo) MarkReturned(ctx context.Context, res *domain.Reservation) error {
	n, err := r.d.exec(ctx, r.d.update(tableReservations).Set(goqu.Record{
		"status":             string(res.Status),
		"actual_return_date": res.ActualReturnDate,
		"late_fee":           res.LateFee,
	}).Where(
		goqu.C("id").Eq(res.ID),
		goqu.C("status").Eq(string(domain.StatusActive)),
	))
	if err != nil {
		return classify(err, "return reservation %d", res.ID)
	}
	if n == 1 {
		return nil
	}
	if _, err := r.Get(ctx, res.ID); err != nil {
		return err
	}
	return errors.Wrapf(domain.ErrAlreadyReturned, "reservation %d", res.ID)
}

package sqlstore

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/pkg/errors"

	"library/internal/domain"
)

type bookRepo struct{ d *DB }

// Create inserts b and assigns its ID and CreatedAt.
func (r bookRepo) Create(ctx context.Context, b *domain.Book) error {
	createdAt := now()
	id, err := r.d.insert(ctx, r.d.insertInto(tableBooks).Rows(goqu.Record{
		"external_id":        b.ExternalID,
		"title":              b.Title,
		"author":             b.Author,
		"price":              b.Price,
		"stock_quantity":     b.StockQuantity,
		"available_quantity": b.AvailableQuantity,
		"created_at":         r.d.timestamp(createdAt),
	}))
	if err != nil {
		return classify(err, "create book %d", b.ExternalID)
	}
	b.ID = id
	b.CreatedAt = createdAt
	return nil
}

func (r bookRepo) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	return r.getWhere(ctx, goqu.C("id").Eq(id), "book id %d", id)
}

func (r bookRepo) GetByExternalID(ctx context.Context, externalID int64) (*domain.Book, error) {
	return r.getWhere(ctx, goqu.C("external_id").Eq(externalID), "book %d", externalID)
}

func (r bookRepo) getWhere(ctx context.Context, cond exp.Expression, format string, arg int64) (*domain.Book, error) {
	var row bookRow
	if err := r.d.get(ctx, &row, r.d.from(tableBooks).Select(bookColumns...).Where(cond)); err != nil {
		return nil, classify(err, format, arg)
	}
	b := row.toDomain()
	return &b, nil
}

func (r bookRepo) List(ctx context.Context) ([]domain.Book, error) {
	var rows []bookRow
	err := r.d.selectAll(ctx, &rows, r.d.from(tableBooks).Select(bookColumns...).Order(goqu.C("id").Asc()))
	if err != nil {
		return nil, classify(err, "list books")
	}
	out := make([]domain.Book, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r bookRepo) Update(ctx context.Context, b *domain.Book) error {
	n, err := r.d.exec(ctx, r.d.update(tableBooks).Set(goqu.Record{
		"title":              b.Title,
		"author":             b.Author,
		"price":              b.Price,
		"stock_quantity":     b.StockQuantity,
		"available_quantity": b.AvailableQuantity,
	}).Where(goqu.C("id").Eq(b.ID)))
	if err != nil {
		return classify(err, "update book %d", b.ExternalID)
	}
	if n == 0 {
		return errors.Wrapf(domain.ErrNotFound, "book %d", b.ExternalID)
	}
	return nil
}

func (r bookRepo) Delete(ctx context.Context, id int64) error {
	n, err := r.d.exec(ctx, r.d.deleteFrom(tableBooks).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return classify(err, "delete book id %d", id)
	}
	if n == 0 {
		return errors.Wrapf(domain.ErrNotFound, "book id %d", id)
	}
	return nil
}

// DecrementAvailable takes one copy with a guarded update, so the counter
// cannot go negative even when units of work race.
func (r bookRepo) DecrementAvailable(ctx context.Context, id int64) error {
	n, err := r.d.exec(ctx, r.d.update(tableBooks).
		Set(goqu.Record{"available_quantity": goqu.L("available_quantity - 1")}).
		Where(goqu.C("id").Eq(id), goqu.C("available_quantity").Gt(0)))
	if err != nil {
		return classify(err, "decrement stock of book id %d", id)
	}
	if n == 1 {
		return nil
	}
	b, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return errors.Wrapf(domain.ErrOutOfStock, "book %d", b.ExternalID)
}

func (r bookRepo) IncrementAvailable(ctx context.Context, id int64) error {
	n, err := r.d.exec(ctx, r.d.update(tableBooks).
		Set(goqu.Record{"available_quantity": goqu.L("available_quantity + 1")}).
		Where(goqu.C("id").Eq(id)))
	if err != nil {
		return classify(err, "increment stock of book id %d", id)
	}
	if n == 0 {
		return errors.Wrapf(domain.ErrNotFound, "book id %d", id)
	}
	return nil
}

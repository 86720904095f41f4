package sqlstore

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/pkg/errors"

	"library/internal/domain"
)

type userRepo struct{ d *DB }

// Create inserts u and assigns its ID and CreatedAt.
func (r userRepo) Create(ctx context.Context, u *domain.User) error {
	createdAt := now()
	id, err := r.d.insert(ctx, r.d.insertInto(tableUsers).Rows(goqu.Record{
		"name":       u.Name,
		"email":      u.Email,
		"phone":      u.Phone,
		"created_at": r.d.timestamp(createdAt),
	}))
	if err != nil {
		return classify(err, "create user %q", u.Email)
	}
	u.ID = id
	u.CreatedAt = createdAt
	return nil
}

func (r userRepo) Get(ctx context.Context, id int64) (*domain.User, error) {
	var row userRow
	err := r.d.get(ctx, &row, r.d.from(tableUsers).Select(userColumns...).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return nil, classify(err, "user %d", id)
	}
	u := row.toDomain()
	return &u, nil
}

func (r userRepo) List(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	err := r.d.selectAll(ctx, &rows, r.d.from(tableUsers).Select(userColumns...).Order(goqu.C("id").Asc()))
	if err != nil {
		return nil, classify(err, "list users")
	}
	out := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r userRepo) Update(ctx context.Context, u *domain.User) error {
	n, err := r.d.exec(ctx, r.d.update(tableUsers).Set(goqu.Record{
		"name":  u.Name,
		"email": u.Email,
		"phone": u.Phone,
	}).Where(goqu.C("id").Eq(u.ID)))
	if err != nil {
		return classify(err, "update user %d", u.ID)
	}
	if n == 0 {
		return errors.Wrapf(domain.ErrNotFound, "user %d", u.ID)
	}
	return nil
}

func (r userRepo) Delete(ctx context.Context, id int64) error {
	n, err := r.d.exec(ctx, r.d.deleteFrom(tableUsers).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return classify(err, "delete user %d", id)
	}
	if n == 0 {
		return errors.Wrapf(domain.ErrNotFound, "user %d", id)
	}
	return nil
}

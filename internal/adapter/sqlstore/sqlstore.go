// Package sqlstore implements the domain repositories on a relational
// database. PostgreSQL is the production target (lib/pq or pgx drivers);
// SQLite backs local runs and the adapter tests.
package sqlstore

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // goqu dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // goqu dialect
	_ "github.com/jackc/pgx/v5/stdlib"                  // registers "pgx"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers "postgres"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers "sqlite"

	"library/internal/domain"
)

// Supported driver names.
const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverSQLite   = "sqlite"
)

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite3"

	tableUsers        = "users"
	tableBooks        = "books"
	tableReservations = "reservations"
)

// ErrUnsupportedDriver is returned by Open for an unknown driver name.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// DB implements domain.Store on a *sqlx.DB.
type DB struct {
	db      *sqlx.DB
	q       sqlx.ExtContext // db, or the running transaction
	inTx    bool
	sqlite  bool
	dialect goqu.DialectWrapper
	log     *zap.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger. SQL statements are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(d *DB) {
		if l != nil {
			d.log = l
		}
	}
}

// Open connects with the named driver, pings, and runs migrations.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*DB, error) {
	var dialect string
	switch driver {
	case DriverPostgres, DriverPGX:
		dialect = dialectPostgres
	case DriverSQLite:
		dialect = dialectSQLite
	default:
		return nil, errors.Wrapf(ErrUnsupportedDriver, "%q", driver)
	}

	s, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if driver == DriverSQLite {
		// One connection: SQLite serialises writers and a single
		// connection keeps PRAGMA settings for the life of the pool.
		s.SetMaxOpenConns(1)
	} else {
		s.SetMaxOpenConns(10)
		s.SetMaxIdleConns(5)
		s.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.PingContext(pingCtx); err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	d := &DB{
		db:      s,
		q:       s,
		sqlite:  driver == DriverSQLite,
		dialect: goqu.Dialect(dialect),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ensure interfaces are met.
var _ domain.Store = (*DB)(nil)

func (d *DB) Users() domain.UserRepository               { return userRepo{d} }
func (d *DB) Books() domain.BookRepository               { return bookRepo{d} }
func (d *DB) Reservations() domain.ReservationRepository { return reservationRepo{d} }

// InTx runs fn inside a database transaction. A DB that is already bound to
// a transaction passes itself to fn.
func (d *DB) InTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if d.inTx {
		return fn(d)
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	scoped := *d
	scoped.q = tx
	scoped.inTx = true

	if err := fn(&scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.log.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func (d *DB) get(ctx context.Context, dest any, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return errors.Wrap(err, "build query")
	}
	defer d.logSQL(query, time.Now())
	return sqlx.GetContext(ctx, d.q, dest, query, args...)
}

func (d *DB) selectAll(ctx context.Context, dest any, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return errors.Wrap(err, "build query")
	}
	defer d.logSQL(query, time.Now())
	return sqlx.SelectContext(ctx, d.q, dest, query, args...)
}

// exec runs a statement and returns the number of affected rows.
func (d *DB) exec(ctx context.Context, b sqlBuilder) (int64, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return 0, errors.Wrap(err, "build statement")
	}
	defer d.logSQL(query, time.Now())
	res, err := d.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// insert adds one row and returns its generated id.
func (d *DB) insert(ctx context.Context, ds *goqu.InsertDataset) (int64, error) {
	if !d.sqlite {
		var id int64
		if err := d.get(ctx, &id, ds.Returning("id")); err != nil {
			return 0, err
		}
		return id, nil
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, errors.Wrap(err, "build insert")
	}
	defer d.logSQL(query, time.Now())
	res, err := d.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *DB) from(table string) *goqu.SelectDataset {
	return d.dialect.From(table).Prepared(true)
}

func (d *DB) insertInto(table string) *goqu.InsertDataset {
	return d.dialect.Insert(table).Prepared(true)
}

func (d *DB) update(table string) *goqu.UpdateDataset {
	return d.dialect.Update(table).Prepared(true)
}

func (d *DB) deleteFrom(table string) *goqu.DeleteDataset {
	return d.dialect.Delete(table).Prepared(true)
}

func (d *DB) logSQL(query string, start time.Time) {
	d.log.Debug("executed sql",
		zap.String("query", query),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("tx", d.inTx),
	)
}

// now returns the creation timestamp stored for new rows, truncated to the
// precision PostgreSQL keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

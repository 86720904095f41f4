package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"library/internal/domain"
)

// BookService manages the catalogue and the per-book stock counter.
type BookService struct {
	store  domain.Store
	log    *zap.Logger
	tracer trace.Tracer
}

// NewBookService creates a BookService on store.
func NewBookService(store domain.Store, log *zap.Logger) *BookService {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookService{store: store, log: log.Named("books"), tracer: otel.Tracer(tracerName)}
}

// BookInput carries the writable fields of a book.
type BookInput struct {
	ExternalID        int64
	Title             string
	Author            string
	Price             decimal.Decimal
	StockQuantity     int
	AvailableQuantity int
}

func (in BookInput) validate() error {
	switch {
	case in.ExternalID <= 0:
		return errors.Wrap(domain.ErrInvalid, "external id must be positive")
	case in.Title == "":
		return errors.Wrap(domain.ErrInvalid, "title is required")
	case in.Price.IsNegative():
		return errors.Wrap(domain.ErrInvalid, "price must not be negative")
	case in.StockQuantity < 0:
		return errors.Wrap(domain.ErrInvalid, "stock quantity must not be negative")
	case in.AvailableQuantity < 0 || in.AvailableQuantity > in.StockQuantity:
		return errors.Wrapf(domain.ErrInvalid, "available quantity must be between 0 and %d", in.StockQuantity)
	}
	return nil
}

// CreateBook adds a book to the catalogue.
func (s *BookService) CreateBook(ctx context.Context, in BookInput) (*domain.Book, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	b := &domain.Book{
		ExternalID:        in.ExternalID,
		Title:             in.Title,
		Author:            in.Author,
		Price:             in.Price,
		StockQuantity:     in.StockQuantity,
		AvailableQuantity: in.AvailableQuantity,
	}
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		return tx.Books().Create(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("book created", zap.Int64("book_external_id", b.ExternalID), zap.Int("stock", b.StockQuantity))
	return b, nil
}

// GetBook returns the book with the given external id.
func (s *BookService) GetBook(ctx context.Context, externalID int64) (*domain.Book, error) {
	return s.store.Books().GetByExternalID(ctx, externalID)
}

// ListBooks returns the whole catalogue.
func (s *BookService) ListBooks(ctx context.Context) ([]domain.Book, error) {
	return s.store.Books().List(ctx)
}

// UpdateBook replaces the writable fields of the book with the given external
// id. The external id itself cannot change.
func (s *BookService) UpdateBook(ctx context.Context, externalID int64, in BookInput) (*domain.Book, error) {
	in.ExternalID = externalID
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out *domain.Book
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		b, err := tx.Books().GetByExternalID(ctx, externalID)
		if err != nil {
			return err
		}
		b.Title = in.Title
		b.Author = in.Author
		b.Price = in.Price
		b.StockQuantity = in.StockQuantity
		b.AvailableQuantity = in.AvailableQuantity
		if err := tx.Books().Update(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBook removes a book that no reservation refers to.
func (s *BookService) DeleteBook(ctx context.Context, externalID int64) error {
	return s.store.InTx(ctx, func(tx domain.Store) error {
		b, err := tx.Books().GetByExternalID(ctx, externalID)
		if err != nil {
			return err
		}
		rs, err := tx.Reservations().List(ctx, domain.ReservationFilter{BookID: b.ID})
		if err != nil {
			return err
		}
		if len(rs) > 0 {
			return errors.Wrapf(domain.ErrConflict, "book %d has %d reservations", externalID, len(rs))
		}
		if err := tx.Books().Delete(ctx, b.ID); err != nil {
			return err
		}
		s.log.Info("book deleted", zap.Int64("book_external_id", externalID))
		return nil
	})
}

// DecreaseAvailableQuantity takes one copy out of stock. It fails with
// domain.ErrOutOfStock when no copy is available.
func (s *BookService) DecreaseAvailableQuantity(ctx context.Context, externalID int64) (*domain.Book, error) {
	return s.adjustStock(ctx, "book.decrease_available", externalID, func(tx domain.Store, id int64) error {
		return tx.Books().DecrementAvailable(ctx, id)
	})
}

// IncreaseAvailableQuantity puts one copy back in stock.
func (s *BookService) IncreaseAvailableQuantity(ctx context.Context, externalID int64) (*domain.Book, error) {
	return s.adjustStock(ctx, "book.increase_available", externalID, func(tx domain.Store, id int64) error {
		return tx.Books().IncrementAvailable(ctx, id)
	})
}

func (s *BookService) adjustStock(ctx context.Context, op string, externalID int64, adjust func(tx domain.Store, id int64) error) (out *domain.Book, err error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.Int64("book.external_id", externalID)))
	defer func() { endSpan(span, err) }()

	err = s.store.InTx(ctx, func(tx domain.Store) error {
		b, err := tx.Books().GetByExternalID(ctx, externalID)
		if err != nil {
			return err
		}
		if err := adjust(tx, b.ID); err != nil {
			return err
		}
		out, err = tx.Books().GetByID(ctx, b.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("stock adjusted", zap.String("op", op), zap.Int64("book_external_id", externalID), zap.Int("available", out.AvailableQuantity))
	return out, nil
}

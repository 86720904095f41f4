package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Book is a catalogue title with a stock of physical copies.
type Book struct {
	ID                int64           `json:"-"`
	ExternalID        int64           `json:"externalId"`
	Title             string          `json:"title"`
	Author            string          `json:"author,omitempty"`
	Price             decimal.Decimal `json:"price"`
	StockQuantity     int             `json:"stockQuantity"`
	AvailableQuantity int             `json:"availableQuantity"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// BookRepository is the port for book persistence and the stock counter.
//
// DecrementAvailable must only succeed while AvailableQuantity > 0 and return
// ErrOutOfStock otherwise; both counter operations are single guarded updates
// so concurrent units of work never drive the counter below zero.
type BookRepository interface {
	Create(ctx context.Context, b *Book) error
	GetByID(ctx context.Context, id int64) (*Book, error)
	GetByExternalID(ctx context.Context, externalID int64) (*Book, error)
	List(ctx context.Context) ([]Book, error)
	Update(ctx context.Context, b *Book) error
	Delete(ctx context.Context, id int64) error
	DecrementAvailable(ctx context.Context, id int64) error
	IncrementAvailable(ctx context.Context, id int64) error
}

package domain

import "context"

// Store groups the repositories and runs units of work against them.
//
// InTx calls fn with a transaction-scoped Store, commits when fn returns nil
// and rolls back otherwise. Calling InTx on a transaction-scoped Store reuses
// the running transaction.
type Store interface {
	Users() UserRepository
	Books() BookRepository
	Reservations() ReservationRepository
	InTx(ctx context.Context, fn func(tx Store) error) error
}

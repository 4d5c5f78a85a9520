package application

import "context"

// Transactor runs fn as one unit of work. Repository calls made with the
// context handed to fn join the unit and are rolled back together when fn
// returns an error.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// directTransactor runs fn without a surrounding transaction. Used when no
// Transactor is configured.
type directTransactor struct{}

func (directTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func defaultTransactor(tx Transactor) Transactor {
	if tx == nil {
		return directTransactor{}
	}
	return tx
}

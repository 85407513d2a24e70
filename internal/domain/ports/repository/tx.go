package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying transaction handle via `tx`.
//
// Repository methods that accept `tx` detect a live transaction on the
// implementation side and run SELECT ... FOR UPDATE or tx-bound Exec/Query.
// Repositories MUST accept a nil tx (non-transactional path).
//
// USAGE
// tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
// 	if err := payouts.LockCreator(ctx, tx, creatorID); err != nil {
// 		return err
// 	}
// 	...
// })
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

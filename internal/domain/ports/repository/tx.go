package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Postgres repositories receive a pgx.Tx
// here, or nil/NoTX to run against the pool.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction. Use cases pass
// the handle on to every repository call that has to commit together, e.g.
// the ledger capture, the active-subscription upsert and the user billing
// update on a verified payment.
//
// Repositories must accept a nil handle (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

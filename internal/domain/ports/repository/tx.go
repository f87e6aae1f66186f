package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is a backend transaction handle; nil means no transaction.
type Tx interface{}

// TransactionManager runs fn inside a database transaction, passing the
// backend's handle as tx (pgx.Tx for Postgres). SQL-backed stores use it to make
// a multi-account Commit a single unit.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

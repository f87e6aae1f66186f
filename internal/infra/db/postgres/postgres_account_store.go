package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/ports/repository"
	"subs3-ledger/internal/infra/codec"
)

// Ensure interface compliance
var _ repository.AccountStore = (*PostgresAccountStore)(nil)

// PostgresAccountStore keeps encoded accounts in ledger_accounts. Commit runs
// every write in one transaction and turns lost races into ErrConflict through
// version-conditioned statements.
type PostgresAccountStore struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewPostgresAccountStore(pool *pgxpool.Pool, tm repository.TransactionManager) *PostgresAccountStore {
	return &PostgresAccountStore{pool: pool, tm: tm}
}

func (r *PostgresAccountStore) Get(ctx context.Context, addr model.Address) (*repository.Record, error) {
	const sql = `
SELECT version, data
  FROM ledger_accounts
 WHERE address = $1;
`
	var (
		version int64
		data    []byte
	)
	if err := r.pool.QueryRow(ctx, sql, addr.Bytes()).Scan(&version, &data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("Get account: %w", err)
	}
	acc, err := codec.DecodeAccount(data)
	if err != nil {
		return nil, err
	}
	return &repository.Record{Address: addr, Version: uint64(version), Account: acc}, nil
}

func (r *PostgresAccountStore) List(ctx context.Context, kind model.AccountKind) ([]*repository.Record, error) {
	const sql = `
SELECT address, version, data
  FROM ledger_accounts
 WHERE kind = $1
 ORDER BY address;
`
	rows, err := r.pool.Query(ctx, sql, int16(kind))
	if err != nil {
		return nil, fmt.Errorf("List accounts: %w", err)
	}
	defer rows.Close()
	var out []*repository.Record
	for rows.Next() {
		var (
			raw     []byte
			version int64
			data    []byte
		)
		if err := rows.Scan(&raw, &version, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		addr, err := model.AddressFromBytes(raw)
		if err != nil {
			return nil, err
		}
		acc, err := codec.DecodeAccount(data)
		if err != nil {
			return nil, err
		}
		out = append(out, &repository.Record{Address: addr, Version: uint64(version), Account: acc})
	}
	return out, rows.Err()
}

func (r *PostgresAccountStore) Commit(ctx context.Context, writes ...repository.Write) error {
	if len(writes) == 0 {
		return nil
	}
	encoded := make(map[model.Address][]byte, len(writes))
	for _, w := range writes {
		if _, dup := encoded[w.Address]; dup {
			return fmt.Errorf("%w: duplicate write to %s", domain.ErrInvalidArgument, w.Address)
		}
		data, err := codec.EncodeAccount(w.Account)
		if err != nil {
			return err
		}
		encoded[w.Address] = data
	}
	// Row locks are taken in address order so two multi-account commits cannot deadlock.
	ordered := append([]repository.Write(nil), writes...)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].Address[:], ordered[j].Address[:]) < 0
	})

	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ex, err := getExecutor(r.pool, tx)
		if err != nil {
			return err
		}
		for _, w := range ordered {
			if err := applyWrite(ctx, ex, w, encoded[w.Address]); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyWrite(ctx context.Context, ex executor, w repository.Write, data []byte) error {
	const insertSQL = `
INSERT INTO ledger_accounts (address, kind, version, data)
VALUES ($1, $2, 1, $3)
ON CONFLICT (address) DO NOTHING;
`
	const updateSQL = `
UPDATE ledger_accounts
   SET version    = version + 1,
       data       = $4,
       updated_at = now()
 WHERE address = $1 AND kind = $2 AND version = $3;
`
	kind := int16(w.Account.Kind())
	if w.ExpectedVersion == 0 {
		tag, err := ex.Exec(ctx, insertSQL, w.Address.Bytes(), kind, data)
		if err != nil {
			return mapPgError(fmt.Errorf("insert account: %w", err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", domain.ErrAccountAlreadyExists, w.Address)
		}
		return nil
	}
	tag, err := ex.Exec(ctx, updateSQL, w.Address.Bytes(), kind, int64(w.ExpectedVersion), data)
	if err != nil {
		return mapPgError(fmt.Errorf("update account: %w", err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return explainMiss(ctx, ex, w)
}

// explainMiss classifies an update that matched no row.
func explainMiss(ctx context.Context, ex executor, w repository.Write) error {
	var (
		kind    int16
		version int64
	)
	err := ex.QueryRow(ctx, `SELECT kind, version FROM ledger_accounts WHERE address = $1`, w.Address.Bytes()).Scan(&kind, &version)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, w.Address)
	case err != nil:
		return mapPgError(fmt.Errorf("explain update miss: %w", err))
	case model.AccountKind(kind) != w.Account.Kind():
		return fmt.Errorf("%w: %s holds %s", domain.ErrAccountKindMismatch, w.Address, model.AccountKind(kind))
	default:
		return fmt.Errorf("%w: %s at version %d, expected %d", domain.ErrConflict, w.Address, version, w.ExpectedVersion)
	}
}

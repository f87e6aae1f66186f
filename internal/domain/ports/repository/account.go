package repository

import (
	"context"
	"time"

	"subs3-ledger/internal/domain/model"
)

// Record is an account as read from the ledger together with the version it was
// read at. Version 0 never appears on a stored record.
type Record struct {
	Address model.Address
	Version uint64
	Account model.Account
}

// Write is one leg of an atomic Commit. ExpectedVersion 0 creates the account and
// fails with ErrAccountAlreadyExists if it is present; otherwise the stored
// version must still equal ExpectedVersion or the commit fails with ErrConflict.
type Write struct {
	Address         model.Address
	ExpectedVersion uint64
	Account         model.Account
}

// Create is a Write that must not find an existing account.
func Create(addr model.Address, acc model.Account) Write {
	return Write{Address: addr, Account: acc}
}

// Update is a Write conditioned on the record still being at rec.Version.
func Update(rec *Record, acc model.Account) Write {
	return Write{Address: rec.Address, ExpectedVersion: rec.Version, Account: acc}
}

// AccountStore is the keyed ledger of account records.
//
// Commit applies every write or none of them. Writes to distinct addresses never
// conflict with each other; a loser on the same address sees ErrConflict and is
// expected to re-read before retrying.
type AccountStore interface {
	Get(ctx context.Context, addr model.Address) (*Record, error)
	List(ctx context.Context, kind model.AccountKind) ([]*Record, error)
	Commit(ctx context.Context, writes ...Write) error
}

// Locker hands out short, non-blocking exclusive leases keyed by string.
// TryLock returns ErrConflict immediately when the key is held.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

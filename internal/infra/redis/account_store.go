package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-redis/redis/v8"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/ports/repository"
	"subs3-ledger/internal/infra/codec"
)

var _ repository.AccountStore = (*AccountStore)(nil)

// AccountStore keeps each account in a hash {kind, version, data} and indexes
// addresses per kind in a set. Commit WATCHes every written key and applies the
// writes in one MULTI/EXEC, so a concurrent change aborts the whole commit.
type AccountStore struct {
	c *Client
}

func NewAccountStore(c *Client) *AccountStore {
	return &AccountStore{c: c}
}

func (s *AccountStore) accountKey(addr model.Address) string {
	return s.c.Key("account", addr.String())
}

func (s *AccountStore) kindKey(kind model.AccountKind) string {
	return s.c.Key("kind", strconv.Itoa(int(kind)))
}

type storedHeader struct {
	exists  bool
	kind    model.AccountKind
	version uint64
}

func readHeader(ctx context.Context, cmd redis.Cmdable, key string) (storedHeader, []byte, error) {
	vals, err := cmd.HMGet(ctx, key, "kind", "version", "data").Result()
	if err != nil {
		return storedHeader{}, nil, err
	}
	if vals[0] == nil || vals[1] == nil {
		return storedHeader{}, nil, nil
	}
	kind, err := strconv.ParseUint(fmt.Sprint(vals[0]), 10, 8)
	if err != nil {
		return storedHeader{}, nil, fmt.Errorf("%w: kind: %v", domain.ErrReadDatabaseRow, err)
	}
	version, err := strconv.ParseUint(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return storedHeader{}, nil, fmt.Errorf("%w: version: %v", domain.ErrReadDatabaseRow, err)
	}
	var data []byte
	if s, ok := vals[2].(string); ok {
		data = []byte(s)
	}
	return storedHeader{exists: true, kind: model.AccountKind(kind), version: version}, data, nil
}

func (s *AccountStore) Get(ctx context.Context, addr model.Address) (*repository.Record, error) {
	h, data, err := readHeader(ctx, s.c.cli, s.accountKey(addr))
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if !h.exists {
		return nil, domain.ErrAccountNotFound
	}
	acc, err := codec.DecodeAccount(data)
	if err != nil {
		return nil, err
	}
	return &repository.Record{Address: addr, Version: h.version, Account: acc}, nil
}

func (s *AccountStore) List(ctx context.Context, kind model.AccountKind) ([]*repository.Record, error) {
	members, err := s.c.cli.SMembers(ctx, s.kindKey(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]*repository.Record, 0, len(members))
	for _, m := range members {
		addr, err := model.ParseAddress(m)
		if err != nil {
			return nil, err
		}
		rec, err := s.Get(ctx, addr)
		if errors.Is(err, domain.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out, nil
}

func (s *AccountStore) Commit(ctx context.Context, writes ...repository.Write) error {
	if len(writes) == 0 {
		return nil
	}
	keys := make([]string, len(writes))
	encoded := make([][]byte, len(writes))
	seen := make(map[model.Address]struct{}, len(writes))
	for i, w := range writes {
		if _, dup := seen[w.Address]; dup {
			return fmt.Errorf("%w: duplicate write to %s", domain.ErrInvalidArgument, w.Address)
		}
		seen[w.Address] = struct{}{}
		data, err := codec.EncodeAccount(w.Account)
		if err != nil {
			return err
		}
		keys[i] = s.accountKey(w.Address)
		encoded[i] = data
	}

	txf := func(tx *redis.Tx) error {
		for i, w := range writes {
			h, _, err := readHeader(ctx, tx, keys[i])
			if err != nil {
				return err
			}
			if err := checkVersion(w, h); err != nil {
				return err
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, w := range writes {
				pipe.HSet(ctx, keys[i],
					"kind", int(w.Account.Kind()),
					"version", w.ExpectedVersion+1,
					"data", encoded[i],
				)
				pipe.SAdd(ctx, s.kindKey(w.Account.Kind()), w.Address.String())
			}
			return nil
		})
		return err
	}

	err := s.c.cli.Watch(ctx, txf, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: watched account changed during commit", domain.ErrConflict)
	}
	return err
}

func checkVersion(w repository.Write, h storedHeader) error {
	switch {
	case w.ExpectedVersion == 0 && h.exists:
		return fmt.Errorf("%w: %s", domain.ErrAccountAlreadyExists, w.Address)
	case w.ExpectedVersion != 0 && !h.exists:
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, w.Address)
	case h.exists && h.kind != w.Account.Kind():
		return fmt.Errorf("%w: %s holds %s", domain.ErrAccountKindMismatch, w.Address, h.kind)
	case w.ExpectedVersion != 0 && h.version != w.ExpectedVersion:
		return fmt.Errorf("%w: %s at version %d, expected %d", domain.ErrConflict, w.Address, h.version, w.ExpectedVersion)
	}
	return nil
}

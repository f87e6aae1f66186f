// Package memory is an in-process AccountStore used by tests, the demo and
// single-node deployments.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/ports/repository"
	"subs3-ledger/internal/infra/codec"
)

var _ repository.AccountStore = (*AccountStore)(nil)

type row struct {
	kind    model.AccountKind
	version uint64
	data    []byte
}

// AccountStore keeps encoded records in a map. Commit takes one mutex per
// written address, in address order, and releases them before returning.
type AccountStore struct {
	mu    sync.RWMutex
	rows  map[model.Address]row
	locks sync.Map // model.Address -> *sync.Mutex
}

func NewAccountStore() *AccountStore {
	return &AccountStore{rows: make(map[model.Address]row)}
}

func (s *AccountStore) Get(ctx context.Context, addr model.Address) (*repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	r, ok := s.rows[addr]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return decodeRow(addr, r)
}

func (s *AccountStore) List(ctx context.Context, kind model.AccountKind) ([]*repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	matched := make(map[model.Address]row)
	for addr, r := range s.rows {
		if r.kind == kind {
			matched[addr] = r
		}
	}
	s.mu.RUnlock()

	out := make([]*repository.Record, 0, len(matched))
	for addr, r := range matched {
		rec, err := decodeRow(addr, r)
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
	encoded, err := encodeWrites(writes)
	if err != nil {
		return err
	}

	addrs := make([]model.Address, 0, len(writes))
	for _, w := range writes {
		addrs = append(addrs, w.Address)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })
	for _, a := range addrs {
		m := s.lockFor(a)
		m.Lock()
		defer m.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	for _, w := range writes {
		current, exists := s.rows[w.Address]
		if err := checkVersion(w, current, exists); err != nil {
			s.mu.RUnlock()
			return err
		}
	}
	s.mu.RUnlock()

	s.mu.Lock()
	for i, w := range writes {
		s.rows[w.Address] = row{kind: w.Account.Kind(), version: w.ExpectedVersion + 1, data: encoded[i]}
	}
	s.mu.Unlock()
	return nil
}

func (s *AccountStore) lockFor(addr model.Address) *sync.Mutex {
	m, _ := s.locks.LoadOrStore(addr, &sync.Mutex{})
	return m.(*sync.Mutex)
}

func checkVersion(w repository.Write, current row, exists bool) error {
	switch {
	case w.ExpectedVersion == 0 && exists:
		return fmt.Errorf("%w: %s", domain.ErrAccountAlreadyExists, w.Address)
	case w.ExpectedVersion != 0 && !exists:
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, w.Address)
	case exists && current.kind != w.Account.Kind():
		return fmt.Errorf("%w: %s holds %s", domain.ErrAccountKindMismatch, w.Address, current.kind)
	case w.ExpectedVersion != 0 && current.version != w.ExpectedVersion:
		return fmt.Errorf("%w: %s at version %d, expected %d", domain.ErrConflict, w.Address, current.version, w.ExpectedVersion)
	}
	return nil
}

func encodeWrites(writes []repository.Write) ([][]byte, error) {
	seen := make(map[model.Address]struct{}, len(writes))
	out := make([][]byte, len(writes))
	for i, w := range writes {
		if _, dup := seen[w.Address]; dup {
			return nil, fmt.Errorf("%w: duplicate write to %s", domain.ErrInvalidArgument, w.Address)
		}
		seen[w.Address] = struct{}{}
		data, err := codec.EncodeAccount(w.Account)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

func decodeRow(addr model.Address, r row) (*repository.Record, error) {
	acc, err := codec.DecodeAccount(r.data)
	if err != nil {
		return nil, err
	}
	return &repository.Record{Address: addr, Version: r.version, Account: acc}, nil
}

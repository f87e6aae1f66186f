package metrics

import (
	"context"
	"time"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/ports/repository"
)

type instrumentedStore struct {
	repository.AccountStore
}

// InstrumentStore decorates store so every Commit is counted and timed.
func InstrumentStore(store repository.AccountStore) repository.AccountStore {
	return &instrumentedStore{AccountStore: store}
}

func (s *instrumentedStore) Commit(ctx context.Context, writes ...repository.Write) error {
	start := time.Now()
	err := s.AccountStore.Commit(ctx, writes...)
	ObserveCommit(string(domain.KindOf(err)), err, time.Since(start))
	return err
}

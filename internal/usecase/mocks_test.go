// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/pda"
	"subs3-ledger/internal/domain/ports/adapter"
	"subs3-ledger/internal/domain/ports/repository"
	"subs3-ledger/internal/infra/clock"
	"subs3-ledger/internal/infra/db/memory"
	"subs3-ledger/internal/infra/events"
	"subs3-ledger/internal/infra/token"
	"subs3-ledger/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// --- Mock AccountStore ---

// MockStore delegates to an in-memory store unless a Func override is set.
type MockStore struct {
	Inner      *memory.AccountStore
	GetFunc    func(ctx context.Context, addr model.Address) (*repository.Record, error)
	CommitFunc func(ctx context.Context, writes ...repository.Write) error
}

func NewMockStore() *MockStore { return &MockStore{Inner: memory.NewAccountStore()} }

func (m *MockStore) Get(ctx context.Context, addr model.Address) (*repository.Record, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, addr)
	}
	return m.Inner.Get(ctx, addr)
}

func (m *MockStore) List(ctx context.Context, kind model.AccountKind) ([]*repository.Record, error) {
	return m.Inner.List(ctx, kind)
}

func (m *MockStore) Commit(ctx context.Context, writes ...repository.Write) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx, writes...)
	}
	return m.Inner.Commit(ctx, writes...)
}

// --- Mock TokenTransfer ---

type MockTokens struct {
	TransferFunc func(ctx context.Context, req adapter.TransferRequest) error
	Requests     []adapter.TransferRequest
}

func (m *MockTokens) Transfer(ctx context.Context, req adapter.TransferRequest) error {
	m.Requests = append(m.Requests, req)
	if m.TransferFunc != nil {
		return m.TransferFunc(ctx, req)
	}
	return nil
}

func (m *MockTokens) BalanceOf(ctx context.Context, account model.Address) (uint64, error) {
	return 0, nil
}

// --- Mock Clock ---

type MockClock struct {
	NowFunc func(ctx context.Context) (int64, error)
}

func (m *MockClock) Now(ctx context.Context) (int64, error) { return m.NowFunc(ctx) }

// --- Fixture ---

const (
	startTime = int64(1_700_000_000)
	month     = int64(2_592_000)
	price     = uint64(1_000_000)
)

func addr(b byte) model.Address {
	var a model.Address
	a[0] = b
	a[31] = 0x5a
	return a
}

var (
	programID  = addr(0xF0)
	authority  = addr(0x01)
	provider   = addr(0x02)
	subscriber = addr(0x03)
	mint       = addr(0x04)
)

// env wires the billing engine to in-memory collaborators with a manual clock.
type env struct {
	uc      *usecase.BillingUseCase
	store   *MockStore
	bank    *token.Bank
	clock   *clock.Manual
	events  *events.Recorder
	deriver *pda.Deriver
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:   NewMockStore(),
		bank:    token.NewBank(newTestLogger()),
		clock:   clock.NewManual(startTime),
		events:  &events.Recorder{},
		deriver: pda.NewDeriver(programID),
	}
	e.uc = usecase.NewBillingUseCase(e.store, memory.NewLocker(), e.bank, e.events, e.clock, e.deriver, time.Minute, newTestLogger())
	return e
}

func basicTerms() model.PlanTerms {
	return model.PlanTerms{
		PlanID:                "basic",
		Name:                  "Basic",
		Description:           "Monthly access",
		PricePerPeriod:        price,
		PeriodDurationSeconds: month,
		PaymentTokenMint:      mint,
	}
}

// initialized returns an env with the manager created.
func initialized(t *testing.T) *env {
	t.Helper()
	e := newEnv(t)
	if _, err := e.uc.Initialize(context.Background(), authority); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return e
}

// withPlan returns an initialized env with the basic plan created by provider.
func withPlan(t *testing.T) (*env, model.Address) {
	t.Helper()
	e := initialized(t)
	res, err := e.uc.CreatePlan(context.Background(), provider, basicTerms())
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return e, res.Plan
}

// funded opens a token account for owner and deposits amount into it.
func (e *env) funded(t *testing.T, owner model.Address, amount uint64) model.Address {
	t.Helper()
	acct, err := e.deriver.TokenAccountAddress(owner, mint)
	if err != nil {
		t.Fatalf("token account: %v", err)
	}
	if err := e.bank.OpenAccount(acct, owner, mint); err != nil {
		t.Fatalf("open account: %v", err)
	}
	if amount > 0 {
		if err := e.bank.Deposit(acct, amount); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	return acct
}

func (e *env) manager(t *testing.T) *model.Manager {
	t.Helper()
	m, err := e.uc.GetManager(context.Background())
	if err != nil {
		t.Fatalf("get manager: %v", err)
	}
	return m
}

func (e *env) plan(t *testing.T, a model.Address) *model.SubscriptionPlan {
	t.Helper()
	p, err := e.uc.GetPlan(context.Background(), a)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	return p
}

func (e *env) subscription(t *testing.T, a model.Address) *model.Subscription {
	t.Helper()
	s, err := e.uc.GetSubscription(context.Background(), a)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	return s
}

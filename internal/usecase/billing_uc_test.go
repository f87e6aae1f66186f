//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/ports/adapter"
	"subs3-ledger/internal/domain/ports/repository"
	"subs3-ledger/internal/infra/db/memory"
	"subs3-ledger/internal/usecase"
)

func TestBillingUseCase_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("should create the manager with zeroed counters", func(t *testing.T) {
		e := newEnv(t)
		addr, err := e.uc.Initialize(ctx, authority)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		want, _, _ := e.deriver.ManagerAddress()
		if addr != want {
			t.Errorf("expected manager at %s, got %s", want, addr)
		}
		m := e.manager(t)
		if m.Authority != authority || m.TotalProviders != 0 || m.TotalSubscriptions != 0 {
			t.Errorf("unexpected manager %+v", m)
		}
		ok, err := e.uc.IsManagerInitialized(ctx)
		if err != nil || !ok {
			t.Errorf("expected initialized manager, got %v (%v)", ok, err)
		}
	})

	t.Run("should reject a second initialize", func(t *testing.T) {
		e := initialized(t)
		_, err := e.uc.Initialize(ctx, provider)
		if !errors.Is(err, domain.ErrAccountAlreadyExists) {
			t.Fatalf("expected ErrAccountAlreadyExists, got %v", err)
		}
		if e.manager(t).Authority != authority {
			t.Error("expected the original authority to be kept")
		}
	})

	t.Run("should reject the default address as authority", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.uc.Initialize(ctx, model.DefaultAddress)
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		ok, _ := e.uc.IsManagerInitialized(ctx)
		if ok {
			t.Error("expected manager to stay uninitialized")
		}
	})
}

func TestBillingUseCase_CreatePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("should create plan and vault and count the plan on the manager", func(t *testing.T) {
		e := initialized(t)
		res, err := e.uc.CreatePlan(ctx, provider, basicTerms())
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		wantPlan, _ := e.uc.GetPlanAddress(provider, "basic")
		if res.Plan != wantPlan {
			t.Errorf("expected plan at %s, got %s", wantPlan, res.Plan)
		}
		p := e.plan(t, res.Plan)
		if !p.IsActive || p.CurrentSubscribers != 0 || p.TotalRevenue != 0 || p.CreatedAt != startTime {
			t.Errorf("unexpected plan state %+v", p)
		}
		rec, err := e.store.Get(ctx, res.Vault)
		if err != nil {
			t.Fatalf("expected vault account, got %v", err)
		}
		vault, err := model.As[*model.ProviderVault](rec.Account)
		if err != nil || vault.Plan != res.Plan || vault.Provider != provider {
			t.Errorf("unexpected vault %+v (%v)", vault, err)
		}
		if got := e.manager(t).TotalProviders; got != 1 {
			t.Errorf("expected totalProviders 1, got %d", got)
		}
		if n := len(e.events.OfType(model.EventPlanCreated)); n != 1 {
			t.Errorf("expected 1 plan_created event, got %d", n)
		}
	})

	t.Run("should count every plan, not distinct providers", func(t *testing.T) {
		e, _ := withPlan(t)
		terms := basicTerms()
		terms.PlanID = "pro"
		if _, err := e.uc.CreatePlan(ctx, provider, terms); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got := e.manager(t).TotalProviders; got != 2 {
			t.Errorf("expected totalProviders 2, got %d", got)
		}
	})

	t.Run("should reject a duplicate plan id for the same provider", func(t *testing.T) {
		e, _ := withPlan(t)
		_, err := e.uc.CreatePlan(ctx, provider, basicTerms())
		if !errors.Is(err, domain.ErrAccountAlreadyExists) {
			t.Fatalf("expected ErrAccountAlreadyExists, got %v", err)
		}
		if got := e.manager(t).TotalProviders; got != 1 {
			t.Errorf("expected totalProviders to stay 1, got %d", got)
		}
	})

	t.Run("should reject a 33 byte plan id before touching any account", func(t *testing.T) {
		e := initialized(t)
		terms := basicTerms()
		terms.PlanID = strings.Repeat("x", 33)
		_, err := e.uc.CreatePlan(ctx, provider, terms)
		if !errors.Is(err, domain.ErrPlanIdTooLong) {
			t.Fatalf("expected ErrPlanIdTooLong, got %v", err)
		}
		if got := e.manager(t).TotalProviders; got != 0 {
			t.Errorf("expected totalProviders 0, got %d", got)
		}
		plans, _ := e.store.List(ctx, model.KindPlan)
		vaults, _ := e.store.List(ctx, model.KindVault)
		if len(plans)+len(vaults) != 0 {
			t.Errorf("expected no accounts, got %d plans and %d vaults", len(plans), len(vaults))
		}
	})

	t.Run("should reject invalid terms", func(t *testing.T) {
		e := initialized(t)
		cases := []struct {
			name   string
			mutate func(*model.PlanTerms)
			want   error
		}{
			{"zero price", func(p *model.PlanTerms) { p.PricePerPeriod = 0 }, domain.ErrInvalidPrice},
			{"short period", func(p *model.PlanTerms) { p.PeriodDurationSeconds = 59 }, domain.ErrInvalidPeriodDuration},
			{"long period", func(p *model.PlanTerms) { p.PeriodDurationSeconds = model.MaxPeriodDurationSeconds + 1 }, domain.ErrInvalidPeriodDuration},
			{"blank name", func(p *model.PlanTerms) { p.Name = "  " }, domain.ErrInvalidName},
			{"empty plan id", func(p *model.PlanTerms) { p.PlanID = "" }, domain.ErrInvalidPlanId},
		}
		for _, tc := range cases {
			terms := basicTerms()
			tc.mutate(&terms)
			if _, err := e.uc.CreatePlan(ctx, provider, terms); !errors.Is(err, tc.want) {
				t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
			}
		}
		if got := e.manager(t).TotalProviders; got != 0 {
			t.Errorf("expected totalProviders 0, got %d", got)
		}
	})

	t.Run("should fail when the manager does not exist", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.uc.CreatePlan(ctx, provider, basicTerms())
		if !errors.Is(err, domain.ErrManagerUninitiated) {
			t.Fatalf("expected ErrManagerUninitiated, got %v", err)
		}
		if domain.KindOf(err) != domain.KindNotFound {
			t.Errorf("expected not_found kind, got %s", domain.KindOf(err))
		}
	})
}

func TestBillingUseCase_Subscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("should create the subscription and bump plan and manager counters", func(t *testing.T) {
		e, plan := withPlan(t)
		res, err := e.uc.Subscribe(ctx, subscriber, plan)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.StartTime != startTime || res.NextPaymentDue != startTime+month {
			t.Errorf("unexpected schedule %+v", res)
		}
		s := e.subscription(t, res.Subscription)
		if !s.IsActive || s.IsPaused || s.PaymentNonce != 0 || s.TotalPaymentsMade != 0 {
			t.Errorf("unexpected subscription state %+v", s)
		}
		if got := e.plan(t, plan).CurrentSubscribers; got != 1 {
			t.Errorf("expected 1 subscriber, got %d", got)
		}
		if got := e.manager(t).TotalSubscriptions; got != 1 {
			t.Errorf("expected totalSubscriptions 1, got %d", got)
		}
	})

	t.Run("should never let a provider subscribe to its own plan", func(t *testing.T) {
		e, plan := withPlan(t)
		terms := basicTerms()
		terms.PlanID = "pro"
		other, err := e.uc.CreatePlan(ctx, provider, terms)
		if err != nil {
			t.Fatalf("create plan: %v", err)
		}
		for _, p := range []model.Address{plan, other.Plan} {
			if _, err := e.uc.Subscribe(ctx, provider, p); !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
		}
		if got := e.manager(t).TotalSubscriptions; got != 0 {
			t.Errorf("expected totalSubscriptions 0, got %d", got)
		}
	})

	t.Run("should reject a second subscribe by the same subscriber", func(t *testing.T) {
		e, plan := withPlan(t)
		if _, err := e.uc.Subscribe(ctx, subscriber, plan); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		_, err := e.uc.Subscribe(ctx, subscriber, plan)
		if !errors.Is(err, domain.ErrAccountAlreadyExists) {
			t.Fatalf("expected ErrAccountAlreadyExists, got %v", err)
		}
		if got := e.plan(t, plan).CurrentSubscribers; got != 1 {
			t.Errorf("expected 1 subscriber, got %d", got)
		}
	})

	t.Run("should admit exactly maxSubscribers", func(t *testing.T) {
		e := initialized(t)
		limit := uint32(3)
		terms := basicTerms()
		terms.MaxSubscribers = &limit
		res, err := e.uc.CreatePlan(ctx, provider, terms)
		if err != nil {
			t.Fatalf("create plan: %v", err)
		}
		var ok, full int
		for i := byte(0); i < 5; i++ {
			_, err := e.uc.Subscribe(ctx, addr(0x40+i), res.Plan)
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrPlanFull):
				full++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 3 || full != 2 {
			t.Errorf("expected 3 admitted and 2 full, got %d and %d", ok, full)
		}
		if got := e.manager(t).TotalSubscriptions; got != 3 {
			t.Errorf("expected totalSubscriptions 3, got %d", got)
		}
	})

	t.Run("should respect the cap under concurrent subscribers", func(t *testing.T) {
		e := initialized(t)
		limit := uint32(2)
		terms := basicTerms()
		terms.MaxSubscribers = &limit
		res, err := e.uc.CreatePlan(ctx, provider, terms)
		if err != nil {
			t.Fatalf("create plan: %v", err)
		}
		var g errgroup.Group
		var admitted atomic.Int32
		for i := byte(0); i < 16; i++ {
			sub := addr(0x60 + i)
			g.Go(func() error {
				for {
					_, err := e.uc.Subscribe(ctx, sub, res.Plan)
					switch {
					case err == nil:
						admitted.Add(1)
						return nil
					case domain.IsRetryable(err):
						continue
					case errors.Is(err, domain.ErrPlanFull):
						return nil
					default:
						return err
					}
				}
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if admitted.Load() != 2 {
			t.Errorf("expected 2 admitted, got %d", admitted.Load())
		}
		if got := e.plan(t, res.Plan).CurrentSubscribers; got != 2 {
			t.Errorf("expected 2 subscribers recorded, got %d", got)
		}
	})

	t.Run("should reject subscribing to an inactive plan", func(t *testing.T) {
		e, plan := withPlan(t)
		if err := e.uc.SetPlanActive(ctx, provider, plan, false); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
		if _, err := e.uc.Subscribe(ctx, subscriber, plan); !errors.Is(err, domain.ErrPlanInactive) {
			t.Fatalf("expected ErrPlanInactive, got %v", err)
		}
	})

	t.Run("should not confuse a vault with a plan", func(t *testing.T) {
		e := initialized(t)
		res, err := e.uc.CreatePlan(ctx, provider, basicTerms())
		if err != nil {
			t.Fatalf("create plan: %v", err)
		}
		if _, err := e.uc.Subscribe(ctx, subscriber, res.Vault); !errors.Is(err, domain.ErrAccountKindMismatch) {
			t.Fatalf("expected ErrAccountKindMismatch, got %v", err)
		}
	})

	t.Run("should leave nothing behind when the commit fails", func(t *testing.T) {
		e, plan := withPlan(t)
		e.store.CommitFunc = func(ctx context.Context, writes ...repository.Write) error {
			return domain.ErrConflict
		}
		if _, err := e.uc.Subscribe(ctx, subscriber, plan); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		e.store.CommitFunc = nil
		if got := e.manager(t).TotalSubscriptions; got != 0 {
			t.Errorf("expected totalSubscriptions 0, got %d", got)
		}
		subs, _ := e.store.List(ctx, model.KindSubscription)
		if len(subs) != 0 {
			t.Errorf("expected no subscriptions, got %d", len(subs))
		}
	})
}

func TestBillingUseCase_ProcessPayment(t *testing.T) {
	ctx := context.Background()

	subscribed := func(t *testing.T, balance uint64) (*env, model.Address, model.Address, model.Address) {
		t.Helper()
		e, plan := withPlan(t)
		res, err := e.uc.Subscribe(ctx, subscriber, plan)
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		return e, plan, res.Subscription, e.funded(t, subscriber, balance)
	}

	t.Run("should charge once the period has elapsed and not before", func(t *testing.T) {
		e, plan, sub, funding := subscribed(t, 5*price)

		_, err := e.uc.ProcessPayment(ctx, subscriber, sub, funding)
		if !errors.Is(err, domain.ErrPaymentNotDue) {
			t.Fatalf("expected ErrPaymentNotDue, got %v", err)
		}

		e.clock.Advance(month)
		res, err := e.uc.ProcessPayment(ctx, subscriber, sub, funding)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Amount != price || res.PaymentNumber != 1 || res.NextPaymentDue != startTime+2*month {
			t.Errorf("unexpected result %+v", res)
		}
		s := e.subscription(t, sub)
		if s.TotalAmountPaid != price || s.TotalPaymentsMade != 1 || s.PaymentNonce != 1 {
			t.Errorf("unexpected subscription %+v", s)
		}
		if s.NextPaymentDue != s.StartTime+2*month {
			t.Errorf("expected next due %d, got %d", s.StartTime+2*month, s.NextPaymentDue)
		}
		if got := e.plan(t, plan).TotalRevenue; got != price {
			t.Errorf("expected revenue %d, got %d", price, got)
		}
		vault, _, _ := e.deriver.VaultAddress(provider, "basic")
		if bal, _ := e.bank.BalanceOf(ctx, vault); bal != price {
			t.Errorf("expected vault balance %d, got %d", price, bal)
		}
		if bal, _ := e.bank.BalanceOf(ctx, funding); bal != 4*price {
			t.Errorf("expected funding balance %d, got %d", 4*price, bal)
		}
		if n := len(e.events.OfType(model.EventPaymentProcessed)); n != 1 {
			t.Errorf("expected 1 payment_processed event, got %d", n)
		}
	})

	t.Run("should advance the schedule from the due date, not from now", func(t *testing.T) {
		e, _, sub, funding := subscribed(t, 10*price)
		due0 := e.subscription(t, sub).NextPaymentDue

		e.clock.Advance(10*month + 12345)
		const n = 5
		for i := 0; i < n; i++ {
			if _, err := e.uc.ProcessPayment(ctx, subscriber, sub, funding); err != nil {
				t.Fatalf("payment %d: %v", i+1, err)
			}
		}
		s := e.subscription(t, sub)
		if s.NextPaymentDue != due0+n*month {
			t.Errorf("expected next due %d, got %d", due0+n*month, s.NextPaymentDue)
		}
		if s.PaymentNonce != n {
			t.Errorf("expected nonce %d, got %d", n, s.PaymentNonce)
		}
	})

	t.Run("should only let the subscriber pay", func(t *testing.T) {
		e, _, sub, funding := subscribed(t, price)
		e.clock.Advance(month)
		if _, err := e.uc.ProcessPayment(ctx, provider, sub, funding); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("should leave every counter untouched when funds are short", func(t *testing.T) {
		e, plan, sub, funding := subscribed(t, price-1)
		e.clock.Advance(month)
		_, err := e.uc.ProcessPayment(ctx, subscriber, sub, funding)
		if !errors.Is(err, domain.ErrTransferFailed) || !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected transfer failure for insufficient funds, got %v", err)
		}
		s := e.subscription(t, sub)
		if s.TotalPaymentsMade != 0 || s.TotalAmountPaid != 0 || s.PaymentNonce != 0 || s.NextPaymentDue != startTime+month {
			t.Errorf("expected untouched subscription, got %+v", s)
		}
		if got := e.plan(t, plan).TotalRevenue; got != 0 {
			t.Errorf("expected revenue 0, got %d", got)
		}
	})

	t.Run("should classify a bank rejection as external", func(t *testing.T) {
		e, _, sub, _ := subscribed(t, price)
		e.clock.Advance(month)
		_, err := e.uc.ProcessPayment(ctx, subscriber, sub, addr(0x98))
		if !errors.Is(err, domain.ErrTransferFailed) || !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected transfer failure for an unknown funding account, got %v", err)
		}
		if got := domain.KindOf(err); got != domain.KindExternal {
			t.Errorf("expected external kind, got %s", got)
		}
		if got := e.subscription(t, sub).PaymentNonce; got != 0 {
			t.Errorf("expected nonce 0, got %d", got)
		}
	})

	t.Run("should surface an ambiguous transfer outcome without persisting", func(t *testing.T) {
		e, _, sub, _ := subscribed(t, 0)
		tokens := &MockTokens{TransferFunc: func(ctx context.Context, req adapter.TransferRequest) error {
			return context.DeadlineExceeded
		}}
		uc := usecase.NewBillingUseCase(e.store, memory.NewLocker(), tokens, e.events, e.clock, e.deriver, time.Minute, newTestLogger())
		e.clock.Advance(month)
		_, err := uc.ProcessPayment(ctx, subscriber, sub, addr(0x99))
		if !errors.Is(err, domain.ErrTransferFailed) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected wrapped timeout, got %v", err)
		}
		if len(tokens.Requests) != 1 {
			t.Errorf("expected a single transfer attempt, got %d", len(tokens.Requests))
		}
		if got := e.subscription(t, sub).PaymentNonce; got != 0 {
			t.Errorf("expected nonce 0, got %d", got)
		}
	})

	t.Run("should reference each transfer by subscription and nonce", func(t *testing.T) {
		e, _, sub, _ := subscribed(t, 0)
		tokens := &MockTokens{}
		uc := usecase.NewBillingUseCase(e.store, memory.NewLocker(), tokens, e.events, e.clock, e.deriver, time.Minute, newTestLogger())
		e.clock.Advance(month)
		if _, err := uc.ProcessPayment(ctx, subscriber, sub, addr(0x99)); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		vault, _, _ := e.deriver.VaultAddress(provider, "basic")
		req := tokens.Requests[0]
		if req.Reference != sub.String()+":1" {
			t.Errorf("unexpected reference %q", req.Reference)
		}
		if req.To != vault || req.Authority != subscriber || req.Mint != mint || req.Amount != price {
			t.Errorf("unexpected request %+v", req)
		}
	})

	t.Run("should reject paused and cancelled subscriptions", func(t *testing.T) {
		e, _, sub, funding := subscribed(t, price)
		e.clock.Advance(month)
		if err := e.uc.PauseSubscription(ctx, subscriber, sub); err != nil {
			t.Fatalf("pause: %v", err)
		}
		if _, err := e.uc.ProcessPayment(ctx, subscriber, sub, funding); !errors.Is(err, domain.ErrSubscriptionPaused) {
			t.Errorf("expected ErrSubscriptionPaused, got %v", err)
		}
		if err := e.uc.CancelSubscription(ctx, subscriber, sub); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if _, err := e.uc.ProcessPayment(ctx, subscriber, sub, funding); !errors.Is(err, domain.ErrSubscriptionInactive) {
			t.Errorf("expected ErrSubscriptionInactive, got %v", err)
		}
	})

	t.Run("should reject payments into an inactive plan", func(t *testing.T) {
		e, plan, sub, funding := subscribed(t, price)
		if err := e.uc.SetPlanActive(ctx, provider, plan, false); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
		e.clock.Advance(month)
		if _, err := e.uc.ProcessPayment(ctx, subscriber, sub, funding); !errors.Is(err, domain.ErrPlanInactive) {
			t.Fatalf("expected ErrPlanInactive, got %v", err)
		}
	})

	t.Run("should let exactly one of two concurrent payments through", func(t *testing.T) {
		e, _, sub, funding := subscribed(t, 10*price)
		e.clock.Advance(month)

		var g errgroup.Group
		var ok, rejected atomic.Int32
		for i := 0; i < 2; i++ {
			g.Go(func() error {
				_, err := e.uc.ProcessPayment(ctx, subscriber, sub, funding)
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrPaymentNotDue):
					rejected.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok.Load() != 1 || rejected.Load() != 1 {
			t.Errorf("expected 1 success and 1 rejection, got %d and %d", ok.Load(), rejected.Load())
		}
		if bal, _ := e.bank.BalanceOf(ctx, funding); bal != 9*price {
			t.Errorf("expected a single debit, balance is %d", bal)
		}
		if got := e.subscription(t, sub).NextPaymentDue; got != startTime+2*month {
			t.Errorf("expected next due advanced once, got %d", got)
		}
	})

	t.Run("should reapply revenue when the plan moved during settlement", func(t *testing.T) {
		e, plan, sub, funding := subscribed(t, price)
		e.clock.Advance(month)

		var raced atomic.Bool
		e.store.CommitFunc = func(ctx context.Context, writes ...repository.Write) error {
			if len(writes) == 2 && raced.CompareAndSwap(false, true) {
				rec, err := e.store.Inner.Get(ctx, plan)
				if err != nil {
					return err
				}
				p, _ := model.As[*model.SubscriptionPlan](rec.Account)
				bumped, _ := p.WithRevenue(7)
				if err := e.store.Inner.Commit(ctx, repository.Update(rec, bumped)); err != nil {
					return err
				}
			}
			return e.store.Inner.Commit(ctx, writes...)
		}

		if _, err := e.uc.ProcessPayment(ctx, subscriber, sub, funding); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got := e.plan(t, plan).TotalRevenue; got != price+7 {
			t.Errorf("expected revenue %d, got %d", price+7, got)
		}
		if got := e.subscription(t, sub).TotalPaymentsMade; got != 1 {
			t.Errorf("expected 1 payment, got %d", got)
		}
	})

	t.Run("should not charge twice when a lost commit is replayed", func(t *testing.T) {
		e, _, sub, funding := subscribed(t, 3*price)
		e.clock.Advance(month)

		e.store.CommitFunc = func(ctx context.Context, writes ...repository.Write) error {
			return fmt.Errorf("%w: connection reset", domain.ErrOperationFailed)
		}
		if _, err := e.uc.ProcessPayment(ctx, subscriber, sub, funding); !errors.Is(err, domain.ErrOperationFailed) {
			t.Fatalf("expected ErrOperationFailed, got %v", err)
		}
		e.store.CommitFunc = nil

		res, err := e.uc.ProcessPayment(ctx, subscriber, sub, funding)
		if err != nil {
			t.Fatalf("expected replay to succeed, got %v", err)
		}
		if res.PaymentNumber != 1 {
			t.Errorf("expected payment number 1, got %d", res.PaymentNumber)
		}
		if bal, _ := e.bank.BalanceOf(ctx, funding); bal != 2*price {
			t.Errorf("expected a single debit, balance is %d", bal)
		}
	})

	t.Run("should fail when the trusted clock is unavailable", func(t *testing.T) {
		e, _, sub, funding := subscribed(t, price)
		clk := &MockClock{NowFunc: func(ctx context.Context) (int64, error) {
			return 0, errors.New("ntp unreachable")
		}}
		uc := usecase.NewBillingUseCase(e.store, memory.NewLocker(), e.bank, e.events, clk, e.deriver, time.Minute, newTestLogger())
		_, err := uc.ProcessPayment(ctx, subscriber, sub, funding)
		if !errors.Is(err, domain.ErrClockUnavailable) {
			t.Fatalf("expected ErrClockUnavailable, got %v", err)
		}
		if domain.KindOf(err) != domain.KindExternal {
			t.Errorf("expected external kind, got %s", domain.KindOf(err))
		}
	})
}

func TestBillingUseCase_Scenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	if _, err := e.uc.Initialize(ctx, authority); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	plan, err := e.uc.CreatePlan(ctx, provider, model.PlanTerms{
		PlanID:                "basic",
		Name:                  "Basic",
		Description:           "Basic tier",
		PricePerPeriod:        1_000_000,
		PeriodDurationSeconds: 2_592_000,
		PaymentTokenMint:      mint,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	sub, err := e.uc.Subscribe(ctx, subscriber, plan.Plan)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	funding := e.funded(t, subscriber, 1_000_000)

	if _, err := e.uc.ProcessPayment(ctx, subscriber, sub.Subscription, funding); !errors.Is(err, domain.ErrPaymentNotDue) {
		t.Fatalf("expected ErrPaymentNotDue, got %v", err)
	}
	e.clock.Advance(2_592_000)
	res, err := e.uc.ProcessPayment(ctx, subscriber, sub.Subscription, funding)
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	s := e.subscription(t, sub.Subscription)
	if res.PaymentNumber != 1 || s.TotalAmountPaid != 1_000_000 {
		t.Errorf("unexpected payment %+v, subscription %+v", res, s)
	}
	if res.NextPaymentDue != sub.StartTime+2*2_592_000 {
		t.Errorf("expected next due %d, got %d", sub.StartTime+2*2_592_000, res.NextPaymentDue)
	}
}

func TestBillingUseCase_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("should shift the due date by the paused span on resume", func(t *testing.T) {
		e, plan := withPlan(t)
		res, err := e.uc.Subscribe(ctx, subscriber, plan)
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		e.clock.Advance(1000)
		if err := e.uc.PauseSubscription(ctx, subscriber, res.Subscription); err != nil {
			t.Fatalf("pause: %v", err)
		}
		if err := e.uc.PauseSubscription(ctx, subscriber, res.Subscription); !errors.Is(err, domain.ErrSubscriptionPaused) {
			t.Errorf("expected ErrSubscriptionPaused on double pause, got %v", err)
		}
		e.clock.Advance(5000)
		if err := e.uc.ResumeSubscription(ctx, subscriber, res.Subscription); err != nil {
			t.Fatalf("resume: %v", err)
		}
		s := e.subscription(t, res.Subscription)
		if s.IsPaused || s.PausedAt != nil {
			t.Errorf("expected resumed subscription, got %+v", s)
		}
		if s.NextPaymentDue != res.NextPaymentDue+5000 {
			t.Errorf("expected next due %d, got %d", res.NextPaymentDue+5000, s.NextPaymentDue)
		}
		if err := e.uc.ResumeSubscription(ctx, subscriber, res.Subscription); !errors.Is(err, domain.ErrSubscriptionNotPaused) {
			t.Errorf("expected ErrSubscriptionNotPaused, got %v", err)
		}
	})

	t.Run("should only let the subscriber change the subscription", func(t *testing.T) {
		e, plan := withPlan(t)
		res, err := e.uc.Subscribe(ctx, subscriber, plan)
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if err := e.uc.PauseSubscription(ctx, provider, res.Subscription); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized on pause, got %v", err)
		}
		if err := e.uc.CancelSubscription(ctx, provider, res.Subscription); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized on cancel, got %v", err)
		}
	})

	t.Run("should free the seat on cancel and keep the address taken", func(t *testing.T) {
		e, plan := withPlan(t)
		res, err := e.uc.Subscribe(ctx, subscriber, plan)
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		e.clock.Advance(42)
		if err := e.uc.CancelSubscription(ctx, subscriber, res.Subscription); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		s := e.subscription(t, res.Subscription)
		if s.IsActive || s.CancelledAt == nil || *s.CancelledAt != startTime+42 {
			t.Errorf("unexpected cancelled subscription %+v", s)
		}
		if got := e.plan(t, plan).CurrentSubscribers; got != 0 {
			t.Errorf("expected 0 subscribers, got %d", got)
		}
		if got := e.manager(t).TotalSubscriptions; got != 1 {
			t.Errorf("expected totalSubscriptions to stay 1, got %d", got)
		}
		if err := e.uc.CancelSubscription(ctx, subscriber, res.Subscription); !errors.Is(err, domain.ErrSubscriptionInactive) {
			t.Errorf("expected ErrSubscriptionInactive, got %v", err)
		}
		if _, err := e.uc.Subscribe(ctx, subscriber, plan); !errors.Is(err, domain.ErrAccountAlreadyExists) {
			t.Errorf("expected ErrAccountAlreadyExists on resubscribe, got %v", err)
		}
	})

	t.Run("should fail fast while another transition holds the subscription", func(t *testing.T) {
		e, plan := withPlan(t)
		res, err := e.uc.Subscribe(ctx, subscriber, plan)
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		locker := memory.NewLocker()
		if _, err := locker.TryLock(ctx, "subscription:"+res.Subscription.String(), time.Minute); err != nil {
			t.Fatalf("lock: %v", err)
		}
		uc := usecase.NewBillingUseCase(e.store, locker, e.bank, e.events, e.clock, e.deriver, time.Minute, newTestLogger())
		err = uc.PauseSubscription(ctx, subscriber, res.Subscription)
		if !errors.Is(err, domain.ErrConflict) || !domain.IsRetryable(err) {
			t.Fatalf("expected retryable ErrConflict, got %v", err)
		}
	})
}

func TestBillingUseCase_WithdrawFunds(t *testing.T) {
	ctx := context.Background()

	paid := func(t *testing.T) (*env, model.Address) {
		t.Helper()
		e, plan := withPlan(t)
		res, err := e.uc.Subscribe(ctx, subscriber, plan)
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		funding := e.funded(t, subscriber, price)
		e.clock.Advance(month)
		if _, err := e.uc.ProcessPayment(ctx, subscriber, res.Subscription, funding); err != nil {
			t.Fatalf("pay: %v", err)
		}
		return e, plan
	}

	t.Run("should move vault funds to the provider", func(t *testing.T) {
		e, plan := paid(t)
		dest := e.funded(t, provider, 0)
		if err := e.uc.WithdrawFunds(ctx, provider, plan, dest, price/2); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if bal, _ := e.bank.BalanceOf(ctx, dest); bal != price/2 {
			t.Errorf("expected provider balance %d, got %d", price/2, bal)
		}
		vault, _, _ := e.deriver.VaultAddress(provider, "basic")
		if bal, _ := e.bank.BalanceOf(ctx, vault); bal != price-price/2 {
			t.Errorf("expected vault balance %d, got %d", price-price/2, bal)
		}
		if n := len(e.events.OfType(model.EventFundsWithdrawn)); n != 1 {
			t.Errorf("expected 1 funds_withdrawn event, got %d", n)
		}
	})

	t.Run("should reject withdrawals by anyone but the provider", func(t *testing.T) {
		e, plan := paid(t)
		dest := e.funded(t, subscriber, 0)
		if err := e.uc.WithdrawFunds(ctx, subscriber, plan, dest, 1); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("should reject zero and overdrawn amounts", func(t *testing.T) {
		e, plan := paid(t)
		dest := e.funded(t, provider, 0)
		if err := e.uc.WithdrawFunds(ctx, provider, plan, dest, 0); !errors.Is(err, domain.ErrInvalidWithdrawalAmount) {
			t.Errorf("expected ErrInvalidWithdrawalAmount, got %v", err)
		}
		if err := e.uc.WithdrawFunds(ctx, provider, plan, dest, price+1); !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Errorf("expected ErrInsufficientFunds, got %v", err)
		}
	})
}

func TestBillingUseCase_Queries(t *testing.T) {
	ctx := context.Background()

	t.Run("should derive the same plan address every time", func(t *testing.T) {
		e := newEnv(t)
		a1, err := e.uc.GetPlanAddress(provider, "basic")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		a2, _ := e.uc.GetPlanAddress(provider, "basic")
		b, _ := e.uc.GetPlanAddress(provider, "pro")
		c, _ := e.uc.GetPlanAddress(subscriber, "basic")
		if a1 != a2 {
			t.Error("expected a stable address")
		}
		if a1 == b || a1 == c {
			t.Error("expected distinct addresses for distinct inputs")
		}
		if _, err := e.uc.GetPlanAddress(provider, strings.Repeat("p", 33)); !errors.Is(err, domain.ErrPlanIdTooLong) {
			t.Errorf("expected ErrPlanIdTooLong, got %v", err)
		}
	})

	t.Run("should list plans, subscriptions and due payments", func(t *testing.T) {
		e, basic := withPlan(t)
		terms := basicTerms()
		terms.PlanID = "weekly"
		terms.PeriodDurationSeconds = 604_800
		e.clock.Advance(10)
		weekly, err := e.uc.CreatePlan(ctx, provider, terms)
		if err != nil {
			t.Fatalf("create plan: %v", err)
		}
		plans, err := e.uc.ListProviderPlans(ctx, provider)
		if err != nil || len(plans) != 2 {
			t.Fatalf("expected 2 plans, got %d (%v)", len(plans), err)
		}
		if plans[0].Address != weekly.Plan || plans[1].Address != basic {
			t.Error("expected newest plan first")
		}
		if others, _ := e.uc.ListProviderPlans(ctx, subscriber); len(others) != 0 {
			t.Errorf("expected no plans for subscriber, got %d", len(others))
		}

		for _, p := range []model.Address{basic, weekly.Plan} {
			if _, err := e.uc.Subscribe(ctx, subscriber, p); err != nil {
				t.Fatalf("subscribe: %v", err)
			}
		}
		subs, err := e.uc.ListSubscriberSubscriptions(ctx, subscriber)
		if err != nil || len(subs) != 2 {
			t.Fatalf("expected 2 subscriptions, got %d (%v)", len(subs), err)
		}

		due, _ := e.uc.ListDueSubscriptions(ctx)
		if len(due) != 0 {
			t.Errorf("expected nothing due yet, got %d", len(due))
		}
		e.clock.Advance(604_800)
		due, err = e.uc.ListDueSubscriptions(ctx)
		if err != nil || len(due) != 1 {
			t.Fatalf("expected 1 due subscription, got %d (%v)", len(due), err)
		}
		if due[0].SubscriptionPlan != weekly.Plan {
			t.Error("expected the weekly subscription to be due")
		}
	})

	t.Run("should report an uninitialized manager", func(t *testing.T) {
		e := newEnv(t)
		ok, err := e.uc.IsManagerInitialized(ctx)
		if err != nil || ok {
			t.Errorf("expected false, got %v (%v)", ok, err)
		}
		if _, err := e.uc.GetManager(ctx); !errors.Is(err, domain.ErrManagerUninitiated) {
			t.Errorf("expected ErrManagerUninitiated, got %v", err)
		}
	})
}

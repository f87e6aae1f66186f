// File: internal/usecase/billing_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/pda"
	"subs3-ledger/internal/domain/ports/adapter"
	"subs3-ledger/internal/domain/ports/repository"
	ucport "subs3-ledger/internal/domain/ports/usecase"
	"subs3-ledger/internal/infra/logging"
	"subs3-ledger/internal/infra/metrics"
)

// Compile-time check
var _ ucport.Billing = (*BillingUseCase)(nil)

// settleAttempts bounds how often a payment whose transfer already succeeded
// re-reads the plan to land its revenue after losing a CAS race on it.
const settleAttempts = 3

// BillingUseCase is the only writer of ledger accounts. Every transition reads
// the accounts it needs, computes the new records and lands them in a single
// Commit; the loser of a race on any touched address gets ErrConflict.
type BillingUseCase struct {
	store   repository.AccountStore
	locker  repository.Locker
	tokens  adapter.TokenTransfer
	events  adapter.EventPublisher
	clock   adapter.Clock
	pda     *pda.Deriver
	lockTTL time.Duration
	log     *zerolog.Logger
}

func NewBillingUseCase(
	store repository.AccountStore,
	locker repository.Locker,
	tokens adapter.TokenTransfer,
	events adapter.EventPublisher,
	clock adapter.Clock,
	deriver *pda.Deriver,
	lockTTL time.Duration,
	logger *zerolog.Logger,
) *BillingUseCase {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	l := logger.With().Str("component", "billing").Logger()
	return &BillingUseCase{
		store:   store,
		locker:  locker,
		tokens:  tokens,
		events:  events,
		clock:   clock,
		pda:     deriver,
		lockTTL: lockTTL,
		log:     &l,
	}
}

// Initialize creates the manager singleton with caller as its authority.
func (u *BillingUseCase) Initialize(ctx context.Context, caller model.Address) (addr model.Address, err error) {
	defer logging.TraceDuration(u.log, "BillingUC.Initialize")()
	defer func() { u.observe(ctx, "initialize", err) }()

	if caller.IsZero() {
		return model.DefaultAddress, errors.Join(domain.ErrUnauthorized, domain.ErrDefaultAuthority)
	}
	addr, bump, err := u.pda.ManagerAddress()
	if err != nil {
		return model.DefaultAddress, err
	}
	mgr, err := model.NewManager(caller, bump)
	if err != nil {
		return model.DefaultAddress, err
	}
	if err := u.store.Commit(ctx, repository.Create(addr, mgr)); err != nil {
		return model.DefaultAddress, err
	}
	return addr, nil
}

// CreatePlan validates the terms before any state is read, then creates the
// plan and its vault and counts the plan on the manager in one commit.
func (u *BillingUseCase) CreatePlan(ctx context.Context, provider model.Address, params ucport.CreatePlanParams) (res *ucport.CreatePlanResult, err error) {
	defer logging.TraceDuration(u.log, "BillingUC.CreatePlan")()
	defer func() { u.observe(ctx, "create_plan", err) }()

	if provider.IsZero() {
		return nil, errors.Join(domain.ErrUnauthorized, domain.ErrDefaultAuthority)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	planAddr, planBump, err := u.pda.PlanAddress(provider, params.PlanID)
	if err != nil {
		return nil, err
	}
	vaultAddr, vaultBump, err := u.pda.VaultAddress(provider, params.PlanID)
	if err != nil {
		return nil, err
	}

	mgrRec, mgr, err := u.loadManager(ctx)
	if err != nil {
		return nil, err
	}
	now, err := u.now(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := model.NewSubscriptionPlan(provider, params, now, planBump)
	if err != nil {
		return nil, err
	}
	vault := model.NewProviderVault(plan, planAddr, vaultBump)
	nextMgr, err := mgr.WithPlanCreated()
	if err != nil {
		return nil, err
	}

	if err := u.store.Commit(ctx,
		repository.Create(planAddr, plan),
		repository.Create(vaultAddr, vault),
		repository.Update(mgrRec, nextMgr),
	); err != nil {
		return nil, err
	}

	evt := model.NewEvent(model.EventPlanCreated, now)
	evt.Provider = model.Ref(provider)
	evt.Plan = model.Ref(planAddr)
	evt.PlanID = plan.PlanID
	evt.Amount = plan.PricePerPeriod
	u.publish(ctx, evt)

	return &ucport.CreatePlanResult{Plan: planAddr, Vault: vaultAddr}, nil
}

// Subscribe creates the subscriber's subscription to planAddr. The subscription
// address is unique per pair, so a second subscribe hits ErrAccountAlreadyExists.
func (u *BillingUseCase) Subscribe(ctx context.Context, subscriber, planAddr model.Address) (res *ucport.SubscribeResult, err error) {
	defer logging.TraceDuration(u.log, "BillingUC.Subscribe")()
	defer func() { u.observe(ctx, "subscribe", err) }()

	if subscriber.IsZero() {
		return nil, errors.Join(domain.ErrUnauthorized, domain.ErrDefaultAuthority)
	}
	planRec, plan, err := load[*model.SubscriptionPlan](ctx, u.store, planAddr)
	if err != nil {
		return nil, err
	}
	if subscriber == plan.Provider {
		return nil, fmt.Errorf("%w: provider cannot subscribe to its own plan", domain.ErrUnauthorized)
	}
	if !plan.IsActive {
		return nil, domain.ErrPlanInactive
	}
	if plan.IsFull() {
		return nil, domain.ErrPlanFull
	}
	subAddr, subBump, err := u.pda.SubscriptionAddress(subscriber, planAddr)
	if err != nil {
		return nil, err
	}
	mgrRec, mgr, err := u.loadManager(ctx)
	if err != nil {
		return nil, err
	}
	now, err := u.now(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := model.NewSubscription(subscriber, planAddr, plan, now, subBump)
	if err != nil {
		return nil, err
	}
	nextPlan, err := plan.WithSubscriberAdded()
	if err != nil {
		return nil, err
	}
	nextMgr, err := mgr.WithSubscriptionCreated()
	if err != nil {
		return nil, err
	}

	if err := u.store.Commit(ctx,
		repository.Create(subAddr, sub),
		repository.Update(planRec, nextPlan),
		repository.Update(mgrRec, nextMgr),
	); err != nil {
		return nil, err
	}

	evt := model.NewEvent(model.EventSubscriptionCreated, now)
	evt.Subscriber = model.Ref(subscriber)
	evt.Plan = model.Ref(planAddr)
	evt.Subscription = model.Ref(subAddr)
	evt.NextPaymentDue = sub.NextPaymentDue
	u.publish(ctx, evt)

	return &ucport.SubscribeResult{
		Subscription:   subAddr,
		StartTime:      sub.StartTime,
		NextPaymentDue: sub.NextPaymentDue,
	}, nil
}

// ProcessPayment charges one period. The transfer is confirmed before any
// accounting is persisted; its reference is derived from the payment nonce, so
// replaying a payment whose commit was lost never moves funds twice.
func (u *BillingUseCase) ProcessPayment(ctx context.Context, caller, subAddr, fundingSource model.Address) (res *ucport.PaymentResult, err error) {
	defer logging.TraceDuration(u.log, "BillingUC.ProcessPayment")()
	defer func() {
		u.observe(ctx, "process_payment", err)
		metrics.IncPayment(string(domain.KindOf(err)), err)
	}()

	err = u.withSubscriptionLock(ctx, subAddr, func() error {
		subRec, sub, err := load[*model.Subscription](ctx, u.store, subAddr)
		if err != nil {
			return err
		}
		if caller != sub.Subscriber {
			return fmt.Errorf("%w: only the subscriber can pay", domain.ErrUnauthorized)
		}
		now, err := u.now(ctx)
		if err != nil {
			return err
		}
		if err := sub.CheckPayable(now); err != nil {
			return err
		}
		planRec, plan, err := load[*model.SubscriptionPlan](ctx, u.store, sub.SubscriptionPlan)
		if err != nil {
			return err
		}
		if !plan.IsActive {
			return domain.ErrPlanInactive
		}
		vaultAddr, _, err := u.pda.VaultAddress(plan.Provider, plan.PlanID)
		if err != nil {
			return err
		}

		amount := plan.PricePerPeriod
		nextSub, err := sub.WithPayment(amount, plan.PeriodDurationSeconds)
		if err != nil {
			return err
		}
		nextPlan, err := plan.WithRevenue(amount)
		if err != nil {
			return err
		}

		req := adapter.TransferRequest{
			From:      fundingSource,
			To:        vaultAddr,
			ToOwner:   vaultAddr,
			Authority: sub.Subscriber,
			Mint:      plan.PaymentTokenMint,
			Amount:    amount,
			Reference: fmt.Sprintf("%s:%d", subAddr, nextSub.PaymentNonce),
		}
		if err := u.tokens.Transfer(ctx, req); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
		}

		if err := u.settlePayment(ctx, subRec, nextSub, planRec, nextPlan, amount); err != nil {
			u.log.Error().Err(err).
				Str("subscription", subAddr.String()).
				Str("reference", req.Reference).
				Msg("payment transferred but not recorded; retry replays the same reference")
			return err
		}
		metrics.AddPaymentRevenue(plan.PaymentTokenMint.String(), amount)

		evt := model.NewEvent(model.EventPaymentProcessed, now)
		evt.Subscriber = model.Ref(sub.Subscriber)
		evt.Plan = model.Ref(sub.SubscriptionPlan)
		evt.Subscription = model.Ref(subAddr)
		evt.Amount = amount
		evt.PaymentNumber = nextSub.TotalPaymentsMade
		evt.NextPaymentDue = nextSub.NextPaymentDue
		u.publish(ctx, evt)

		res = &ucport.PaymentResult{
			Amount:         amount,
			PaymentNumber:  nextSub.TotalPaymentsMade,
			NextPaymentDue: nextSub.NextPaymentDue,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// settlePayment commits the subscription and plan updates. The subscription is
// held under the payment lock, so only the plan can move underneath us; on a
// conflict the plan is re-read and the revenue reapplied.
func (u *BillingUseCase) settlePayment(
	ctx context.Context,
	subRec *repository.Record, nextSub *model.Subscription,
	planRec *repository.Record, nextPlan *model.SubscriptionPlan,
	amount uint64,
) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = u.store.Commit(ctx,
			repository.Update(subRec, nextSub),
			repository.Update(planRec, nextPlan),
		)
		if err == nil || !errors.Is(err, domain.ErrConflict) || attempt == settleAttempts {
			return err
		}

		cur, err := u.store.Get(ctx, subRec.Address)
		if err != nil {
			return err
		}
		if cur.Version != subRec.Version {
			return fmt.Errorf("%w: subscription changed during payment", domain.ErrConflict)
		}
		var plan *model.SubscriptionPlan
		planRec, plan, err = load[*model.SubscriptionPlan](ctx, u.store, planRec.Address)
		if err != nil {
			return err
		}
		if nextPlan, err = plan.WithRevenue(amount); err != nil {
			return err
		}
		u.log.Debug().Int("attempt", attempt).Str("plan", planRec.Address.String()).Msg("retrying payment settlement")
	}
}

func (u *BillingUseCase) PauseSubscription(ctx context.Context, caller, subAddr model.Address) (err error) {
	defer logging.TraceDuration(u.log, "BillingUC.PauseSubscription")()
	defer func() { u.observe(ctx, "pause_subscription", err) }()

	return u.withSubscriptionLock(ctx, subAddr, func() error {
		rec, sub, now, err := u.loadOwnSubscription(ctx, caller, subAddr)
		if err != nil {
			return err
		}
		next, err := sub.WithPaused(now)
		if err != nil {
			return err
		}
		if err := u.store.Commit(ctx, repository.Update(rec, next)); err != nil {
			return err
		}
		evt := model.NewEvent(model.EventSubscriptionPaused, now)
		evt.Subscriber = model.Ref(sub.Subscriber)
		evt.Plan = model.Ref(sub.SubscriptionPlan)
		evt.Subscription = model.Ref(subAddr)
		u.publish(ctx, evt)
		return nil
	})
}

// ResumeSubscription pushes the next due date back by the time spent paused.
func (u *BillingUseCase) ResumeSubscription(ctx context.Context, caller, subAddr model.Address) (err error) {
	defer logging.TraceDuration(u.log, "BillingUC.ResumeSubscription")()
	defer func() { u.observe(ctx, "resume_subscription", err) }()

	return u.withSubscriptionLock(ctx, subAddr, func() error {
		rec, sub, now, err := u.loadOwnSubscription(ctx, caller, subAddr)
		if err != nil {
			return err
		}
		next, err := sub.WithResumed(now)
		if err != nil {
			return err
		}
		if err := u.store.Commit(ctx, repository.Update(rec, next)); err != nil {
			return err
		}
		evt := model.NewEvent(model.EventSubscriptionResumed, now)
		evt.Subscriber = model.Ref(sub.Subscriber)
		evt.Plan = model.Ref(sub.SubscriptionPlan)
		evt.Subscription = model.Ref(subAddr)
		evt.NextPaymentDue = next.NextPaymentDue
		u.publish(ctx, evt)
		return nil
	})
}

// CancelSubscription deactivates the subscription and frees its seat on the plan.
func (u *BillingUseCase) CancelSubscription(ctx context.Context, caller, subAddr model.Address) (err error) {
	defer logging.TraceDuration(u.log, "BillingUC.CancelSubscription")()
	defer func() { u.observe(ctx, "cancel_subscription", err) }()

	return u.withSubscriptionLock(ctx, subAddr, func() error {
		rec, sub, now, err := u.loadOwnSubscription(ctx, caller, subAddr)
		if err != nil {
			return err
		}
		next, err := sub.WithCancelled(now)
		if err != nil {
			return err
		}
		planRec, plan, err := load[*model.SubscriptionPlan](ctx, u.store, sub.SubscriptionPlan)
		if err != nil {
			return err
		}
		if err := u.store.Commit(ctx,
			repository.Update(rec, next),
			repository.Update(planRec, plan.WithSubscriberRemoved()),
		); err != nil {
			return err
		}
		evt := model.NewEvent(model.EventSubscriptionCancelled, now)
		evt.Subscriber = model.Ref(sub.Subscriber)
		evt.Plan = model.Ref(sub.SubscriptionPlan)
		evt.Subscription = model.Ref(subAddr)
		u.publish(ctx, evt)
		return nil
	})
}

// WithdrawFunds moves amount from the plan's vault to a token account of the provider's choosing.
func (u *BillingUseCase) WithdrawFunds(ctx context.Context, provider, planAddr, destination model.Address, amount uint64) (err error) {
	defer logging.TraceDuration(u.log, "BillingUC.WithdrawFunds")()
	defer func() {
		u.observe(ctx, "withdraw_funds", err)
		metrics.IncWithdrawal(string(domain.KindOf(err)), err)
	}()

	if amount == 0 {
		return domain.ErrInvalidWithdrawalAmount
	}
	_, plan, err := load[*model.SubscriptionPlan](ctx, u.store, planAddr)
	if err != nil {
		return err
	}
	if provider != plan.Provider {
		return fmt.Errorf("%w: only the plan provider can withdraw", domain.ErrUnauthorized)
	}
	vaultAddr, _, err := u.pda.VaultAddress(plan.Provider, plan.PlanID)
	if err != nil {
		return err
	}
	if _, _, err := load[*model.ProviderVault](ctx, u.store, vaultAddr); err != nil {
		return err
	}
	now, err := u.now(ctx)
	if err != nil {
		return err
	}

	evt := model.NewEvent(model.EventFundsWithdrawn, now)
	req := adapter.TransferRequest{
		From:      vaultAddr,
		To:        destination,
		Authority: vaultAddr,
		Mint:      plan.PaymentTokenMint,
		Amount:    amount,
		Reference: "withdraw:" + evt.ID,
	}
	if err := u.tokens.Transfer(ctx, req); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
	}

	evt.Provider = model.Ref(provider)
	evt.Plan = model.Ref(planAddr)
	evt.PlanID = plan.PlanID
	evt.Amount = amount
	u.publish(ctx, evt)
	return nil
}

// SetPlanActive opens or closes a plan to new subscribers and payments.
func (u *BillingUseCase) SetPlanActive(ctx context.Context, provider, planAddr model.Address, active bool) (err error) {
	defer logging.TraceDuration(u.log, "BillingUC.SetPlanActive")()
	defer func() { u.observe(ctx, "set_plan_active", err) }()

	rec, plan, err := load[*model.SubscriptionPlan](ctx, u.store, planAddr)
	if err != nil {
		return err
	}
	if provider != plan.Provider {
		return fmt.Errorf("%w: only the plan provider can change its status", domain.ErrUnauthorized)
	}
	if plan.IsActive == active {
		return nil
	}
	now, err := u.now(ctx)
	if err != nil {
		return err
	}
	if err := u.store.Commit(ctx, repository.Update(rec, plan.WithActive(active))); err != nil {
		return err
	}
	evt := model.NewEvent(model.EventPlanStatusChanged, now)
	evt.Provider = model.Ref(provider)
	evt.Plan = model.Ref(planAddr)
	evt.PlanID = plan.PlanID
	evt.Active = &active
	u.publish(ctx, evt)
	return nil
}

func (u *BillingUseCase) GetManager(ctx context.Context) (*model.Manager, error) {
	_, mgr, err := u.loadManager(ctx)
	return mgr, err
}

func (u *BillingUseCase) IsManagerInitialized(ctx context.Context) (bool, error) {
	_, _, err := u.loadManager(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrManagerUninitiated):
		return false, nil
	default:
		return false, err
	}
}

func (u *BillingUseCase) GetPlan(ctx context.Context, planAddr model.Address) (*model.SubscriptionPlan, error) {
	_, plan, err := load[*model.SubscriptionPlan](ctx, u.store, planAddr)
	return plan, err
}

func (u *BillingUseCase) GetSubscription(ctx context.Context, subAddr model.Address) (*model.Subscription, error) {
	_, sub, err := load[*model.Subscription](ctx, u.store, subAddr)
	return sub, err
}

// ListProviderPlans returns the provider's plans, newest first.
func (u *BillingUseCase) ListProviderPlans(ctx context.Context, provider model.Address) ([]ucport.PlanView, error) {
	recs, err := u.store.List(ctx, model.KindPlan)
	if err != nil {
		return nil, err
	}
	out := make([]ucport.PlanView, 0)
	for _, rec := range recs {
		plan, err := model.As[*model.SubscriptionPlan](rec.Account)
		if err != nil {
			return nil, err
		}
		if plan.Provider == provider {
			out = append(out, ucport.PlanView{Address: rec.Address, SubscriptionPlan: plan})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// ListSubscriberSubscriptions returns the subscriber's subscriptions, newest first.
func (u *BillingUseCase) ListSubscriberSubscriptions(ctx context.Context, subscriber model.Address) ([]ucport.SubscriptionView, error) {
	return u.listSubscriptions(ctx, func(s *model.Subscription) bool { return s.Subscriber == subscriber }, func(a, b *model.Subscription) bool {
		return a.StartTime > b.StartTime
	})
}

// ListDueSubscriptions returns every payable subscription as of the trusted clock,
// most overdue first.
func (u *BillingUseCase) ListDueSubscriptions(ctx context.Context) ([]ucport.SubscriptionView, error) {
	now, err := u.now(ctx)
	if err != nil {
		return nil, err
	}
	return u.listSubscriptions(ctx, func(s *model.Subscription) bool { return s.IsDue(now) }, func(a, b *model.Subscription) bool {
		return a.NextPaymentDue < b.NextPaymentDue
	})
}

func (u *BillingUseCase) listSubscriptions(ctx context.Context, keep func(*model.Subscription) bool, less func(a, b *model.Subscription) bool) ([]ucport.SubscriptionView, error) {
	recs, err := u.store.List(ctx, model.KindSubscription)
	if err != nil {
		return nil, err
	}
	out := make([]ucport.SubscriptionView, 0)
	for _, rec := range recs {
		sub, err := model.As[*model.Subscription](rec.Account)
		if err != nil {
			return nil, err
		}
		if keep(sub) {
			out = append(out, ucport.SubscriptionView{Address: rec.Address, Subscription: sub})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i].Subscription, out[j].Subscription) })
	return out, nil
}

func (u *BillingUseCase) GetManagerAddress() (model.Address, error) {
	addr, _, err := u.pda.ManagerAddress()
	return addr, err
}

func (u *BillingUseCase) GetPlanAddress(provider model.Address, planID string) (model.Address, error) {
	addr, _, err := u.pda.PlanAddress(provider, planID)
	return addr, err
}

func (u *BillingUseCase) GetSubscriptionAddress(subscriber, planAddr model.Address) (model.Address, error) {
	addr, _, err := u.pda.SubscriptionAddress(subscriber, planAddr)
	return addr, err
}

// ---- helpers ----

func load[T model.Account](ctx context.Context, store repository.AccountStore, addr model.Address) (*repository.Record, T, error) {
	var zero T
	rec, err := store.Get(ctx, addr)
	if err != nil {
		return nil, zero, err
	}
	acc, err := model.As[T](rec.Account)
	if err != nil {
		return nil, zero, err
	}
	return rec, acc, nil
}

func (u *BillingUseCase) loadManager(ctx context.Context) (*repository.Record, *model.Manager, error) {
	addr, _, err := u.pda.ManagerAddress()
	if err != nil {
		return nil, nil, err
	}
	rec, mgr, err := load[*model.Manager](ctx, u.store, addr)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrManagerUninitiated, err)
	}
	return rec, mgr, err
}

func (u *BillingUseCase) loadOwnSubscription(ctx context.Context, caller, subAddr model.Address) (*repository.Record, *model.Subscription, int64, error) {
	rec, sub, err := load[*model.Subscription](ctx, u.store, subAddr)
	if err != nil {
		return nil, nil, 0, err
	}
	if caller != sub.Subscriber {
		return nil, nil, 0, fmt.Errorf("%w: only the subscriber can change the subscription", domain.ErrUnauthorized)
	}
	now, err := u.now(ctx)
	if err != nil {
		return nil, nil, 0, err
	}
	return rec, sub, now, nil
}

func (u *BillingUseCase) now(ctx context.Context) (int64, error) {
	now, err := u.clock.Now(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrClockUnavailable, err)
	}
	return now, nil
}

// withSubscriptionLock runs fn under a non-blocking lease on the subscription.
// A held lease fails fast with ErrConflict.
func (u *BillingUseCase) withSubscriptionLock(ctx context.Context, subAddr model.Address, fn func() error) error {
	key := "subscription:" + subAddr.String()
	token, err := u.locker.TryLock(ctx, key, u.lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			u.log.Warn().Err(err).Str("key", key).Msg("release subscription lock")
		}
	}()
	return fn()
}

func (u *BillingUseCase) publish(ctx context.Context, evt model.Event) {
	if u.events == nil {
		return
	}
	if err := u.events.Publish(ctx, evt); err != nil {
		u.log.Warn().Err(err).Str("event_type", string(evt.Type)).Str("event_id", evt.ID).Msg("publish event")
	}
}

func (u *BillingUseCase) observe(ctx context.Context, op string, err error) {
	kind := domain.KindOf(err)
	metrics.IncTransition(op, string(kind), err)
	if err == nil {
		return
	}
	l := logging.With(ctx, u.log)
	ev := l.Info()
	if kind == domain.KindExternal || kind == domain.KindUnknown {
		ev = l.Error()
	}
	ev.Err(err).Str("operation", op).Str("kind", string(kind)).Msg("billing transition rejected")
}

package usecase

import (
	"context"

	"subs3-ledger/internal/domain/model"
)

type CreatePlanParams = model.PlanTerms

type CreatePlanResult struct {
	Plan  model.Address
	Vault model.Address
}

type SubscribeResult struct {
	Subscription   model.Address
	StartTime      int64
	NextPaymentDue int64
}

type PaymentResult struct {
	Amount         uint64
	PaymentNumber  uint32
	NextPaymentDue int64
}

type PlanView struct {
	Address model.Address
	*model.SubscriptionPlan
}

type SubscriptionView struct {
	Address model.Address
	*model.Subscription
}

// Billing is the set of subscription-billing entry points consumed by the HTTP
// API, the instruction dispatcher and the background workers.
type Billing interface {
	Initialize(ctx context.Context, caller model.Address) (model.Address, error)
	CreatePlan(ctx context.Context, provider model.Address, params CreatePlanParams) (*CreatePlanResult, error)
	Subscribe(ctx context.Context, subscriber, plan model.Address) (*SubscribeResult, error)
	ProcessPayment(ctx context.Context, caller, subscription, fundingSource model.Address) (*PaymentResult, error)
	PauseSubscription(ctx context.Context, caller, subscription model.Address) error
	ResumeSubscription(ctx context.Context, caller, subscription model.Address) error
	CancelSubscription(ctx context.Context, caller, subscription model.Address) error
	WithdrawFunds(ctx context.Context, provider, plan, destination model.Address, amount uint64) error
	SetPlanActive(ctx context.Context, provider, plan model.Address, active bool) error

	GetManager(ctx context.Context) (*model.Manager, error)
	IsManagerInitialized(ctx context.Context) (bool, error)
	GetPlan(ctx context.Context, plan model.Address) (*model.SubscriptionPlan, error)
	GetSubscription(ctx context.Context, subscription model.Address) (*model.Subscription, error)
	ListProviderPlans(ctx context.Context, provider model.Address) ([]PlanView, error)
	ListSubscriberSubscriptions(ctx context.Context, subscriber model.Address) ([]SubscriptionView, error)
	ListDueSubscriptions(ctx context.Context) ([]SubscriptionView, error)
	GetManagerAddress() (model.Address, error)
	GetPlanAddress(provider model.Address, planID string) (model.Address, error)
	GetSubscriptionAddress(subscriber, plan model.Address) (model.Address, error)
}

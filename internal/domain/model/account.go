package model

import (
	"fmt"

	"subs3-ledger/internal/domain"
)

// AccountKind discriminates the account records kept in the ledger.
type AccountKind uint8

const (
	KindManager AccountKind = iota + 1
	KindPlan
	KindVault
	KindSubscription
)

func (k AccountKind) String() string {
	switch k {
	case KindManager:
		return "SubscriptionManager"
	case KindPlan:
		return "SubscriptionPlan"
	case KindVault:
		return "ProviderVault"
	case KindSubscription:
		return "Subscription"
	default:
		return fmt.Sprintf("AccountKind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k AccountKind) Valid() bool { return k >= KindManager && k <= KindSubscription }

// Account is the closed set of records stored at derived addresses.
// Only *Manager, *SubscriptionPlan, *ProviderVault and *Subscription implement it.
type Account interface {
	Kind() AccountKind
	account()
}

func (*Manager) Kind() AccountKind          { return KindManager }
func (*SubscriptionPlan) Kind() AccountKind { return KindPlan }
func (*ProviderVault) Kind() AccountKind    { return KindVault }
func (*Subscription) Kind() AccountKind     { return KindSubscription }

func (*Manager) account()          {}
func (*SubscriptionPlan) account() {}
func (*ProviderVault) account()    {}
func (*Subscription) account()     {}

// As narrows an Account to the concrete record type T, failing with
// ErrAccountKindMismatch when the stored kind is different.
func As[T Account](acc Account) (T, error) {
	var zero T
	if acc == nil {
		return zero, domain.ErrAccountNotFound
	}
	t, ok := acc.(T)
	if !ok {
		return zero, fmt.Errorf("%w: want %s, got %s", domain.ErrAccountKindMismatch, zero.Kind(), acc.Kind())
	}
	return t, nil
}

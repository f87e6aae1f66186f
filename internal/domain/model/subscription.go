package model

import (
	"subs3-ledger/internal/domain"
)

// Subscription binds a subscriber to a plan, one per (subscriber, plan).
type Subscription struct {
	Subscriber        Address
	SubscriptionPlan  Address
	StartTime         int64 // unix seconds
	NextPaymentDue    int64 // unix seconds
	IsActive          bool
	IsPaused          bool
	PausedAt          *int64
	CancelledAt       *int64
	TotalPaymentsMade uint32
	TotalAmountPaid   uint64
	PaymentNonce      uint64
	Bump              uint8
}

// NewSubscription starts a subscription at now with the first payment due one period later.
func NewSubscription(subscriber, planAddr Address, plan *SubscriptionPlan, now int64, bump uint8) (*Subscription, error) {
	if plan == nil || subscriber.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if subscriber == plan.Provider {
		return nil, domain.ErrUnauthorized
	}
	due, err := addI64(now, plan.PeriodDurationSeconds)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		Subscriber:       subscriber,
		SubscriptionPlan: planAddr,
		StartTime:        now,
		NextPaymentDue:   due,
		IsActive:         true,
		Bump:             bump,
	}, nil
}

// CheckPayable reports why a payment cannot be taken at now, or nil.
func (s *Subscription) CheckPayable(now int64) error {
	switch {
	case !s.IsActive:
		return domain.ErrSubscriptionInactive
	case s.IsPaused:
		return domain.ErrSubscriptionPaused
	case now < s.NextPaymentDue:
		return domain.ErrPaymentNotDue
	}
	return nil
}

// IsDue reports whether a payment could be processed at now.
func (s *Subscription) IsDue(now int64) bool { return s.CheckPayable(now) == nil }

// WithPayment returns a copy recording one payment of amount. The next due date
// advances from the previous due date, never from now, so late payments do not drift.
func (s *Subscription) WithPayment(amount uint64, period int64) (*Subscription, error) {
	due, err := addI64(s.NextPaymentDue, period)
	if err != nil {
		return nil, err
	}
	count, err := addU32(s.TotalPaymentsMade, 1)
	if err != nil {
		return nil, err
	}
	paid, err := addU64(s.TotalAmountPaid, amount)
	if err != nil {
		return nil, err
	}
	nonce, err := addU64(s.PaymentNonce, 1)
	if err != nil {
		return nil, err
	}
	cp := *s
	cp.NextPaymentDue = due
	cp.TotalPaymentsMade = count
	cp.TotalAmountPaid = paid
	cp.PaymentNonce = nonce
	return &cp, nil
}

// WithPaused returns a paused copy.
func (s *Subscription) WithPaused(now int64) (*Subscription, error) {
	if !s.IsActive {
		return nil, domain.ErrSubscriptionInactive
	}
	if s.IsPaused {
		return nil, domain.ErrSubscriptionPaused
	}
	cp := *s
	cp.IsPaused = true
	at := now
	cp.PausedAt = &at
	return &cp, nil
}

// WithResumed returns an unpaused copy whose due date is pushed back by the
// time spent paused.
func (s *Subscription) WithResumed(now int64) (*Subscription, error) {
	if !s.IsActive {
		return nil, domain.ErrSubscriptionInactive
	}
	if !s.IsPaused {
		return nil, domain.ErrSubscriptionNotPaused
	}
	cp := *s
	if s.PausedAt != nil && now > *s.PausedAt {
		due, err := addI64(s.NextPaymentDue, now-*s.PausedAt)
		if err != nil {
			return nil, err
		}
		cp.NextPaymentDue = due
	}
	cp.IsPaused = false
	cp.PausedAt = nil
	return &cp, nil
}

// WithCancelled returns an inactive copy stamped with now.
func (s *Subscription) WithCancelled(now int64) (*Subscription, error) {
	if !s.IsActive {
		return nil, domain.ErrSubscriptionInactive
	}
	cp := *s
	cp.IsActive = false
	cp.IsPaused = false
	cp.PausedAt = nil
	at := now
	cp.CancelledAt = &at
	return &cp, nil
}

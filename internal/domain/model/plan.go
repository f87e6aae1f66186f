package model

import (
	"strings"
	"unicode/utf8"

	"subs3-ledger/internal/domain"
)

const (
	MaxPlanIDLength          = 32
	MaxNameLength            = 100
	MaxDescriptionLength     = 500
	MinPeriodDurationSeconds = 60
	MaxPeriodDurationSeconds = 31_536_000
)

// PlanTerms are the provider-chosen attributes of a plan.
type PlanTerms struct {
	PlanID                string
	Name                  string
	Description           string
	PricePerPeriod        uint64
	PeriodDurationSeconds int64
	PaymentTokenMint      Address
	MaxSubscribers        *uint32 // nil means unlimited
}

// Validate checks every field-level rule. PlanID length is checked first so an
// oversized id is reported as ErrPlanIdTooLong rather than a seed error.
func (t PlanTerms) Validate() error {
	switch {
	case len(t.PlanID) > MaxPlanIDLength:
		return domain.ErrPlanIdTooLong
	case t.PlanID == "":
		return domain.ErrInvalidPlanId
	case utf8.RuneCountInString(t.Name) > MaxNameLength:
		return domain.ErrNameTooLong
	case strings.TrimSpace(t.Name) == "":
		return domain.ErrInvalidName
	case utf8.RuneCountInString(t.Description) > MaxDescriptionLength:
		return domain.ErrDescriptionTooLong
	case strings.TrimSpace(t.Description) == "":
		return domain.ErrInvalidDescription
	case t.PricePerPeriod == 0:
		return domain.ErrInvalidPrice
	case t.PeriodDurationSeconds < MinPeriodDurationSeconds || t.PeriodDurationSeconds > MaxPeriodDurationSeconds:
		return domain.ErrInvalidPeriodDuration
	case t.PaymentTokenMint.IsZero():
		return domain.ErrInvalidTokenMint
	case t.MaxSubscribers != nil && *t.MaxSubscribers == 0:
		return domain.ErrInvalidMaxSubscribers
	}
	return nil
}

// SubscriptionPlan is a provider's offer, one per (provider, planId).
type SubscriptionPlan struct {
	Provider Address
	PlanTerms
	CurrentSubscribers uint32
	TotalRevenue       uint64
	IsActive           bool
	CreatedAt          int64 // unix seconds
	Bump               uint8
}

// NewSubscriptionPlan validates terms and constructs an active plan with zeroed counters.
func NewSubscriptionPlan(provider Address, terms PlanTerms, now int64, bump uint8) (*SubscriptionPlan, error) {
	if provider.IsZero() {
		return nil, domain.ErrDefaultAuthority
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if terms.MaxSubscribers != nil {
		capped := *terms.MaxSubscribers
		terms.MaxSubscribers = &capped
	}
	return &SubscriptionPlan{
		Provider:  provider,
		PlanTerms: terms,
		IsActive:  true,
		CreatedAt: now,
		Bump:      bump,
	}, nil
}

// IsFull reports whether the plan has reached its subscriber cap.
func (p *SubscriptionPlan) IsFull() bool {
	return p.MaxSubscribers != nil && p.CurrentSubscribers >= *p.MaxSubscribers
}

// WithSubscriberAdded returns a copy counting one more subscriber.
func (p *SubscriptionPlan) WithSubscriberAdded() (*SubscriptionPlan, error) {
	if p.IsFull() {
		return nil, domain.ErrPlanFull
	}
	n, err := addU32(p.CurrentSubscribers, 1)
	if err != nil {
		return nil, err
	}
	cp := *p
	cp.CurrentSubscribers = n
	return &cp, nil
}

// WithSubscriberRemoved returns a copy counting one fewer subscriber, floored at zero.
func (p *SubscriptionPlan) WithSubscriberRemoved() *SubscriptionPlan {
	cp := *p
	if cp.CurrentSubscribers > 0 {
		cp.CurrentSubscribers--
	}
	return &cp
}

// WithRevenue returns a copy with amount added to TotalRevenue.
func (p *SubscriptionPlan) WithRevenue(amount uint64) (*SubscriptionPlan, error) {
	n, err := addU64(p.TotalRevenue, amount)
	if err != nil {
		return nil, err
	}
	cp := *p
	cp.TotalRevenue = n
	return &cp, nil
}

// WithActive returns a copy with IsActive set.
func (p *SubscriptionPlan) WithActive(active bool) *SubscriptionPlan {
	cp := *p
	cp.IsActive = active
	return &cp
}

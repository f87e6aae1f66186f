package model

import "subs3-ledger/internal/domain"

// Manager is the deployment-wide singleton holding global counters.
type Manager struct {
	Authority          Address
	TotalProviders     uint64 // incremented on every successful plan creation
	TotalSubscriptions uint64
	Bump               uint8
}

// NewManager constructs the singleton for authority. The all-zero address is rejected.
func NewManager(authority Address, bump uint8) (*Manager, error) {
	if authority.IsZero() {
		return nil, domain.ErrDefaultAuthority
	}
	return &Manager{Authority: authority, Bump: bump}, nil
}

// WithPlanCreated returns a copy with TotalProviders advanced by one.
func (m *Manager) WithPlanCreated() (*Manager, error) {
	n, err := addU64(m.TotalProviders, 1)
	if err != nil {
		return nil, err
	}
	cp := *m
	cp.TotalProviders = n
	return &cp, nil
}

// WithSubscriptionCreated returns a copy with TotalSubscriptions advanced by one.
func (m *Manager) WithSubscriptionCreated() (*Manager, error) {
	n, err := addU64(m.TotalSubscriptions, 1)
	if err != nil {
		return nil, err
	}
	cp := *m
	cp.TotalSubscriptions = n
	return &cp, nil
}

// Package pda derives program-owned account addresses.
//
// An address is sha256(seeds || bump || programID || marker) for the highest
// bump in 255..0 whose hash is not a valid ed25519 point, so no private key
// can ever sign for it.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
)

const (
	MaxSeedLength = 32
	MaxSeeds      = 16
)

const pdaMarker = "ProgramDerivedAddress"

// Seed tags. Changing any of these moves every account of that kind.
const (
	TagManager      = "subscription_manager"
	TagPlan         = "subscription_plan"
	TagVault        = "provider_vault"
	TagSubscription = "subscription"
	TagTokenAccount = "token_account"
)

// Deriver computes addresses scoped to one program identity.
type Deriver struct {
	ProgramID model.Address
}

func NewDeriver(programID model.Address) *Deriver {
	return &Deriver{ProgramID: programID}
}

// CreateProgramAddress hashes seeds without searching for a bump. It fails with
// ErrNoViableBump when the result lands on the curve.
func (d *Deriver) CreateProgramAddress(seeds ...[]byte) (model.Address, error) {
	if len(seeds) > MaxSeeds {
		return model.DefaultAddress, domain.ErrTooManySeeds
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return model.DefaultAddress, fmt.Errorf("%w: seed %d is %d bytes", domain.ErrMaxSeedLength, i, len(s))
		}
	}
	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write(d.ProgramID[:])
	h.Write([]byte(pdaMarker))
	var out model.Address
	copy(out[:], h.Sum(nil))
	if isOnCurve(out[:]) {
		return model.DefaultAddress, domain.ErrNoViableBump
	}
	return out, nil
}

// FindProgramAddress returns the first off-curve address searching bump from 255 down.
func (d *Deriver) FindProgramAddress(seeds ...[]byte) (model.Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return model.DefaultAddress, 0, domain.ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := d.CreateProgramAddress(withBump...)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, domain.ErrNoViableBump) {
			return model.DefaultAddress, 0, err
		}
	}
	return model.DefaultAddress, 0, domain.ErrNoViableBump
}

func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// ManagerAddress is the deployment singleton.
func (d *Deriver) ManagerAddress() (model.Address, uint8, error) {
	return d.FindProgramAddress([]byte(TagManager))
}

// PlanAddress is unique per (provider, planId).
func (d *Deriver) PlanAddress(provider model.Address, planID string) (model.Address, uint8, error) {
	if len(planID) > model.MaxPlanIDLength {
		return model.DefaultAddress, 0, domain.ErrPlanIdTooLong
	}
	return d.FindProgramAddress([]byte(TagPlan), provider[:], []byte(planID))
}

// VaultAddress is the companion of PlanAddress for the same pair.
func (d *Deriver) VaultAddress(provider model.Address, planID string) (model.Address, uint8, error) {
	if len(planID) > model.MaxPlanIDLength {
		return model.DefaultAddress, 0, domain.ErrPlanIdTooLong
	}
	return d.FindProgramAddress([]byte(TagVault), provider[:], []byte(planID))
}

// SubscriptionAddress is unique per (subscriber, plan), which makes a second
// subscribe collide with the first.
func (d *Deriver) SubscriptionAddress(subscriber, plan model.Address) (model.Address, uint8, error) {
	return d.FindProgramAddress([]byte(TagSubscription), subscriber[:], plan[:])
}

// TokenAccountAddress is where owner's balance of mint is held by the token collaborator.
func (d *Deriver) TokenAccountAddress(owner, mint model.Address) (model.Address, error) {
	a, _, err := d.FindProgramAddress([]byte(TagTokenAccount), owner[:], mint[:])
	return a, err
}

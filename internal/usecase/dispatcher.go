// File: internal/usecase/dispatcher.go
package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/pda"
	ucport "subs3-ledger/internal/domain/ports/usecase"
	"subs3-ledger/internal/infra/codec"
	"subs3-ledger/internal/infra/logging"
)

// Result is the outcome of one dispatched instruction. Exactly one payload is
// set, matching Instruction; transitions with no payload leave all of them nil.
type Result struct {
	Instruction  string                   `json:"instruction"`
	Manager      *model.Address           `json:"manager,omitempty"`
	Plan         *ucport.CreatePlanResult `json:"plan,omitempty"`
	Subscription *ucport.SubscribeResult  `json:"subscription,omitempty"`
	Payment      *ucport.PaymentResult    `json:"payment,omitempty"`
}

// Dispatcher decodes instructions and routes them to the billing engine.
// Signatures are verified upstream; the caller passed to Execute is the
// principal that signed.
type Dispatcher struct {
	billing ucport.Billing
	pda     *pda.Deriver
	log     *zerolog.Logger
}

func NewDispatcher(billing ucport.Billing, deriver *pda.Deriver, logger *zerolog.Logger) *Dispatcher {
	l := logger.With().Str("component", "dispatcher").Logger()
	return &Dispatcher{billing: billing, pda: deriver, log: &l}
}

// Execute runs ix on behalf of caller. The first account must be the caller as a
// signer, and every derived account must match what the deriver computes.
func (d *Dispatcher) Execute(ctx context.Context, caller model.Address, ix *Instruction) (*Result, error) {
	defer logging.TraceDuration(d.log, "Dispatcher.Execute")()

	if ix == nil {
		return nil, fmt.Errorf("%w: nil instruction", domain.ErrInvalidArgument)
	}
	if ix.Program != d.pda.ProgramID {
		return nil, fmt.Errorf("%w: program %s", domain.ErrInvalidArgument, ix.Program)
	}
	name, err := instructionTable.Name(ix.Data)
	if err != nil {
		return nil, err
	}
	if ix.Name != "" && ix.Name != name {
		return nil, fmt.Errorf("%w: data encodes %s, not %s", domain.ErrInvalidArgument, name, ix.Name)
	}
	if len(ix.Accounts) == 0 || !ix.Accounts[0].IsSigner || ix.Accounts[0].PublicKey != caller {
		return nil, fmt.Errorf("%w: %s must be signed by its first account", domain.ErrUnauthorized, name)
	}

	res := &Result{Instruction: name}
	switch name {
	case IxInitialize:
		if err := expectAccounts(name, ix, 2); err != nil {
			return nil, err
		}
		if err := d.expectManager(ix, 1); err != nil {
			return nil, err
		}
		mgr, err := d.billing.Initialize(ctx, caller)
		if err != nil {
			return nil, err
		}
		res.Manager = &mgr

	case IxCreatePlan:
		if err := expectAccounts(name, ix, 4); err != nil {
			return nil, err
		}
		var args createPlanArgs
		if err := codec.DecodeInstructionArgs(ix.Data, &args); err != nil {
			return nil, err
		}
		mint, err := model.AddressFromBytes(args.PaymentTokenMint)
		if err != nil {
			return nil, err
		}
		want, err := d.billing.GetPlanAddress(caller, args.PlanID)
		if err != nil {
			return nil, err
		}
		if err := expectAddress(ix, 2, want); err != nil {
			return nil, err
		}
		if err := d.expectManager(ix, 1); err != nil {
			return nil, err
		}
		vault, _, err := d.pda.VaultAddress(caller, args.PlanID)
		if err != nil {
			return nil, err
		}
		if err := expectAddress(ix, 3, vault); err != nil {
			return nil, err
		}
		plan, err := d.billing.CreatePlan(ctx, caller, ucport.CreatePlanParams{
			PlanID:                args.PlanID,
			Name:                  args.Name,
			Description:           args.Description,
			PricePerPeriod:        args.PricePerPeriod,
			PeriodDurationSeconds: args.PeriodDurationSeconds,
			PaymentTokenMint:      mint,
			MaxSubscribers:        args.MaxSubscribers,
		})
		if err != nil {
			return nil, err
		}
		res.Plan = plan

	case IxSubscribe:
		if err := expectAccounts(name, ix, 4); err != nil {
			return nil, err
		}
		want, err := d.billing.GetSubscriptionAddress(caller, ix.Accounts[1].PublicKey)
		if err != nil {
			return nil, err
		}
		if err := expectAddress(ix, 2, want); err != nil {
			return nil, err
		}
		if err := d.expectManager(ix, 3); err != nil {
			return nil, err
		}
		sub, err := d.billing.Subscribe(ctx, caller, ix.Accounts[1].PublicKey)
		if err != nil {
			return nil, err
		}
		res.Subscription = sub

	case IxProcessPayment:
		if err := expectAccounts(name, ix, 5); err != nil {
			return nil, err
		}
		want, err := d.billing.GetSubscriptionAddress(caller, ix.Accounts[2].PublicKey)
		if err != nil {
			return nil, err
		}
		if err := expectAddress(ix, 1, want); err != nil {
			return nil, err
		}
		if err := d.expectVault(ctx, ix, 2, 3); err != nil {
			return nil, err
		}
		pay, err := d.billing.ProcessPayment(ctx, caller, want, ix.Accounts[4].PublicKey)
		if err != nil {
			return nil, err
		}
		res.Payment = pay

	case IxPauseSubscription, IxResumeSubscription, IxCancelSubscription:
		if err := expectAccounts(name, ix, 3); err != nil {
			return nil, err
		}
		want, err := d.billing.GetSubscriptionAddress(caller, ix.Accounts[2].PublicKey)
		if err != nil {
			return nil, err
		}
		if err := expectAddress(ix, 1, want); err != nil {
			return nil, err
		}
		op := map[string]func(context.Context, model.Address, model.Address) error{
			IxPauseSubscription:  d.billing.PauseSubscription,
			IxResumeSubscription: d.billing.ResumeSubscription,
			IxCancelSubscription: d.billing.CancelSubscription,
		}[name]
		if err := op(ctx, caller, want); err != nil {
			return nil, err
		}

	case IxWithdrawFunds:
		if err := expectAccounts(name, ix, 4); err != nil {
			return nil, err
		}
		var args withdrawFundsArgs
		if err := codec.DecodeInstructionArgs(ix.Data, &args); err != nil {
			return nil, err
		}
		if err := d.expectVault(ctx, ix, 1, 2); err != nil {
			return nil, err
		}
		if err := d.billing.WithdrawFunds(ctx, caller, ix.Accounts[1].PublicKey, ix.Accounts[3].PublicKey, args.Amount); err != nil {
			return nil, err
		}

	case IxSetPlanActive:
		if err := expectAccounts(name, ix, 2); err != nil {
			return nil, err
		}
		var args setPlanActiveArgs
		if err := codec.DecodeInstructionArgs(ix.Data, &args); err != nil {
			return nil, err
		}
		if err := d.billing.SetPlanActive(ctx, caller, ix.Accounts[1].PublicKey, args.Active); err != nil {
			return nil, err
		}
	}

	d.log.Debug().Str("instruction", name).Str("caller", caller.String()).Msg("instruction executed")
	return res, nil
}

func expectAccounts(name string, ix *Instruction, n int) error {
	if len(ix.Accounts) != n {
		return fmt.Errorf("%w: %s takes %d accounts, got %d", domain.ErrInvalidArgument, name, n, len(ix.Accounts))
	}
	return nil
}

func expectAddress(ix *Instruction, i int, want model.Address) error {
	if got := ix.Accounts[i].PublicKey; got != want {
		return fmt.Errorf("%w: account %d is %s, derived %s", domain.ErrInvalidArgument, i, got, want)
	}
	return nil
}

func (d *Dispatcher) expectManager(ix *Instruction, i int) error {
	want, _, err := d.pda.ManagerAddress()
	if err != nil {
		return err
	}
	return expectAddress(ix, i, want)
}

// expectVault checks the vault slot against the vault of the plan named in planSlot.
func (d *Dispatcher) expectVault(ctx context.Context, ix *Instruction, planSlot, vaultSlot int) error {
	plan, err := d.billing.GetPlan(ctx, ix.Accounts[planSlot].PublicKey)
	if err != nil {
		return err
	}
	want, _, err := d.pda.VaultAddress(plan.Provider, plan.PlanID)
	if err != nil {
		return err
	}
	return expectAddress(ix, vaultSlot, want)
}

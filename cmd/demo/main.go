// Command demo drives a full billing cycle through signed instructions against
// the in-memory backend with a hand-advanced clock.
package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"subs3-ledger/internal/config"
	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/pda"
	ucport "subs3-ledger/internal/domain/ports/usecase"
	"subs3-ledger/internal/infra/clock"
	"subs3-ledger/internal/infra/db/memory"
	"subs3-ledger/internal/infra/events"
	"subs3-ledger/internal/infra/logging"
	"subs3-ledger/internal/infra/token"
	"subs3-ledger/internal/usecase"
)

const (
	price  = 1_000_000
	period = 2_592_000 // 30 days
)

func principal(b byte) model.Address {
	var a model.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func main() {
	logger := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error().Err(err).Msg("demo failed")
		cancel()
		os.Exit(1)
	}
	logger.Info().Msg("demo finished")
}

func run(ctx context.Context, logger *zerolog.Logger) error {
	var (
		programID  = principal(0xA1)
		authority  = principal(0x01)
		provider   = principal(0x02)
		subscriber = principal(0x03)
		mint       = principal(0x04)
	)

	deriver := pda.NewDeriver(programID)
	bank := token.NewBank(logger)
	clk := clock.NewManual(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Unix())
	recorder := &events.Recorder{}
	billing := usecase.NewBillingUseCase(
		memory.NewAccountStore(), memory.NewLocker(), bank,
		events.NewFanout(events.NewLogSink(logger), recorder),
		clk, deriver, 0, logger,
	)
	dispatcher := usecase.NewDispatcher(billing, deriver, logger)
	tx := usecase.NewTxBuilder(deriver)

	// send signs with signer and executes whatever the builder produced.
	send := func(signer model.Address) func(*usecase.Instruction, error) (*usecase.Result, error) {
		return func(ix *usecase.Instruction, err error) (*usecase.Result, error) {
			if err != nil {
				return nil, err
			}
			return dispatcher.Execute(ctx, signer, ix)
		}
	}

	// 1. Manager
	if _, err := send(authority)(tx.Initialize(authority)); err != nil {
		return err
	}

	// 2. Plan
	terms := ucport.CreatePlanParams{
		PlanID:                "basic",
		Name:                  "Basic",
		Description:           "Monthly access to the basic tier",
		PricePerPeriod:        price,
		PeriodDurationSeconds: period,
		PaymentTokenMint:      mint,
	}
	res, err := send(provider)(tx.CreatePlan(provider, terms))
	if err != nil {
		return err
	}
	planAddr, vaultAddr := res.Plan.Plan, res.Plan.Vault
	logger.Info().Str("plan", planAddr.String()).Str("vault", vaultAddr.String()).Msg("plan created")

	// A 33-character plan id is refused before anything is written.
	long := terms
	long.PlanID = strings.Repeat("x", model.MaxPlanIDLength+1)
	if _, err := send(provider)(tx.CreatePlan(provider, long)); !errors.Is(err, domain.ErrPlanIdTooLong) {
		return errors.New("expected plan id too long")
	}
	mgr, err := billing.GetManager(ctx)
	if err != nil {
		return err
	}
	logger.Info().Uint64("total_providers", mgr.TotalProviders).Msg("oversized plan id refused")

	// 3. Subscribe
	res, err = send(subscriber)(tx.Subscribe(subscriber, planAddr))
	if err != nil {
		return err
	}
	sub := res.Subscription
	logger.Info().Str("subscription", sub.Subscription.String()).Int64("next_payment_due", sub.NextPaymentDue).Msg("subscribed")

	// 4. Fund the subscriber
	funding, err := deriver.TokenAccountAddress(subscriber, mint)
	if err != nil {
		return err
	}
	if err := bank.OpenAccount(funding, subscriber, mint); err != nil {
		return err
	}
	if err := bank.Deposit(funding, 3*price); err != nil {
		return err
	}

	// 5. Too early
	pay := func() (*usecase.Result, error) {
		return send(subscriber)(tx.ProcessPayment(subscriber, provider, terms.PlanID, funding))
	}
	if _, err := pay(); !errors.Is(err, domain.ErrPaymentNotDue) {
		return errors.New("expected payment not due")
	}
	logger.Info().Msg("early payment refused")

	// 6. One period later
	clk.Advance(period)
	res, err = pay()
	if err != nil {
		return err
	}
	logger.Info().
		Uint32("payment_number", res.Payment.PaymentNumber).
		Uint64("amount", res.Payment.Amount).
		Int64("next_payment_due", res.Payment.NextPaymentDue).
		Msg("payment processed")

	// 7. Pause for a week, resume, then the next payment is shifted by the pause.
	if _, err := send(subscriber)(tx.PauseSubscription(subscriber, planAddr)); err != nil {
		return err
	}
	clk.Advance(7 * 24 * 3600)
	if _, err := send(subscriber)(tx.ResumeSubscription(subscriber, planAddr)); err != nil {
		return err
	}
	state, err := billing.GetSubscription(ctx, sub.Subscription)
	if err != nil {
		return err
	}
	logger.Info().Int64("next_payment_due", state.NextPaymentDue).Msg("resumed")

	// 8. Provider withdraws revenue.
	payout, err := deriver.TokenAccountAddress(provider, mint)
	if err != nil {
		return err
	}
	if err := bank.OpenAccount(payout, provider, mint); err != nil {
		return err
	}
	if _, err := send(provider)(tx.WithdrawFunds(provider, terms.PlanID, payout, price/2)); err != nil {
		return err
	}
	vaultBalance, _ := bank.BalanceOf(ctx, vaultAddr)
	payoutBalance, _ := bank.BalanceOf(ctx, payout)
	logger.Info().Uint64("vault", vaultBalance).Uint64("payout", payoutBalance).Msg("funds withdrawn")

	// 9. Cancel.
	if _, err := send(subscriber)(tx.CancelSubscription(subscriber, planAddr)); err != nil {
		return err
	}
	plan, err := billing.GetPlan(ctx, planAddr)
	if err != nil {
		return err
	}
	logger.Info().
		Uint32("current_subscribers", plan.CurrentSubscribers).
		Uint64("total_revenue", plan.TotalRevenue).
		Int("events", len(recorder.Events())).
		Msg("subscription cancelled")
	return nil
}

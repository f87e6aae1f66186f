package token

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func addr(b byte) model.Address {
	var a model.Address
	a[0] = b
	return a
}

func TestBank(t *testing.T) {
	ctx := context.Background()
	mint := addr(100)
	alice, aliceAcct := addr(1), addr(11)
	vault, vaultAcct := addr(2), addr(12)

	setup := func(t *testing.T) *Bank {
		t.Helper()
		b := NewBank(newTestLogger())
		if err := b.OpenAccount(aliceAcct, alice, mint); err != nil {
			t.Fatalf("open: %v", err)
		}
		if err := b.Deposit(aliceAcct, 50); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		return b
	}
	req := adapter.TransferRequest{
		From: aliceAcct, To: vaultAcct, ToOwner: vault,
		Authority: alice, Mint: mint, Amount: 20, Reference: "sub:1",
	}

	t.Run("should move funds and open the destination", func(t *testing.T) {
		b := setup(t)
		if err := b.Transfer(ctx, req); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		from, _ := b.BalanceOf(ctx, aliceAcct)
		to, _ := b.BalanceOf(ctx, vaultAcct)
		if from != 30 || to != 20 {
			t.Errorf("expected 30/20, got %d/%d", from, to)
		}
	})

	t.Run("should settle a reference only once", func(t *testing.T) {
		b := setup(t)
		_ = b.Transfer(ctx, req)
		if err := b.Transfer(ctx, req); err != nil {
			t.Fatalf("expected duplicate to succeed, got %v", err)
		}
		from, _ := b.BalanceOf(ctx, aliceAcct)
		if from != 30 {
			t.Errorf("expected a single debit, balance %d", from)
		}
		changed := req
		changed.Amount = 1
		if err := b.Transfer(ctx, changed); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for a reused reference, got %v", err)
		}
	})

	t.Run("should reject insufficient funds without moving anything", func(t *testing.T) {
		b := setup(t)
		big := req
		big.Amount = 51
		if err := b.Transfer(ctx, big); !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
		from, _ := b.BalanceOf(ctx, aliceAcct)
		if from != 50 {
			t.Errorf("expected untouched balance, got %d", from)
		}
		if _, err := b.BalanceOf(ctx, vaultAcct); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected the destination to stay unopened, got %v", err)
		}
	})

	t.Run("should not open the destination when the source is rejected", func(t *testing.T) {
		b := setup(t)
		for _, bad := range []adapter.TransferRequest{
			{From: addr(13), To: vaultAcct, ToOwner: vault, Authority: alice, Mint: mint, Amount: 20},
			{From: aliceAcct, To: vaultAcct, ToOwner: vault, Authority: addr(9), Mint: mint, Amount: 20},
			{From: aliceAcct, To: vaultAcct, ToOwner: vault, Authority: alice, Mint: mint},
		} {
			if err := b.Transfer(ctx, bad); err == nil {
				t.Fatalf("expected %+v to fail", bad)
			}
		}
		if _, err := b.BalanceOf(ctx, vaultAcct); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected the destination to stay unopened, got %v", err)
		}
		if err := b.Transfer(ctx, req); err != nil {
			t.Fatalf("expected a later valid transfer to open it, got %v", err)
		}
	})

	t.Run("should require the owner as authority", func(t *testing.T) {
		b := setup(t)
		stolen := req
		stolen.Authority = addr(9)
		if err := b.Transfer(ctx, stolen); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("should reject a mint mismatch", func(t *testing.T) {
		b := setup(t)
		other := req
		other.Mint = addr(101)
		if err := b.Transfer(ctx, other); !errors.Is(err, domain.ErrInvalidTokenMint) {
			t.Errorf("expected ErrInvalidTokenMint, got %v", err)
		}
	})
}

// Package token is an in-memory value-transfer primitive: balances per token
// account, with owner and mint checks.
package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/ports/adapter"
)

var _ adapter.TokenTransfer = (*Bank)(nil)

type account struct {
	owner   model.Address
	mint    model.Address
	balance uint64
}

// Bank implements adapter.TokenTransfer. A repeated Reference that already
// succeeded returns nil without moving funds again.
type Bank struct {
	mu        sync.Mutex
	accounts  map[model.Address]*account
	completed map[string]adapter.TransferRequest
	log       zerolog.Logger
}

func NewBank(logger *zerolog.Logger) *Bank {
	return &Bank{
		accounts:  make(map[model.Address]*account),
		completed: make(map[string]adapter.TransferRequest),
		log:       logger.With().Str("component", "token_bank").Logger(),
	}
}

// OpenAccount registers a token account. Reopening with the same owner and mint is a no-op.
func (b *Bank) OpenAccount(addr, owner, mint model.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openLocked(addr, owner, mint)
}

func (b *Bank) openLocked(addr, owner, mint model.Address) error {
	if cur, ok := b.accounts[addr]; ok {
		if cur.owner != owner || cur.mint != mint {
			return fmt.Errorf("%w: token account %s already open for another owner or mint", domain.ErrAlreadyExists, addr)
		}
		return nil
	}
	b.accounts[addr] = &account{owner: owner, mint: mint}
	return nil
}

// Deposit credits amount to an open account, for faucets and fixtures.
func (b *Bank) Deposit(addr model.Address, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[addr]
	if !ok {
		return fmt.Errorf("%w: token account %s", domain.ErrNotFound, addr)
	}
	if acc.balance > ^uint64(0)-amount {
		return domain.ErrArithmeticOverflow
	}
	acc.balance += amount
	return nil
}

func (b *Bank) BalanceOf(_ context.Context, addr model.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[addr]
	if !ok {
		return 0, fmt.Errorf("%w: token account %s", domain.ErrNotFound, addr)
	}
	return acc.balance, nil
}

func (b *Bank) Transfer(ctx context.Context, req adapter.TransferRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if req.Reference != "" {
		if prev, ok := b.completed[req.Reference]; ok {
			if prev != req {
				return fmt.Errorf("%w: reference %s reused with different terms", domain.ErrInvalidArgument, req.Reference)
			}
			b.log.Debug().Str("reference", req.Reference).Msg("duplicate transfer ignored")
			return nil
		}
	}
	if req.Amount == 0 {
		return fmt.Errorf("%w: zero amount", domain.ErrInvalidArgument)
	}
	from, ok := b.accounts[req.From]
	if !ok {
		return fmt.Errorf("%w: source token account %s", domain.ErrNotFound, req.From)
	}
	if from.owner != req.Authority {
		return fmt.Errorf("%w: %s does not own %s", domain.ErrUnauthorized, req.Authority, req.From)
	}
	if from.mint != req.Mint {
		return fmt.Errorf("%w: source holds mint %s", domain.ErrInvalidTokenMint, from.mint)
	}
	// A missing destination with ToOwner set is opened only once the transfer is known to settle.
	to, ok := b.accounts[req.To]
	opening := !ok && !req.ToOwner.IsZero()
	if opening {
		to = &account{owner: req.ToOwner, mint: req.Mint}
	} else if !ok {
		return fmt.Errorf("%w: destination token account %s", domain.ErrNotFound, req.To)
	}
	if to.mint != req.Mint {
		return fmt.Errorf("%w: destination holds mint %s", domain.ErrInvalidTokenMint, to.mint)
	}
	if from.balance < req.Amount {
		return fmt.Errorf("%w: %s has %d, needs %d", domain.ErrInsufficientFunds, req.From, from.balance, req.Amount)
	}
	if to.balance > ^uint64(0)-req.Amount {
		return domain.ErrArithmeticOverflow
	}
	if opening {
		b.accounts[req.To] = to
	}
	from.balance -= req.Amount
	to.balance += req.Amount
	if req.Reference != "" {
		b.completed[req.Reference] = req
	}
	b.log.Info().
		Str("from", req.From.String()).
		Str("to", req.To.String()).
		Uint64("amount", req.Amount).
		Str("reference", req.Reference).
		Msg("transfer settled")
	return nil
}

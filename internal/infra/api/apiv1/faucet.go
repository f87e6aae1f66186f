package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/infra/api"
)

// Faucet credits test tokens. Only mounted in dev mode.
type Faucet interface {
	OpenAccount(addr, owner, mint model.Address) error
	Deposit(addr model.Address, amount uint64) error
}

// TokenAccountDeriver resolves the caller's token account for a mint.
type TokenAccountDeriver interface {
	TokenAccountAddress(owner, mint model.Address) (model.Address, error)
}

type FaucetRequest struct {
	Mint   model.Address `json:"mint"`
	Amount uint64        `json:"amount"`
}

const maxFaucetAmount = 1_000_000_000_000

// RegisterDevFaucet mounts POST /api/v1/dev/faucet, which opens the caller's
// token account for mint if needed and credits it.
func RegisterDevFaucet(r chi.Router, faucet Faucet, deriver TokenAccountDeriver) {
	r.Post("/api/v1/dev/faucet", func(w http.ResponseWriter, r *http.Request) {
		var req FaucetRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Amount == 0 || req.Amount > maxFaucetAmount || req.Mint.IsZero() {
			api.WriteError(w, http.StatusBadRequest, string(domain.KindValidation), "mint and 0 < amount <= 1e12 required")
			return
		}
		owner := principal(r)
		acct, err := deriver.TokenAccountAddress(owner, req.Mint)
		if err != nil {
			api.WriteDomainError(w, err)
			return
		}
		if err := faucet.OpenAccount(acct, owner, req.Mint); err != nil {
			api.WriteDomainError(w, err)
			return
		}
		if err := faucet.Deposit(acct, req.Amount); err != nil {
			api.WriteDomainError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, AddressResponse{Address: acct})
	})
}

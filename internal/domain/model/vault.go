package model

// ProviderVault records where a plan's revenue accumulates. Balances are held
// by the token collaborator at the vault's token account, not here.
type ProviderVault struct {
	Provider         Address
	Plan             Address
	PaymentTokenMint Address
	Bump             uint8
}

func NewProviderVault(plan *SubscriptionPlan, planAddr Address, bump uint8) *ProviderVault {
	return &ProviderVault{
		Provider:         plan.Provider,
		Plan:             planAddr,
		PaymentTokenMint: plan.PaymentTokenMint,
		Bump:             bump,
	}
}

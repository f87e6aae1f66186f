package codec

import "subs3-ledger/internal/domain/model"

type managerV1 struct {
	Authority          []byte `msgpack:"authority"`
	TotalProviders     uint64 `msgpack:"total_providers"`
	TotalSubscriptions uint64 `msgpack:"total_subscriptions"`
	Bump               uint8  `msgpack:"bump"`
}

type planV1 struct {
	Provider              []byte  `msgpack:"provider"`
	PlanID                string  `msgpack:"plan_id"`
	Name                  string  `msgpack:"name"`
	Description           string  `msgpack:"description"`
	PricePerPeriod        uint64  `msgpack:"price_per_period"`
	PeriodDurationSeconds int64   `msgpack:"period_duration_seconds"`
	PaymentTokenMint      []byte  `msgpack:"payment_token_mint"`
	MaxSubscribers        *uint32 `msgpack:"max_subscribers"`
	CurrentSubscribers    uint32  `msgpack:"current_subscribers"`
	TotalRevenue          uint64  `msgpack:"total_revenue"`
	IsActive              bool    `msgpack:"is_active"`
	CreatedAt             int64   `msgpack:"created_at"`
	Bump                  uint8   `msgpack:"bump"`
}

type vaultV1 struct {
	Provider         []byte `msgpack:"provider"`
	Plan             []byte `msgpack:"plan"`
	PaymentTokenMint []byte `msgpack:"payment_token_mint"`
	Bump             uint8  `msgpack:"bump"`
}

type subscriptionV1 struct {
	Subscriber        []byte `msgpack:"subscriber"`
	SubscriptionPlan  []byte `msgpack:"subscription_plan"`
	StartTime         int64  `msgpack:"start_time"`
	NextPaymentDue    int64  `msgpack:"next_payment_due"`
	IsActive          bool   `msgpack:"is_active"`
	IsPaused          bool   `msgpack:"is_paused"`
	PausedAt          *int64 `msgpack:"paused_at"`
	CancelledAt       *int64 `msgpack:"cancelled_at"`
	TotalPaymentsMade uint32 `msgpack:"total_payments_made"`
	TotalAmountPaid   uint64 `msgpack:"total_amount_paid"`
	PaymentNonce      uint64 `msgpack:"payment_nonce"`
	Bump              uint8  `msgpack:"bump"`
}

func managerToWire(m *model.Manager) managerV1 {
	return managerV1{
		Authority:          m.Authority.Bytes(),
		TotalProviders:     m.TotalProviders,
		TotalSubscriptions: m.TotalSubscriptions,
		Bump:               m.Bump,
	}
}

func (w managerV1) toModel() (*model.Manager, error) {
	auth, err := model.AddressFromBytes(w.Authority)
	if err != nil {
		return nil, err
	}
	return &model.Manager{
		Authority:          auth,
		TotalProviders:     w.TotalProviders,
		TotalSubscriptions: w.TotalSubscriptions,
		Bump:               w.Bump,
	}, nil
}

func planToWire(p *model.SubscriptionPlan) planV1 {
	return planV1{
		Provider:              p.Provider.Bytes(),
		PlanID:                p.PlanID,
		Name:                  p.Name,
		Description:           p.Description,
		PricePerPeriod:        p.PricePerPeriod,
		PeriodDurationSeconds: p.PeriodDurationSeconds,
		PaymentTokenMint:      p.PaymentTokenMint.Bytes(),
		MaxSubscribers:        p.MaxSubscribers,
		CurrentSubscribers:    p.CurrentSubscribers,
		TotalRevenue:          p.TotalRevenue,
		IsActive:              p.IsActive,
		CreatedAt:             p.CreatedAt,
		Bump:                  p.Bump,
	}
}

func (w planV1) toModel() (*model.SubscriptionPlan, error) {
	provider, err := model.AddressFromBytes(w.Provider)
	if err != nil {
		return nil, err
	}
	mint, err := model.AddressFromBytes(w.PaymentTokenMint)
	if err != nil {
		return nil, err
	}
	return &model.SubscriptionPlan{
		Provider:  provider,
		PlanTerms: model.PlanTerms{
			PlanID:                w.PlanID,
			Name:                  w.Name,
			Description:           w.Description,
			PricePerPeriod:        w.PricePerPeriod,
			PeriodDurationSeconds: w.PeriodDurationSeconds,
			PaymentTokenMint:      mint,
			MaxSubscribers:        w.MaxSubscribers,
		},
		CurrentSubscribers: w.CurrentSubscribers,
		TotalRevenue:       w.TotalRevenue,
		IsActive:           w.IsActive,
		CreatedAt:          w.CreatedAt,
		Bump:               w.Bump,
	}, nil
}

func vaultToWire(v *model.ProviderVault) vaultV1 {
	return vaultV1{
		Provider:         v.Provider.Bytes(),
		Plan:             v.Plan.Bytes(),
		PaymentTokenMint: v.PaymentTokenMint.Bytes(),
		Bump:             v.Bump,
	}
}

func (w vaultV1) toModel() (*model.ProviderVault, error) {
	provider, err := model.AddressFromBytes(w.Provider)
	if err != nil {
		return nil, err
	}
	plan, err := model.AddressFromBytes(w.Plan)
	if err != nil {
		return nil, err
	}
	mint, err := model.AddressFromBytes(w.PaymentTokenMint)
	if err != nil {
		return nil, err
	}
	return &model.ProviderVault{Provider: provider, Plan: plan, PaymentTokenMint: mint, Bump: w.Bump}, nil
}

func subscriptionToWire(s *model.Subscription) subscriptionV1 {
	return subscriptionV1{
		Subscriber:        s.Subscriber.Bytes(),
		SubscriptionPlan:  s.SubscriptionPlan.Bytes(),
		StartTime:         s.StartTime,
		NextPaymentDue:    s.NextPaymentDue,
		IsActive:          s.IsActive,
		IsPaused:          s.IsPaused,
		PausedAt:          s.PausedAt,
		CancelledAt:       s.CancelledAt,
		TotalPaymentsMade: s.TotalPaymentsMade,
		TotalAmountPaid:   s.TotalAmountPaid,
		PaymentNonce:      s.PaymentNonce,
		Bump:              s.Bump,
	}
}

func (w subscriptionV1) toModel() (*model.Subscription, error) {
	subscriber, err := model.AddressFromBytes(w.Subscriber)
	if err != nil {
		return nil, err
	}
	plan, err := model.AddressFromBytes(w.SubscriptionPlan)
	if err != nil {
		return nil, err
	}
	return &model.Subscription{
		Subscriber:        subscriber,
		SubscriptionPlan:  plan,
		StartTime:         w.StartTime,
		NextPaymentDue:    w.NextPaymentDue,
		IsActive:          w.IsActive,
		IsPaused:          w.IsPaused,
		PausedAt:          w.PausedAt,
		CancelledAt:       w.CancelledAt,
		TotalPaymentsMade: w.TotalPaymentsMade,
		TotalAmountPaid:   w.TotalAmountPaid,
		PaymentNonce:      w.PaymentNonce,
		Bump:              w.Bump,
	}, nil
}

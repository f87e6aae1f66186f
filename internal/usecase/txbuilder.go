// File: internal/usecase/txbuilder.go
package usecase

import (
	"subs3-ledger/internal/domain/model"
	"subs3-ledger/internal/domain/pda"
	ucport "subs3-ledger/internal/domain/ports/usecase"
	"subs3-ledger/internal/infra/codec"
)

// Instruction names; their discriminators prefix Instruction.Data.
const (
	IxInitialize         = "initialize"
	IxCreatePlan         = "create_plan"
	IxSubscribe          = "subscribe"
	IxProcessPayment     = "process_payment"
	IxPauseSubscription  = "pause_subscription"
	IxResumeSubscription = "resume_subscription"
	IxCancelSubscription = "cancel_subscription"
	IxWithdrawFunds      = "withdraw_funds"
	IxSetPlanActive      = "set_plan_active"
)

var instructionTable = codec.NewInstructionTable(
	IxInitialize, IxCreatePlan, IxSubscribe, IxProcessPayment,
	IxPauseSubscription, IxResumeSubscription, IxCancelSubscription,
	IxWithdrawFunds, IxSetPlanActive,
)

// AccountMeta is one account an instruction reads or writes.
type AccountMeta struct {
	PublicKey  model.Address `json:"pubkey"`
	IsWritable bool          `json:"is_writable"`
	IsSigner   bool          `json:"is_signer"`
}

// Instruction is an unsigned call into the billing program. Accounts are positional.
type Instruction struct {
	Program  model.Address `json:"program"`
	Name     string        `json:"name"`
	Accounts []AccountMeta `json:"accounts"`
	Data     []byte        `json:"data"`
}

func signer(a model.Address) AccountMeta   { return AccountMeta{PublicKey: a, IsWritable: true, IsSigner: true} }
func writable(a model.Address) AccountMeta { return AccountMeta{PublicKey: a, IsWritable: true} }
func readonly(a model.Address) AccountMeta { return AccountMeta{PublicKey: a} }

type createPlanArgs struct {
	PlanID                string  `msgpack:"plan_id"`
	Name                  string  `msgpack:"name"`
	Description           string  `msgpack:"description"`
	PricePerPeriod        uint64  `msgpack:"price_per_period"`
	PeriodDurationSeconds int64   `msgpack:"period_duration_seconds"`
	PaymentTokenMint      []byte  `msgpack:"payment_token_mint"`
	MaxSubscribers        *uint32 `msgpack:"max_subscribers"`
}

type withdrawFundsArgs struct {
	Amount uint64 `msgpack:"amount"`
}

type setPlanActiveArgs struct {
	Active bool `msgpack:"active"`
}

// TxBuilder assembles instructions with every derived address filled in.
type TxBuilder struct {
	pda *pda.Deriver
}

func NewTxBuilder(deriver *pda.Deriver) *TxBuilder {
	return &TxBuilder{pda: deriver}
}

func (b *TxBuilder) build(name string, args any, accounts ...AccountMeta) (*Instruction, error) {
	data, err := codec.EncodeInstruction(name, args)
	if err != nil {
		return nil, err
	}
	return &Instruction{Program: b.pda.ProgramID, Name: name, Accounts: accounts, Data: data}, nil
}

// Initialize accounts: [authority, manager].
func (b *TxBuilder) Initialize(authority model.Address) (*Instruction, error) {
	mgr, _, err := b.pda.ManagerAddress()
	if err != nil {
		return nil, err
	}
	return b.build(IxInitialize, nil, signer(authority), writable(mgr))
}

// CreatePlan accounts: [provider, manager, plan, vault].
func (b *TxBuilder) CreatePlan(provider model.Address, params ucport.CreatePlanParams) (*Instruction, error) {
	mgr, _, err := b.pda.ManagerAddress()
	if err != nil {
		return nil, err
	}
	plan, _, err := b.pda.PlanAddress(provider, params.PlanID)
	if err != nil {
		return nil, err
	}
	vault, _, err := b.pda.VaultAddress(provider, params.PlanID)
	if err != nil {
		return nil, err
	}
	args := createPlanArgs{
		PlanID:                params.PlanID,
		Name:                  params.Name,
		Description:           params.Description,
		PricePerPeriod:        params.PricePerPeriod,
		PeriodDurationSeconds: params.PeriodDurationSeconds,
		PaymentTokenMint:      params.PaymentTokenMint.Bytes(),
		MaxSubscribers:        params.MaxSubscribers,
	}
	return b.build(IxCreatePlan, args, signer(provider), writable(mgr), writable(plan), writable(vault))
}

// Subscribe accounts: [subscriber, plan, subscription, manager].
func (b *TxBuilder) Subscribe(subscriber, plan model.Address) (*Instruction, error) {
	sub, _, err := b.pda.SubscriptionAddress(subscriber, plan)
	if err != nil {
		return nil, err
	}
	mgr, _, err := b.pda.ManagerAddress()
	if err != nil {
		return nil, err
	}
	return b.build(IxSubscribe, nil, signer(subscriber), writable(plan), writable(sub), writable(mgr))
}

// ProcessPayment accounts: [subscriber, subscription, plan, vault, funding source].
// The plan is named by provider and plan id so the vault can be derived.
func (b *TxBuilder) ProcessPayment(subscriber, provider model.Address, planID string, fundingSource model.Address) (*Instruction, error) {
	plan, _, err := b.pda.PlanAddress(provider, planID)
	if err != nil {
		return nil, err
	}
	vault, _, err := b.pda.VaultAddress(provider, planID)
	if err != nil {
		return nil, err
	}
	sub, _, err := b.pda.SubscriptionAddress(subscriber, plan)
	if err != nil {
		return nil, err
	}
	return b.build(IxProcessPayment, nil,
		signer(subscriber), writable(sub), writable(plan), writable(vault), writable(fundingSource))
}

// PauseSubscription accounts: [subscriber, subscription, plan].
func (b *TxBuilder) PauseSubscription(subscriber, plan model.Address) (*Instruction, error) {
	return b.subscriptionOp(IxPauseSubscription, subscriber, plan)
}

// ResumeSubscription accounts: [subscriber, subscription, plan].
func (b *TxBuilder) ResumeSubscription(subscriber, plan model.Address) (*Instruction, error) {
	return b.subscriptionOp(IxResumeSubscription, subscriber, plan)
}

// CancelSubscription accounts: [subscriber, subscription, plan].
func (b *TxBuilder) CancelSubscription(subscriber, plan model.Address) (*Instruction, error) {
	return b.subscriptionOp(IxCancelSubscription, subscriber, plan)
}

func (b *TxBuilder) subscriptionOp(name string, subscriber, plan model.Address) (*Instruction, error) {
	sub, _, err := b.pda.SubscriptionAddress(subscriber, plan)
	if err != nil {
		return nil, err
	}
	return b.build(name, nil, signer(subscriber), writable(sub), writable(plan))
}

// WithdrawFunds accounts: [provider, plan, vault, destination].
func (b *TxBuilder) WithdrawFunds(provider model.Address, planID string, destination model.Address, amount uint64) (*Instruction, error) {
	plan, _, err := b.pda.PlanAddress(provider, planID)
	if err != nil {
		return nil, err
	}
	vault, _, err := b.pda.VaultAddress(provider, planID)
	if err != nil {
		return nil, err
	}
	return b.build(IxWithdrawFunds, withdrawFundsArgs{Amount: amount},
		signer(provider), readonly(plan), writable(vault), writable(destination))
}

// SetPlanActive accounts: [provider, plan].
func (b *TxBuilder) SetPlanActive(provider model.Address, planID string, active bool) (*Instruction, error) {
	plan, _, err := b.pda.PlanAddress(provider, planID)
	if err != nil {
		return nil, err
	}
	return b.build(IxSetPlanActive, setPlanActiveArgs{Active: active}, signer(provider), writable(plan))
}

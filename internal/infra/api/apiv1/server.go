// Package apiv1 exposes the billing engine over JSON/HTTP under /api/v1.
package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
	ucport "subs3-ledger/internal/domain/ports/usecase"
	"subs3-ledger/internal/infra/api"
	"subs3-ledger/internal/usecase"
)

const maxBodyBytes = 64 << 10

type Server struct {
	billing    ucport.Billing
	dispatcher *usecase.Dispatcher
	log        *zerolog.Logger
}

func NewServer(billing ucport.Billing, dispatcher *usecase.Dispatcher, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{billing: billing, dispatcher: dispatcher, log: &l}
}

// RegisterAPIV1 mounts every route on r using absolute /api/v1 paths.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/manager", s.initialize)
		r.Get("/manager", s.getManager)

		r.Post("/plans", s.createPlan)
		r.Get("/plans/{address}", s.getPlan)
		r.Post("/plans/{address}/subscribe", s.subscribe)
		r.Post("/plans/{address}/status", s.setPlanStatus)
		r.Post("/plans/{address}/withdraw", s.withdraw)
		r.Get("/providers/{address}/plans", s.listProviderPlans)

		r.Get("/subscriptions/due", s.listDue)
		r.Get("/subscriptions/{address}", s.getSubscription)
		r.Post("/subscriptions/{address}/pay", s.pay)
		r.Post("/subscriptions/{address}/pause", s.pause)
		r.Post("/subscriptions/{address}/resume", s.resume)
		r.Post("/subscriptions/{address}/cancel", s.cancel)
		r.Get("/subscribers/{address}/subscriptions", s.listSubscriberSubscriptions)

		r.Get("/addresses/plan", s.planAddress)
		r.Get("/addresses/subscription", s.subscriptionAddress)

		if s.dispatcher != nil {
			r.Post("/instructions", s.execute)
		}
	})
}

// ---- DTOs ----

type ManagerResponse struct {
	Address            model.Address `json:"address"`
	Authority          model.Address `json:"authority"`
	TotalProviders     uint64        `json:"total_providers"`
	TotalSubscriptions uint64        `json:"total_subscriptions"`
}

type CreatePlanRequest struct {
	PlanID                string        `json:"plan_id"`
	Name                  string        `json:"name"`
	Description           string        `json:"description"`
	PricePerPeriod        uint64        `json:"price_per_period"`
	PeriodDurationSeconds int64         `json:"period_duration_seconds"`
	PaymentTokenMint      model.Address `json:"payment_token_mint"`
	MaxSubscribers        *uint32       `json:"max_subscribers,omitempty"`
}

type CreatePlanResponse struct {
	Plan  model.Address `json:"plan"`
	Vault model.Address `json:"vault"`
}

type Plan struct {
	Address               model.Address `json:"address"`
	Provider              model.Address `json:"provider"`
	PlanID                string        `json:"plan_id"`
	Name                  string        `json:"name"`
	Description           string        `json:"description"`
	PricePerPeriod        uint64        `json:"price_per_period"`
	PeriodDurationSeconds int64         `json:"period_duration_seconds"`
	PaymentTokenMint      model.Address `json:"payment_token_mint"`
	MaxSubscribers        *uint32       `json:"max_subscribers,omitempty"`
	CurrentSubscribers    uint32        `json:"current_subscribers"`
	TotalRevenue          uint64        `json:"total_revenue"`
	IsActive              bool          `json:"is_active"`
	CreatedAt             int64         `json:"created_at"`
}

type Subscription struct {
	Address           model.Address `json:"address"`
	Subscriber        model.Address `json:"subscriber"`
	Plan              model.Address `json:"plan"`
	StartTime         int64         `json:"start_time"`
	NextPaymentDue    int64         `json:"next_payment_due"`
	IsActive          bool          `json:"is_active"`
	IsPaused          bool          `json:"is_paused"`
	PausedAt          *int64        `json:"paused_at,omitempty"`
	CancelledAt       *int64        `json:"cancelled_at,omitempty"`
	TotalPaymentsMade uint32        `json:"total_payments_made"`
	TotalAmountPaid   uint64        `json:"total_amount_paid"`
	PaymentNonce      uint64        `json:"payment_nonce"`
}

type SubscribeResponse struct {
	Subscription   model.Address `json:"subscription"`
	StartTime      int64         `json:"start_time"`
	NextPaymentDue int64         `json:"next_payment_due"`
}

type PayRequest struct {
	FundingSource model.Address `json:"funding_source"`
}

type PaymentResponse struct {
	Amount         uint64 `json:"amount"`
	PaymentNumber  uint32 `json:"payment_number"`
	NextPaymentDue int64  `json:"next_payment_due"`
}

type PlanStatusRequest struct {
	Active bool `json:"active"`
}

type WithdrawRequest struct {
	Destination model.Address `json:"destination"`
	Amount      uint64        `json:"amount"`
}

type AddressResponse struct {
	Address model.Address `json:"address"`
}

func toPlan(addr model.Address, p *model.SubscriptionPlan) Plan {
	return Plan{
		Address:               addr,
		Provider:              p.Provider,
		PlanID:                p.PlanID,
		Name:                  p.Name,
		Description:           p.Description,
		PricePerPeriod:        p.PricePerPeriod,
		PeriodDurationSeconds: p.PeriodDurationSeconds,
		PaymentTokenMint:      p.PaymentTokenMint,
		MaxSubscribers:        p.MaxSubscribers,
		CurrentSubscribers:    p.CurrentSubscribers,
		TotalRevenue:          p.TotalRevenue,
		IsActive:              p.IsActive,
		CreatedAt:             p.CreatedAt,
	}
}

func toSubscription(addr model.Address, s *model.Subscription) Subscription {
	return Subscription{
		Address:           addr,
		Subscriber:        s.Subscriber,
		Plan:              s.SubscriptionPlan,
		StartTime:         s.StartTime,
		NextPaymentDue:    s.NextPaymentDue,
		IsActive:          s.IsActive,
		IsPaused:          s.IsPaused,
		PausedAt:          s.PausedAt,
		CancelledAt:       s.CancelledAt,
		TotalPaymentsMade: s.TotalPaymentsMade,
		TotalAmountPaid:   s.TotalAmountPaid,
		PaymentNonce:      s.PaymentNonce,
	}
}

// ---- handlers ----

func (s *Server) initialize(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	addr, err := s.billing.Initialize(r.Context(), caller)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, AddressResponse{Address: addr})
}

func (s *Server) getManager(w http.ResponseWriter, r *http.Request) {
	m, err := s.billing.GetManager(r.Context())
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	addr, err := s.billing.GetManagerAddress()
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, ManagerResponse{
		Address:            addr,
		Authority:          m.Authority,
		TotalProviders:     m.TotalProviders,
		TotalSubscriptions: m.TotalSubscriptions,
	})
}

func (s *Server) createPlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.billing.CreatePlan(r.Context(), principal(r), ucport.CreatePlanParams{
		PlanID:                req.PlanID,
		Name:                  req.Name,
		Description:           req.Description,
		PricePerPeriod:        req.PricePerPeriod,
		PeriodDurationSeconds: req.PeriodDurationSeconds,
		PaymentTokenMint:      req.PaymentTokenMint,
		MaxSubscribers:        req.MaxSubscribers,
	})
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, CreatePlanResponse{Plan: res.Plan, Vault: res.Vault})
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	p, err := s.billing.GetPlan(r.Context(), addr)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toPlan(addr, p))
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	plan, ok := pathAddress(w, r)
	if !ok {
		return
	}
	res, err := s.billing.Subscribe(r.Context(), principal(r), plan)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, SubscribeResponse{
		Subscription:   res.Subscription,
		StartTime:      res.StartTime,
		NextPaymentDue: res.NextPaymentDue,
	})
}

func (s *Server) setPlanStatus(w http.ResponseWriter, r *http.Request) {
	plan, ok := pathAddress(w, r)
	if !ok {
		return
	}
	var req PlanStatusRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.billing.SetPlanActive(r.Context(), principal(r), plan, req.Active); err != nil {
		api.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	plan, ok := pathAddress(w, r)
	if !ok {
		return
	}
	var req WithdrawRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.billing.WithdrawFunds(r.Context(), principal(r), plan, req.Destination, req.Amount); err != nil {
		api.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listProviderPlans(w http.ResponseWriter, r *http.Request) {
	provider, ok := pathAddress(w, r)
	if !ok {
		return
	}
	views, err := s.billing.ListProviderPlans(r.Context(), provider)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	items := make([]Plan, 0, len(views))
	for _, v := range views {
		items = append(items, toPlan(v.Address, v.SubscriptionPlan))
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	sub, err := s.billing.GetSubscription(r.Context(), addr)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toSubscription(addr, sub))
}

func (s *Server) pay(w http.ResponseWriter, r *http.Request) {
	sub, ok := pathAddress(w, r)
	if !ok {
		return
	}
	var req PayRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.billing.ProcessPayment(r.Context(), principal(r), sub, req.FundingSource)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, PaymentResponse{
		Amount:         res.Amount,
		PaymentNumber:  res.PaymentNumber,
		NextPaymentDue: res.NextPaymentDue,
	})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	s.subscriptionOp(w, r, s.billing.PauseSubscription)
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	s.subscriptionOp(w, r, s.billing.ResumeSubscription)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	s.subscriptionOp(w, r, s.billing.CancelSubscription)
}

type subscriptionFunc func(ctx context.Context, caller, sub model.Address) error

func (s *Server) subscriptionOp(w http.ResponseWriter, r *http.Request, op subscriptionFunc) {
	sub, ok := pathAddress(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), principal(r), sub); err != nil {
		api.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSubscriberSubscriptions(w http.ResponseWriter, r *http.Request) {
	subscriber, ok := pathAddress(w, r)
	if !ok {
		return
	}
	views, err := s.billing.ListSubscriberSubscriptions(r.Context(), subscriber)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	writeSubscriptions(w, views)
}

func (s *Server) listDue(w http.ResponseWriter, r *http.Request) {
	views, err := s.billing.ListDueSubscriptions(r.Context())
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	writeSubscriptions(w, views)
}

func writeSubscriptions(w http.ResponseWriter, views []ucport.SubscriptionView) {
	items := make([]Subscription, 0, len(views))
	for _, v := range views {
		items = append(items, toSubscription(v.Address, v.Subscription))
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) planAddress(w http.ResponseWriter, r *http.Request) {
	provider, ok := queryAddress(w, r, "provider")
	if !ok {
		return
	}
	addr, err := s.billing.GetPlanAddress(provider, r.URL.Query().Get("plan_id"))
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, AddressResponse{Address: addr})
}

func (s *Server) subscriptionAddress(w http.ResponseWriter, r *http.Request) {
	subscriber, ok := queryAddress(w, r, "subscriber")
	if !ok {
		return
	}
	plan, ok := queryAddress(w, r, "plan")
	if !ok {
		return
	}
	addr, err := s.billing.GetSubscriptionAddress(subscriber, plan)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, AddressResponse{Address: addr})
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	var ix usecase.Instruction
	if !decode(w, r, &ix) {
		return
	}
	res, err := s.dispatcher.Execute(r.Context(), principal(r), &ix)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}

// ---- helpers ----

func principal(r *http.Request) model.Address {
	p, _ := api.PrincipalFrom(r.Context())
	return p
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "missing request body"
		}
		api.WriteError(w, http.StatusBadRequest, "bad_request", msg)
		return false
	}
	return true
}

func pathAddress(w http.ResponseWriter, r *http.Request) (model.Address, bool) {
	return parseAddress(w, chi.URLParam(r, "address"), "address")
}

func queryAddress(w http.ResponseWriter, r *http.Request, name string) (model.Address, bool) {
	return parseAddress(w, r.URL.Query().Get(name), name)
}

func parseAddress(w http.ResponseWriter, raw, name string) (model.Address, bool) {
	a, err := model.ParseAddress(raw)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, string(domain.KindValidation), fmt.Sprintf("%s: %v", name, err))
		return model.DefaultAddress, false
	}
	return a, true
}

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"subvault/internal/api"
	"subvault/internal/api/dto"
	"subvault/internal/ledger"
	"subvault/internal/subscription/service"
	"subvault/pkg/middleware"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

// PublicRoutes are readable and triggerable by anyone.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/api/platform/config", h.GetPlatformConfig)
	r.Get("/api/subscriptions", h.ListSubscriptions)
	r.Get("/api/subscriptions/{owner}", h.GetSubscription)
	r.Post("/api/subscriptions/{owner}/payments", h.ProcessPayment)
	r.Post("/api/subscriptions/{owner}/stake", h.StakeEscrow)
	r.Post("/api/subscriptions/{owner}/unstake", h.Unstake)
}

// WalletRoutes need a JWT-authenticated wallet.
func (h *Handler) WalletRoutes(r chi.Router) {
	r.Post("/api/platform/config", h.InitPlatformConfig)
	r.Put("/api/platform/config/fee-wallet", h.UpdateFeeWallet)
	r.Post("/api/subscriptions", h.InitializeSubscription)
	r.Post("/api/subscriptions/cancel", h.CancelSubscription)
}

// walletSigner turns the JWT wallet into a signer. The login handshake
// already verified a signature by that wallet.
func walletSigner(w http.ResponseWriter, r *http.Request) (ledger.Signer, bool) {
	wallet, ok := middleware.WalletFromContext(r.Context())
	if !ok {
		api.JSON(w, http.StatusUnauthorized, api.ErrorBody{Error: "wallet authentication required"})
		return ledger.Signer{}, false
	}
	return ledger.Verified(wallet), true
}

func ownerParam(w http.ResponseWriter, r *http.Request) (ledger.Address, bool) {
	owner, err := ledger.ParseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		api.BadRequest(w, err)
		return ledger.Address{}, false
	}
	return owner, true
}

func (h *Handler) GetPlatformConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Service.GetPlatformConfig(r.Context())
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) InitPlatformConfig(w http.ResponseWriter, r *http.Request) {
	signer, ok := walletSigner(w, r)
	if !ok {
		return
	}
	var req dto.InitPlatformConfigRequest
	if err := api.Decode(r, &req, dto.Validate); err != nil {
		api.BadRequest(w, err)
		return
	}
	cfg, err := h.Service.InitPlatformConfig(r.Context(), signer, req.FeeWallet)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusCreated, cfg)
}

func (h *Handler) UpdateFeeWallet(w http.ResponseWriter, r *http.Request) {
	signer, ok := walletSigner(w, r)
	if !ok {
		return
	}
	var req dto.UpdateFeeWalletRequest
	if err := api.Decode(r, &req, dto.Validate); err != nil {
		api.BadRequest(w, err)
		return
	}
	cfg, err := h.Service.UpdateFeeWallet(r.Context(), signer, req.FeeWallet)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) InitializeSubscription(w http.ResponseWriter, r *http.Request) {
	signer, ok := walletSigner(w, r)
	if !ok {
		return
	}
	var req dto.CreateSubscriptionRequest
	if err := api.Decode(r, &req, dto.Validate); err != nil {
		api.BadRequest(w, err)
		return
	}
	rec, err := h.Service.InitializeSubscription(r.Context(), signer, req.MonthlyAmount, req.FeeWallet)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.Service.ListStatuses(r.Context())
	if err != nil {
		api.Error(w, r, err)
		return
	}
	if statuses == nil {
		statuses = []*service.Status{}
	}
	api.JSON(w, http.StatusOK, statuses)
}

func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	st, err := h.Service.GetStatus(r.Context(), owner)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, st)
}

func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	var req dto.ProcessPaymentRequest
	if err := api.Decode(r, &req, dto.Validate); err != nil {
		api.BadRequest(w, err)
		return
	}
	paid, err := h.Service.ProcessPayment(r.Context(), owner, req.Recipient, req.FeeAccount)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, paid)
}

func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	signer, ok := walletSigner(w, r)
	if !ok {
		return
	}
	var req dto.CancelSubscriptionRequest
	if err := api.Decode(r, &req, dto.Validate); err != nil {
		api.BadRequest(w, err)
		return
	}
	canceled, err := h.Service.CancelSubscription(r.Context(), signer, req.Destination)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, canceled)
}

func (h *Handler) StakeEscrow(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	var req dto.StakeRequest
	if err := api.Decode(r, &req, dto.Validate); err != nil {
		api.BadRequest(w, err)
		return
	}
	res, err := h.Service.StakeEscrow(r.Context(), owner, req.StakeAccount, req.Lamports)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, res)
}

func (h *Handler) Unstake(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	var req dto.UnstakeRequest
	if err := api.Decode(r, &req, dto.Validate); err != nil {
		api.BadRequest(w, err)
		return
	}
	res, err := h.Service.Unstake(r.Context(), owner, req.StakeAccount, req.Recipient)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, res)
}

package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"subvault/internal/api"
	"subvault/internal/api/dto"
	"subvault/internal/notify"
	"subvault/pkg/middleware"
)

type Handler struct {
	Service *notify.Service
}

func NewHandler(svc *notify.Service) *Handler {
	return &Handler{Service: svc}
}

// Routes need a JWT-authenticated wallet; a wallet only manages its own contact.
func (h *Handler) Routes(r chi.Router) {
	r.Put("/api/notifications/contact", h.SetContact)
	r.Get("/api/notifications/contact", h.GetContact)
	r.Delete("/api/notifications/contact", h.DeleteContact)
}

func (h *Handler) SetContact(w http.ResponseWriter, r *http.Request) {
	wallet, ok := middleware.WalletFromContext(r.Context())
	if !ok {
		api.JSON(w, http.StatusUnauthorized, api.ErrorBody{Error: "wallet authentication required"})
		return
	}
	var req dto.ContactRequest
	if err := api.Decode(r, &req, dto.Validate); err != nil {
		api.BadRequest(w, err)
		return
	}
	c, err := h.Service.SetContact(r.Context(), wallet, req.Email)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, c)
}

func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	wallet, ok := middleware.WalletFromContext(r.Context())
	if !ok {
		api.JSON(w, http.StatusUnauthorized, api.ErrorBody{Error: "wallet authentication required"})
		return
	}
	c, err := h.Service.Contact(r.Context(), wallet)
	if errors.Is(err, notify.ErrContactNotFound) {
		api.JSON(w, http.StatusNotFound, api.ErrorBody{Error: err.Error()})
		return
	}
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	wallet, ok := middleware.WalletFromContext(r.Context())
	if !ok {
		api.JSON(w, http.StatusUnauthorized, api.ErrorBody{Error: "wallet authentication required"})
		return
	}
	err := h.Service.DeleteContact(r.Context(), wallet)
	if errors.Is(err, notify.ErrContactNotFound) {
		api.JSON(w, http.StatusNotFound, api.ErrorBody{Error: err.Error()})
		return
	}
	if err != nil {
		api.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

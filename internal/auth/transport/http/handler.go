package http

import (
	"errors"
	"net/http"

	"github.com/mr-tron/base58"

	"subvault/internal/api"
	"subvault/internal/api/dto"
	"subvault/internal/auth"
)

type Handler struct {
	Service *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req dto.ChallengeRequest
	if err := api.Decode(r, &req, dto.Validate); err != nil {
		api.BadRequest(w, err)
		return
	}
	c, err := h.Service.NewChallenge(r.Context(), req.Wallet)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusCreated, c)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRequest
	if err := api.Decode(r, &req, dto.Validate); err != nil {
		api.BadRequest(w, err)
		return
	}
	sig, err := base58.Decode(req.Signature)
	if err != nil {
		api.BadRequest(w, err)
		return
	}
	session, err := h.Service.Verify(r.Context(), req.ChallengeID, req.Wallet, sig)
	switch {
	case errors.Is(err, auth.ErrChallengeNotFound), errors.Is(err, auth.ErrWalletMismatch), errors.Is(err, auth.ErrBadSignature):
		api.JSON(w, http.StatusUnauthorized, api.ErrorBody{Error: err.Error()})
		return
	case err != nil:
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, session)
}

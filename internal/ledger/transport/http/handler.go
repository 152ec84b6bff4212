package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"subvault/internal/api"
	"subvault/internal/api/dto"
	"subvault/internal/ledger"
	"subvault/pkg/middleware"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

type Handler struct {
	Store ledger.Store
	// Faucet enables the airdrop endpoint. Only set on devnet.
	Faucet bool
}

func NewHandler(store ledger.Store, faucet bool) *Handler {
	return &Handler{Store: store, Faucet: faucet}
}

func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/api/ledger/accounts/{address}", h.GetAccount)
	r.Get("/api/ledger/events", h.ListEvents)
	if h.Faucet {
		r.Post("/api/ledger/airdrop", h.Airdrop)
	}
}

func (h *Handler) WalletRoutes(r chi.Router) {
	r.Post("/api/ledger/transfer", h.Transfer)
}

// AccountView is an account plus its decoded program data, if any.
type AccountView struct {
	*ledger.Account
	Token *ledger.TokenAccount `json:"token,omitempty"`
	Stake *ledger.StakeState   `json:"stake,omitempty"`
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := ledger.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		api.BadRequest(w, err)
		return
	}
	h.writeAccount(w, r, addr)
}

func (h *Handler) writeAccount(w http.ResponseWriter, r *http.Request, addr ledger.Address) {
	var view AccountView
	err := h.Store.View(r.Context(), func(tx ledger.Tx) error {
		acc, err := tx.Get(r.Context(), addr)
		if err != nil {
			return err
		}
		view.Account = acc
		switch acc.Owner {
		case ledger.TokenProgramID:
			view.Token, _ = ledger.DecodeTokenAccount(acc)
		case ledger.StakeProgramID:
			view.Stake, _ = ledger.DecodeStakeState(acc)
		}
		return nil
	})
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, view)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxEventLimit {
			api.JSON(w, http.StatusBadRequest, api.ErrorBody{Error: fmt.Sprintf("limit must be between 1 and %d", maxEventLimit), Field: "limit"})
			return
		}
		limit = n
	}
	events, err := h.Store.Events(r.Context(), limit)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	if events == nil {
		events = []ledger.Event{}
	}
	api.JSON(w, http.StatusOK, events)
}

type transferResponse struct {
	From   ledger.Address `json:"from"`
	To     ledger.Address `json:"to"`
	Amount uint64         `json:"amount"`
	Mint   ledger.Address `json:"mint,omitzero"`
}

// Transfer moves lamports from the authenticated wallet, or tokens from a
// token account it controls when a mint is given.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	wallet, ok := middleware.WalletFromContext(r.Context())
	if !ok {
		api.JSON(w, http.StatusUnauthorized, api.ErrorBody{Error: "wallet authentication required"})
		return
	}
	var req dto.TransferRequest
	if err := api.Decode(r, &req, dto.Validate); err != nil {
		api.BadRequest(w, err)
		return
	}
	signer := ledger.Verified(wallet)
	resp := transferResponse{From: wallet, To: req.To, Amount: req.Amount, Mint: req.Mint}
	err := h.Store.Update(r.Context(), func(tx ledger.Tx) error {
		if req.Mint.IsZero() {
			return ledger.TransferLamports(r.Context(), tx, signer, req.To, req.Amount)
		}
		resp.From = req.From
		return transferTokens(r.Context(), tx, signer, req)
	})
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

func transferTokens(ctx context.Context, tx ledger.Tx, signer ledger.Signer, req dto.TransferRequest) error {
	from, _, err := ledger.LoadTokenAccount(ctx, tx, req.From)
	if err != nil {
		return err
	}
	if from.Mint != req.Mint {
		return fmt.Errorf("%w: %s holds %s", ledger.ErrMintMismatch, req.From, from.Mint)
	}
	return ledger.TransferTokens(ctx, tx, req.From, req.To, signer, req.Amount)
}

func (h *Handler) Airdrop(w http.ResponseWriter, r *http.Request) {
	var req dto.AirdropRequest
	if err := api.Decode(r, &req, dto.Validate); err != nil {
		api.BadRequest(w, err)
		return
	}
	err := h.Store.Update(r.Context(), func(tx ledger.Tx) error {
		if req.Lamports > 0 {
			if err := ledger.Airdrop(r.Context(), tx, req.Address, req.Lamports); err != nil {
				return err
			}
		}
		if req.Tokens > 0 {
			return ledger.MintTokens(r.Context(), tx, req.Address, req.Tokens)
		}
		return nil
	})
	if err != nil {
		api.Error(w, r, err)
		return
	}
	h.writeAccount(w, r, req.Address)
}

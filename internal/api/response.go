// Package api holds the JSON response helpers shared by the HTTP transports.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"subvault/internal/ledger"
	"subvault/internal/logger"
	"subvault/internal/subscription"
)

// ErrorBody is the error envelope of every API response.
type ErrorBody struct {
	Error    string                `json:"error"`
	Code     uint32                `json:"code,omitempty"`
	Name     string                `json:"name,omitempty"`
	Category subscription.Category `json:"category,omitempty"`
	Field    string                `json:"field,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// BadRequest writes a 400 for malformed or invalid input.
func BadRequest(w http.ResponseWriter, err error) {
	body := ErrorBody{Error: err.Error(), Category: "validation"}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		body.Field = verrs[0].Field()
		body.Error = verrs[0].Field() + " failed on " + verrs[0].Tag()
	}
	JSON(w, http.StatusBadRequest, body)
}

// Error writes err with the status its program error category maps to.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var pe *subscription.Error
	if errors.As(err, &pe) {
		JSON(w, StatusFor(pe.Category), ErrorBody{
			Error:    err.Error(),
			Code:     pe.Code,
			Name:     pe.Name,
			Category: pe.Category,
		})
		return
	}
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		JSON(w, http.StatusNotFound, ErrorBody{Error: err.Error(), Category: subscription.CategoryLookup})
	case errors.Is(err, ledger.ErrInsufficientLamports), errors.Is(err, ledger.ErrInsufficientTokens), errors.Is(err, ledger.ErrNotRentExempt):
		JSON(w, http.StatusUnprocessableEntity, ErrorBody{Error: err.Error(), Category: subscription.CategoryFunds})
	case errors.Is(err, ledger.ErrMissingSigner), errors.Is(err, ledger.ErrOwnerMismatch):
		JSON(w, http.StatusForbidden, ErrorBody{Error: err.Error(), Category: subscription.CategoryAuthorization})
	case errors.Is(err, ledger.ErrNotTokenAccount), errors.Is(err, ledger.ErrMintMismatch):
		JSON(w, http.StatusConflict, ErrorBody{Error: err.Error(), Category: subscription.CategoryState})
	default:
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		JSON(w, http.StatusInternalServerError, ErrorBody{Error: "internal error"})
	}
}

func StatusFor(c subscription.Category) int {
	switch c {
	case subscription.CategoryState:
		return http.StatusConflict
	case subscription.CategoryAuthorization:
		return http.StatusForbidden
	case subscription.CategoryFunds:
		return http.StatusUnprocessableEntity
	case subscription.CategoryLookup:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Decode reads a JSON body into v and validates it.
func Decode(r *http.Request, v any, validate *validator.Validate) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return validate.Struct(v)
}

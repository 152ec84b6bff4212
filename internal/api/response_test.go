package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subvault/internal/api/dto"
	"subvault/internal/ledger"
	"subvault/internal/subscription"
)

func TestErrorStatusByCategory(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{subscription.ErrSubscriptionInactive, http.StatusConflict},
		{fmt.Errorf("%w: nope", subscription.ErrUnauthorized), http.StatusForbidden},
		{subscription.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{subscription.ErrSubscriptionNotFound, http.StatusNotFound},
		{subscription.ErrStakeFailed, http.StatusInternalServerError},
		{ledger.ErrInsufficientLamports, http.StatusUnprocessableEntity},
		{ledger.ErrAccountNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}
}

func TestErrorBodyCarriesCode(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), subscription.ErrInsufficientFunds)

	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, uint32(6001), body.Code)
	assert.Equal(t, "InsufficientFunds", body.Name)
	assert.Equal(t, subscription.CategoryFunds, body.Category)
}

func TestDecodeValidates(t *testing.T) {
	var req dto.CancelSubscriptionRequest
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	err := Decode(r, &req, dto.Validate)
	require.Error(t, err)

	rec := httptest.NewRecorder()
	BadRequest(rec, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Destination")

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"destination":"bad!"}`))
	assert.Error(t, Decode(r, &req, dto.Validate))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"destination":"11111111111111111111111111111112"}`))
	assert.NoError(t, Decode(r, &req, dto.Validate))
}

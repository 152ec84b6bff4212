package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorResponse is the body of middleware-level rejections.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Value any    `json:"value,omitempty"`
}

const maxBodySize = 1 << 20

// ValidateRequest rejects POST/PUT requests that are not JSON or carry no
// body, and caps the body size.
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				writeReject(w, ErrorResponse{Error: "Invalid Content-Type, expected application/json"})
				return
			}
			if r.ContentLength == 0 {
				writeReject(w, ErrorResponse{Error: "Request body cannot be empty"})
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}

func writeReject(w http.ResponseWriter, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(resp)
}

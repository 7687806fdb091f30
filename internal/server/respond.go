package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rovshanmuradov/memeswap/internal/blockchain/solbc"
	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/jupiter"
)

type errorBody struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Field   string   `json:"field,omitempty"`
	Logs    []string `json:"logs,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

// writeFailure maps err onto a status. fallback names the failed action
// for errors without a more specific mapping.
func writeFailure(w http.ResponseWriter, err error, fallback string) {
	var (
		verr   *domain.ValidationError
		apiErr *jupiter.APIError
		bcErr  *solbc.BroadcastError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, domain.ErrNotAdmin):
		writeError(w, http.StatusForbidden, "Unauthorized: Not admin wallet", "")
	case errors.Is(err, domain.ErrBadSignature):
		writeError(w, http.StatusUnauthorized, "Invalid signature", "")
	case errors.Is(err, domain.ErrWalletCannotSign):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, domain.ErrDuplicate):
		writeError(w, http.StatusConflict, "already recorded", err.Error())
	case errors.As(err, &apiErr):
		writeError(w, apiErr.Status, "Jupiter API error", apiErr.Body)
	case errors.Is(err, domain.ErrNoQuote):
		writeError(w, http.StatusBadGateway, "no quote available", "")
	case errors.As(err, &bcErr):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: fallback, Details: bcErr.Message, Logs: bcErr.Logs})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, fallback, "upstream timed out")
	default:
		writeError(w, http.StatusInternalServerError, fallback, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("body", "malformed JSON")
	}
	return nil
}

// queryInt returns def when key is absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(key, "must be an integer")
	}
	return n, nil
}

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dedpost/platform/internal/app/services/payouts"
	"github.com/dedpost/platform/internal/app/storage"
)

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// writeServiceError maps domain sentinels onto HTTP statuses. Anything
// unrecognised is a transient storage failure and surfaces as 500 so a
// database outage is not mistaken for a rejected request.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, storage.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, payouts.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

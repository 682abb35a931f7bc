package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dedpost/platform/internal/app/services/payouts"
	"github.com/dedpost/platform/internal/app/storage"
)

func TestWriteServiceErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("user x: %w", storage.ErrNotFound), http.StatusNotFound},
		{"duplicate", fmt.Errorf("user x: %w", storage.ErrDuplicate), http.StatusConflict},
		{"insufficient funds", fmt.Errorf("settle: %w", storage.ErrInsufficientFunds), http.StatusBadRequest},
		{"invalid amount", payouts.ErrInvalidAmount, http.StatusBadRequest},
		{"validation", fmt.Errorf("caption must not be empty: %w", storage.ErrInvalidInput), http.StatusBadRequest},
		// Anything unrecognised is a storage failure, not a client mistake.
		{"transient storage failure", fmt.Errorf("settle payout: connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tc.err)
			if rec.Code != tc.want {
				t.Fatalf("expected status %d for %v, got %d", tc.want, tc.err, rec.Code)
			}
		})
	}
}

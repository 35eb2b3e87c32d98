package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Message string `json:"message"`
}

// quotaDeniedResponse is the payment-required body for an exhausted free
// quota: the upsell message plus the full entitlement snapshot, flattened.
type quotaDeniedResponse struct {
	Message string `json:"message"`
	model.Entitlement
}

func writeQuotaDenied(w http.ResponseWriter, ent model.Entitlement) {
	writeJSON(w, http.StatusPaymentRequired, quotaDeniedResponse{
		Message:     "Monthly request limit reached. Upgrade to keep the requests coming.",
		Entitlement: ent,
	})
}

// writeError maps domain sentinels onto HTTP statuses. Anything unmapped is
// an internal error; the concrete cause stays in the server log, not the
// response body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request"})
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "invalid credentials"})
	case errors.Is(err, domain.ErrUpgradeRequired):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Message: "This feature requires an active trial or Pro subscription."})
	case errors.Is(err, domain.ErrRequestQuotaExceeded):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Message: "Monthly request limit reached. Upgrade to keep the requests coming."})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "not found"})
	case errors.Is(err, domain.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "email already registered"})
	case errors.Is(err, domain.ErrSlugTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "page handle already taken"})
	case errors.Is(err, domain.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "already exists"})
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "payments are not configured"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
	}
}

// writeBillingError is writeError with one extra rule: an error that is no
// domain sentinel came from the payment processor, and the client should see
// a 502 rather than a generic 500.
func writeBillingError(w http.ResponseWriter, err error) {
	if isDomainError(err) {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusBadGateway, errorResponse{Message: "payment provider unavailable"})
}

func isDomainError(err error) bool {
	for _, sentinel := range []error{
		domain.ErrInvalidArgument,
		domain.ErrInvalidCredentials,
		domain.ErrUpgradeRequired,
		domain.ErrRequestQuotaExceeded,
		domain.ErrNotFound,
		domain.ErrEmailTaken,
		domain.ErrSlugTaken,
		domain.ErrAlreadyExists,
		domain.ErrGatewayNotConfigured,
		domain.ErrOperationFailed,
		domain.ErrReadDatabaseRow,
		domain.ErrInvalidExecContext,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

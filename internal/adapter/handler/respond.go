package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
	"github.com/mvtrinh/sneaker-market/internal/core/service"
)

type errorResponse struct {
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	VariantID      string `json:"variant_id,omitempty"`
	AvailableStock *int   `json:"available_stock,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Kind: kind, Message: message})
}

// writeServiceError maps domain and service errors onto the HTTP
// contract. Unrecognized errors are logged and come back as an opaque
// 500 so storage details never leak into responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *domain.InsufficientStockError
	var orderState *domain.OrderStateError

	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Kind:           "insufficient_stock",
			Message:        err.Error(),
			VariantID:      insufficient.VariantID,
			AvailableStock: &insufficient.Available,
		})
	case errors.Is(err, domain.ErrReservationNotFound):
		// the extend contract reports a missing hold as a bad request
		writeError(w, http.StatusBadRequest, "not_found", err.Error())
	case errors.Is(err, domain.ErrVariantNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrCartLineNotFound),
		errors.Is(err, domain.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.As(err, &orderState),
		errors.Is(err, service.ErrInvalidActor),
		errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidPurgeAge):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrAnonymousActor):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrCheckoutInProgress):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Stringer("actor", actorFrom(r)).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/burdemar/orderflow/internal/auth"
	"github.com/burdemar/orderflow/internal/catalog"
	"github.com/burdemar/orderflow/internal/domain"
)

const (
	codeNotFound          = "not_found"
	codeInvalidRequest    = "invalid_request"
	codeInsufficientStock = "insufficient_stock"
	codeInvalidState      = "invalid_state"
	codeProductInUse      = "product_in_use"
	codeConflictRetry     = "conflict_retry"
	codeBadCredentials    = "bad_credentials"
	codeInternalError     = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`

	// Set only for insufficient_stock.
	ProductID string `json:"product_id,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to stable statuses and machine-readable
// codes. Unexpected failures become a generic 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	var insufficient domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     insufficient.Error(),
			Code:      codeInsufficientStock,
			ProductID: insufficient.ProductID,
			Available: &insufficient.Available,
			Requested: &insufficient.Requested,
		})
		return
	}
	var invalidState domain.InvalidStateError
	if errors.As(err, &invalidState) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalidState.Error(), Code: codeInvalidState})
		return
	}

	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: codeNotFound})
	case errors.Is(err, domain.ErrProductInUse):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: codeProductInUse})
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, catalog.ErrNameRequired),
		errors.Is(err, catalog.ErrNegativePrice),
		errors.Is(err, catalog.ErrNegativeStock):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: codeInvalidRequest})
	case errors.Is(err, domain.ErrTxConflict):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Code: codeConflictRetry})
	case errors.Is(err, auth.ErrBadCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Code: codeBadCredentials})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: codeInternalError})
	}
}

package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"fleet-settlement/internal/auth"
	expense "fleet-settlement/internal/expense/domain"
	ledger "fleet-settlement/internal/ledger/domain"
	"fleet-settlement/internal/money"
	settlement "fleet-settlement/internal/settlement/domain"
	"fleet-settlement/internal/storage"
)

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteFile writes a download body.
func WriteFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	if filename != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// RespondError maps domain errors to status codes. Storage failures are
// reported without their cause.
func RespondError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status := StatusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	http.Error(w, message, status)
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, storage.ErrStorageFailure):
		return http.StatusInternalServerError
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrCompanyMismatch):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrEarningNotFound),
		errors.Is(err, settlement.ErrSettlementNotFound),
		errors.Is(err, expense.ErrExpenseNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateEarning),
		errors.Is(err, ledger.ErrAlreadySettled),
		errors.Is(err, settlement.ErrSettlementExists),
		errors.Is(err, settlement.ErrVersionConflict),
		errors.Is(err, settlement.ErrInvalidTransition),
		errors.Is(err, settlement.ErrImmutableAfterConfirmation):
		return http.StatusConflict
	case errors.Is(err, settlement.ErrNoEarningsInPeriod):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidWeek),
		errors.Is(err, ledger.ErrInvalidPeriod),
		errors.Is(err, ledger.ErrUnknownPlatform),
		errors.Is(err, ledger.ErrEmptyContractID),
		errors.Is(err, ledger.ErrEmptyCompanyID),
		errors.Is(err, settlement.ErrInvalidPeriod),
		errors.Is(err, settlement.ErrEmptyContractID),
		errors.Is(err, settlement.ErrEarningOutsidePeriod),
		errors.Is(err, settlement.ErrCompanyMismatch),
		errors.Is(err, expense.ErrUnknownType),
		errors.Is(err, expense.ErrEmptyCompanyID),
		errors.Is(err, expense.ErrInvalidRange),
		errors.Is(err, expense.ErrMissingDate):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

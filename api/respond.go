package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/validator"
)

// statusFor maps an operation error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, validator.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, validator.ErrTypeNotAllowed):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrBusy):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// writeResult encodes r as the response envelope. A failed result overrides
// status with the code its error maps to.
func writeResult[T any](w http.ResponseWriter, status int, r core.Result[T]) {
	if !r.IsOk() {
		status = statusFor(r.Err())
	}
	writeJSON(w, status, r)
}

func writeData[T any](w http.ResponseWriter, status int, v T) {
	writeResult(w, status, core.Ok(v))
}

func writeError(w http.ResponseWriter, err error) {
	writeResult(w, 0, core.Fail[any](err))
}

func writeUnauthenticated(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, struct {
		Error core.ErrorBody `json:"error"`
	}{core.ErrorBody{Kind: "unauthenticated", Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("error writing response", "err", err)
	}
}

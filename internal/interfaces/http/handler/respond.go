package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/dreschagin/risk-dashboard/internal/application/selection"
	"github.com/dreschagin/risk-dashboard/internal/application/usecase"
)

const maxRequestBody = 1 << 16

// errorResponse тело ответа с ошибкой
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}

func writeError(w http.ResponseWriter, status int, message string) {
	_ = writeJSON(w, status, errorResponse{Error: message})
}

// writeUseCaseError переводит ошибки use case в HTTP статусы
func writeUseCaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, selection.ErrEmptySelection):
		writeError(w, http.StatusBadRequest, "selection id is required")
	case errors.Is(err, usecase.ErrNotMounted), errors.Is(err, selection.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "dashboard is not running")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, dest any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

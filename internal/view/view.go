package view

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

type Response[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Request any    `json:"request,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Request any    `json:"request,omitempty"`
}

type ListResponse[T any] struct {
	Total int64 `json:"total"`
	Items []T   `json:"items"`
}

// CreateResponse builds the envelope every endpoint returns. The request is
// echoed back only on failures.
func CreateResponse[T any](data T, err error, req any, message string) Response[T] {
	resp := Response[T]{
		Data:    data,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
		resp.Request = req
	}
	return resp
}

// StatusCode maps the domain error taxonomy onto HTTP.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAlreadyTerminal),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrAlreadyDisputed):
		return http.StatusConflict
	case errors.Is(err, model.ErrExternalVerification):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

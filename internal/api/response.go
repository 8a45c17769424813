package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Itemsvc/internal/repo"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeValidationError ErrorCode = "VALIDATION_ERROR"
	ErrCodeInternalError   ErrorCode = "INTERNAL_ERROR"
)

// Сообщения об ошибках.
const (
	MsgItemNotFound        = "Item not found"
	MsgSimulatedError      = "Simulated internal server error"
	MsgInvalidRequestBody  = "invalid request body"
	MsgInternalServerError = "internal server error"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Detail string    `json:"detail"`
	Code   ErrorCode `json:"code"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет ответ 200 с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent отправляет ответ без тела (204).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, detail string) {
	JSON(w, status, ErrorResponse{Detail: detail, Code: code})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, detail string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, detail)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, detail string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, detail)
}

// ValidationError отправляет ошибку 422.
func ValidationError(w http.ResponseWriter, detail string) {
	Error(w, http.StatusUnprocessableEntity, ErrCodeValidationError, detail)
}

// InternalError логирует err и отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, MsgInternalServerError)
}

// HandleStoreError преобразует ошибку хранилища в HTTP ответ.
// Возвращает true, если ответ уже отправлен.
func HandleStoreError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, MsgItemNotFound)
		return true
	}

	InternalError(w, logger, err)
	return true
}

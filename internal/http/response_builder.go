// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the mapping
// from service errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"paluwagan/internal/core"
	"paluwagan/internal/log"
	"paluwagan/internal/services"
	"paluwagan/internal/storage"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body sends no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", log.FieldError, err.Error())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// FieldError is one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

// ErrorResponse creates an error response with the given status and message.
func ErrorResponse(statusCode int, message string, fields ...FieldError) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: message, Fields: fields})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

var conflictErrors = []error{
	core.ErrInvalidTransition,
	services.ErrGroupFull,
	services.ErrAlreadyMember,
	services.ErrNotMember,
	services.ErrRoleAlreadySelected,
	services.ErrGroupNotActive,
}

// statusFor maps a service error to its HTTP status and error type.
func statusFor(err error) (int, string) {
	var ve core.ValidationError
	var ves core.ValidationErrors
	switch {
	case errors.As(err, &ves), errors.As(err, &ve):
		return http.StatusUnprocessableEntity, log.ErrorTypeValidation
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, log.ErrorTypeValidation
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, log.ErrorTypeNotFound
	case errors.Is(err, core.ErrUnknownFrequency):
		return http.StatusUnprocessableEntity, log.ErrorTypeValidation
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict, log.ErrorTypeConflict
		}
	}
	var se *storage.StorageError
	if errors.As(err, &se) {
		return http.StatusInternalServerError, log.ErrorTypeDatabase
	}
	return http.StatusInternalServerError, log.ErrorTypeInternal
}

// fieldErrors flattens validation errors into response fields.
func fieldErrors(err error) []FieldError {
	var ves core.ValidationErrors
	if errors.As(err, &ves) {
		out := make([]FieldError, len(ves))
		for i, v := range ves {
			out[i] = FieldError{Field: v.Field, Message: v.Message}
		}
		return out
	}
	var ve core.ValidationError
	if errors.As(err, &ve) {
		return []FieldError{{Field: ve.Field, Message: ve.Message}}
	}
	return nil
}

// writeError logs err and sends the matching error response. Internal errors
// are reported without details.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, errType := statusFor(err)
	logger := log.NewStructuredLogger(log.FromContext(r.Context()))

	if status >= http.StatusInternalServerError {
		logger.LogError(r.Context(), "Request failed", err, errType, op, nil)
		InternalServerError().Write(w)
		return
	}

	fields := fieldErrors(err)
	msg := err.Error()
	if len(fields) > 0 {
		msg = "validation failed"
	}
	ErrorResponse(status, msg, fields...).Write(w)
}

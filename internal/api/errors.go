package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	genapi "github.com/USSTM/asset-backend/api"
	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/image"
	"github.com/USSTM/asset-backend/internal/lifecycle"
	"github.com/USSTM/asset-backend/internal/middleware"
	"github.com/USSTM/asset-backend/internal/notifications"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeAuthRequired      = "AUTHENTICATION_REQUIRED"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeResourceNotFound  = "RESOURCE_NOT_FOUND"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeConflict          = "CONFLICT"
	CodeAccountLocked     = "ACCOUNT_LOCKED"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternalError     = "INTERNAL_ERROR"
)

var statusByCode = map[string]int{
	CodeValidationError:   http.StatusBadRequest,
	CodeAuthRequired:      http.StatusUnauthorized,
	CodePermissionDenied:  http.StatusForbidden,
	CodeResourceNotFound:  http.StatusNotFound,
	CodeInsufficientStock: http.StatusBadRequest,
	CodeConflict:          http.StatusConflict,
	CodeAccountLocked:     http.StatusUnauthorized,
	CodeRateLimited:       http.StatusTooManyRequests,
	CodeInternalError:     http.StatusInternalServerError,
}

type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// additional error context
type ErrorContext map[string]interface{}

type ErrorBody struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
	Context ErrorContext  `json:"context,omitempty"`
}

// ErrorResponse is the envelope every failed request returns.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// builder pattern
type ErrorBuilder struct {
	Code    string
	Message string
	Details []ErrorDetail
	Context ErrorContext
}

func NewError(code, message string) *ErrorBuilder {
	return &ErrorBuilder{Code: code, Message: message}
}

func (e *ErrorBuilder) WithDetails(details []ErrorDetail) *ErrorBuilder {
	e.Details = details
	return e
}

func (e *ErrorBuilder) WithContext(context ErrorContext) *ErrorBuilder {
	e.Context = context
	return e
}

func (e *ErrorBuilder) Status() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (e *ErrorBuilder) Create() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Context: e.Context,
	}}
}

// builder pattern extensions

func Unauthorized(msg string) *ErrorBuilder {
	return NewError(CodeAuthRequired, msg)
}

func PermissionDenied(msg string) *ErrorBuilder {
	return NewError(CodePermissionDenied, msg)
}

func NotFound(resource string) *ErrorBuilder {
	return NewError(CodeResourceNotFound, resource+" not found")
}

func ValidationErr(msg string, details []ErrorDetail) *ErrorBuilder {
	return NewError(CodeValidationError, msg).WithDetails(details)
}

func InsufficientStockErr(msg string) *ErrorBuilder {
	return NewError(CodeInsufficientStock, msg)
}

func InternalError(msg string) *ErrorBuilder {
	return NewError(CodeInternalError, msg)
}

func ConflictErr(msg string) *ErrorBuilder {
	return NewError(CodeConflict, msg)
}

func AccountLocked(until time.Time) *ErrorBuilder {
	return NewError(CodeAccountLocked, "Account is temporarily locked").
		WithContext(ErrorContext{"locked_until": until.UTC().Format(time.RFC3339)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, e *ErrorBuilder) {
	writeJSON(w, e.Status(), e.Create())
}

// apiError renders the envelope for strict handlers.
func apiError(e *ErrorBuilder) genapi.ErrorJSONResponse {
	var out genapi.ErrorJSONResponse
	out.Error.Code = e.Code
	out.Error.Message = e.Message
	if len(e.Details) > 0 {
		details := make([]genapi.ErrorDetail, 0, len(e.Details))
		for _, d := range e.Details {
			details = append(details, genapi.ErrorDetail{Field: &d.Field, Message: &d.Message})
		}
		out.Error.Details = &details
	}
	if len(e.Context) > 0 {
		ctx := map[string]interface{}(e.Context)
		out.Error.Context = &ctx
	}
	return out
}

// fail translates err into the error envelope. resource names the entity for
// not-found messages. Unknown errors are logged and hidden behind a generic
// message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, resource string, err error) {
	writeError(w, s.classify(r, resource, err))
}

func (s *Server) classify(r *http.Request, resource string, err error) *ErrorBuilder {
	var lockErr *auth.LockoutError
	var pgErr *pgconn.PgError

	switch {
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, pgx.ErrNoRows),
		errors.Is(err, notifications.ErrNotFound):
		return NotFound(resource)
	case errors.Is(err, lifecycle.ErrUnavailable):
		return InsufficientStockErr(err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrInvalidQuantity),
		errors.Is(err, lifecycle.ErrNotBorrowable),
		errors.Is(err, lifecycle.ErrInvalidDates),
		errors.Is(err, rbac.ErrInvalidDocument),
		errors.Is(err, image.ErrInvalidImage):
		return ValidationErr(err.Error(), nil)
	case errors.As(err, &lockErr):
		return AccountLocked(lockErr.Until)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return Unauthorized("Invalid email or password")
	case errors.Is(err, auth.ErrRefreshInvalid), errors.Is(err, auth.ErrUnauthenticated):
		return Unauthorized("Authentication required")
	case errors.As(err, &pgErr):
		switch pgErr.Code {
		case "23505":
			return ConflictErr(resource + " already exists")
		case "23503":
			return ConflictErr(resource + " references a missing or in-use record")
		case "23514":
			return ValidationErr(resource+" violates a constraint", []ErrorDetail{{Field: pgErr.ConstraintName, Message: pgErr.Message}})
		}
	}

	middleware.GetLoggerFromContext(r.Context()).Error("Request failed",
		"resource", resource, "error", err)
	return InternalError("An unexpected error occurred.")
}

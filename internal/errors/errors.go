// Package errors provides custom error types for the budget tracker.
// All service-layer errors should use AppError so that the HTTP layer can
// render consistent responses without leaking store internals to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, ErrValidation) holds for values built with Wrap or WithMessage.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "AUTHORIZATION_ERROR", Message: "Your role is not allowed to perform this action", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrValidation        = &AppError{Code: "VALIDATION_ERROR", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrInvalidTransition = &AppError{Code: "INVALID_TRANSITION", Message: "Status change is not allowed", StatusCode: http.StatusConflict}
	ErrNotFound          = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer    = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Remote store and change feed errors.
var (
	ErrStore = &AppError{Code: "STORE_ERROR", Message: "The data store rejected the request", StatusCode: http.StatusBadGateway}
	ErrSync  = &AppError{Code: "SYNC_ERROR", Message: "Live updates are unavailable", StatusCode: http.StatusServiceUnavailable}
)

// Entity errors.
var (
	ErrUserNotFound         = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrBudgetNotFound       = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
	ErrBudgetNotActive      = &AppError{Code: "VALIDATION_ERROR", Message: "Budget is not accepting expenses", StatusCode: http.StatusBadRequest}
	ErrAnomalyNotFound      = &AppError{Code: "ANOMALY_NOT_FOUND", Message: "Anomaly not found", StatusCode: http.StatusNotFound}
	ErrNotificationNotFound = &AppError{Code: "NOTIFICATION_NOT_FOUND", Message: "Notification not found", StatusCode: http.StatusNotFound}
	ErrFeedbackNotFound     = &AppError{Code: "FEEDBACK_NOT_FOUND", Message: "No report found with this tracking code", StatusCode: http.StatusNotFound}
)

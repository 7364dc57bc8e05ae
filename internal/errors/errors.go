// Package errors provides custom error types for the SpendLens API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
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

// Is matches any AppError carrying the same code, so wrapped copies of a
// sentinel still satisfy errors.Is(err, ErrX).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
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
	ErrRateLimited        = &AppError{Code: "RATE_LIMITED", Message: "Too many requests, please try again later", StatusCode: http.StatusTooManyRequests}
)

// General errors.
var (
	ErrInvalidInput     = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrValidationFailed = &AppError{Code: "VALIDATION_FAILED", Message: "Malformed query parameters", StatusCode: http.StatusBadRequest}
	ErrNotFound         = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer   = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
	ErrWrongPassword  = &AppError{Code: "WRONG_PASSWORD", Message: "Current password is incorrect", StatusCode: http.StatusBadRequest}
	ErrSamePassword   = &AppError{Code: "SAME_PASSWORD", Message: "New password cannot be the same as the old password", StatusCode: http.StatusBadRequest}
)

// Category errors.
var (
	ErrCategoryNotFound      = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrDuplicateCategory     = &AppError{Code: "DUPLICATE_CATEGORY", Message: "A category with this name already exists", StatusCode: http.StatusConflict}
	ErrItemAlreadyInCategory = &AppError{Code: "ITEM_ALREADY_IN_CATEGORY", Message: "Item already in category", StatusCode: http.StatusConflict}
)

// Item errors.
var (
	ErrItemNotFound = &AppError{Code: "ITEM_NOT_FOUND", Message: "Item not found", StatusCode: http.StatusNotFound}
)

// Transaction errors.
var (
	ErrTransactionNotFound = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidKind         = &AppError{Code: "INVALID_TRANSACTION_KIND", Message: "Transaction kind must be expense or income", StatusCode: http.StatusBadRequest}
	ErrNothingToExport     = &AppError{Code: "NOTHING_TO_EXPORT", Message: "No transactions found for export", StatusCode: http.StatusNotFound}
)

// Analytics & realtime errors.
var (
	ErrAggregationFailed = &AppError{Code: "AGGREGATION_FAILED", Message: "Analytics could not be computed", StatusCode: http.StatusInternalServerError}
	// ErrBroadcastPartialFailure is only ever logged; clients never see it.
	ErrBroadcastPartialFailure = &AppError{Code: "BROADCAST_PARTIAL_FAILURE", Message: "Delivery to a subscriber failed", StatusCode: http.StatusInternalServerError}
)

// Offer errors.
var (
	ErrOfferNotFound = &AppError{Code: "OFFER_NOT_FOUND", Message: "Offer not found", StatusCode: http.StatusNotFound}
)

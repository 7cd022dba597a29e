package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how the caller should react to it.
type Kind string

const (
	KindValidation  Kind = "validation"  // malformed input, do not retry
	KindBusiness    Kind = "business"    // request must change (blocked number, short balance)
	KindConflict    Kind = "conflict"    // concurrent mutation, retry with fresh state
	KindUnavailable Kind = "unavailable" // storage/transport failure, retry with backoff
	KindAuth        Kind = "auth"
	KindInternal    Kind = "internal"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string                 `json:"error_code"`
	Message    string                 `json:"message"`
	Kind       Kind                   `json:"kind"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a client-visible detail field.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Retryable reports whether repeating the same request may succeed.
func (e *AppError) Retryable() bool {
	return e.Kind == KindConflict || e.Kind == KindUnavailable
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Kind:       kindForStatus(httpStatus),
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	e := New(code, message, httpStatus)
	e.Err = err
	return e
}

// KindOf returns the Kind of err, or KindInternal when err is not an AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return KindValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusServiceUnavailable:
		return KindUnavailable
	case status == http.StatusPaymentRequired || status == http.StatusUnprocessableEntity ||
		status == http.StatusTooManyRequests:
		return KindBusiness
	default:
		return KindInternal
	}
}

// ---- Wagering (BET) ----

func ErrInvalidBet(message string) *AppError {
	return New("BET_001", message, http.StatusBadRequest)
}

func ErrBlockedNumber(number string) *AppError {
	return New("BET_002", fmt.Sprintf("Number %s is blocked", number), http.StatusUnprocessableEntity).
		WithDetail("number", number)
}

func ErrInsufficientBalance(shortfall int64) *AppError {
	return New("BET_003", "Insufficient balance", http.StatusPaymentRequired).
		WithDetail("shortfall", shortfall)
}

func ErrConcurrentModification() *AppError {
	return New("BET_004", "Balance changed concurrently, retry with fresh state", http.StatusConflict)
}

func ErrRetryLater() *AppError {
	return New("BET_005", "Too many concurrent updates, please retry later", http.StatusServiceUnavailable)
}

// ---- Accounts (ACC) ----

func ErrAccountNotFound(username string) *AppError {
	return New("ACC_001", "Account not found", http.StatusNotFound).WithDetail("username", username)
}

func ErrInvalidAmount() *AppError {
	return New("ACC_002", "Amount must be positive", http.StatusBadRequest)
}

// ---- Block list (BLK) and market input (MKT) ----

func ErrInvalidBlock(message string) *AppError {
	return New("BLK_001", message, http.StatusBadRequest)
}

func ErrInvalidMarketInput(message string) *AppError {
	return New("MKT_001", message, http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrAdminRequired() *AppError {
	return New("AUTH_004", "Operator privileges required", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrStorageUnavailable(err error) *AppError {
	return Wrap("SYS_002", "Storage unavailable", http.StatusServiceUnavailable, err)
}

// Validation returns a generic request validation error.
func Validation(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}

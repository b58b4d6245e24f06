package dto

import (
	"net/http"
	"strings"
)

// Error codes returned in the response envelope. Domain errors keep their own
// code; the constants below are the ones produced by the HTTP layer itself or
// referenced by handlers.

// General error codes
const (
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeInvalidID  = "INVALID_ID"
	ErrCodeTooLarge   = "REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid       = "TOKEN_INVALID"
	ErrCodeTokenRevoked       = "TOKEN_REVOKED"
)

// Resource error codes
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	ErrCodeIdempotencyReused   = "IDEMPOTENCY_KEY_REUSED"
	ErrCodeOrderTaken          = "ORDER_ALREADY_TAKEN"
)

// Business rule error codes
const (
	ErrCodeInvalidState       = "INVALID_STATE"
	ErrCodeRestaurantClosed   = "RESTAURANT_CLOSED"
	ErrCodeMinOrderNotReached = "MIN_ORDER_NOT_REACHED"
)

// Rate limiting and upstream error codes
const (
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeOTPTooFrequent     = "OTP_TOO_FREQUENT"
	ErrCodeSMSUnavailable     = "SMS_UNAVAILABLE"
	ErrCodeGeocodingDown      = "GEOCODING_UNAVAILABLE"
	ErrCodePaymentUnavailable = "PAYMENT_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// -> 400 Bad Request
	ErrCodeBadRequest:           http.StatusBadRequest,
	ErrCodeValidation:           http.StatusBadRequest,
	ErrCodeInvalidID:            http.StatusBadRequest,
	"NO_ITEMS":                  http.StatusBadRequest,
	"NO_PRICES":                 http.StatusBadRequest,
	"DUPLICATE_SIZE":            http.StatusBadRequest,
	"TOO_MANY_ITEMS":            http.StatusBadRequest,
	"TOO_MANY_ADDRESSES":        http.StatusBadRequest,
	"NOT_AN_IMAGE":              http.StatusBadRequest,
	"UNSUPPORTED_IMAGE":         http.StatusBadRequest,
	"FILE_TOO_LARGE":            http.StatusBadRequest,
	"OTP_INVALID":               http.StatusBadRequest,
	"SIZE_NOT_AVAILABLE":        http.StatusBadRequest,
	"PRODUCT_UNAVAILABLE":       http.StatusBadRequest,
	"PRODUCT_NOT_IN_RESTAURANT": http.StatusBadRequest,

	// -> 401 Unauthorized
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeInvalidCredentials: http.StatusUnauthorized,
	ErrCodeTokenExpired:       http.StatusUnauthorized,
	ErrCodeTokenInvalid:       http.StatusUnauthorized,
	ErrCodeTokenRevoked:       http.StatusUnauthorized,
	"TOKEN_ERROR":             http.StatusUnauthorized,

	// -> 403 Forbidden
	ErrCodeForbidden:      http.StatusForbidden,
	"ACCOUNT_DEACTIVATED": http.StatusForbidden,
	"ACCOUNT_INACTIVE":    http.StatusForbidden,

	// -> 404 Not Found
	ErrCodeNotFound:     http.StatusNotFound,
	"ADDRESS_NOT_FOUND": http.StatusNotFound,
	"UNKNOWN_JOB":       http.StatusNotFound,

	// -> 409 Conflict
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeIdempotencyReused:   http.StatusConflict,
	ErrCodeOrderTaken:          http.StatusConflict,
	"ORDER_ALREADY_ASSIGNED":   http.StatusConflict,
	"TELEGRAM_ALREADY_LINKED":  http.StatusConflict,

	// -> 422 Unprocessable Entity
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeRestaurantClosed:   http.StatusUnprocessableEntity,
	ErrCodeMinOrderNotReached: http.StatusUnprocessableEntity,
	"OFFER_CLOSED":            http.StatusUnprocessableEntity,
	"NO_DRIVER":               http.StatusUnprocessableEntity,
	"OTP_TOO_MANY_ATTEMPTS":   http.StatusUnprocessableEntity,

	// -> 429 Too Many Requests
	ErrCodeTooManyRequests: http.StatusTooManyRequests,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeOTPTooFrequent:  http.StatusTooManyRequests,

	// -> 503 Service Unavailable
	ErrCodeSMSUnavailable:         http.StatusServiceUnavailable,
	ErrCodeGeocodingDown:          http.StatusServiceUnavailable,
	ErrCodePaymentUnavailable:     http.StatusServiceUnavailable,
	"PAYMENT_GATEWAY_UNAVAILABLE": http.StatusServiceUnavailable,
	"STORAGE_UNAVAILABLE":         http.StatusServiceUnavailable,

	// -> 502 Bad Gateway
	"PAYMENT_GATEWAY_ERROR": http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Codes missing from the table fall back on their naming convention:
// INVALID_* is a 400, *_NOT_FOUND a 404; anything else is a 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	switch {
	case strings.HasPrefix(code, "INVALID_"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "_NOT_FOUND"):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

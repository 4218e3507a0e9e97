package dto

import "net/http"

// API error codes follow ERR_<CATEGORY>_<DESCRIPTION>. ERP_AUTH_FAILED keeps
// its historical name because operator tooling matches on it.
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeInvalidWindow   = "ERR_INVALID_WINDOW" // inverted or half-open fetch window
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	ErrCodeTokenRevoked = "ERR_TOKEN_REVOKED"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeJobRunning          = "ERR_JOB_RUNNING" // manual run of a locked job
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeRateLimited         = "ERR_RATE_LIMITED"

	ErrCodeERPAuthFailed     = "ERP_AUTH_FAILED"
	ErrCodeERPUnavailable    = "ERR_ERP_UNAVAILABLE"
	ErrCodeSourceAuthFailed  = "ERR_SOURCE_AUTH_FAILED"
	ErrCodeSourceUnavailable = "ERR_SOURCE_UNAVAILABLE"
	ErrCodeServiceNotReady   = "ERR_SERVICE_NOT_READY"
	ErrCodeNotConfigured     = "ERR_NOT_CONFIGURED"
)

var codesByStatus = map[int][]string{
	http.StatusBadRequest: {
		ErrCodeValidation, ErrCodeInvalidWindow, ErrCodeBadRequest, ErrCodeInvalidInput, ErrCodeInvalidJSON,
	},
	http.StatusUnauthorized: {
		ErrCodeUnauthorized, ErrCodeTokenExpired, ErrCodeTokenInvalid, ErrCodeTokenRevoked,
	},
	http.StatusNotFound:              {ErrCodeNotFound},
	http.StatusConflict:              {ErrCodeConflict, ErrCodeConcurrencyConflict, ErrCodeJobRunning},
	http.StatusRequestEntityTooLarge: {ErrCodeRequestTooLarge},
	http.StatusUnprocessableEntity:   {ErrCodeInvalidState},
	http.StatusTooManyRequests:       {ErrCodeRateLimited},
	http.StatusInternalServerError:   {ErrCodeUnknown, ErrCodeInternal},
	http.StatusBadGateway: {
		ErrCodeERPAuthFailed, ErrCodeERPUnavailable, ErrCodeSourceAuthFailed, ErrCodeSourceUnavailable,
	},
	http.StatusServiceUnavailable: {ErrCodeServiceNotReady, ErrCodeNotConfigured},
}

// ErrorCodeHTTPStatus maps every API error code to its response status
var ErrorCodeHTTPStatus = func() map[string]int {
	m := make(map[string]int)
	for status, codes := range codesByStatus {
		for _, code := range codes {
			m[code] = status
		}
	}
	return m
}()

// GetHTTPStatus returns the status for code; unknown codes are a 500
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// shared.DomainError codes that differ from their API spelling
var domainCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeConflict,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode translates a domain error code to its API code. API
// codes and unknown codes pass through.
func NormalizeErrorCode(code string) string {
	if api, ok := domainCodes[code]; ok {
		return api
	}
	return code
}

package integration

import "errors"

// ---------------------------------------------------------------------------
// Integration Errors
// ---------------------------------------------------------------------------

var (
	// Source errors
	ErrSourceNotConfigured   = errors.New("integration: source system not configured")
	ErrSourceAuthFailed      = errors.New("integration: source authentication failed")
	ErrSourceUnavailable     = errors.New("integration: source temporarily unavailable")
	ErrSourceInvalidResponse = errors.New("integration: invalid source response")

	// ERP errors
	ErrERPNotConfigured   = errors.New("integration: ERP not configured")
	ErrERPAuthFailed      = errors.New("integration: ERP authentication failed")
	ErrERPUnavailable     = errors.New("integration: ERP temporarily unavailable")
	ErrERPInvalidResponse = errors.New("integration: invalid ERP response")
	ErrEmployeeNotMapped  = errors.New("integration: employee not found in ERP")
)

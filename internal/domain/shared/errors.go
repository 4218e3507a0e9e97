package shared

// DomainError is an error with a stable code the API maps to a status
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError with the same code, so wrapped copies created
// with a more specific message still satisfy errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Record was modified by another run")
	ErrUpstreamAuth        = NewDomainError("ERP_AUTH_FAILED", "ERP rejected the configured credentials")
)

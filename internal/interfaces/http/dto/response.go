package dto

// Response is the envelope of every JSON body the API returns. Exactly one
// of Data and Error is set.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo describes a failed request. Remediation tells the operator what
// to change when the failure is a configuration problem.
type ErrorInfo struct {
	Code        string             `json:"code"`
	Message     string             `json:"message"`
	Remediation string             `json:"remediation,omitempty"`
	RequestID   string             `json:"request_id,omitempty"`
	Details     []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail names one rejected field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta is pagination for list responses
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewSuccessResponseWithMeta wraps one page of a list. A zero pageSize
// reports zero pages.
func NewSuccessResponseWithMeta(data any, total int64, page, pageSize int) Response {
	meta := &Meta{Total: total, Page: page, PageSize: pageSize}
	if pageSize > 0 {
		size := int64(pageSize)
		meta.TotalPages = int((total + size - 1) / size)
	}
	return Response{Success: true, Data: data, Meta: meta}
}

func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	return Response{Error: &ErrorInfo{Code: code, Message: message, RequestID: requestID}}
}

// NewValidationErrorResponse is the 400 body listing every rejected field
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	resp := NewErrorResponseWithRequestID(ErrCodeValidation, message, requestID)
	resp.Error.Details = details
	return resp
}

// ListRequest binds page and page_size query parameters
type ListRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=500"`
}

// DefaultListRequest is the first page of 20
func DefaultListRequest() ListRequest {
	return ListRequest{Page: 1, PageSize: 20}
}

// IDRequest binds a uuid :id path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

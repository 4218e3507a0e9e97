package erpnext

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"unicode/utf8"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
)

const (
	duplicateExcType = "DuplicateAttendanceError"
	// bodyExcerptLen bounds the body text copied into failure messages
	bodyExcerptLen = 512
)

var (
	attendanceIDPattern   = regexp.MustCompile(`HR-ATT-\d{4}-\d{5}`)
	attendanceLinkPattern = regexp.MustCompile(`<a href="[^"]*attendance/([^"]*)">`)
	genericIDPattern      = regexp.MustCompile(`attendance/([A-Z]+-[A-Z]+-\d{4}-\d{5})`)
	employeeIDPattern     = regexp.MustCompile(`HR-EMP-\d{5}`)
)

// Classify maps the response of an attendance create call to a PushResult.
// transportErr is the error of the HTTP round trip, if any. Classify never
// panics, whatever the body holds.
func Classify(status int, body []byte, transportErr error) integration.PushResult {
	if transportErr != nil {
		return integration.PushResult{
			Kind: integration.PushTransientFailure,
			Err:  fmt.Errorf("%w: %v", integration.ErrERPUnavailable, transportErr),
		}
	}

	switch {
	case status >= 200 && status < 300:
		return classifyCreated(status, body)
	case status == http.StatusExpectationFailed:
		return classifyConflict(status, body)
	case status == http.StatusUnauthorized:
		return integration.PushResult{
			Kind:       integration.PushAuthFailure,
			StatusCode: status,
			Err:        fmt.Errorf("%w: HTTP %d", integration.ErrERPAuthFailed, status),
		}
	default:
		return integration.PushResult{
			Kind:       integration.PushTransientFailure,
			StatusCode: status,
			Err:        fmt.Errorf("%w: HTTP %d: %s", integration.ErrERPUnavailable, status, excerpt(body)),
		}
	}
}

func classifyCreated(status int, body []byte) integration.PushResult {
	var resp createResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		if name := resp.name(); name != "" {
			return integration.PushResult{Kind: integration.PushCreatedWithID, ERPRef: name, StatusCode: status}
		}
	}
	return integration.PushResult{
		Kind:       integration.PushCreatedUnknownID,
		ERPRef:     attendance.UnknownERPRef,
		StatusCode: status,
	}
}

// classifyConflict handles HTTP 417. The ERP reports a duplicate attendance
// through its exception payload; the existing record name is searched in the
// exception text, in an embedded link, in the server messages and finally
// through a generic name pattern.
func classifyConflict(status int, body []byte) integration.PushResult {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return integration.PushResult{Kind: integration.PushDuplicateUnresolved, StatusCode: status}
	}
	if resp.ExcType != "" && resp.ExcType != duplicateExcType {
		return integration.PushResult{
			Kind:       integration.PushTransientFailure,
			StatusCode: status,
			Err: fmt.Errorf("%w: HTTP %d %s: %s",
				integration.ErrERPInvalidResponse, status, resp.ExcType, excerpt([]byte(resp.Exception))),
		}
	}

	messages := string(resp.ServerMessages)
	hint := employeeIDPattern.FindString(resp.Exception)
	if hint == "" {
		hint = employeeIDPattern.FindString(messages)
	}

	if ref := extractAttendanceRef(resp.Exception, messages); ref != "" {
		return integration.PushResult{
			Kind:         integration.PushDuplicateWithID,
			ERPRef:       ref,
			EmployeeHint: hint,
			StatusCode:   status,
		}
	}
	return integration.PushResult{
		Kind:         integration.PushDuplicateUnresolved,
		EmployeeHint: hint,
		StatusCode:   status,
	}
}

func extractAttendanceRef(exception, serverMessages string) string {
	if m := attendanceIDPattern.FindString(exception); m != "" {
		return m
	}
	if m := attendanceLinkPattern.FindStringSubmatch(exception); len(m) == 2 && m[1] != "" {
		return m[1]
	}
	if m := attendanceIDPattern.FindString(serverMessages); m != "" {
		return m
	}
	if m := genericIDPattern.FindStringSubmatch(exception); len(m) == 2 {
		return m[1]
	}
	return ""
}

func excerpt(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) <= bodyExcerptLen {
		return string(body)
	}
	cut := bodyExcerptLen
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "..."
}

package erpnext

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/attendsync/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
)

func TestClassify_Created(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind integration.PushKind
		ref  string
	}{
		{"object with name", `{"data":{"name":"HR-ATT-2024-00042","employee":"HR-EMP-00007"}}`, integration.PushCreatedWithID, "HR-ATT-2024-00042"},
		{"list takes last element", `{"data":[{"name":"HR-ATT-2024-00001"},{"name":"HR-ATT-2024-00002"}]}`, integration.PushCreatedWithID, "HR-ATT-2024-00002"},
		{"object without name", `{"data":{"employee":"HR-EMP-00007"}}`, integration.PushCreatedUnknownID, "unknown"},
		{"empty list", `{"data":[]}`, integration.PushCreatedUnknownID, "unknown"},
		{"not json", `<html>ok</html>`, integration.PushCreatedUnknownID, "unknown"},
		{"empty body", ``, integration.PushCreatedUnknownID, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(http.StatusOK, []byte(tt.body), nil)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.ref, res.ERPRef)
			assert.True(t, res.Created())
		})
	}
}

func TestClassify_DuplicateShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind integration.PushKind
		ref  string
		hint string
	}{
		{
			name: "attendance id in exception",
			body: `{"exc_type":"DuplicateAttendanceError","exception":"DuplicateAttendanceError: Attendance for employee HR-EMP-00007 is already marked for the date 2024-03-01: HR-ATT-2024-00042"}`,
			kind: integration.PushDuplicateWithID,
			ref:  "HR-ATT-2024-00042",
			hint: "HR-EMP-00007",
		},
		{
			name: "html link in exception",
			body: `{"exc_type":"DuplicateAttendanceError","exception":"Attendance already marked: <a href=\"/app/attendance/ATT-0042\">ATT-0042</a>"}`,
			kind: integration.PushDuplicateWithID,
			ref:  "ATT-0042",
		},
		{
			name: "attendance id in server messages",
			body: `{"exc_type":"DuplicateAttendanceError","exception":"DuplicateAttendanceError","_server_messages":"[\"{\\\"message\\\": \\\"Attendance HR-ATT-2024-00099 for HR-EMP-00003 exists\\\"}\"]"}`,
			kind: integration.PushDuplicateWithID,
			ref:  "HR-ATT-2024-00099",
			hint: "HR-EMP-00003",
		},
		{
			name: "generic attendance id",
			body: `{"exc_type":"DuplicateAttendanceError","exception":"see /desk#Form/attendance/ABC-ATT-2023-00017 for details"}`,
			kind: integration.PushDuplicateWithID,
			ref:  "ABC-ATT-2023-00017",
		},
		{
			name: "nothing extractable but employee hint",
			body: `{"exc_type":"DuplicateAttendanceError","exception":"Attendance for employee HR-EMP-00011 is already marked"}`,
			kind: integration.PushDuplicateUnresolved,
			hint: "HR-EMP-00011",
		},
		{
			name: "nothing extractable",
			body: `{"exc_type":"DuplicateAttendanceError","exception":"already marked"}`,
			kind: integration.PushDuplicateUnresolved,
		},
		{
			name: "missing exc_type",
			body: `{"exception":"HR-ATT-2024-00005"}`,
			kind: integration.PushDuplicateWithID,
			ref:  "HR-ATT-2024-00005",
		},
		{
			name: "server messages as list",
			body: `{"exc_type":"DuplicateAttendanceError","_server_messages":["HR-ATT-2024-00123"]}`,
			kind: integration.PushDuplicateWithID,
			ref:  "HR-ATT-2024-00123",
		},
		{
			name: "malformed body",
			body: `{"exc_type": `,
			kind: integration.PushDuplicateUnresolved,
		},
		{
			name: "wrong field types",
			body: `{"exc_type":42,"exception":{"a":1}}`,
			kind: integration.PushDuplicateUnresolved,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res integration.PushResult
			assert.NotPanics(t, func() {
				res = Classify(http.StatusExpectationFailed, []byte(tt.body), nil)
			})
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.ref, res.ERPRef)
			assert.Equal(t, tt.hint, res.EmployeeHint)
			assert.True(t, res.Duplicate())
			assert.Equal(t, http.StatusExpectationFailed, res.StatusCode)
		})
	}
}

func TestClassify_Failures(t *testing.T) {
	t.Run("Transport error is transient", func(t *testing.T) {
		res := Classify(0, nil, errors.New("connection refused"))
		assert.Equal(t, integration.PushTransientFailure, res.Kind)
		assert.ErrorIs(t, res.Err, integration.ErrERPUnavailable)
	})

	t.Run("401 is an auth failure", func(t *testing.T) {
		res := Classify(http.StatusUnauthorized, []byte(`{"exc_type":"AuthenticationError"}`), nil)
		assert.Equal(t, integration.PushAuthFailure, res.Kind)
		assert.ErrorIs(t, res.Err, integration.ErrERPAuthFailed)
	})

	t.Run("5xx is transient with body excerpt", func(t *testing.T) {
		res := Classify(http.StatusBadGateway, []byte("upstream down"), nil)
		assert.Equal(t, integration.PushTransientFailure, res.Kind)
		assert.Equal(t, http.StatusBadGateway, res.StatusCode)
		assert.Contains(t, res.Error(), "upstream down")
	})

	t.Run("417 with another exception type is not a duplicate", func(t *testing.T) {
		res := Classify(http.StatusExpectationFailed,
			[]byte(`{"exc_type":"ValidationError","exception":"Employee HR-EMP-00001 is inactive"}`), nil)
		assert.Equal(t, integration.PushTransientFailure, res.Kind)
		assert.ErrorIs(t, res.Err, integration.ErrERPInvalidResponse)
	})

	t.Run("Long bodies are cut", func(t *testing.T) {
		res := Classify(http.StatusInternalServerError, []byte(strings.Repeat("x", 4*bodyExcerptLen)), nil)
		assert.Less(t, len(res.Error()), 2*bodyExcerptLen)
		assert.True(t, strings.HasSuffix(res.Error(), "..."))
	})
}

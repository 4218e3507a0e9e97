package integration

import "fmt"

// PushKind tags the classified outcome of an attendance create call
type PushKind int

const (
	// PushTransientFailure covers network errors, 5xx and unexpected bodies
	PushTransientFailure PushKind = iota
	PushCreatedWithID
	PushCreatedUnknownID
	PushDuplicateWithID
	PushDuplicateUnresolved
	PushAuthFailure
)

// String returns the metric friendly name of the kind
func (k PushKind) String() string {
	switch k {
	case PushCreatedWithID:
		return "created"
	case PushCreatedUnknownID:
		return "created_unknown"
	case PushDuplicateWithID:
		return "duplicate"
	case PushDuplicateUnresolved:
		return "duplicate_unresolved"
	case PushAuthFailure:
		return "auth_failure"
	default:
		return "transient_failure"
	}
}

// PushResult is the tagged result of a create call.
// ERPRef is set for CreatedWithID and DuplicateWithID.
// EmployeeHint may be set for DuplicateUnresolved when the error body named
// the ERP employee.
type PushResult struct {
	Kind         PushKind
	ERPRef       string
	EmployeeHint string
	StatusCode   int
	Err          error
}

// Created reports whether the ERP accepted a new record
func (r PushResult) Created() bool {
	return r.Kind == PushCreatedWithID || r.Kind == PushCreatedUnknownID
}

// Duplicate reports whether the ERP already held the record
func (r PushResult) Duplicate() bool {
	return r.Kind == PushDuplicateWithID || r.Kind == PushDuplicateUnresolved
}

// Error describes a failed result; it is empty for successes
func (r PushResult) Error() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	if r.Kind == PushAuthFailure || r.Kind == PushTransientFailure {
		return fmt.Sprintf("%s (HTTP %d)", r.Kind, r.StatusCode)
	}
	return ""
}

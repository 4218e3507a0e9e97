package attendance

import (
	"strings"
	"time"

	"github.com/attendsync/backend/internal/domain/shared"
)

// Employee is a person registered on the biometric source system.
// Employees are never deleted; they are deactivated instead.
type Employee struct {
	shared.BaseEntity
	Code       string
	FirstName  string
	LastName   string
	FullName   string
	Department string
	Area       string
	IsActive   bool
}

// NewEmployee creates an active employee
func NewEmployee(code, firstName, lastName string) (*Employee, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidEmployeeCode
	}
	if strings.TrimSpace(firstName) == "" {
		firstName = "Unknown"
	}
	return &Employee{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		FirstName:  firstName,
		LastName:   lastName,
		IsActive:   true,
	}, nil
}

// DisplayName returns the best human readable name available
func (e *Employee) DisplayName() string {
	if e.FullName != "" {
		return e.FullName
	}
	name := strings.TrimSpace(e.FirstName + " " + e.LastName)
	if name == "" {
		return e.Code
	}
	return name
}

// UpdateProfile overwrites the profile fields with fresh source data and reactivates the employee
func (e *Employee) UpdateProfile(firstName, lastName, fullName, department, area string) {
	if strings.TrimSpace(firstName) == "" {
		firstName = "Unknown"
	}
	e.FirstName = firstName
	e.LastName = lastName
	e.FullName = fullName
	e.Department = department
	e.Area = area
	e.IsActive = true
	e.Touch(time.Now())
}

package models

import (
	"github.com/attendsync/backend/internal/domain/attendance"
)

// EmployeeModel is the persistence model for employees
type EmployeeModel struct {
	BaseModel
	Code       string `gorm:"type:varchar(50);not null;uniqueIndex"`
	FirstName  string `gorm:"type:varchar(100);not null"`
	LastName   string `gorm:"type:varchar(100)"`
	FullName   string `gorm:"type:varchar(200)"`
	Department string `gorm:"type:varchar(200)"`
	Area       string `gorm:"type:varchar(200)"`
	IsActive   bool   `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (EmployeeModel) TableName() string {
	return "employees"
}

// ToDomain converts the persistence model to a domain Employee
func (m *EmployeeModel) ToDomain() *attendance.Employee {
	return &attendance.Employee{
		BaseEntity: m.BaseModel.ToDomain(),
		Code:       m.Code,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		FullName:   m.FullName,
		Department: m.Department,
		Area:       m.Area,
		IsActive:   m.IsActive,
	}
}

// EmployeeModelFromDomain creates a persistence model from a domain Employee
func EmployeeModelFromDomain(e *attendance.Employee) *EmployeeModel {
	m := &EmployeeModel{
		Code:       e.Code,
		FirstName:  e.FirstName,
		LastName:   e.LastName,
		FullName:   e.FullName,
		Department: e.Department,
		Area:       e.Area,
		IsActive:   e.IsActive,
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	return m
}

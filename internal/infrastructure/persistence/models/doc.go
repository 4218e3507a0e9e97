// Package models contains GORM persistence models that map to database tables.
// They are kept apart from the domain entities so the domain layer stays free
// of ORM tags. Each model has a ToDomain method and a FromDomain constructor.
//
// Tables:
//   - employees: employees registered on the biometric source
//   - attendance_facts: one row per (employee, date) with its reconciliation state
//   - sync_logs: append-only audit trail of ingestion and reconciliation runs
package models

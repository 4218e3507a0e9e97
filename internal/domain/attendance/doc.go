// Package attendance contains the Attendance bounded context.
// It owns the daily attendance facts that are pulled from the biometric
// source and reconciled with the ERP ledger.
//
// Key concepts:
//   - Employee: person known to the source system, keyed by its local code
//   - Punch: a single clock event from a terminal
//   - AttendanceFact: one employee's aggregated attendance for one calendar date
//   - SyncLogEntry: append-only audit record for fetch and push runs
//   - SelectionFilter: which facts a reconciliation run picks up
package attendance

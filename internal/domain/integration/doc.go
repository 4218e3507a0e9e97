// Package integration defines how the attendance engine sees its two
// upstream systems.
//
// PunchSource is the biometric time-tracking system: it lists employees and
// raw punches. AttendanceLedger is the ERP attendance resource: it accepts
// one attendance per employee and date and can be searched by employee or
// date. Every create call comes back as a PushResult, a closed set of
// classified outcomes the reconciler switches on. Transport and status-code
// details stay in the infrastructure adapters.
package integration

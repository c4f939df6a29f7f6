// Package audit records the security-relevant events of the
// authorization system: logins, logouts, role changes, account
// deactivation, ownership transfers, and denied access.
//
// Events are written to the audit_events table through DBLogger. A
// failed audit write never fails the operation that produced it; the
// error is logged and the request proceeds. Use NopLogger in tests and
// in deployments that do not want the table.
package audit

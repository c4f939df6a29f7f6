// Package users manages Archon user identities and their role attribute.
//
// It is the single source of truth the predicate engine reads from: the
// authentication boundary resolves a token to a User here and projects it
// onto an authz.Subject. Mutations that touch the role or active flag run
// under the last-admin rule: no sequence of operations may leave the
// system with zero active admins. The rule is enforced transactionally
// against concurrent role changes by locking the active admin rows before
// the count check.
//
// The first user ever registered is promoted to admin; everyone after
// that starts as a regular user. Users are never hard-deleted in normal
// operation: deactivation is the terminal state, and only the explicit
// Remove operation cascades a profile and its owned data away.
package users

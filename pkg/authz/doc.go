// Package authz implements the authorization predicate engine shared by
// every enforcement site in Archon.
//
// The decision model is deliberately small: a subject carries a role
// (admin, user, viewer, guest) and an active flag; a protected resource
// carries an owner reference and, for task-like resources, an assignee
// reference. Three predicates answer every authorization question:
//
//   - IsAdmin: role == admin and the account is active
//   - CanView: owner, assignee, admin/viewer role, or an unowned resource
//   - CanEdit: owner, assignee, or admin
//
// Predicates are pure functions over explicit Subject and Resource values.
// They never touch storage, never read ambient session state, and never
// return an error. The storage layer (pkg/storage/postgres) applies them
// as mandatory row filters; the gating layer (pkg/gate) applies them to
// decide which UI affordances a client may render. Both sites import this
// package so the semantics cannot drift; pkg/gate's contract tests assert
// agreement over the full role/ownership/assignment matrix.
//
// Operations that mutate roles or ownership (pkg/users, pkg/storage) are
// where invariants are checked and typed errors raised: predicates only
// answer yes or no.
package authz

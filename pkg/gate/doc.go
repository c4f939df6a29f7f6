// Package gate is the presentation-side mirror of the authorization
// predicates: it decides which affordances to render, never whether data
// is accessible. The storage layer remains the security boundary; a bug
// here can only hide or show UI, not leak rows.
//
// The checks are defined in terms of the predicate engine itself
// (HasPermission calls authz.CanView/CanEdit on canonical resource
// shapes), so the mirror cannot drift from the server-side filter. The
// contract tests in this package enumerate the full role/ownership/
// assignment matrix to keep it that way.
//
// Route guards produce one of three outcomes: render the protected
// content, redirect an unauthenticated caller to login (preserving the
// intended destination), or render an explicit denial naming the
// required and actual role. A deactivated account gets its own denial
// state so the client can force a logout.
package gate

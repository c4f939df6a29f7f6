// Package api exposes the HTTP surface: authentication, user and role
// administration, the protected resource collections, and the audit
// trail.
//
// Handlers never make authorization decisions themselves. The auth
// middleware resolves the acting subject, and every storage and service
// call receives that subject explicitly; denials surface as typed
// errors that the shared error mapper translates to HTTP statuses. A
// hidden row and a missing row are both 404.
package api

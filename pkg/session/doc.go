// Package session issues and verifies the access/refresh token pairs that
// authenticate Archon requests, and tracks which sessions are still live.
//
// Tokens are HS256 JWTs. Verification alone is not enough to accept one:
// every issued token carries a session ID that must still exist in the
// Redis-backed session store. Logout deletes one session; deactivating or
// removing a user deletes all of theirs, so a revoked account stops
// acting immediately instead of when its token expires.
package session

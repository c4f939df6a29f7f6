// Package storage defines the protected-resource storage abstraction.
//
// # Overview
//
// Archon attributes every protected resource (knowledge sources, crawled
// pages, code examples, projects, tasks, document versions, prompts) to an
// owning subject, and task-like resources additionally to an assignee. The
// ResourceStore contract makes the authorization predicates from pkg/authz
// a property of the store itself: every read is filtered by CanView, every
// write by CanEdit, so a calling code path that forgets its own check
// cannot leak or mutate rows it should not see.
//
// # Row visibility
//
// For a subject s, the effective row set of any read is exactly
// {r : authz.CanView(s, r)} and of any write {r : authz.CanEdit(s, r)}.
// Inserts additionally require the new row's owner to be the acting
// subject or NULL (shared). A row hidden by the predicate behaves like a
// missing row: stores return ErrNotFound rather than a distinct
// "forbidden" error, so existence is not leaked through the error kind.
//
// # Privileged mode
//
// Trusted service-to-service callers (migrations, cascade maintenance,
// admin bulk transfer) use the Privileged store, which bypasses filtering
// entirely. End-user request paths must never reach it.
//
// Implementations live in subpackages; pkg/storage/postgres is the
// production backend.
package storage

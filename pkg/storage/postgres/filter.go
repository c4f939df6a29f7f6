package postgres

import (
	"fmt"

	"github.com/archon-labs/archon-authz/pkg/authz"
)

// kindSpec maps a resource kind onto its table layout.
type kindSpec struct {
	table       string
	hasAssignee bool
	hasProject  bool
}

var kindSpecs = map[authz.ResourceKind]kindSpec{
	authz.KindSource:          {table: "sources"},
	authz.KindPage:            {table: "crawled_pages"},
	authz.KindCodeExample:     {table: "code_examples"},
	authz.KindProject:         {table: "projects"},
	authz.KindTask:            {table: "tasks", hasAssignee: true, hasProject: true},
	authz.KindDocumentVersion: {table: "document_versions", hasProject: true},
	authz.KindPrompt:          {table: "prompts"},
}

func specFor(kind authz.ResourceKind) (kindSpec, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return kindSpec{}, fmt.Errorf("unknown resource kind %q", kind)
	}
	return spec, nil
}

// viewClause renders authz.CanView as a SQL predicate for one table. It is
// the single interception point for read visibility: every SELECT appends
// the returned clause. Placeholders start at argIndex; the returned args
// belong at that position.
//
// The role cases mirror pkg/authz/predicates.go exactly; the contract test
// in filter_test.go holds the two implementations together.
func viewClause(s authz.Subject, spec kindSpec, kind authz.ResourceKind, argIndex int) (string, []interface{}) {
	switch s.Role {
	case authz.RoleAdmin, authz.RoleViewer:
		return "TRUE", nil
	case authz.RoleGuest:
		if !authz.GuestVisibleKinds[kind] {
			return "FALSE", nil
		}
		if spec.hasAssignee {
			return fmt.Sprintf("(owner_id = $%d OR assignee_id = $%d OR owner_id IS NULL)", argIndex, argIndex+1),
				[]interface{}{s.ID, s.ID}
		}
		return fmt.Sprintf("(owner_id = $%d OR owner_id IS NULL)", argIndex), []interface{}{s.ID}
	default: // user
		if spec.hasAssignee {
			return fmt.Sprintf("(owner_id = $%d OR assignee_id = $%d OR owner_id IS NULL)", argIndex, argIndex+1),
				[]interface{}{s.ID, s.ID}
		}
		return fmt.Sprintf("(owner_id = $%d OR owner_id IS NULL)", argIndex), []interface{}{s.ID}
	}
}

// editClause renders authz.CanEdit as a SQL predicate: owner, assignee, or
// active admin. Guests never match.
func editClause(s authz.Subject, spec kindSpec, argIndex int) (string, []interface{}) {
	if s.Role == authz.RoleGuest {
		return "FALSE", nil
	}
	if authz.IsAdmin(s) {
		return "TRUE", nil
	}
	if spec.hasAssignee {
		return fmt.Sprintf("(owner_id = $%d OR assignee_id = $%d)", argIndex, argIndex+1),
			[]interface{}{s.ID, s.ID}
	}
	return fmt.Sprintf("owner_id = $%d", argIndex), []interface{}{s.ID}
}

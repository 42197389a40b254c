package rbac

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// Action is one of the operations a role may be granted on a menu.
type Action string

// The closed set of actions. Adding one requires a new flag and a new entry in
// actionFlags.
const (
	ActionList     Action = "list"
	ActionCreate   Action = "create"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionDownload Action = "download"
)

// Actions lists every recognised action.
func Actions() []Action {
	return []Action{ActionList, ActionCreate, ActionEdit, ActionDelete, ActionDownload}
}

// ParseAction normalises raw input into a recognised Action.
func ParseAction(raw string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := actionFlags[action]; !ok {
		return "", fmt.Errorf("%w: %q", shared.ErrUnknownAction, raw)
	}
	return action, nil
}

// PermissionRecord grants flags to a role on one menu. At most one exists per
// (RoleID, MenuID).
type PermissionRecord struct {
	RoleID      string `json:"role_id"`
	MenuID      string `json:"menu_id"`
	CanList     bool   `json:"can_list"`
	CanCreate   bool   `json:"can_create"`
	CanEdit     bool   `json:"can_edit"`
	CanDelete   bool   `json:"can_delete"`
	CanDownload bool   `json:"can_download"`
}

var actionFlags = map[Action]func(PermissionRecord) bool{
	ActionList:     func(p PermissionRecord) bool { return p.CanList },
	ActionCreate:   func(p PermissionRecord) bool { return p.CanCreate },
	ActionEdit:     func(p PermissionRecord) bool { return p.CanEdit },
	ActionDelete:   func(p PermissionRecord) bool { return p.CanDelete },
	ActionDownload: func(p PermissionRecord) bool { return p.CanDownload },
}

// Grants reports whether the record allows the action. Unknown actions are never
// granted.
func (p PermissionRecord) Grants(action Action) bool {
	flag, ok := actionFlags[action]
	return ok && flag(p)
}

// DenyReason explains a negative Decision.
type DenyReason int

const (
	ReasonNone DenyReason = iota
	ReasonNoGrant
	ReasonNotPermitted
	ReasonUnknownAction
)

func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoGrant:
		return "no_grant"
	case ReasonNotPermitted:
		return "not_permitted"
	case ReasonUnknownAction:
		return "unknown_action"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow is the positive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny builds a negative decision.
func Deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// Outcome labels the decision for logs and metrics.
func (d Decision) Outcome() string {
	if d.Allowed {
		return "allow"
	}
	return "deny"
}

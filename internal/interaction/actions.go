// Package interaction turns chat platform triggers into shift operations and
// replies. Flow state lives in the custom id of each prompt, so nothing is kept
// between events.
package interaction

import (
	"fmt"
	"slices"

	"github.com/evn/shiftbot/internal/models"
)

// Action is the custom id of a command, button or select menu.
type Action string

const (
	ActionPanel                 Action = "shiftmanage"
	ActionStartShift            Action = "start_shift"
	ActionEndShift              Action = "end_shift"
	ActionLeaderboard           Action = "leaderboard"
	ActionResetShifts           Action = "reset_shift"
	ActionSelectDepartment      Action = "select_department"
	ActionSelectLeaderboardDept Action = "select_leaderboard_department"
)

// AllScope is the leaderboard chooser value for every department.
const AllScope = "all"

// Actor is the platform user behind an event, with the role and permission
// state read at the moment of the event.
type Actor struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
	IsAdmin     bool     `json:"isAdmin"`
	IsOwner     bool     `json:"isOwner"`
}

func (a Actor) HasRole(name string) bool {
	return slices.Contains(a.Roles, name)
}

// Authorizer decides whether an actor may trigger an action.
type Authorizer interface {
	CanPerform(actor Actor, action Action) bool
}

// Authorize wraps models.ErrUnauthorized when actor may not run action.
func Authorize(auth Authorizer, actor Actor, action Action) error {
	if auth.CanPerform(actor, action) {
		return nil
	}
	return fmt.Errorf("%s may not run %s: %w", actor.ID, action, models.ErrUnauthorized)
}

// RolePolicy gates the panel and its buttons on ShiftRole and the reset on
// ManagementRole. Administrators and the server owner pass every check.
// Select menus are only reachable from a gated button and are not checked.
type RolePolicy struct {
	ShiftRole      string
	ManagementRole string
}

func (p RolePolicy) CanPerform(actor Actor, action Action) bool {
	if actor.IsAdmin || actor.IsOwner {
		return true
	}
	switch action {
	case ActionPanel, ActionStartShift, ActionEndShift, ActionLeaderboard:
		return actor.HasRole(p.ShiftRole) || actor.HasRole(p.ManagementRole)
	case ActionResetShifts:
		return actor.HasRole(p.ManagementRole)
	case ActionSelectDepartment, ActionSelectLeaderboardDept:
		return true
	}
	return false
}

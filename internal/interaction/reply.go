package interaction

import (
	"fmt"
	"strings"

	"github.com/evn/shiftbot/internal/models"
	"github.com/evn/shiftbot/internal/services/leaderboard"
)

type ButtonStyle string

const (
	StylePrimary   ButtonStyle = "primary"
	StyleSecondary ButtonStyle = "secondary"
	StyleSuccess   ButtonStyle = "success"
	StyleDanger    ButtonStyle = "danger"
)

const (
	colorPanel       = 0x0099FF
	colorLeaderboard = 0xFFD700
)

// Reply is what the transport sends back for one event. Ephemeral replies are
// visible to the actor only.
type Reply struct {
	Ephemeral bool     `json:"ephemeral"`
	Content   string   `json:"content,omitempty"`
	Embed     *Embed   `json:"embed,omitempty"`
	Menu      *Menu    `json:"menu,omitempty"`
	Buttons   []Button `json:"buttons,omitempty"`

	// Outcome classifies the reply for metrics and logs.
	Outcome Outcome `json:"-"`
}

type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type Menu struct {
	CustomID    Action       `json:"customId"`
	Placeholder string       `json:"placeholder"`
	Options     []MenuOption `json:"options"`
}

type MenuOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Button struct {
	CustomID Action      `json:"customId"`
	Label    string      `json:"label"`
	Style    ButtonStyle `json:"style"`
}

type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDenied   Outcome = "denied"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
	OutcomeUnknown  Outcome = "unknown"
)

const (
	msgNoPanelAccess    = "You do not have permission to use this command. You need the \"Public Services Employee\" role."
	msgNoResetAccess    = "Only Management Team can reset shifts."
	msgAlreadyActive    = "You already have an active shift!"
	msgChooseDepartment = "Please select your department to start the shift:"
	msgChooseScope      = "Which department's leaderboard would you like to view?"
	msgNoActiveShift    = "No active shift found."
	msgEndFailed        = "Failed to end shift."
	msgStartFailed      = "Failed to start shift. Please try again."
	msgLeaderboardFail  = "Failed to load the leaderboard. Please try again."
	msgResetDone        = "All shift data has been reset."
	msgResetFailed      = "Failed to reset shift data. Please try again."
	msgNoDepartment     = "Please select a department."
	msgGenericFailure   = "Something went wrong. Please try again."
	msgUnknownAction    = "Unknown action."
	msgEmptyLeaderboard = "No shift data yet."
)

func ephemeral(outcome Outcome, content string) Reply {
	return Reply{Ephemeral: true, Content: content, Outcome: outcome}
}

func panelReply() Reply {
	return Reply{
		Embed: &Embed{
			Title:       "Shift Management",
			Description: "Select an option below to manage your shift. \n\nRemember to Start Shift when you go on duty and End Shift when you go off duty.",
			Color:       colorPanel,
		},
		Buttons: []Button{
			{CustomID: ActionStartShift, Label: "Start Shift", Style: StyleSuccess},
			{CustomID: ActionEndShift, Label: "End Shift", Style: StyleDanger},
			{CustomID: ActionLeaderboard, Label: "Leaderboard", Style: StylePrimary},
			{CustomID: ActionResetShifts, Label: "Reset Shifts", Style: StyleSecondary},
		},
		Outcome: OutcomeOK,
	}
}

func departmentMenu(departments []string) *Menu {
	m := &Menu{CustomID: ActionSelectDepartment, Placeholder: "Select your department"}
	for _, d := range departments {
		m.Options = append(m.Options, MenuOption{Label: d, Value: d})
	}
	return m
}

func scopeMenu(departments []string) *Menu {
	m := &Menu{
		CustomID:    ActionSelectLeaderboardDept,
		Placeholder: "Select department for leaderboard",
		Options:     []MenuOption{{Label: "Global (All)", Value: AllScope}},
	}
	for _, d := range departments {
		m.Options = append(m.Options, MenuOption{Label: d, Value: d})
	}
	return m
}

// RenderLeaderboard builds the public embed with the top entries.
func RenderLeaderboard(department string, entries []models.LeaderboardEntry) Reply {
	top := leaderboard.Top(entries, leaderboard.TopN)
	lines := make([]string, len(top))
	for i, e := range top {
		lines[i] = fmt.Sprintf("%d. **%s** - %d mins", i+1, e.DisplayName, e.TotalMinutes)
	}
	text := strings.Join(lines, "\n")
	if text == "" {
		text = msgEmptyLeaderboard
	}
	return Reply{
		Embed: &Embed{
			Title:       leaderboard.Scope(department) + " Shift Leaderboard",
			Description: text,
			Color:       colorLeaderboard,
		},
		Outcome: OutcomeOK,
	}
}

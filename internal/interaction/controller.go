package interaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/models"
)

type ShiftManager interface {
	Active(ctx context.Context, externalID string) (*models.Shift, error)
	Start(ctx context.Context, externalID, department string) (*models.Shift, error)
	End(ctx context.Context, externalID string) (*models.Shift, error)
	ResetAll(ctx context.Context) error
}

type UserResolver interface {
	Resolve(ctx context.Context, externalID, displayName string) (*models.User, error)
}

type LeaderboardSource interface {
	Get(ctx context.Context, department string) ([]models.LeaderboardEntry, error)
}

// StatusSource reports whether the platform transport is connected.
type StatusSource interface {
	Ready() bool
	Uptime() time.Duration
}

// DutyCounter reports how many users are on shift.
type DutyCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Recorder receives one call per handled event.
type Recorder interface {
	Interaction(action, outcome string)
}

type Controller struct {
	shifts      ShiftManager
	users       UserResolver
	leaderboard LeaderboardSource
	auth        Authorizer
	departments []string

	status   StatusSource
	duty     DutyCounter
	recorder Recorder
	log      *zap.Logger
}

type Option func(*Controller)

func WithStatus(s StatusSource) Option { return func(c *Controller) { c.status = s } }

func WithDutyCounter(d DutyCounter) Option { return func(c *Controller) { c.duty = d } }

func WithRecorder(r Recorder) Option { return func(c *Controller) { c.recorder = r } }

func NewController(
	shifts ShiftManager,
	users UserResolver,
	board LeaderboardSource,
	auth Authorizer,
	departments []string,
	logger *zap.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		shifts:      shifts,
		users:       users,
		leaderboard: board,
		auth:        auth,
		departments: append([]string(nil), departments...),
		log:         logger.Named("interaction"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandlePanelOpen answers the shift management command.
func (c *Controller) HandlePanelOpen(ctx context.Context, actor Actor) Reply {
	return c.HandleAction(ctx, actor, ActionPanel, "")
}

// HandleAction runs one trigger to completion and always returns a reply.
// selection is the first chosen value of a select menu and empty otherwise.
func (c *Controller) HandleAction(ctx context.Context, actor Actor, action Action, selection string) Reply {
	reply := c.handle(ctx, actor, action, selection)
	if c.recorder != nil {
		c.recorder.Interaction(string(action), string(reply.Outcome))
	}
	return reply
}

func (c *Controller) handle(ctx context.Context, actor Actor, action Action, selection string) Reply {
	if !isKnown(action) {
		c.log.Debug("unknown action", zap.String("action", string(action)), zap.String("discord_id", actor.ID))
		return ephemeral(OutcomeUnknown, msgUnknownAction)
	}

	if err := Authorize(c.auth, actor, action); err != nil {
		c.log.Info("unauthorized interaction",
			zap.String("action", string(action)),
			zap.String("discord_id", actor.ID),
			zap.Strings("roles", actor.Roles),
		)
		return deniedReply(action, err)
	}

	if action == ActionPanel {
		return panelReply()
	}

	if _, err := c.users.Resolve(ctx, actor.ID, actor.DisplayName); err != nil {
		c.log.Error("failed to resolve user", zap.String("discord_id", actor.ID), zap.Error(err))
		return ephemeral(OutcomeFailed, msgGenericFailure)
	}

	switch action {
	case ActionStartShift:
		return c.startPrompt(ctx, actor)
	case ActionSelectDepartment:
		return c.startShift(ctx, actor, selection)
	case ActionEndShift:
		return c.endShift(ctx, actor)
	case ActionLeaderboard:
		return Reply{Ephemeral: true, Content: msgChooseScope, Menu: scopeMenu(c.departments), Outcome: OutcomeOK}
	case ActionSelectLeaderboardDept:
		return c.showLeaderboard(ctx, selection)
	case ActionResetShifts:
		return c.reset(ctx, actor)
	}
	return ephemeral(OutcomeUnknown, msgUnknownAction)
}

func deniedReply(action Action, err error) Reply {
	switch {
	case !errors.Is(err, models.ErrUnauthorized):
		return ephemeral(OutcomeFailed, msgGenericFailure)
	case action == ActionResetShifts:
		return ephemeral(OutcomeDenied, msgNoResetAccess)
	}
	return ephemeral(OutcomeDenied, msgNoPanelAccess)
}

func (c *Controller) startPrompt(ctx context.Context, actor Actor) Reply {
	active, err := c.shifts.Active(ctx, actor.ID)
	if err != nil {
		c.log.Error("failed to look up active shift", zap.String("discord_id", actor.ID), zap.Error(err))
		return ephemeral(OutcomeFailed, msgGenericFailure)
	}
	if active != nil {
		return ephemeral(OutcomeRejected, msgAlreadyActive)
	}
	return Reply{Ephemeral: true, Content: msgChooseDepartment, Menu: departmentMenu(c.departments), Outcome: OutcomeOK}
}

func (c *Controller) startShift(ctx context.Context, actor Actor, department string) Reply {
	if department == "" {
		return ephemeral(OutcomeRejected, msgNoDepartment)
	}
	_, err := c.shifts.Start(ctx, actor.ID, department)
	switch {
	case errors.Is(err, models.ErrAlreadyActive):
		return ephemeral(OutcomeRejected, msgAlreadyActive)
	case err != nil:
		c.log.Error("failed to start shift", zap.String("discord_id", actor.ID), zap.Error(err))
		return ephemeral(OutcomeFailed, msgStartFailed)
	}
	return ephemeral(OutcomeOK, fmt.Sprintf("Shift started successfully for department **%s**! Stay safe out there.", department))
}

func (c *Controller) endShift(ctx context.Context, actor Actor) Reply {
	shift, err := c.shifts.End(ctx, actor.ID)
	switch {
	case errors.Is(err, models.ErrNoActiveShift):
		return ephemeral(OutcomeRejected, msgNoActiveShift)
	case err != nil:
		c.log.Error("failed to end shift", zap.String("discord_id", actor.ID), zap.Error(err))
		return ephemeral(OutcomeFailed, msgEndFailed)
	}
	return ephemeral(OutcomeOK, fmt.Sprintf("Shift ended successfully! Duration: %d minutes.", shift.Minutes()))
}

func (c *Controller) showLeaderboard(ctx context.Context, selection string) Reply {
	department := selection
	if department == AllScope {
		department = ""
	}
	entries, err := c.leaderboard.Get(ctx, department)
	if err != nil {
		c.log.Error("failed to load leaderboard", zap.String("department", department), zap.Error(err))
		return ephemeral(OutcomeFailed, msgLeaderboardFail)
	}
	return RenderLeaderboard(department, entries)
}

func (c *Controller) reset(ctx context.Context, actor Actor) Reply {
	if err := c.shifts.ResetAll(ctx); err != nil {
		c.log.Error("failed to reset shifts", zap.String("discord_id", actor.ID), zap.Error(err))
		return ephemeral(OutcomeFailed, msgResetFailed)
	}
	c.log.Info("shift data reset", zap.String("discord_id", actor.ID))
	return ephemeral(OutcomeOK, msgResetDone)
}

// LeaderboardView returns the full ranked leaderboard for a department, or
// every department when department is empty or "all".
func (c *Controller) LeaderboardView(ctx context.Context, department string) ([]models.LeaderboardEntry, error) {
	if department == AllScope {
		department = ""
	}
	return c.leaderboard.Get(ctx, department)
}

// Status reports transport liveness. Uptime is zero while offline.
func (c *Controller) Status(ctx context.Context) models.BotStatus {
	st := models.BotStatus{Status: "Offline"}
	if c.status != nil && c.status.Ready() {
		st.Status = "Online"
		st.Uptime = c.status.Uptime().Milliseconds()
	}
	if c.duty != nil {
		if n, err := c.duty.Count(ctx); err == nil {
			st.OnDuty = &n
		} else {
			c.log.Debug("on-duty count unavailable", zap.Error(err))
		}
	}
	return st
}

func isKnown(a Action) bool {
	switch a {
	case ActionPanel, ActionStartShift, ActionEndShift, ActionLeaderboard,
		ActionResetShifts, ActionSelectDepartment, ActionSelectLeaderboardDept:
		return true
	}
	return false
}

package interaction_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evn/shiftbot/db"
	"github.com/evn/shiftbot/internal/interaction"
	"github.com/evn/shiftbot/internal/models"
	"github.com/evn/shiftbot/internal/repositories"
	"github.com/evn/shiftbot/internal/services/leaderboard"
	"github.com/evn/shiftbot/internal/services/shift"
	"github.com/evn/shiftbot/internal/services/users"
)

var departments = []string{"Fire Department", "Police"}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recorder struct{ calls []string }

func (r *recorder) Interaction(action, outcome string) {
	r.calls = append(r.calls, action+":"+outcome)
}

type fixture struct {
	ctrl  *interaction.Controller
	clock *clock
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.InitDB("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repo := repositories.NewShiftRepository(database, repositories.SQLite)
	c := &clock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	log := zap.NewNop()

	ctrl := interaction.NewController(
		shift.NewService(repo, nil, log, shift.WithClock(c.Now)),
		users.NewResolver(repo, log),
		leaderboard.NewService(repo, nil, log),
		interaction.RolePolicy{ShiftRole: "Public Services Employee", ManagementRole: "Management Team"},
		departments,
		log,
		interaction.WithRecorder(rec),
	)
	return &fixture{ctrl: ctrl, clock: c, rec: rec}
}

func employee(id string) interaction.Actor {
	return interaction.Actor{ID: id, DisplayName: "user-" + id, Roles: []string{"Public Services Employee"}}
}

func (f *fixture) do(a interaction.Actor, action interaction.Action, selection string) interaction.Reply {
	return f.ctrl.HandleAction(context.Background(), a, action, selection)
}

func (f *fixture) work(t *testing.T, a interaction.Actor, department string, d time.Duration) {
	t.Helper()
	r := f.do(a, interaction.ActionSelectDepartment, department)
	require.Equal(t, interaction.OutcomeOK, r.Outcome, r.Content)
	f.clock.advance(d)
	r = f.do(a, interaction.ActionEndShift, "")
	require.Equal(t, interaction.OutcomeOK, r.Outcome, r.Content)
}

func TestPanel(t *testing.T) {
	f := newFixture(t)

	r := f.ctrl.HandlePanelOpen(context.Background(), employee("A"))
	assert.False(t, r.Ephemeral)
	require.NotNil(t, r.Embed)
	assert.Equal(t, "Shift Management", r.Embed.Title)
	require.Len(t, r.Buttons, 4)
	assert.Equal(t, interaction.ActionStartShift, r.Buttons[0].CustomID)
	assert.Equal(t, interaction.ActionResetShifts, r.Buttons[3].CustomID)

	denied := f.ctrl.HandlePanelOpen(context.Background(), interaction.Actor{ID: "X"})
	assert.True(t, denied.Ephemeral)
	assert.Equal(t, interaction.OutcomeDenied, denied.Outcome)
	assert.Contains(t, denied.Content, "Public Services Employee")
	assert.Nil(t, denied.Embed)
}

func TestStartFlow(t *testing.T) {
	f := newFixture(t)
	a := employee("A")

	prompt := f.do(a, interaction.ActionStartShift, "")
	assert.True(t, prompt.Ephemeral)
	assert.Equal(t, "Please select your department to start the shift:", prompt.Content)
	require.NotNil(t, prompt.Menu)
	assert.Equal(t, interaction.ActionSelectDepartment, prompt.Menu.CustomID)
	require.Len(t, prompt.Menu.Options, len(departments))
	assert.Equal(t, "Fire Department", prompt.Menu.Options[0].Value)

	started := f.do(a, interaction.ActionSelectDepartment, "Fire Department")
	assert.Equal(t, "Shift started successfully for department **Fire Department**! Stay safe out there.", started.Content)

	again := f.do(a, interaction.ActionStartShift, "")
	assert.Equal(t, "You already have an active shift!", again.Content)
	assert.Nil(t, again.Menu)

	// a stale menu from before the first start must not open a second shift
	stale := f.do(a, interaction.ActionSelectDepartment, "Police")
	assert.Equal(t, interaction.OutcomeRejected, stale.Outcome)
	assert.Equal(t, "You already have an active shift!", stale.Content)
}

func TestSelectWithoutDepartment(t *testing.T) {
	f := newFixture(t)

	r := f.do(employee("A"), interaction.ActionSelectDepartment, "")
	assert.Equal(t, interaction.OutcomeRejected, r.Outcome)
}

func TestEndWithoutStart(t *testing.T) {
	f := newFixture(t)

	r := f.do(employee("A"), interaction.ActionEndShift, "")
	assert.True(t, r.Ephemeral)
	assert.Equal(t, "No active shift found.", r.Content)
}

func TestFireDepartmentScenario(t *testing.T) {
	f := newFixture(t)
	a := employee("A")

	f.do(a, interaction.ActionSelectDepartment, "Fire Department")
	f.clock.advance(42*time.Minute + 30*time.Second)
	ended := f.do(a, interaction.ActionEndShift, "")
	assert.Equal(t, "Shift ended successfully! Duration: 42 minutes.", ended.Content)

	fire := f.do(a, interaction.ActionSelectLeaderboardDept, "Fire Department")
	assert.False(t, fire.Ephemeral)
	require.NotNil(t, fire.Embed)
	assert.Equal(t, "Fire Department Shift Leaderboard", fire.Embed.Title)
	assert.Equal(t, "1. **user-A** - 42 mins", fire.Embed.Description)

	police := f.do(a, interaction.ActionSelectLeaderboardDept, "Police")
	assert.Equal(t, "No shift data yet.", police.Embed.Description)
}

func TestResetDeniedKeepsTotals(t *testing.T) {
	f := newFixture(t)
	a := employee("A")
	f.work(t, a, "Police", 15*time.Minute)

	denied := f.do(a, interaction.ActionResetShifts, "")
	assert.True(t, denied.Ephemeral)
	assert.Equal(t, interaction.OutcomeDenied, denied.Outcome)
	assert.Equal(t, "Only Management Team can reset shifts.", denied.Content)

	board := f.do(a, interaction.ActionSelectLeaderboardDept, interaction.AllScope)
	assert.Equal(t, "Global Shift Leaderboard", board.Embed.Title)
	assert.Equal(t, "1. **user-A** - 15 mins", board.Embed.Description)
}

func TestResetByManagement(t *testing.T) {
	f := newFixture(t)
	f.work(t, employee("A"), "Police", 15*time.Minute)

	manager := interaction.Actor{ID: "M", DisplayName: "boss", Roles: []string{"Management Team"}}
	r := f.do(manager, interaction.ActionResetShifts, "")
	assert.Equal(t, "All shift data has been reset.", r.Content)

	for _, scope := range []string{interaction.AllScope, "Police", "Fire Department"} {
		board := f.do(manager, interaction.ActionSelectLeaderboardDept, scope)
		assert.Equal(t, "No shift data yet.", board.Embed.Description, scope)
	}

	owner := interaction.Actor{ID: "O", IsOwner: true}
	assert.Equal(t, interaction.OutcomeOK, f.do(owner, interaction.ActionResetShifts, "").Outcome)
}

func TestLeaderboardOrderingAndTopTen(t *testing.T) {
	f := newFixture(t)
	f.work(t, employee("A"), "Police", 10*time.Minute)
	f.work(t, employee("B"), "Police", 20*time.Minute)

	board := f.do(employee("A"), interaction.ActionSelectLeaderboardDept, interaction.AllScope)
	assert.Equal(t, "1. **user-B** - 20 mins\n2. **user-A** - 10 mins", board.Embed.Description)

	for i := 0; i < 10; i++ {
		f.work(t, employee(fmt.Sprintf("P%d", i)), "Fire Department", time.Duration(i+1)*time.Minute)
	}
	view, err := f.ctrl.LeaderboardView(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, view, 12)
	for i := 1; i < len(view); i++ {
		assert.GreaterOrEqual(t, view[i-1].TotalMinutes, view[i].TotalMinutes)
	}

	rendered := interaction.RenderLeaderboard("", view)
	assert.Contains(t, rendered.Embed.Description, "10. **")
	assert.NotContains(t, rendered.Embed.Description, "11. **")
}

func TestLeaderboardPrompt(t *testing.T) {
	f := newFixture(t)

	r := f.do(employee("A"), interaction.ActionLeaderboard, "")
	assert.True(t, r.Ephemeral)
	assert.Equal(t, "Which department's leaderboard would you like to view?", r.Content)
	require.NotNil(t, r.Menu)
	assert.Equal(t, interaction.ActionSelectLeaderboardDept, r.Menu.CustomID)
	require.Len(t, r.Menu.Options, len(departments)+1)
	assert.Equal(t, interaction.MenuOption{Label: "Global (All)", Value: "all"}, r.Menu.Options[0])
}

func TestUnknownAction(t *testing.T) {
	f := newFixture(t)

	r := f.do(employee("A"), interaction.Action("dance"), "")
	assert.Equal(t, interaction.OutcomeUnknown, r.Outcome)
	assert.Equal(t, []string{"dance:unknown"}, f.rec.calls)
}

type failingShifts struct{ err error }

func (s failingShifts) Active(context.Context, string) (*models.Shift, error) { return nil, s.err }
func (s failingShifts) Start(context.Context, string, string) (*models.Shift, error) {
	return nil, s.err
}
func (s failingShifts) End(context.Context, string) (*models.Shift, error) { return nil, s.err }
func (s failingShifts) ResetAll(context.Context) error                     { return s.err }

type okUsers struct{}

func (okUsers) Resolve(_ context.Context, id, name string) (*models.User, error) {
	return &models.User{ExternalID: id, DisplayName: name}, nil
}

type failingBoard struct{}

func (failingBoard) Get(context.Context, string) ([]models.LeaderboardEntry, error) {
	return nil, models.ErrStoreUnavailable
}

func TestStoreFailuresBecomeMessages(t *testing.T) {
	storeErr := fmt.Errorf("end shift: %w", errors.Join(models.ErrStoreUnavailable, errors.New("dial tcp")))
	ctrl := interaction.NewController(
		failingShifts{err: storeErr}, okUsers{}, failingBoard{},
		interaction.RolePolicy{ShiftRole: "S", ManagementRole: "M"},
		departments, zap.NewNop(),
	)
	admin := interaction.Actor{ID: "A", IsAdmin: true}
	ctx := context.Background()

	cases := map[interaction.Action]string{
		interaction.ActionStartShift:            "Something went wrong. Please try again.",
		interaction.ActionSelectDepartment:      "Failed to start shift. Please try again.",
		interaction.ActionEndShift:              "Failed to end shift.",
		interaction.ActionResetShifts:           "Failed to reset shift data. Please try again.",
		interaction.ActionSelectLeaderboardDept: "Failed to load the leaderboard. Please try again.",
	}
	for action, want := range cases {
		r := ctrl.HandleAction(ctx, admin, action, "Police")
		assert.Equal(t, interaction.OutcomeFailed, r.Outcome, action)
		assert.True(t, r.Ephemeral, action)
		assert.Equal(t, want, r.Content, action)
	}

	notFound := interaction.NewController(
		failingShifts{err: models.ErrNotFound}, okUsers{}, failingBoard{},
		interaction.RolePolicy{ShiftRole: "S", ManagementRole: "M"},
		departments, zap.NewNop(),
	)
	assert.Equal(t, "Failed to end shift.", notFound.HandleAction(ctx, admin, interaction.ActionEndShift, "").Content)
}

type fakeStatus struct {
	ready  bool
	uptime time.Duration
}

func (s fakeStatus) Ready() bool           { return s.ready }
func (s fakeStatus) Uptime() time.Duration { return s.uptime }

type fakeDuty struct{ n int64 }

func (d fakeDuty) Count(context.Context) (int64, error) { return d.n, nil }

func TestStatus(t *testing.T) {
	policy := interaction.RolePolicy{ShiftRole: "S", ManagementRole: "M"}
	ctx := context.Background()

	none := interaction.NewController(okShiftsStub(), okUsers{}, failingBoard{}, policy, departments, zap.NewNop())
	assert.Equal(t, models.BotStatus{Status: "Offline"}, none.Status(ctx))

	offline := interaction.NewController(okShiftsStub(), okUsers{}, failingBoard{}, policy, departments, zap.NewNop(),
		interaction.WithStatus(fakeStatus{ready: false, uptime: time.Hour}))
	assert.Equal(t, "Offline", offline.Status(ctx).Status)
	assert.Zero(t, offline.Status(ctx).Uptime)

	online := interaction.NewController(okShiftsStub(), okUsers{}, failingBoard{}, policy, departments, zap.NewNop(),
		interaction.WithStatus(fakeStatus{ready: true, uptime: 90 * time.Second}),
		interaction.WithDutyCounter(fakeDuty{n: 3}))
	st := online.Status(ctx)
	assert.Equal(t, "Online", st.Status)
	assert.Equal(t, int64(90000), st.Uptime)
	require.NotNil(t, st.OnDuty)
	assert.Equal(t, int64(3), *st.OnDuty)
}

func okShiftsStub() failingShifts { return failingShifts{} }

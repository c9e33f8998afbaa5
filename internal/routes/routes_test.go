package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/evn/shiftbot/db"
	"github.com/evn/shiftbot/internal/interaction"
	"github.com/evn/shiftbot/internal/metrics"
	"github.com/evn/shiftbot/internal/models"
	"github.com/evn/shiftbot/internal/repositories"
	authService "github.com/evn/shiftbot/internal/services/auth"
	"github.com/evn/shiftbot/internal/services/leaderboard"
	"github.com/evn/shiftbot/internal/services/shift"
	"github.com/evn/shiftbot/internal/services/users"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

type fakeSheets struct {
	scope   string
	entries []models.LeaderboardEntry
}

func (f *fakeSheets) Publish(_ context.Context, scope string, entries []models.LeaderboardEntry) (int64, error) {
	f.scope, f.entries = scope, entries
	return int64(len(entries) + 1), nil
}

type env struct {
	router http.Handler
	ctrl   *interaction.Controller
	clock  *testClock
	sheets *fakeSheets
}

func newEnv(t *testing.T) *env {
	t.Helper()
	database, err := db.InitDB("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	log := zap.NewNop()
	repo := repositories.NewShiftRepository(database, repositories.SQLite)
	clock := &testClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	shifts := shift.NewService(repo, nil, log, shift.WithClock(clock.now))
	ctrl := interaction.NewController(
		shifts,
		users.NewResolver(repo, log),
		leaderboard.NewService(repo, nil, log),
		interaction.RolePolicy{ShiftRole: "Public Services Employee", ManagementRole: "Management Team"},
		[]string{"Fire Department", "Police"},
		log,
	)

	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	sheets := &fakeSheets{}

	router := Setup(Dependencies{
		JwtSecret:    "secret",
		PasswordHash: string(hash),
		Controller:   ctrl,
		Shifts:       shifts,
		JWT:          authService.NewJWTService("secret"),
		Sheets:       sheets,
		Metrics:      metrics.New(),
		Ping:         database.PingContext,
		Feed: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("feed"))
		}),
		Logger: log,
	})
	return &env{router: router, ctrl: ctrl, clock: clock, sheets: sheets}
}

func (e *env) serve(method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) work(t *testing.T, id, department string, d time.Duration) {
	t.Helper()
	actor := interaction.Actor{ID: id, DisplayName: "user-" + id, Roles: []string{"Public Services Employee"}}
	ctx := context.Background()
	r := e.ctrl.HandleAction(ctx, actor, interaction.ActionSelectDepartment, department)
	require.Equal(t, interaction.OutcomeOK, r.Outcome, r.Content)
	e.clock.t = e.clock.t.Add(d)
	r = e.ctrl.HandleAction(ctx, actor, interaction.ActionEndShift, "")
	require.Equal(t, interaction.OutcomeOK, r.Outcome, r.Content)
}

func (e *env) login(t *testing.T) string {
	t.Helper()
	rec := e.serve(http.MethodPost, "/api/auth/token", "", []byte(`{"username":"ops","password":"letmein"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out["token"]
}

func TestLeaderboardEndpoint(t *testing.T) {
	e := newEnv(t)
	e.work(t, "A", "Police", 10*time.Minute)
	e.work(t, "B", "Police", 20*time.Minute)
	e.work(t, "A", "Fire Department", 5*time.Minute)

	rec := e.serve(http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"discordId":"B","username":"user-B","totalDuration":20,"department":"Global"},
		{"discordId":"A","username":"user-A","totalDuration":15,"department":"Global"}
	]`, rec.Body.String())

	rec = e.serve(http.MethodGet, "/api/leaderboard?department=Fire+Department", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"discordId":"A","username":"user-A","totalDuration":5,"department":"Fire Department"}]`, rec.Body.String())

	rec = e.serve(http.MethodGet, "/api/leaderboard?department=Harbor", "", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBotStatusOfflineWithoutBridge(t *testing.T) {
	e := newEnv(t)

	rec := e.serve(http.MethodGet, "/api/bot/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"Offline","uptime":0}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusOK, e.serve(http.MethodGet, "/health", "", nil).Code)
	rec := e.serve(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestExportXLSX(t *testing.T) {
	e := newEnv(t)
	e.work(t, "A", "Police", 10*time.Minute)

	rec := e.serve(http.MethodGet, "/api/leaderboard/export.xlsx?department=Police", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Police")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "A", "user-A", "10"}, rows[1])
}

func TestTokenEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.serve(http.MethodPost, "/api/auth/token", "", []byte(`{"password":"wrong"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.serve(http.MethodPost, "/api/auth/token", "", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.NotEmpty(t, e.login(t))
}

func TestAdminRequiresManagementToken(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusUnauthorized, e.serve(http.MethodGet, "/api/admin/active-shifts", "", nil).Code)

	viewer, err := authService.NewJWTService("secret").GenerateToken("someone", "viewer")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, e.serve(http.MethodGet, "/api/admin/active-shifts", viewer, nil).Code)
}

func TestAdminShiftOperations(t *testing.T) {
	e := newEnv(t)
	token := e.login(t)
	ctx := context.Background()

	actor := interaction.Actor{ID: "A", DisplayName: "user-A", Roles: []string{"Public Services Employee"}}
	r := e.ctrl.HandleAction(ctx, actor, interaction.ActionSelectDepartment, "Police")
	require.Equal(t, interaction.OutcomeOK, r.Outcome)

	rec := e.serve(http.MethodGet, "/api/admin/active-shifts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []models.ActiveShift
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.Len(t, active, 1)
	assert.Equal(t, "A", active[0].ExternalID)
	assert.Equal(t, "Police", active[0].Department)

	e.clock.t = e.clock.t.Add(125 * time.Minute)
	rec = e.serve(http.MethodPost, "/api/admin/users/A/end-shift", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Shift ended","duration_minutes":125,"worked_time":"2 h 5 min"}`, rec.Body.String())

	rec = e.serve(http.MethodPost, "/api/admin/users/A/end-shift", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.serve(http.MethodPost, "/api/admin/leaderboard/sheet?department=all", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"scope":"Global","updated_rows":2}`, rec.Body.String())
	assert.Equal(t, "Global", e.sheets.scope)

	rec = e.serve(http.MethodPost, "/api/admin/shifts/reset", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.serve(http.MethodGet, "/api/leaderboard", "", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = e.serve(http.MethodGet, "/api/admin/active-shifts", token, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestFeedRequiresManagementToken(t *testing.T) {
	e := newEnv(t)

	rec := e.serve(http.MethodGet, "/ws/feed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := e.login(t)
	rec = e.serve(http.MethodGet, "/ws/feed", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "feed", rec.Body.String())

	rec = e.serve(http.MethodGet, "/ws/feed?jwt="+token, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	staff, err := authService.NewJWTService("secret").GenerateToken("someone", "staff")
	require.NoError(t, err)
	rec = e.serve(http.MethodGet, "/ws/feed?jwt="+staff, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

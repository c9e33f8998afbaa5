package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/handlers"
	adminHandlers "github.com/evn/shiftbot/internal/handlers/admin"
	authHandlers "github.com/evn/shiftbot/internal/handlers/auth"
	"github.com/evn/shiftbot/internal/interaction"
	"github.com/evn/shiftbot/internal/metrics"
	"github.com/evn/shiftbot/internal/middleware"
	authService "github.com/evn/shiftbot/internal/services/auth"
)

// Dependencies are the services the router exposes. Sheets may be nil.
type Dependencies struct {
	JwtSecret    string
	PasswordHash string

	Controller *interaction.Controller
	Shifts     adminHandlers.ShiftAdmin
	JWT        *authService.JWTService
	Sheets     adminHandlers.SheetPublisher
	Metrics    *metrics.Metrics
	Ping       func(ctx context.Context) error

	Gateway http.Handler
	Feed    http.Handler

	Logger *zap.Logger
}

// Setup builds the router for the reporting, admin and websocket surfaces.
func Setup(d Dependencies) *chi.Mux {
	log := d.Logger.Named("api")
	authHandler := authHandlers.NewAuthHandler(d.JWT, d.PasswordHash, d.Logger)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(d.Logger))
	router.Use(chiMiddleware.Recoverer)
	if d.Metrics != nil {
		router.Use(d.Metrics.Middleware)
		router.Handle("/metrics", d.Metrics.Handler())
	}

	router.Get("/health", handlers.HealthHandler(d.Ping))
	if d.Gateway != nil {
		router.Handle("/ws/gateway", d.Gateway)
	}

	router.Get("/api/leaderboard", handlers.GetLeaderboardHandler(d.Controller, log))
	router.Get("/api/leaderboard/export.xlsx", handlers.ExportLeaderboardHandler(d.Controller, log))
	router.Get("/api/bot/status", handlers.GetBotStatusHandler(d.Controller))
	router.Post("/api/auth/token", authHandler.TokenHandler)

	if d.JwtSecret == "" {
		log.Warn("JWT_SECRET is empty, admin API and live feed disabled")
		return router
	}

	jwtAuth := jwtauth.New("HS256", []byte(d.JwtSecret), nil)
	router.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(jwtAuth))
		r.Use(jwtauth.Authenticator(jwtAuth))
		r.Use(middleware.RequireRole(authService.RoleManagement))

		r.Get("/api/admin/active-shifts", adminHandlers.GetActiveShiftsHandler(d.Shifts, log))
		r.Post("/api/admin/users/{externalID}/end-shift", adminHandlers.ForceEndShiftHandler(d.Shifts, log))
		r.Post("/api/admin/shifts/reset", adminHandlers.ResetShiftsHandler(d.Shifts, log))
		r.Post("/api/admin/leaderboard/sheet", adminHandlers.PublishSheetHandler(d.Controller, d.Sheets, log))
	})

	// browsers cannot set headers on a websocket handshake, so the feed also
	// takes the token from ?jwt=
	if d.Feed != nil {
		router.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(jwtAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromQuery))
			r.Use(jwtauth.Authenticator(jwtAuth))
			r.Use(middleware.RequireRole(authService.RoleManagement))

			r.Handle("/ws/feed", d.Feed)
		})
	}

	return router
}

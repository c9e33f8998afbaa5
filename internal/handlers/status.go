package handlers

import (
	"context"
	"net/http"

	"github.com/evn/shiftbot/internal/models"
	"github.com/evn/shiftbot/internal/pkg/response"
)

type StatusSource interface {
	Status(ctx context.Context) models.BotStatus
}

// GetBotStatusHandler serves GET /api/bot/status.
func GetBotStatusHandler(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.RespondWithJSON(w, http.StatusOK, src.Status(r.Context()))
	}
}

// HealthHandler reports whether the store answers. A nil ping always passes.
func HealthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping == nil {
			response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		if err := ping(r.Context()); err != nil {
			response.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

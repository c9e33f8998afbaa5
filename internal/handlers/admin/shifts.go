// Package admin holds the management-only HTTP handlers.
package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/middleware"
	"github.com/evn/shiftbot/internal/models"
	"github.com/evn/shiftbot/internal/pkg/response"
)

type ShiftAdmin interface {
	ListActive(ctx context.Context) ([]models.ActiveShift, error)
	End(ctx context.Context, externalID string) (*models.Shift, error)
	ResetAll(ctx context.Context) error
}

// GetActiveShiftsHandler lists every open shift with its owner.
func GetActiveShiftsHandler(shifts ShiftAdmin, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active, err := shifts.ListActive(r.Context())
		if err != nil {
			logger.Error("failed to list active shifts", zap.Error(err))
			response.RespondWithError(w, http.StatusInternalServerError, "Database error")
			return
		}
		if active == nil {
			active = []models.ActiveShift{}
		}
		response.RespondWithJSON(w, http.StatusOK, active)
	}
}

// ForceEndShiftHandler closes a user's open shift on their behalf.
func ForceEndShiftHandler(shifts ShiftAdmin, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		externalID := chi.URLParam(r, "externalID")
		if externalID == "" {
			response.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
			return
		}

		shift, err := shifts.End(r.Context(), externalID)
		if errors.Is(err, models.ErrNoActiveShift) {
			response.RespondWithError(w, http.StatusNotFound, "No active shift found for the user")
			return
		} else if err != nil {
			logger.Error("failed to force end shift", zap.String("discord_id", externalID), zap.Error(err))
			response.RespondWithError(w, http.StatusInternalServerError, "Database error")
			return
		}

		logger.Info("shift force-ended",
			zap.String("discord_id", externalID),
			zap.String("by", middleware.SubjectFromContext(r.Context())),
		)
		response.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"message":          "Shift ended",
			"duration_minutes": shift.Minutes(),
			"worked_time":      response.FormatMinutes(shift.Minutes()),
		})
	}
}

// ResetShiftsHandler deletes all shift data.
func ResetShiftsHandler(shifts ShiftAdmin, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := shifts.ResetAll(r.Context()); err != nil {
			logger.Error("failed to reset shifts", zap.Error(err))
			response.RespondWithError(w, http.StatusInternalServerError, "Database error")
			return
		}
		logger.Warn("shift data reset over admin API", zap.String("by", middleware.SubjectFromContext(r.Context())))
		response.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "All shift data has been reset."})
	}
}

package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/models"
	"github.com/evn/shiftbot/internal/pkg/response"
	"github.com/evn/shiftbot/internal/services/export"
	"github.com/evn/shiftbot/internal/services/leaderboard"
)

type LeaderboardSource interface {
	LeaderboardView(ctx context.Context, department string) ([]models.LeaderboardEntry, error)
}

type leaderboardRow struct {
	DiscordID     string `json:"discordId"`
	Username      string `json:"username"`
	TotalDuration int    `json:"totalDuration"`
	Department    string `json:"department"`
}

// GetLeaderboardHandler serves GET /api/leaderboard?department=. The full
// ranking is returned, not only the top entries.
func GetLeaderboardHandler(src LeaderboardSource, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		department := departmentParam(r)
		entries, err := src.LeaderboardView(r.Context(), department)
		if err != nil {
			logger.Error("failed to fetch leaderboard", zap.String("department", department), zap.Error(err))
			response.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch leaderboard")
			return
		}

		scope := leaderboard.Scope(department)
		rows := make([]leaderboardRow, len(entries))
		for i, e := range entries {
			rows[i] = leaderboardRow{
				DiscordID:     e.ExternalID,
				Username:      e.DisplayName,
				TotalDuration: e.TotalMinutes,
				Department:    scope,
			}
		}
		response.RespondWithJSON(w, http.StatusOK, rows)
	}
}

// ExportLeaderboardHandler serves the leaderboard as an xlsx download.
func ExportLeaderboardHandler(src LeaderboardSource, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		department := departmentParam(r)
		entries, err := src.LeaderboardView(r.Context(), department)
		if err != nil {
			logger.Error("failed to fetch leaderboard", zap.String("department", department), zap.Error(err))
			response.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch leaderboard")
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.xlsx"`)
		if err := export.WriteXLSX(w, leaderboard.Scope(department), entries); err != nil {
			logger.Error("failed to write workbook", zap.Error(err))
		}
	}
}

func departmentParam(r *http.Request) string {
	d := r.URL.Query().Get("department")
	if d == "all" {
		return ""
	}
	return d
}

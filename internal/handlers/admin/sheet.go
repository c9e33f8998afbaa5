package admin

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/models"
	"github.com/evn/shiftbot/internal/pkg/response"
	"github.com/evn/shiftbot/internal/services/leaderboard"
)

type LeaderboardSource interface {
	LeaderboardView(ctx context.Context, department string) ([]models.LeaderboardEntry, error)
}

type SheetPublisher interface {
	Publish(ctx context.Context, scope string, entries []models.LeaderboardEntry) (int64, error)
}

// PublishSheetHandler pushes the leaderboard for ?department= to the
// configured Google spreadsheet. sheets may be nil when not configured.
func PublishSheetHandler(board LeaderboardSource, sheets SheetPublisher, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sheets == nil {
			response.RespondWithError(w, http.StatusServiceUnavailable, "Google Sheets export is not configured")
			return
		}

		department := r.URL.Query().Get("department")
		if department == "all" {
			department = ""
		}
		entries, err := board.LeaderboardView(r.Context(), department)
		if err != nil {
			logger.Error("failed to fetch leaderboard", zap.Error(err))
			response.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch leaderboard")
			return
		}

		scope := leaderboard.Scope(department)
		rows, err := sheets.Publish(r.Context(), scope, entries)
		if err != nil {
			logger.Error("failed to publish sheet", zap.String("scope", scope), zap.Error(err))
			response.RespondWithError(w, http.StatusBadGateway, "Failed to update spreadsheet")
			return
		}
		response.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"scope":        scope,
			"updated_rows": rows,
		})
	}
}

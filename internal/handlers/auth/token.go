// Package auth serves the admin token endpoint.
package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/pkg/response"
	authService "github.com/evn/shiftbot/internal/services/auth"
)

type AuthHandler struct {
	jwtService   *authService.JWTService
	passwordHash string
	log          *zap.Logger
}

func NewAuthHandler(jwtService *authService.JWTService, passwordHash string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		jwtService:   jwtService,
		passwordHash: passwordHash,
		log:          logger.Named("auth"),
	}
}

// TokenHandler exchanges the management password for a management JWT.
func (h *AuthHandler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request data")
		return
	}
	if h.passwordHash == "" {
		response.RespondWithError(w, http.StatusServiceUnavailable, "Admin login is disabled")
		return
	}

	if err := authService.CheckPassword(body.Password, h.passwordHash); err != nil {
		h.log.Info("admin login rejected", zap.String("username", body.Username), zap.String("remote", r.RemoteAddr))
		response.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	subject := body.Username
	if subject == "" {
		subject = authService.RoleManagement
	}
	token, err := h.jwtService.GenerateToken(subject, authService.RoleManagement)
	if err != nil {
		h.log.Error("failed to generate token", zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	response.RespondWithJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"role":  authService.RoleManagement,
	})
}

package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/evn/shiftbot/config"
	"github.com/evn/shiftbot/internal/pkg/response"
)

// RequireRole lets the request through only when the verified JWT carries the
// given role claim. The token subject is stored in the context.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				response.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			if got, ok := claims[config.ClaimsRoleKey].(string); !ok || got != role {
				response.RespondWithError(w, http.StatusForbidden, "Access denied")
				return
			}

			ctx := context.WithValue(r.Context(), config.SubjectKey, token.Subject())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the admin subject set by RequireRole.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(config.SubjectKey).(string)
	return s
}

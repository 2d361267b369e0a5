package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/username/capitolwatch/backend/src/logger"
	"github.com/username/capitolwatch/backend/src/security"
	"github.com/username/capitolwatch/backend/src/utils"
)

type contextKey string

const (
	requestIDContextKey contextKey = "requestID"
	subjectContextKey   contextKey = "subject"
)

// ContextualLoggerMiddleware creates a logger tagged with a request id for each request.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminMiddleware admits bearer tokens whose role is admin or whose subject
// is listed in adminSubjects.
func AdminMiddleware(auth *security.AuthService, adminSubjects []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxLogger := logger.FromContext(r.Context())

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				ctxLogger.Debug("AdminMiddleware: Authorization header missing", "path", r.URL.Path)
				utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if tokenString == "" {
				utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ValidateToken(tokenString)
			if err != nil {
				ctxLogger.Warn("AdminMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
				utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			if !isAdmin(claims, adminSubjects) {
				ctxLogger.Warn("Admin access denied", "subject", claims.Subject)
				utils.SendJSONError(w, "Forbidden: Administrator access required", http.StatusForbidden)
				return
			}

			enrichedLogger := ctxLogger.With(slog.String("subject", claims.Subject))
			ctx := logger.ToContext(r.Context(), enrichedLogger)
			ctx = context.WithValue(ctx, subjectContextKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isAdmin(claims *security.Claims, adminSubjects []string) bool {
	if claims.Role == security.RoleAdmin {
		return true
	}
	for _, s := range adminSubjects {
		if strings.EqualFold(s, claims.Subject) {
			return true
		}
	}
	return false
}

func GetSubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey).(string)
	return subject, ok
}

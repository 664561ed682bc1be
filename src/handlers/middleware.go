// backend/src/handlers/middleware.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/username/tradevisor/backend/src/logger"
	"github.com/username/tradevisor/backend/src/utils"
)

type contextKey string

const (
	userIDContextKey    contextKey = "userID"
	requestIDContextKey contextKey = "requestID"
)

// userIDHeader carries the authenticated user's ID, injected by the API
// gateway after it has validated the session. This service trusts it.
const userIDHeader = "X-User-ID"

// ContextualLoggerMiddleware creates a logger with a requestID for each request.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserContextMiddleware resolves the calling user from the gateway header and
// propagates the userID through the request context and the contextual logger.
func UserContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger := logger.FromContext(r.Context())

		userIDStr := r.Header.Get(userIDHeader)
		if userIDStr == "" {
			ctxLogger.Debug("UserContextMiddleware: user ID header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
			return
		}

		userIDInt, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil || userIDInt <= 0 {
			ctxLogger.Warn("UserContextMiddleware: invalid user ID header", "path", r.URL.Path, "value", userIDStr)
			utils.SendJSONError(w, "invalid user identity", http.StatusUnauthorized)
			return
		}

		enrichedLogger := ctxLogger.With(slog.Int64("userID", userIDInt))
		ctx := logger.ToContext(r.Context(), enrichedLogger)
		ctx = context.WithValue(ctx, userIDContextKey, userIDInt)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/hecu-bank-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type contextKey string

const claimsKey contextKey = "claims"

// bearerClaims validates the Bearer token on r. It writes a 401 and returns
// nil when the header is missing, malformed or the token is invalid.
func bearerClaims(w http.ResponseWriter, r *http.Request, authSvc *service.AuthService, logger *zap.Logger) *service.Claims {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		logger.Warn("auth: missing token",
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)
		writeError(w, http.StatusUnauthorized, "authentication token required")
		return nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		logger.Warn("auth: invalid token format",
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)
		writeError(w, http.StatusUnauthorized, "invalid token format")
		return nil
	}

	claims, err := authSvc.ValidateToken(parts[1])
	if err != nil {
		logger.Warn("auth: invalid or expired token",
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		writeError(w, http.StatusUnauthorized, err.Error())
		return nil
	}
	return claims
}

// UserAuthMiddleware requires a user token whose subject matches the
// {userId} path parameter. Admin tokens are accepted on user routes so the
// console can inspect any account.
func UserAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := bearerClaims(w, r, authSvc, logger)
			if claims == nil {
				return
			}

			userID := chi.URLParam(r, "userId")
			if !claims.IsAdmin && claims.UserID() != userID {
				logger.Warn("auth: token subject does not own resource",
					zap.String("path", r.URL.Path),
					zap.String("subject", claims.Subject),
					zap.String("user_id", userID),
				)
				writeError(w, http.StatusForbidden, "forbidden: token does not belong to this user")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnlyMiddleware requires an admin token issued by the PIN check.
func AdminOnlyMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := bearerClaims(w, r, authSvc, logger)
			if claims == nil {
				return
			}
			if !claims.IsAdmin {
				logger.Warn("auth: admin route with user token",
					zap.String("path", r.URL.Path),
					zap.String("subject", claims.Subject),
				)
				writeError(w, http.StatusForbidden, "forbidden: admin access required")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts the validated token claims from context.
func ClaimsFromContext(ctx context.Context) *service.Claims {
	v, _ := ctx.Value(claimsKey).(*service.Claims)
	return v
}

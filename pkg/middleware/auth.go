package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/store"
	"tilespace-backend/pkg/utils"
)

// ContextKey 用于在context中存储用户信息的键
type ContextKey string

const (
	UserContextKey ContextKey = "user"
)

// bearerToken 从 Authorization 头中取出 Bearer 令牌
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
		return "", false
	}
	return strings.TrimSpace(tokenString), true
}

// withUser 把用户放进 context，同时给请求日志补上 user_id
func withUser(r *http.Request, user *models.User) *http.Request {
	logger := zerolog.Ctx(r.Context())
	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("user_id", user.ID)
	})
	return r.WithContext(context.WithValue(r.Context(), UserContextKey, user))
}

// AuthMiddleware JWT认证中间件；401 时扩展程序会清除保存的凭据
func AuthMiddleware(jwtService *utils.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}

			tokenString, ok := bearerToken(r)
			if !ok {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			user, err := jwtService.ExtractUserFromToken(tokenString)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("token rejected")
				if errors.Is(err, utils.ErrTokenExpired) {
					utils.WriteUnauthorizedResponse(w, "Token expired")
					return
				}
				utils.WriteUnauthorizedResponse(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, withUser(r, user))
		})
	}
}

// OptionalAuthMiddleware 可选的认证中间件（不强制要求认证）
func OptionalAuthMiddleware(jwtService *utils.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			// 令牌无效时按匿名请求处理
			user, err := jwtService.ExtractUserFromToken(tokenString)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, withUser(r, user))
		})
	}
}

// GetUserFromContext 从context中获取用户信息
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}

// RequireUser 要求用户必须已认证的辅助函数
func RequireUser(ctx context.Context) (*models.User, error) {
	user, ok := GetUserFromContext(ctx)
	if !ok || user.ID == "" {
		return nil, database.ErrNotAuthenticated
	}
	return user, nil
}

// Session resolves the store owner from the authenticated request context.
func Session() store.Session {
	return store.SessionFunc(func(ctx context.Context) (string, error) {
		user, err := RequireUser(ctx)
		if err != nil {
			return "", err
		}
		return user.ID, nil
	})
}

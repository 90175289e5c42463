package handlers

import (
	"net/http"
	"strings"
	"time"

	"tilespace-backend/pkg/config"
	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/middleware"
	"tilespace-backend/pkg/utils"
)

// AuthHandler 会话、健康检查与开发令牌
type AuthHandler struct {
	config *config.Config
	db     database.Gateway
	jwt    *utils.JWTService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, db database.Gateway, jwtService *utils.JWTService) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		db:     db,
		jwt:    jwtService,
	}
}

// Session 返回当前令牌对应的用户；扩展收到 401 时清除保存的凭据
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"user": user,
	})
}

// DevToken 开发环境签发访问令牌，生产环境不注册该路由
func (h *AuthHandler) DevToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		utils.WriteBadRequestResponse(w, "user_id is required")
		return
	}

	token, expiresAt, err := h.jwt.GenerateAccessToken(strings.TrimSpace(req.UserID), req.Email, utils.DefaultAccessTTL)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate token: "+err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   expiresAt,
	})
}

// HealthCheck 健康检查
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	// 测试数据库连接
	dbStatus := "healthy"
	if err := h.db.HealthCheck(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"service":     "tilespace-backend",
		"version":     "1.0.0",
		"environment": h.config.Environment,
		"database":    h.databaseType(),
		"db_status":   dbStatus,
		"timestamp":   time.Now().Unix(),
		"status":      "healthy",
	})
}

// databaseType 获取数据库类型
func (h *AuthHandler) databaseType() string {
	switch h.db.(type) {
	case *database.PostgresDatabase:
		return "postgresql"
	case *database.SupabaseDatabase:
		return "supabase"
	case *database.LocalDatabase:
		return "local"
	}
	return "unknown"
}

package handler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"tilespace-backend/pkg/config"
	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/handlers"
	"tilespace-backend/pkg/logging"
	customMiddleware "tilespace-backend/pkg/middleware"
	"tilespace-backend/pkg/utils"
)

// 请求体上限（文档内容也走 JSON）
const maxBodyBytes = 1 << 20

// Dependencies 路由所需的外部资源
type Dependencies struct {
	Config      *config.Config
	DB          database.Gateway
	Logger      zerolog.Logger
	RateLimiter *customMiddleware.RateLimiter // nil 表示不限流
}

var (
	runtimeOnce   sync.Once
	runtimeLogger zerolog.Logger
	runtimeLimit  *customMiddleware.RateLimiter
)

// Handler 是Vercel函数的入口点
// 这个函数实现了"单体路由模式"，将所有API端点集中在一个Chi路由器中管理
func Handler(w http.ResponseWriter, r *http.Request) {
	// 加载配置
	cfg := config.GetCached()

	// 验证配置
	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	// 日志与限流器每个冷启动初始化一次
	runtimeOnce.Do(func() {
		runtimeLogger = NewLogger(cfg)
		runtimeLimit = NewRateLimiter(r.Context(), cfg, runtimeLogger)
	})

	// 获取优化的数据库连接（自动适配Vercel环境）
	db, err := database.GetOptimizedDatabase(DatabaseConfig(cfg))
	if err != nil {
		runtimeLogger.Error().Err(err).Msg("database unavailable")
		utils.WriteInternalServerErrorResponse(w, "Database unavailable: "+err.Error())
		return
	}
	// 注意：连接由优化器管理，无需手动关闭

	router := NewRouter(Dependencies{
		Config:      cfg,
		DB:          db,
		Logger:      runtimeLogger,
		RateLimiter: runtimeLimit,
	})
	router.ServeHTTP(w, r)
}

// DatabaseConfig 从应用配置中取出数据库部分
func DatabaseConfig(cfg *config.Config) database.DatabaseConfig {
	return database.DatabaseConfig{
		UseLocalDB:   cfg.UseLocalDB,
		LocalDataDir: cfg.LocalDataDir,
		PostgresDSN:  cfg.PostgresDSN,
		SupabaseURL:  cfg.SupabaseURL,
		SupabaseKey:  cfg.SupabaseKey,
		Debug:        cfg.Debug,
	}
}

// NewLogger 开发环境输出可读格式，其余为 JSON
func NewLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	data, err := logging.New().
		WithLevel(level).
		Console(cfg.IsDevelopment()).
		Service("tilespace").
		Make()
	if err != nil {
		return zerolog.Nop()
	}
	return data.Logger
}

// NewRateLimiter 未配置 REDIS_URL 或连接失败时返回 nil
func NewRateLimiter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *customMiddleware.RateLimiter {
	if !cfg.RateLimitEnabled() {
		return nil
	}
	client, err := customMiddleware.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("rate limiting disabled")
		return nil
	}
	return customMiddleware.NewRateLimiter(client, cfg.CaptureRateLimit, time.Minute)
}

// NewRouter 构建完整的路由，serverless 入口与本地 serve 命令共用
func NewRouter(deps Dependencies) *chi.Mux {
	router := chi.NewRouter()

	// 设置全局中间件
	setupMiddleware(router, deps)

	// 设置路由
	setupRoutes(router, deps)

	return router
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, deps Dependencies) {
	cfg := deps.Config

	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(deps.Logger))
	router.Use(customMiddleware.Recovery(cfg))

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(25 * time.Second)) // 留5秒缓冲

	// 压缩中间件
	router.Use(middleware.Compress(5))

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, deps Dependencies) {
	cfg, db := deps.Config, deps.DB
	jwtService := utils.NewJWTService(cfg.JWTSecret)

	// 创建处理器
	authHandler := handlers.NewAuthHandler(cfg, db, jwtService)
	captureHandler := handlers.NewCaptureHandler(cfg, db)
	tileHandler := handlers.NewTileHandler(cfg, db)
	linkHandler := handlers.NewLinkHandler(cfg, db)
	pageHandler := handlers.NewPageHandler(cfg, db)
	preferenceHandler := handlers.NewPreferenceHandler(cfg, db)

	// 健康检查端点
	router.Get("/", authHandler.HealthCheck)

	// 数据库连接池状态端点（调试用）
	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			var stats map[string]interface{}

			if database.IsVercelEnvironment() {
				// Vercel环境显示优化器状态
				stats = database.GetVercelOptimizer().GetStats()
				stats["optimizer_type"] = "vercel"
			} else {
				// 非Vercel环境显示连接池状态
				stats = database.ConnectionStats()
				stats["optimizer_type"] = "standard"
			}

			utils.WriteSuccessResponse(w, stats)
		})
	}

	// 快速收藏：独立的 CORS 白名单与限流
	router.Route("/api/capture", func(r chi.Router) {
		r.Use(customMiddleware.CaptureCORS(cfg))
		r.Use(customMiddleware.AuthMiddleware(jwtService))
		if deps.RateLimiter != nil {
			r.Use(customMiddleware.RateLimit(deps.RateLimiter))
		}
		r.Use(customMiddleware.MaxBodySize(maxBodyBytes))
		r.HandleFunc("/", captureHandler.Capture)
	})

	// API路由组
	router.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.CORS(cfg))
		r.Use(customMiddleware.MaxBodySize(maxBodyBytes))
		r.Use(customMiddleware.ContentTypeJSON)

		// 公开路由（不需要认证）
		r.With(customMiddleware.OptionalAuthMiddleware(jwtService)).Get("/palettes", preferenceHandler.ListPalettes)
		if cfg.IsDevelopment() {
			r.Post("/auth/dev-token", authHandler.DevToken)
		}

		// 需要认证的路由
		r.Group(func(r chi.Router) {
			// 应用认证中间件
			r.Use(customMiddleware.AuthMiddleware(jwtService))

			r.Get("/session", authHandler.Session)

			r.Route("/tiles", func(r chi.Router) {
				r.Get("/", tileHandler.ListTiles)
				r.Post("/", tileHandler.CreateTile)
				r.Post("/swap", tileHandler.SwapTiles)
				r.Patch("/{id}", tileHandler.UpdateTile)
				r.Delete("/{id}", tileHandler.DeleteTile)
				r.Post("/{id}/move", tileHandler.MoveTile)
			})

			r.Route("/links", func(r chi.Router) {
				r.Post("/", linkHandler.CreateLink)
				r.Patch("/{id}", linkHandler.UpdateLink)
				r.Delete("/{id}", linkHandler.DeleteLink)
				r.Post("/{id}/move", linkHandler.MoveLink)
			})

			r.Route("/pages", func(r chi.Router) {
				r.Get("/", pageHandler.ListPages)
				r.Post("/", pageHandler.CreatePage)
				r.Patch("/{id}", pageHandler.UpdatePage)
				r.Delete("/{id}", pageHandler.DeletePage)
				r.Post("/{id}/reset", pageHandler.ResetPage)
			})

			r.Route("/preferences", func(r chi.Router) {
				r.Get("/", preferenceHandler.GetPreferences)
				r.Put("/palette", preferenceHandler.SetPalette)
			})
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}

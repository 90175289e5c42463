package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string
	Port        string

	// 数据库配置
	UseLocalDB   bool
	LocalDataDir string
	PostgresDSN  string
	SupabaseURL  string
	SupabaseKey  string

	// JWT配置（与托管认证服务共享的签名密钥）
	JWTSecret string

	// CORS配置
	AllowedOrigins []string

	// 快速收藏限流（REDIS_URL 为空时关闭）
	RedisURL         string
	CaptureRateLimit int

	// 调色板切换的防抖间隔
	PaletteDebounce time.Duration

	// 日志 / 调试配置
	LogLevel string
	Debug    bool
}

// LoadConfig 加载配置（支持本地和Vercel环境）
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	config := &Config{
		Environment:      getEnvWithDefault("ENVIRONMENT", "development"),
		Port:             getEnvWithDefault("PORT", "3000"),
		UseLocalDB:       getEnvBool("USE_LOCAL_DB", true),
		LocalDataDir:     getEnvWithDefault("LOCAL_DATA_DIR", "./data"),
		JWTSecret:        getEnvWithDefault("JWT_SECRET", defaultJWTSecret),
		CaptureRateLimit: getEnvInt("CAPTURE_RATE_LIMIT", 30),
		PaletteDebounce:  time.Duration(getEnvInt("PALETTE_DEBOUNCE_MS", 300)) * time.Millisecond,
		LogLevel:         getEnvWithDefault("LOG_LEVEL", "info"),
		Debug:            getEnvBool("DEBUG", false),
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	config.SupabaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/")
	config.SupabaseKey = strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_KEY"))
	config.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	config.AllowedOrigins = parseOrigins(getEnvWithDefault("ALLOWED_ORIGINS", "*"))

	if config.Environment == "production" {
		// 生产环境强制使用外部数据库
		if config.PostgresDSN != "" || (config.SupabaseURL != "" && config.SupabaseKey != "") {
			config.UseLocalDB = false
		}
		config.Debug = false
	}

	return config
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless (Vercel), it initializes once per cold start and
// reuses it across warm invocations.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	if c.CaptureRateLimit < 0 {
		return fmt.Errorf("CAPTURE_RATE_LIMIT must not be negative")
	}
	if c.PaletteDebounce < 0 {
		return fmt.Errorf("PALETTE_DEBOUNCE_MS must not be negative")
	}

	switch {
	case c.UseLocalDB:
	case c.PostgresDSN != "":
	case c.SupabaseURL != "" && c.SupabaseKey != "":
	default:
		return fmt.Errorf("数据库配置不完整：请配置 POSTGRES_DSN 或 SUPABASE_URL+SUPABASE_SERVICE_KEY")
	}

	return nil
}

// UsesDefaultSecret reports whether the JWT secret was left at its placeholder.
func (c *Config) UsesDefaultSecret() bool {
	return c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// RateLimitEnabled 是否启用收藏接口限流
func (c *Config) RateLimitEnabled() bool {
	return c.RedisURL != "" && c.CaptureRateLimit > 0
}

// 辅助函数

func parseOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "*" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// getEnvWithDefault 获取环境变量，如果不存在则使用默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型的环境变量
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// loadEnvFile 加载 .env 文件到环境变量
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return // 文件不存在或无法打开，静默返回
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// 移除值两端的引号
		if len(value) >= 2 {
			if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		// 只有当环境变量不存在时才设置
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

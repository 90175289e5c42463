package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	poolMaxAge  = 30 * time.Minute
	poolMaxIdle = 10 * time.Minute
)

// DatabasePool 进程级的网关复用
type DatabasePool struct {
	instance Gateway
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *DatabasePool
	poolMutex  sync.Mutex

	// newGateway 可在测试中替换
	newGateway = NewDatabase
)

// GetDatabase 获取数据库连接（单例 + 过期/健康检查后重建）
func GetDatabase(config DatabaseConfig) (Gateway, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool != nil && !shouldRecreateConnection(globalPool, config) {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
		log.Debug().Msg("reusing existing database connection")
		return globalPool.instance, nil
	}

	log.Info().Msg("creating new database connection pool")
	if globalPool != nil && globalPool.instance != nil {
		_ = globalPool.instance.Close()
		globalPool = nil
	}

	instance, err := newGateway(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	globalPool = &DatabasePool{
		instance: instance,
		config:   config,
		lastUsed: time.Now(),
	}
	return instance, nil
}

// shouldRecreateConnection 判断是否需要重新创建连接
func shouldRecreateConnection(pool *DatabasePool, newConfig DatabaseConfig) bool {
	if pool == nil || pool.instance == nil {
		return true
	}

	if !configEquals(pool.config, newConfig) {
		log.Info().Msg("database configuration changed, recreating connection")
		return true
	}

	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > poolMaxAge
	pool.mu.RUnlock()
	if expired {
		log.Info().Msg("database connection expired, recreating")
		return true
	}

	if err := pool.instance.HealthCheck(); err != nil {
		log.Warn().Err(err).Msg("database health check failed, recreating")
		return true
	}

	return false
}

// configEquals 比较两个数据库配置是否相等
func configEquals(a, b DatabaseConfig) bool {
	return a.UseLocalDB == b.UseLocalDB &&
		a.LocalDataDir == b.LocalDataDir &&
		a.PostgresDSN == b.PostgresDSN &&
		a.SupabaseURL == b.SupabaseURL &&
		a.SupabaseKey == b.SupabaseKey
}

// CleanupIdleConnections 清理空闲连接（可以在后台定期调用）
func CleanupIdleConnections() {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return
	}

	globalPool.mu.RLock()
	idle := time.Since(globalPool.lastUsed) > poolMaxIdle
	globalPool.mu.RUnlock()

	if idle {
		log.Info().Msg("cleaning up idle database connection")
		if globalPool.instance != nil {
			_ = globalPool.instance.Close()
		}
		globalPool = nil
	}
}

// GetConnectionStats 获取连接池统计信息
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
		"config": map[string]interface{}{
			"use_local_db": globalPool.config.UseLocalDB,
			"has_postgres": globalPool.config.PostgresDSN != "",
			"has_supabase": globalPool.config.SupabaseURL != "",
		},
	}
}
